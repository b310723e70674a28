package luis

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/hyy20190326/luis-0509/internal/models"
	"github.com/hyy20190326/luis-0509/internal/observability/logging"
	"github.com/hyy20190326/luis-0509/internal/service/stt"
)

// Predictor resolves text into a prediction.
type Predictor interface {
	Predict(ctx context.Context, query string) (*Prediction, error)
}

// Enrich wraps tpl so that every matched Recognized event without an intent
// is resolved through p before it reaches the session.
func Enrich(tpl stt.Template, p Predictor) stt.Template {
	return &template{inner: tpl, predictor: p}
}

type template struct {
	inner     stt.Template
	predictor Predictor
}

func (t *template) Provider() string { return t.inner.Provider() }

func (t *template) NewEngine(desc models.SessionDescriptor) (stt.Engine, error) {
	e, err := t.inner.NewEngine(desc)
	if err != nil {
		return nil, err
	}
	return &engine{
		Engine:    e,
		predictor: t.predictor,
		logger:    logging.WithSession(desc.SessionID, t.inner.Provider()).With().Str("component", "luis").Logger(),
	}, nil
}

type engine struct {
	stt.Engine
	predictor Predictor
	logger    zerolog.Logger
}

func (e *engine) Start(ctx context.Context) (<-chan stt.Event, error) {
	in, err := e.Engine.Start(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan stt.Event)
	go e.forward(ctx, in, out)
	return out, nil
}

// forward keeps draining in after ctx ends so the inner engine never blocks.
func (e *engine) forward(ctx context.Context, in <-chan stt.Event, out chan<- stt.Event) {
	defer close(out)
	for ev := range in {
		if ctx.Err() != nil {
			continue
		}
		if needsPrediction(ev) {
			e.resolve(ctx, &ev)
		}
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	}
}

func (e *engine) resolve(ctx context.Context, ev *stt.Event) {
	p, err := e.predictor.Predict(ctx, ev.Text)
	if err != nil {
		e.logger.Warn().Err(err).Str("text", ev.Text).Msg("intent prediction failed")
		return
	}
	ev.Intent = p.Intent
	ev.Details = p.Raw
	e.logger.Debug().
		Str("intent", p.Intent).
		Float64("score", p.Score).
		Msg("intent predicted")
}

// needsPrediction is true for matched text the engine left unresolved. Details
// that are not a prediction, such as a recognizer's own result JSON, do not
// count as resolved.
func needsPrediction(ev stt.Event) bool {
	return ev.Kind == stt.KindRecognized &&
		ev.Reason == stt.ReasonMatched &&
		ev.Text != "" &&
		ev.Intent == "" &&
		!stt.HasPrediction(ev.Details)
}
