// Package google provides a Google Cloud Speech-to-Text engine.
package google

import (
	"context"
	"errors"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"

	"github.com/hyy20190326/luis-0509/internal/models"
	"github.com/hyy20190326/luis-0509/internal/observability/logging"
	"github.com/hyy20190326/luis-0509/internal/service/stt"
)

const provider = "google"

// ErrClosed is returned by Feed after Close.
var ErrClosed = errors.New("google engine closed")

// Config holds the recognition settings sent with every stream.
type Config struct {
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string
}

// DefaultConfig matches 8kHz 16-bit telephony audio.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "zh-CN",
		SampleRateHz:   8000,
		InterimResults: false,
		AudioEncoding:  "LINEAR16",
	}
}

// Template shares one Speech client between all sessions.
type Template struct {
	client *speech.Client
	cfg    Config
}

// NewTemplate dials the Speech API.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func NewTemplate(ctx context.Context, cfg Config) (*Template, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Template{client: c, cfg: cfg}, nil
}

func (t *Template) Provider() string { return provider }

func (t *Template) NewEngine(desc models.SessionDescriptor) (stt.Engine, error) {
	return &Engine{
		client: t.client,
		cfg:    t.cfg,
		logger: logging.WithSession(desc.SessionID, provider),
	}, nil
}

// Close releases the shared client.
func (t *Template) Close() error {
	return t.client.Close()
}

// Engine implements stt.Engine over one StreamingRecognize call.
type Engine struct {
	client *speech.Client
	cfg    Config
	logger zerolog.Logger

	mu     sync.Mutex
	stream speechpb.Speech_StreamingRecognizeClient
	cancel context.CancelFunc
	closed bool
}

// Start opens the stream and sends the streaming config as the first message.
func (e *Engine) Start(ctx context.Context) (<-chan stt.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}

	sctx, cancel := context.WithCancel(ctx)
	stream, err := e.client.StreamingRecognize(sctx)
	if err != nil {
		cancel()
		return nil, err
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        parseAudioEncoding(e.cfg.AudioEncoding),
					SampleRateHertz: int32(e.cfg.SampleRateHz),
					LanguageCode:    e.cfg.LanguageCode,
				},
				InterimResults:            e.cfg.InterimResults,
				EnableVoiceActivityEvents: true,
			},
		},
	})
	if err != nil {
		cancel()
		return nil, err
	}

	e.stream = stream
	e.cancel = cancel

	out := make(chan stt.Event)
	go listen(sctx, stream, out, e.logger)
	return out, nil
}

// Feed sends audio bytes to Google Speech-to-Text.
func (e *Engine) Feed(audio []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.stream == nil {
		return ErrClosed
	}
	return e.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close half-closes the stream and cancels the receive loop.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var err error
	if e.stream != nil {
		err = e.stream.CloseSend()
	}
	if e.cancel != nil {
		e.cancel()
	}
	return err
}

type receiver interface {
	Recv() (*speechpb.StreamingRecognizeResponse, error)
}

// listen translates responses into events until the stream ends. A receive
// error on a live stream becomes a Canceled event.
func listen(ctx context.Context, stream receiver, out chan<- stt.Event, logger zerolog.Logger) {
	defer close(out)

	emit := func(ev stt.Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				emit(stt.Event{Kind: stt.KindCanceled, Err: err})
			}
			return
		}

		for _, ev := range translate(resp, logger) {
			if !emit(ev) {
				return
			}
		}
	}
}

func translate(resp *speechpb.StreamingRecognizeResponse, logger zerolog.Logger) []stt.Event {
	var events []stt.Event

	switch resp.GetSpeechEventType() {
	case speechpb.StreamingRecognizeResponse_SPEECH_ACTIVITY_BEGIN:
		events = append(events, stt.Event{Kind: stt.KindSpeechStart})
	case speechpb.StreamingRecognizeResponse_SPEECH_ACTIVITY_END,
		speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE:
		events = append(events, stt.Event{Kind: stt.KindSpeechEnd})
	}

	for _, r := range resp.GetResults() {
		if !r.GetIsFinal() {
			if alts := r.GetAlternatives(); len(alts) > 0 {
				logger.Debug().Str("text", alts[0].GetTranscript()).Msg("interim result")
			}
			continue
		}
		alts := r.GetAlternatives()
		if len(alts) == 0 || alts[0].GetTranscript() == "" {
			events = append(events, stt.Event{Kind: stt.KindRecognized, Reason: stt.ReasonNoMatch})
			continue
		}
		events = append(events, stt.Event{
			Kind:   stt.KindRecognized,
			Reason: stt.ReasonMatched,
			Text:   alts[0].GetTranscript(),
		})
	}
	return events
}

func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
