// Package mock provides a mock recognition engine for running without cloud
// credentials. It simulates speech detection and intent recognition as audio
// frames arrive, and can be scripted directly from tests.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/hyy20190326/luis-0509/internal/models"
	"github.com/hyy20190326/luis-0509/internal/service/stt"
)

// ErrClosed is returned by operations on a closed engine.
var ErrClosed = errors.New("mock engine closed")

// Utterance is one simulated recognition result.
type Utterance struct {
	Text    string
	Intent  string
	Score   float64
	NoMatch bool
}

// DefaultUtterances cycle for every engine built by Template.
var DefaultUtterances = []Utterance{
	{Text: "I want to check my balance", Intent: "query_balance", Score: 0.94},
	{Text: "Yes please go ahead", Intent: "confirm", Score: 0.97},
	{Text: "uh", NoMatch: true},
	{Text: "Can you transfer me to an agent", Intent: "transfer_agent", Score: 0.91},
	{Text: "Thank you very much", Intent: "thanks", Score: 0.98},
}

// DefaultFramesPerUtterance is 500ms of 20ms frames.
const DefaultFramesPerUtterance = 25

// Options configures an Engine.
type Options struct {
	// Utterances are recognized in order, cycling. Empty disables simulation;
	// events then only come from Emit.
	Utterances []Utterance
	// FramesPerUtterance is the number of fed frames after which the current
	// utterance is recognized.
	FramesPerUtterance int
	// StartErr, when set, is returned by Start.
	StartErr error
	// FeedErr, when set, is returned by Feed.
	FeedErr error
	// Record keeps a copy of every fed frame, see Frames.
	Record bool
}

// Engine implements stt.Engine with simulated responses.
// It simulates realistic recognizer behavior:
// - SpeechStart on the first frame of an utterance
// - one Recognized (or NoMatch) after FramesPerUtterance frames
// - SpeechEnd right after the result
type Engine struct {
	opts Options

	mu         sync.Mutex
	started    bool
	closed     bool
	closeCalls int
	pending    []stt.Event
	wake       chan struct{}
	quit       chan struct{}
	out        chan stt.Event

	frames      int
	bytes       int
	recorded    [][]byte
	speaking    bool
	framesInUtt int
	uttIndex    int
}

// New creates a new mock engine.
func New(opts Options) *Engine {
	if opts.FramesPerUtterance <= 0 {
		opts.FramesPerUtterance = DefaultFramesPerUtterance
	}
	return &Engine{
		opts: opts,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
}

// Template returns a template building simulated engines.
func Template() stt.Template {
	return stt.TemplateFunc{
		Name: "mock",
		Fn: func(models.SessionDescriptor) (stt.Engine, error) {
			return New(Options{Utterances: DefaultUtterances}), nil
		},
	}
}

// Start begins the event stream.
func (e *Engine) Start(ctx context.Context) (<-chan stt.Event, error) {
	if e.opts.StartErr != nil {
		return nil, e.opts.StartErr
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if e.started {
		return nil, errors.New("mock engine already started")
	}
	e.started = true
	e.out = make(chan stt.Event)
	go e.pump(ctx)
	return e.out, nil
}

// pump delivers pending events in order until the engine is closed.
func (e *Engine) pump(ctx context.Context) {
	defer close(e.out)

	for {
		e.mu.Lock()
		if len(e.pending) == 0 {
			e.mu.Unlock()
			select {
			case <-e.wake:
				continue
			case <-e.quit:
				return
			case <-ctx.Done():
				return
			}
		}
		ev := e.pending[0]
		e.pending = e.pending[1:]
		e.mu.Unlock()

		select {
		case e.out <- ev:
		case <-e.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Feed simulates receiving audio. It never waits for the consumer.
func (e *Engine) Feed(audio []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.opts.FeedErr != nil {
		return e.opts.FeedErr
	}

	e.frames++
	e.bytes += len(audio)
	if e.opts.Record {
		e.recorded = append(e.recorded, append([]byte(nil), audio...))
	}

	if len(e.opts.Utterances) == 0 {
		return nil
	}

	if !e.speaking {
		e.speaking = true
		e.push(stt.Event{Kind: stt.KindSpeechStart})
	}
	e.framesInUtt++
	if e.framesInUtt >= e.opts.FramesPerUtterance {
		utt := e.opts.Utterances[e.uttIndex%len(e.opts.Utterances)]
		e.push(recognized(utt))
		e.push(stt.Event{Kind: stt.KindSpeechEnd})
		e.speaking = false
		e.framesInUtt = 0
		e.uttIndex++
	}
	return nil
}

// Emit queues an event as if the recognizer had produced it.
func (e *Engine) Emit(ev stt.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.push(ev)
	return nil
}

// push must be called with e.mu held.
func (e *Engine) push(ev stt.Event) {
	e.pending = append(e.pending, ev)
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Close ends the mock session. Pending events are discarded.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closeCalls++
	if e.closed {
		return nil
	}
	e.closed = true
	e.pending = nil
	close(e.quit)
	return nil
}

// Closed reports whether Close has been called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// CloseCalls returns how many times Close was called.
func (e *Engine) CloseCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeCalls
}

// FrameCount returns the number of frames fed so far.
func (e *Engine) FrameCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// Frames returns copies of the recorded frames (Options.Record only).
func (e *Engine) Frames() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]byte(nil), e.recorded...)
}

type topIntent struct {
	Intent string  `json:"intent"`
	Score  float64 `json:"score"`
}

type prediction struct {
	Query            string    `json:"query"`
	TopScoringIntent topIntent `json:"topScoringIntent"`
}

func recognized(utt Utterance) stt.Event {
	if utt.NoMatch {
		return stt.Event{Kind: stt.KindRecognized, Reason: stt.ReasonNoMatch, Text: utt.Text}
	}
	details, _ := json.Marshal(prediction{
		Query:            utt.Text,
		TopScoringIntent: topIntent{Intent: utt.Intent, Score: utt.Score},
	})
	return stt.Event{
		Kind:    stt.KindRecognized,
		Reason:  stt.ReasonMatched,
		Text:    utt.Text,
		Intent:  utt.Intent,
		Details: string(details),
	}
}
