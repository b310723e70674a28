// Package stt defines the contract between sessions and speech recognition engines.
package stt

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/hyy20190326/luis-0509/internal/models"
)

// Kind identifies the variant carried by an Event.
type Kind int

const (
	// KindUnknown is never produced on purpose; sessions log and skip it.
	KindUnknown Kind = iota
	// KindSpeechStart - the engine detected the start of speech.
	KindSpeechStart
	// KindSpeechEnd - the engine detected the end of speech.
	KindSpeechEnd
	// KindRecognized - an utterance was recognized (see Event.Reason).
	KindRecognized
	// KindNoMatch - speech was heard but nothing could be recognized.
	KindNoMatch
	// KindCanceled - the engine failed and the stream cannot continue.
	KindCanceled
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindSpeechStart:
		return "SPEECH_START"
	case KindSpeechEnd:
		return "SPEECH_END"
	case KindRecognized:
		return "RECOGNIZED"
	case KindNoMatch:
		return "NO_MATCH"
	case KindCanceled:
		return "CANCELED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(k))
	}
}

// Reason qualifies a recognition result.
type Reason int

const (
	ReasonMatched Reason = iota
	ReasonNoMatch
)

// Event is one item of an engine's event sequence.
type Event struct {
	Kind   Kind
	Reason Reason

	// Text is the recognized text (Recognized and NoMatch only).
	Text string
	// Intent is the top intent id reported by the engine, if any.
	Intent string
	// Details is the engine's structured result as raw JSON. It follows the
	// LUIS prediction shape ({"topScoringIntent":{"intent":..,"score":..}}) and
	// may be empty or partial.
	Details string

	// Err is set for KindCanceled.
	Err error
}

// HasPrediction reports whether details carries a LUIS top scoring intent.
// Engine result JSON of any other shape does not count.
func HasPrediction(details string) bool {
	return details != "" && gjson.Get(details, "topScoringIntent.intent").Exists()
}

// Engine is a single streaming recognizer instance.
//
// Start returns the event sequence. The channel is closed when the engine
// ends the stream or Close is called. Feed pushes raw audio; it must not wait
// for recognition results. Close releases the engine and must be idempotent.
type Engine interface {
	Start(ctx context.Context) (<-chan Event, error)
	Feed(audio []byte) error
	Close() error
}

// Template builds engines for new sessions. A Template is shared read-only
// between sessions once handed to the keeper.
type Template interface {
	// Provider names the engine family for logging and metrics.
	Provider() string
	// NewEngine constructs an engine for the given session.
	NewEngine(desc models.SessionDescriptor) (Engine, error)
}

// TemplateFunc adapts a function into a Template.
type TemplateFunc struct {
	Name string
	Fn   func(desc models.SessionDescriptor) (Engine, error)
}

func (t TemplateFunc) Provider() string { return t.Name }

func (t TemplateFunc) NewEngine(desc models.SessionDescriptor) (Engine, error) {
	return t.Fn(desc)
}
