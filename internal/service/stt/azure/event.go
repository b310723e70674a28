package azure

import (
	"github.com/hyy20190326/luis-0509/internal/service/stt"
)

// outcome is the part of the SDK result reason a session cares about.
type outcome int

const (
	outcomeOther outcome = iota
	outcomeRecognized
	outcomeNoMatch
)

// resultEvent converts a final recognition result. resultJSON is the service
// response; it becomes Details only when it carries a LUIS prediction, which
// leaves plain speech results open for intent enrichment.
func resultEvent(o outcome, text, resultJSON string) stt.Event {
	switch o {
	case outcomeRecognized:
		ev := stt.Event{Kind: stt.KindRecognized, Reason: stt.ReasonMatched, Text: text}
		if stt.HasPrediction(resultJSON) {
			ev.Details = resultJSON
		}
		return ev
	case outcomeNoMatch:
		return stt.Event{Kind: stt.KindNoMatch, Reason: stt.ReasonNoMatch, Text: text}
	default:
		return stt.Event{Kind: stt.KindUnknown, Text: text}
	}
}
