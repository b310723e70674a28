package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hyy20190326/luis-0509/internal/models"
	"github.com/hyy20190326/luis-0509/internal/service/stt"
)

// ErrUnknownEvent is returned by Format for event kinds that have no
// notification mapping.
var ErrUnknownEvent = errors.New("unknown event type")

const canceledErrorCode = -1

// Format converts an engine event into the notification sent for it.
// sequence is the per-session result sequence used for nlp events.
func Format(ev stt.Event, desc models.SessionDescriptor, appID string, sequence int) (models.Notification, error) {
	n := models.Notification{
		Timestamp: time.Now().Unix(),
		Session:   desc.SessionID,
		AppID:     appID,
	}

	switch ev.Kind {
	case stt.KindSpeechStart:
		n.Event = models.EventSessionStart
	case stt.KindSpeechEnd:
		n.Event = models.EventSessionEnd
	case stt.KindRecognized, stt.KindNoMatch:
		n.Event = models.EventNLP
		n.ResultSequence = ptr(sequence)
		if ev.Kind == stt.KindNoMatch || ev.Reason == stt.ReasonNoMatch {
			n.Intention = ptr("")
		} else {
			n.Intention = ptr(ev.Intent)
			applyDetails(&n, ev.Details)
		}
		n.Text = ptr(ev.Text)
		n.Echo = ptr(desc.RecordFile)
	case stt.KindCanceled:
		n.Event = models.EventSessionEnd
		msg := "recognition canceled"
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		n.ErrorMsg = ptr(msg)
		n.ErrorCode = ptr(canceledErrorCode)
	default:
		return models.Notification{}, fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Kind)
	}
	return n, nil
}

// applyDetails copies score and intent label out of a LUIS-shaped result.
// Absent or malformed fields are left unset.
func applyDetails(n *models.Notification, details string) {
	if details == "" || !gjson.Valid(details) {
		return
	}
	top := gjson.Get(details, "topScoringIntent")
	if !top.IsObject() {
		return
	}
	if score := top.Get("score"); score.Type == gjson.Number {
		n.Confidence = ptr(score.Float())
	}
	if intent := top.Get("intent"); intent.Type == gjson.String {
		n.IntentionDesc = ptr(intent.String())
	}
}

func ptr[T any](v T) *T { return &v }
