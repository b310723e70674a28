// Package models defines the data structures exchanged with callers and notification consumers.
package models

// Event kinds reported in Notification.Event.
const (
	EventSessionStart = "session_start"
	EventSessionEnd   = "session_end"
	EventNLP          = "session_nlp_event"
)

// Notification is the JSON body posted to the notification consumer for every
// recognition event. Optional fields are omitted when unset.
type Notification struct {
	Timestamp int64  `json:"timestamp"`
	GroupID   int    `json:"group_id"`
	Session   string `json:"session"`
	Event     string `json:"event"`
	AppID     string `json:"app_id"`

	IntentionDesc            *string  `json:"intention_desc,omitempty"`
	Intention                *string  `json:"intention,omitempty"`
	Confidence               *float64 `json:"confidence,omitempty"`
	Text                     *string  `json:"text,omitempty"`
	CurrentConsumeSequenceID *int     `json:"current_consume_sequence_id,omitempty"`
	Echo                     *string  `json:"echo,omitempty"`
	Segs                     *string  `json:"segs,omitempty"`
	ErrorMsg                 *string  `json:"errormsg,omitempty"`
	ErrorCode                *int     `json:"errorcode,omitempty"`
	ResultSequence           *int     `json:"result_sequence,omitempty"`
}
