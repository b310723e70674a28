package azure

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hyy20190326/luis-0509/internal/service/stt"
)

func TestResultEvent(t *testing.T) {
	speechJSON := `{"RecognitionStatus":"Success","DisplayText":"Hello.","Offset":1800000,"Duration":5300000}`
	predictionJSON := `{"query":"hello","topScoringIntent":{"intent":"greet","score":0.91}}`

	tests := []struct {
		name string
		o    outcome
		text string
		json string
		want stt.Event
	}{
		{"recognized speech leaves details empty", outcomeRecognized, "hello", speechJSON,
			stt.Event{Kind: stt.KindRecognized, Reason: stt.ReasonMatched, Text: "hello"}},
		{"recognized with prediction keeps it", outcomeRecognized, "hello", predictionJSON,
			stt.Event{Kind: stt.KindRecognized, Reason: stt.ReasonMatched, Text: "hello", Details: predictionJSON}},
		{"recognized without json", outcomeRecognized, "hello", "",
			stt.Event{Kind: stt.KindRecognized, Reason: stt.ReasonMatched, Text: "hello"}},
		{"no match", outcomeNoMatch, "", speechJSON,
			stt.Event{Kind: stt.KindNoMatch, Reason: stt.ReasonNoMatch}},
		{"other reason", outcomeOther, "x", "",
			stt.Event{Kind: stt.KindUnknown, Text: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resultEvent(tt.o, tt.text, tt.json))
		})
	}
}
