package stt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPrediction(t *testing.T) {
	tests := []struct {
		name    string
		details string
		want    bool
	}{
		{"empty", "", false},
		{"luis prediction", `{"query":"hi","topScoringIntent":{"intent":"greet","score":0.8}}`, true},
		{"speech result", `{"RecognitionStatus":"Success","DisplayText":"Hi."}`, false},
		{"intent missing", `{"topScoringIntent":{"score":0.8}}`, false},
		{"not json", `hello`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPrediction(tt.details))
		})
	}
}
