package schema

import (
	"strings"
	"testing"

	"github.com/hyy20190326/luis-0509/internal/models"
)

func TestValidate_Descriptor(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		desc    models.SessionDescriptor
		wantErr string
	}{
		{"minimal", models.SessionDescriptor{SessionID: "S1"}, ""},
		{"full", models.SessionDescriptor{
			SessionID:   "S1",
			RecordFile:  "a.wav",
			ServerIP:    "10.0.0.1",
			CallbackURL: "http://127.0.0.1:8059/notify",
		}, ""},
		{"missing id", models.SessionDescriptor{RecordFile: "a.wav"}, "sessionid"},
		{"bad ip", models.SessionDescriptor{SessionID: "S1", ServerIP: "nope"}, "serverip"},
		{"bad callback", models.SessionDescriptor{SessionID: "S1", CallbackURL: "::"}, "callbackurl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.desc)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error mentioning %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
