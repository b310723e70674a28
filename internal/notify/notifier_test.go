package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyy20190326/luis-0509/internal/models"
)

type captured struct {
	auth string
	body map[string]any
}

func captureServer(t *testing.T, status int, delay time.Duration) (*httptest.Server, <-chan captured) {
	t.Helper()
	ch := make(chan captured, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		ch <- captured{auth: r.Header.Get("Authorization"), body: body}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func TestNotify_PostsJSONWithAuthHeader(t *testing.T) {
	srv, ch := captureServer(t, http.StatusOK, 0)
	nt := New(Options{URL: srv.URL, AuthKey: "secret"})

	text, echo := "hello", "a.wav"
	nt.Notify(context.Background(), models.SessionDescriptor{SessionID: "S1"}, models.Notification{
		Session: "S1",
		Event:   models.EventNLP,
		AppID:   "1500000615",
		Text:    &text,
		Echo:    &echo,
	})

	select {
	case got := <-ch:
		assert.Equal(t, "secret", got.auth)
		assert.Equal(t, "S1", got.body["session"])
		assert.Equal(t, "session_nlp_event", got.body["event"])
		assert.Equal(t, "hello", got.body["text"])
		assert.Equal(t, "a.wav", got.body["echo"])
		assert.NotContains(t, got.body, "confidence")
	case <-time.After(2 * time.Second):
		t.Fatal("notification not received")
	}
}

func TestNotify_IgnoresDescriptorCallbackURL(t *testing.T) {
	configured, configuredCh := captureServer(t, http.StatusOK, 0)
	other, otherCh := captureServer(t, http.StatusOK, 0)
	nt := New(Options{URL: configured.URL, AuthKey: "static-secret"})

	desc := models.SessionDescriptor{SessionID: "S1", CallbackURL: other.URL}
	nt.Notify(context.Background(), desc, models.Notification{Session: "S1", Event: models.EventSessionStart})

	select {
	case got := <-configuredCh:
		assert.Equal(t, "static-secret", got.auth)
	case <-time.After(2 * time.Second):
		t.Fatal("configured url not used")
	}
	assert.Empty(t, otherCh, "callback url must not receive notifications")
}

func TestNotify_NoURLConfigured(t *testing.T) {
	other, otherCh := captureServer(t, http.StatusOK, 0)
	nt := New(Options{AuthKey: "static-secret"})

	desc := models.SessionDescriptor{SessionID: "S1", CallbackURL: other.URL}
	nt.Notify(context.Background(), desc, models.Notification{Session: "S1", Event: models.EventSessionStart})

	assert.Empty(t, otherCh)
}

func TestNotify_TimeoutIsSwallowed(t *testing.T) {
	srv, _ := captureServer(t, http.StatusOK, time.Second)
	nt := New(Options{URL: srv.URL, Timeout: 50 * time.Millisecond})

	start := time.Now()
	nt.Notify(context.Background(), models.SessionDescriptor{SessionID: "S1"},
		models.Notification{Session: "S1", Event: models.EventSessionStart})

	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestNotify_ErrorStatusIsSwallowed(t *testing.T) {
	srv, ch := captureServer(t, http.StatusInternalServerError, 0)
	nt := New(Options{URL: srv.URL})

	nt.Notify(context.Background(), models.SessionDescriptor{SessionID: "S1"},
		models.Notification{Session: "S1", Event: models.EventSessionEnd})

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("notification not received")
	}
}

func TestNotify_UnreachableIsSwallowed(t *testing.T) {
	nt := New(Options{URL: "http://127.0.0.1:1/unreachable", Timeout: 200 * time.Millisecond})
	nt.Notify(context.Background(), models.SessionDescriptor{SessionID: "S1"},
		models.Notification{Session: "S1", Event: models.EventSessionEnd})
}

type mirrorRecorder struct {
	mu   sync.Mutex
	keys []string
	kind []string
}

func (m *mirrorRecorder) Publish(_ context.Context, key, eventType string, _ any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	m.kind = append(m.kind, eventType)
	return nil
}

func TestNotify_MirrorsEvenWithoutURL(t *testing.T) {
	mirror := &mirrorRecorder{}
	nt := New(Options{Mirror: mirror})

	nt.Notify(context.Background(), models.SessionDescriptor{SessionID: "S1"},
		models.Notification{Session: "S1", Event: models.EventSessionStart})

	require.Len(t, mirror.keys, 1)
	assert.Equal(t, "S1", mirror.keys[0])
	assert.Equal(t, models.EventSessionStart, mirror.kind[0])
}
