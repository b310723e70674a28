package session

import (
	"errors"
	"sync"
	"testing"
)

func TestLifecycle_InitialState(t *testing.T) {
	lc := NewLifecycle("S1")

	if lc.State() != StateCreated {
		t.Errorf("expected StateCreated, got %v", lc.State())
	}
	if lc.ID() != "S1" {
		t.Errorf("expected S1, got %v", lc.ID())
	}
	if lc.IsListening() {
		t.Error("expected IsListening to be false")
	}
}

func TestLifecycle_Listen(t *testing.T) {
	lc := NewLifecycle("S1")

	if err := lc.Listen(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !lc.IsListening() {
		t.Error("expected IsListening after Listen")
	}
	if err := lc.Listen(); !errors.Is(err, ErrAlreadyListening) {
		t.Errorf("expected ErrAlreadyListening, got %v", err)
	}
}

func TestLifecycle_StopIsIdempotent(t *testing.T) {
	lc := NewLifecycle("S1")
	_ = lc.Listen()

	if !lc.Stop() {
		t.Error("first Stop should perform the transition")
	}
	if lc.Stop() {
		t.Error("second Stop should be a no-op")
	}
	if lc.State() != StateStopped {
		t.Errorf("expected StateStopped, got %v", lc.State())
	}
}

func TestLifecycle_StopFromCreated(t *testing.T) {
	lc := NewLifecycle("S1")

	if !lc.Stop() {
		t.Error("expected Stop from CREATED to succeed")
	}
	if err := lc.Listen(); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestLifecycle_ConcurrentStop(t *testing.T) {
	lc := NewLifecycle("S1")
	_ = lc.Listen()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lc.Stop() {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("expected exactly one Stop to win, got %d", winners)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateCreated, "CREATED"},
		{StateListening, "LISTENING"},
		{StateStopped, "STOPPED"},
		{State(42), "UNKNOWN(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
