package session

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a session.
type State int

const (
	// StateCreated - engine constructed, event stream not started yet.
	StateCreated State = iota
	// StateListening - engine started, frames accepted, events consumed.
	StateListening
	// StateStopped - engine closed. Terminal.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateListening:
		return "LISTENING"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal.
func (s State) IsTerminal() bool {
	return s == StateStopped
}

// Errors for invalid state transitions.
var (
	ErrAlreadyListening = errors.New("session is already listening")
	ErrNotListening     = errors.New("session is not listening")
	ErrStopped          = errors.New("session is stopped")
)

// Lifecycle manages the state machine for a single session.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	CREATED ──Listen()──→ LISTENING ──Stop()──→ STOPPED
//	   │                                           ▲
//	   └────────────────Stop()─────────────────────┘
type Lifecycle struct {
	mu    sync.RWMutex
	id    string
	state State
}

// NewLifecycle creates a new session lifecycle in CREATED state.
func NewLifecycle(id string) *Lifecycle {
	return &Lifecycle{
		id:    id,
		state: StateCreated,
	}
}

// ID returns the session id.
func (l *Lifecycle) ID() string {
	return l.id
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsListening returns true if frames may be fed.
func (l *Lifecycle) IsListening() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateListening
}

// Listen transitions CREATED to LISTENING.
func (l *Lifecycle) Listen() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateCreated:
		l.state = StateListening
		return nil
	case StateListening:
		return ErrAlreadyListening
	case StateStopped:
		return ErrStopped
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Stop transitions the session to STOPPED from any state.
// Returns true if this call performed the transition, false if the session
// was already stopped.
func (l *Lifecycle) Stop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateStopped
	return true
}
