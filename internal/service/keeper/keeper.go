// Package keeper is the session registry. It creates, indexes, feeds and tears
// down one Session per session id.
//
// Commands for the same id (Start, Frame, Stop and engine-failure eviction)
// are serialized by a per-id lock. Commands for different ids run
// concurrently; the registry map lock is only held for lookup, insert and
// remove, never across engine calls.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hyy20190326/luis-0509/internal/models"
	"github.com/hyy20190326/luis-0509/internal/observability/logging"
	"github.com/hyy20190326/luis-0509/internal/observability/metrics"
	"github.com/hyy20190326/luis-0509/internal/schema"
	"github.com/hyy20190326/luis-0509/internal/service/session"
	"github.com/hyy20190326/luis-0509/internal/service/stt"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrUninitialized  = errors.New("keeper is not initialized")
	ErrEngineStart    = errors.New("failed to start recognition engine")
	ErrMalformedInput = errors.New("malformed input")
	ErrAlreadyExists  = errors.New("session already exists")
)

// Policy decides what a Start does for an id that is already live.
type Policy string

const (
	// PolicyLastStartWins stops the live session and starts a new one.
	PolicyLastStartWins Policy = "last_start_wins"
	// PolicyReject fails the Start with ErrAlreadyExists.
	PolicyReject Policy = "reject"
)

// Stop causes reported to metrics.
const (
	causeStopped  = "stopped"
	causeReplaced = "replaced"
	causeEngine   = "engine_error"
	causeShutdown = "shutdown"
)

// Options configures a Keeper.
type Options struct {
	AppID  string
	Policy Policy
}

// Keeper is the concurrent session directory.
type Keeper struct {
	opts      Options
	notifier  session.Notifier
	validator *schema.Validator
	logger    zerolog.Logger

	tplMu sync.RWMutex
	tpl   stt.Template // nil means unset

	mu       sync.RWMutex
	sessions map[string]*session.Session
	locks    *idLocks
}

// New creates an empty, uninitialized keeper.
func New(notifier session.Notifier, opts Options) *Keeper {
	if opts.Policy == "" {
		opts.Policy = PolicyLastStartWins
	}
	return &Keeper{
		opts:      opts,
		notifier:  notifier,
		validator: schema.New(),
		logger:    logging.WithComponent("keeper"),
		sessions:  make(map[string]*session.Session),
		locks:     newIDLocks(),
	}
}

// Initialize sets the template used to build engines for new sessions.
// A later call replaces it; running sessions keep their engines.
func (k *Keeper) Initialize(tpl stt.Template) error {
	if tpl == nil {
		return fmt.Errorf("%w: nil engine template", ErrMalformedInput)
	}
	k.tplMu.Lock()
	replaced := k.tpl != nil
	k.tpl = tpl
	k.tplMu.Unlock()

	k.logger.Info().
		Str("provider", tpl.Provider()).
		Bool("replaced", replaced).
		Msg("keeper initialized")
	return nil
}

// Initialized reports whether a template has been set.
func (k *Keeper) Initialized() bool {
	k.tplMu.RLock()
	defer k.tplMu.RUnlock()
	return k.tpl != nil
}

func (k *Keeper) template() (stt.Template, bool) {
	k.tplMu.RLock()
	defer k.tplMu.RUnlock()
	return k.tpl, k.tpl != nil
}

// Start creates, starts and registers a session for desc.SessionID.
func (k *Keeper) Start(ctx context.Context, desc models.SessionDescriptor) error {
	if err := k.validator.Validate(desc); err != nil {
		metrics.DefaultMetrics.RecordSessionFailed("malformed")
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	tpl, ok := k.template()
	if !ok {
		metrics.DefaultMetrics.RecordSessionFailed("uninitialized")
		return ErrUninitialized
	}

	id := desc.SessionID
	unlock := k.locks.lock(id)
	defer unlock()

	if k.lookup(id) != nil {
		if k.opts.Policy == PolicyReject {
			metrics.DefaultMetrics.RecordSessionFailed("exists")
			return fmt.Errorf("%w: %s", ErrAlreadyExists, id)
		}
		// the previous engine is closed before the new one starts, so one id
		// never has two live engines
		if old := k.remove(id, nil); old != nil {
			old.Stop()
			metrics.DefaultMetrics.RecordSessionReplaced()
			metrics.DefaultMetrics.RecordSessionStop(causeReplaced, old.Uptime().Seconds())
			k.logger.Info().Str("session", id).Msg("replacing live session")
		}
	}

	engine, err := tpl.NewEngine(desc)
	if err != nil {
		metrics.DefaultMetrics.RecordSessionFailed("engine_build")
		return fmt.Errorf("%w: %w", ErrEngineStart, err)
	}

	s := session.New(desc, engine, k.notifier, session.Options{
		AppID:    k.opts.AppID,
		Provider: tpl.Provider(),
		OnFatal:  k.evict,
	})
	if err := s.Start(ctx); err != nil {
		metrics.DefaultMetrics.RecordSessionFailed("engine_start")
		metrics.DefaultMetrics.RecordEngineError(tpl.Provider(), "start")
		k.logger.Error().Err(err).Str("session", id).Msg("session start failed")
		return fmt.Errorf("%w: %w", ErrEngineStart, err)
	}

	k.mu.Lock()
	k.sessions[id] = s
	k.mu.Unlock()

	metrics.DefaultMetrics.RecordSessionStart(tpl.Provider())
	k.logger.Info().Stringer("descriptor", desc).Msg("session started")
	return nil
}

// Stop removes and stops the session for id.
func (k *Keeper) Stop(id string) error {
	unlock := k.locks.lock(id)
	defer unlock()

	s := k.remove(id, nil)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Stop()
	metrics.DefaultMetrics.RecordSessionStop(causeStopped, s.Uptime().Seconds())
	k.logger.Info().Str("session", id).Msg("session stopped")
	return nil
}

// Frame forwards audio to the session for id. It returns once the engine has
// accepted the bytes and never waits for recognition results.
func (k *Keeper) Frame(id string, audio []byte) error {
	unlock := k.locks.lock(id)
	defer unlock()

	s := k.lookup(id)
	if s == nil {
		metrics.DefaultMetrics.RecordFrameRejected("not_found")
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := s.Feed(audio); err != nil {
		if errors.Is(err, session.ErrNotListening) {
			// engine failed and eviction is waiting for the id lock
			metrics.DefaultMetrics.RecordFrameRejected("not_found")
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		metrics.DefaultMetrics.RecordFrameRejected("feed")
		return err
	}
	metrics.DefaultMetrics.RecordFrame(len(audio))
	return nil
}

// Len returns the number of registered sessions.
func (k *Keeper) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.sessions)
}

// IDs returns the registered session ids in sorted order.
func (k *Keeper) IDs() []string {
	k.mu.RLock()
	ids := make([]string, 0, len(k.sessions))
	for id := range k.sessions {
		ids = append(ids, id)
	}
	k.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Shutdown stops every registered session. Notifications in flight are not
// waited for.
func (k *Keeper) Shutdown() {
	k.mu.Lock()
	sessions := k.sessions
	k.sessions = make(map[string]*session.Session)
	k.mu.Unlock()

	for _, s := range sessions {
		if s.Stop() {
			metrics.DefaultMetrics.RecordSessionStop(causeShutdown, s.Uptime().Seconds())
		}
	}
	k.logger.Info().Int("sessions", len(sessions)).Msg("keeper shut down")
}

// evict runs on a session's consumer goroutine after its engine failed.
// It only removes the session if it is still the one registered for its id.
func (k *Keeper) evict(s *session.Session, err error) {
	unlock := k.locks.lock(s.ID())
	defer unlock()

	if k.remove(s.ID(), s) == nil {
		return
	}
	metrics.DefaultMetrics.RecordSessionStop(causeEngine, s.Uptime().Seconds())
	k.logger.Warn().Err(err).Str("session", s.ID()).Msg("session evicted after engine failure")
}

func (k *Keeper) lookup(id string) *session.Session {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.sessions[id]
}

// remove deletes id from the registry and returns the removed session. With a
// non-nil want, the entry is only removed if it is want.
func (k *Keeper) remove(id string, want *session.Session) *session.Session {
	k.mu.Lock()
	defer k.mu.Unlock()
	s, ok := k.sessions[id]
	if !ok || (want != nil && s != want) {
		return nil
	}
	delete(k.sessions, id)
	return s
}
