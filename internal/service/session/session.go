// Package session drives one recognition engine for one session id: it feeds
// audio, consumes the engine's event stream on a dedicated goroutine and turns
// each event into a notification.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hyy20190326/luis-0509/internal/models"
	"github.com/hyy20190326/luis-0509/internal/observability/logging"
	"github.com/hyy20190326/luis-0509/internal/observability/metrics"
	"github.com/hyy20190326/luis-0509/internal/service/stt"
)

// Notifier delivers formatted notifications. Implementations own their error
// handling; delivery failures never reach the session.
type Notifier interface {
	Notify(ctx context.Context, desc models.SessionDescriptor, n models.Notification)
}

// Options configures a Session.
type Options struct {
	// AppID is stamped on every notification.
	AppID string
	// Provider names the engine family for logs and metrics.
	Provider string
	// OnFatal is invoked once from the consumer goroutine when the engine
	// fails or ends its stream while the session is listening. The session is
	// already stopped when it runs.
	OnFatal func(s *Session, err error)
}

// Session owns one engine and the goroutine consuming its events.
type Session struct {
	desc      models.SessionDescriptor
	engine    stt.Engine
	notifier  Notifier
	opts      Options
	lifecycle *Lifecycle
	logger    zerolog.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	startedAt time.Time
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}

	// touched only by the consumer goroutine
	sequence int
}

// New creates a session in CREATED state.
func New(desc models.SessionDescriptor, engine stt.Engine, notifier Notifier, opts Options) *Session {
	return &Session{
		desc:      desc,
		engine:    engine,
		notifier:  notifier,
		opts:      opts,
		lifecycle: NewLifecycle(desc.SessionID),
		logger:    logging.WithSession(desc.SessionID, opts.Provider),
		done:      make(chan struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.desc.SessionID }

// Descriptor returns the descriptor the session was started with.
func (s *Session) Descriptor() models.SessionDescriptor { return s.desc }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.lifecycle.State() }

// Done is closed when the consumer goroutine has exited. It is never closed
// for a session whose engine failed to start.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start starts the engine stream and schedules the consumer goroutine.
// On failure the session is stopped and the engine closed; the caller must
// not register it. The consumer outlives ctx; use Stop to end it.
func (s *Session) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	events, err := s.engine.Start(runCtx)
	if err != nil {
		cancel()
		s.lifecycle.Stop()
		s.closeEngine()
		return fmt.Errorf("start engine: %w", err)
	}

	if err := s.lifecycle.Listen(); err != nil {
		cancel()
		s.closeEngine()
		return err
	}

	s.mu.Lock()
	s.cancel = cancel
	s.startedAt = time.Now()
	s.mu.Unlock()

	go s.consume(runCtx, events)

	s.logger.Debug().Stringer("descriptor", s.desc).Msg("session listening")
	return nil
}

// Feed forwards audio to the engine. It does not wait for recognition.
func (s *Session) Feed(audio []byte) error {
	if !s.lifecycle.IsListening() {
		return ErrNotListening
	}
	if err := s.engine.Feed(audio); err != nil {
		return fmt.Errorf("feed engine: %w", err)
	}
	return nil
}

// Stop moves the session to STOPPED, cancels the consumer and closes the
// engine exactly once. It returns false if the session was already stopped.
// Stop does not wait for the consumer goroutine.
func (s *Session) Stop() bool {
	if !s.lifecycle.Stop() {
		return false
	}

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if err := s.closeEngine(); err != nil {
		s.logger.Warn().Err(err).Msg("engine close failed")
	}
	s.logger.Debug().Msg("session stopped")
	return true
}

// Uptime reports how long the session has been listening.
func (s *Session) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

func (s *Session) closeEngine() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.engine.Close()
	})
	return s.closeErr
}

func (s *Session) consume(ctx context.Context, events <-chan stt.Event) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				if s.lifecycle.IsListening() {
					s.fail(errors.New("engine stream ended"))
				}
				return
			}
			s.handle(ctx, ev)
			if ev.Kind == stt.KindCanceled {
				err := ev.Err
				if err == nil {
					err = errors.New("recognition canceled")
				}
				metrics.DefaultMetrics.RecordEngineError(s.opts.Provider, "canceled")
				s.fail(err)
				return
			}
		}
	}
}

func (s *Session) handle(ctx context.Context, ev stt.Event) {
	metrics.DefaultMetrics.RecordEngineEvent(ev.Kind.String())

	seq := 0
	if ev.Kind == stt.KindRecognized || ev.Kind == stt.KindNoMatch {
		s.sequence++
		seq = s.sequence
	}

	n, err := Format(ev, s.desc, s.opts.AppID, seq)
	if err != nil {
		metrics.DefaultMetrics.RecordUnknownEvent()
		s.logger.Error().Err(err).Msg("skipping engine event")
		return
	}

	s.logger.Debug().Str("event", n.Event).Msg("recognition event")
	// an in-flight notification finishes on its own timeout even if the
	// session is stopped meanwhile
	s.notifier.Notify(context.WithoutCancel(ctx), s.desc, n)
}

func (s *Session) fail(err error) {
	s.logger.Error().Err(err).Msg("recognition stream failed")
	if !s.Stop() {
		return
	}
	if s.opts.OnFatal != nil {
		s.opts.OnFatal(s, err)
	}
}
