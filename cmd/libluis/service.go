package main

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hyy20190326/luis-0509/internal/app"
	"github.com/hyy20190326/luis-0509/internal/bridge"
)

const (
	statusOK     = 0
	statusFailed = -1
)

// service is the state behind the exported C functions. One process hosts at
// most one running service.
type service struct {
	mu     sync.RWMutex
	bridge *bridge.Bridge
	cancel context.CancelFunc

	serve func(ctx context.Context, path string, ready func(*app.Application)) error
}

var svc = &service{serve: app.Serve}

// run blocks until the service stops.
func (s *service) run(path string) int {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		cancel()
		log.Error().Msg("start_service called while the service is running")
		return statusFailed
	}
	s.cancel = cancel
	s.mu.Unlock()

	err := s.serve(ctx, path, func(a *app.Application) {
		s.mu.Lock()
		s.bridge = a.Bridge
		s.mu.Unlock()
	})

	s.mu.Lock()
	s.bridge = nil
	s.cancel = nil
	s.mu.Unlock()
	cancel()

	if err != nil {
		log.Error().Err(err).Str("config", path).Msg("failed to start luis service")
		return statusFailed
	}
	return statusOK
}

// stop ends a running service; run then returns.
func (s *service) stop() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cancel == nil {
		return statusFailed
	}
	s.cancel()
	return statusOK
}

// write forwards one frame and returns the write_stream status.
func (s *service) write(id, audio []byte) int {
	s.mu.RLock()
	b := s.bridge
	s.mu.RUnlock()
	if b == nil {
		return bridge.StatusRejected
	}
	return b.WriteStream(id, audio)
}
