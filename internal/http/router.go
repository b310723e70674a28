// Package http serves the session command endpoint.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/hyy20190326/luis-0509/internal/models"
	"github.com/hyy20190326/luis-0509/internal/observability/metrics"
)

// ErrUnknownAction is returned for an action other than start or stop.
var ErrUnknownAction = errors.New("unknown session event")

// Commander executes session commands, normally keeper.Keeper.
type Commander interface {
	Start(ctx context.Context, desc models.SessionDescriptor) error
	Stop(id string) error
	Initialized() bool
}

// NewRouter constructs the HTTP router for the service. Commands are served
// with GET on prefix.
func NewRouter(prefix string, cmd Commander) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if !cmd.Initialized() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Get(prefix, commandHandler(cmd))

	return r
}

func commandHandler(cmd Commander) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		action := q.Get("action")
		desc := models.SessionDescriptor{
			SessionID:   q.Get("sn"),
			RecordFile:  q.Get("recordfile"),
			Client:      q.Get("client"),
			ServerIP:    q.Get("serverip"),
			From:        q.Get("from"),
			AsrServer:   q.Get("asrserver"),
			CallbackURL: q.Get("callbackurl"),
		}

		var err error
		label := action
		switch action {
		case "start":
			err = cmd.Start(r.Context(), desc)
		case "stop":
			err = cmd.Stop(desc.SessionID)
		default:
			label = "unknown"
			err = fmt.Errorf("%w: %q", ErrUnknownAction, action)
		}

		logger := log.With().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("action", action).
			Stringer("descriptor", desc).
			Logger()

		if err != nil {
			metrics.DefaultMetrics.RecordCommand(label, "error")
			logger.Warn().Err(err).Msg("session command failed")
			writeJSON(w, http.StatusInternalServerError, failure(err, action))
			return
		}
		metrics.DefaultMetrics.RecordCommand(label, "ok")
		logger.Info().Msg("session command done")
		writeJSON(w, http.StatusOK, models.Success())
	}
}

// failure keeps the wire message clients match on for unknown actions.
func failure(err error, action string) models.CommandResult {
	if errors.Is(err, ErrUnknownAction) {
		return models.FailureMsg("Unknown session event: " + action)
	}
	return models.Failure(err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
