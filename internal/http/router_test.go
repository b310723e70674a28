package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyy20190326/luis-0509/internal/models"
	"github.com/hyy20190326/luis-0509/internal/notify"
	"github.com/hyy20190326/luis-0509/internal/service/keeper"
	"github.com/hyy20190326/luis-0509/internal/service/stt/mock"
)

const prefix = "/xlp/short_voice_silence_server"

func newTestRouter(t *testing.T, initialize bool) (http.Handler, *keeper.Keeper) {
	t.Helper()
	k := keeper.New(notify.New(notify.Options{}), keeper.Options{})
	if initialize {
		require.NoError(t, k.Initialize(mock.Template()))
	}
	t.Cleanup(k.Shutdown)
	return NewRouter(prefix, k), k
}

func do(t *testing.T, h http.Handler, params url.Values) (int, models.CommandResult) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, prefix+"?"+params.Encode(), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var res models.CommandResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, res
}

func TestCommand_StartAndStop(t *testing.T) {
	h, k := newTestRouter(t, true)

	code, res := do(t, h, url.Values{
		"action":     {"start"},
		"sn":         {"S1"},
		"recordfile": {"a.wav"},
		"serverip":   {"10.0.0.1"},
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.CommandResult{Result: 0, Msg: "success"}, res)
	assert.Equal(t, []string{"S1"}, k.IDs())

	code, res = do(t, h, url.Values{"action": {"stop"}, "sn": {"S1"}})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, res.Result)
	assert.Zero(t, k.Len())
}

func TestCommand_Errors(t *testing.T) {
	tests := []struct {
		name       string
		initialize bool
		params     url.Values
		wantMsg    string
	}{
		{
			name:       "stop unknown session",
			initialize: true,
			params:     url.Values{"action": {"stop"}, "sn": {"nope"}},
			wantMsg:    "session not found",
		},
		{
			name:       "start before initialize",
			initialize: false,
			params:     url.Values{"action": {"start"}, "sn": {"S1"}},
			wantMsg:    "keeper is not initialized",
		},
		{
			name:       "unknown action",
			initialize: true,
			params:     url.Values{"action": {"pause"}, "sn": {"S1"}},
			wantMsg:    "Unknown session event: pause",
		},
		{
			name:       "missing session id",
			initialize: true,
			params:     url.Values{"action": {"start"}},
			wantMsg:    "malformed input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestRouter(t, tt.initialize)
			code, res := do(t, h, tt.params)
			assert.Equal(t, http.StatusInternalServerError, code)
			assert.Equal(t, 1, res.Result)
			assert.Contains(t, res.Msg, tt.wantMsg)
		})
	}
}

func TestFailure_UnknownActionMessage(t *testing.T) {
	err := fmt.Errorf("%w: %q", ErrUnknownAction, "pause")
	assert.Equal(t, "unknown session event: \"pause\"", err.Error())
	assert.Equal(t, models.FailureMsg("Unknown session event: pause"), failure(err, "pause"))
	assert.Equal(t, "session not found", failure(errors.New("session not found"), "stop").Msg)
}

func TestReadiness(t *testing.T) {
	h, k := newTestRouter(t, false)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/readiness", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, k.Initialize(mock.Template()))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/readiness", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCommand_WrongMethod(t *testing.T) {
	h, _ := newTestRouter(t, true)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, prefix+"?action=start&sn=S1", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
