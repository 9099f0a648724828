package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
)

type received struct {
	path string
	body map[string]any
}

func newWorker(t *testing.T, status int) (*httptest.Server, func() []received) {
	t.Helper()

	var (
		mu   sync.Mutex
		reqs []received
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(data, &body))

		mu.Lock()
		reqs = append(reqs, received{path: r.URL.Path, body: body})
		mu.Unlock()

		w.WriteHeader(status)
		_, _ = w.Write([]byte("worker says no"))
	}))
	t.Cleanup(srv.Close)

	return srv, func() []received {
		mu.Lock()
		defer mu.Unlock()
		return append([]received(nil), reqs...)
	}
}

func TestHTTPClient_Calls(t *testing.T) {
	srv, requests := newWorker(t, http.StatusAccepted)
	c := NewHTTPClient(srv.URL+"/", nil)
	ctx := context.Background()

	require.NoError(t, c.StartAlgorithm(ctx, "motion", StartPayload{
		StreamingURL:      "rtmp://stream/live/door",
		CameraID:          "cam-1",
		ResultCallbackURL: "http://orchestrator/api/cameras/cam-1/result",
	}))
	require.NoError(t, c.RunAction(ctx, "email", map[string]any{"to": "ops@example.com", "camera_id": "cam-1"}))
	require.NoError(t, c.StopAndReset(ctx, "motion"))

	reqs := requests()
	require.Len(t, reqs, 3)

	assert.Equal(t, "/algorithms/motion/start", reqs[0].path)
	assert.Equal(t, map[string]any{
		"streaming_url":       "rtmp://stream/live/door",
		"camera_id":           "cam-1",
		"result_callback_url": "http://orchestrator/api/cameras/cam-1/result",
	}, reqs[0].body)

	assert.Equal(t, "/actions/email/run", reqs[1].path)
	assert.Equal(t, map[string]any{"to": "ops@example.com", "camera_id": "cam-1"}, reqs[1].body)

	assert.Equal(t, "/algorithms/motion/reset", reqs[2].path)
	assert.Empty(t, reqs[2].body)
}

func TestHTTPClient_BadStatus(t *testing.T) {
	srv, _ := newWorker(t, http.StatusServiceUnavailable)
	c := NewHTTPClient(srv.URL, srv.Client())

	err := c.RunAction(context.Background(), "siren", map[string]any{"camera_id": "cam-1"})
	require.Error(t, err)

	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, models.CommandRunAction, gwErr.Op)
	assert.Equal(t, "siren", gwErr.Name)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "worker says no")
}

func TestHTTPClient_Unreachable(t *testing.T) {
	srv, _ := newWorker(t, http.StatusOK)
	url := srv.URL
	srv.Close()

	err := NewHTTPClient(url, nil).StopAndReset(context.Background(), "motion")
	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, models.CommandStopAndReset, gwErr.Op)
}

func TestCommandEnvelopes(t *testing.T) {
	start := StartCommand("id-1", "motion", StartPayload{StreamingURL: "rtmp://x", CameraID: "cam-1", ResultCallbackURL: "http://cb"})
	assert.Equal(t, models.CommandStartAlgorithm, start.Kind)
	assert.Equal(t, "cam-1", start.CameraID)
	assert.Equal(t, "http://cb", start.Payload["result_callback_url"])

	action := ActionCommand("id-2", "email", map[string]any{"camera_id": "cam-1", "to": "x"})
	assert.Equal(t, models.CommandRunAction, action.Kind)
	assert.Equal(t, "cam-1", action.CameraID)

	reset := ResetCommand("id-3", "motion")
	assert.Equal(t, models.CommandStopAndReset, reset.Kind)
	assert.Empty(t, reset.CameraID)
}
