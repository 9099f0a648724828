// Package gateway defines the call contract of the external worker pool that
// runs algorithms and actions, and an HTTP client for it.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
)

// StartPayload is sent with every start-algorithm request. The worker posts
// results for the camera to ResultCallbackURL.
type StartPayload struct {
	StreamingURL      string `json:"streaming_url"`
	CameraID          string `json:"camera_id"`
	ResultCallbackURL string `json:"result_callback_url"`
}

// Gateway is the worker pool boundary. All calls are asynchronous from the
// caller's point of view: accepted means queued, not completed.
type Gateway interface {
	StartAlgorithm(ctx context.Context, algorithm string, payload StartPayload) error
	StopAndReset(ctx context.Context, algorithm string) error
	RunAction(ctx context.Context, action string, payload map[string]any) error
}

// ErrNotRecorded marks a command a transactional gateway failed to store.
// The transaction it was made in must not commit.
var ErrNotRecorded = errors.New("command not recorded")

// Error wraps a failed gateway call.
type Error struct {
	Op   models.CommandKind
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s %s: %v", e.Op, e.Name, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StartCommand builds the wire envelope of a start-algorithm call.
func StartCommand(id, algorithm string, payload StartPayload) models.WorkerCommand {
	return models.WorkerCommand{
		ID:       id,
		Kind:     models.CommandStartAlgorithm,
		Name:     algorithm,
		CameraID: payload.CameraID,
		Payload: map[string]any{
			"streaming_url":       payload.StreamingURL,
			"camera_id":           payload.CameraID,
			"result_callback_url": payload.ResultCallbackURL,
		},
	}
}

// ActionCommand builds the wire envelope of a run-action call.
func ActionCommand(id, action string, payload map[string]any) models.WorkerCommand {
	cameraID, _ := payload["camera_id"].(string)
	return models.WorkerCommand{
		ID:       id,
		Kind:     models.CommandRunAction,
		Name:     action,
		CameraID: cameraID,
		Payload:  payload,
	}
}

// ResetCommand builds the wire envelope of a stop-and-reset call.
func ResetCommand(id, algorithm string) models.WorkerCommand {
	return models.WorkerCommand{
		ID:   id,
		Kind: models.CommandStopAndReset,
		Name: algorithm,
	}
}
