package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/rules"
)

var cameraFields = []string{"name", "actions"}

func (h *Handlers) ListCamerasHandler(w http.ResponseWriter, r *http.Request) {
	cameras, err := h.db.ListCameras(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if cameras == nil {
		cameras = []models.Camera{}
	}
	writeJSON(w, http.StatusOK, cameras)
}

// RegisterCameraHandler creates a camera. Its streaming url is derived from
// the name and its actions are validated before anything is stored.
func (h *Handlers) RegisterCameraHandler(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r, cameraFields...)
	if err != nil {
		writeError(w, err)
		return
	}

	name, err := requiredName(fields)
	if err != nil {
		writeError(w, err)
		return
	}

	var actions models.RawActionDict
	if _, err := field(fields, "actions", &actions); err != nil {
		writeError(w, err)
		return
	}

	dict, err := h.validateActions(r.Context(), actions)
	if err != nil {
		writeError(w, err)
		return
	}

	camera := models.Camera{
		ID:           uuid.NewString(),
		Name:         name,
		StreamingURL: h.streamingBase + "/" + name,
		ActionDict:   dict,
	}
	if err := h.db.CreateCamera(r.Context(), &camera); err != nil {
		writeError(w, err)
		return
	}

	log.Info().Str("camera_id", camera.ID).Str("name", camera.Name).Msg("Camera registered")
	writeJSON(w, http.StatusOK, camera)
}

func (h *Handlers) GetCameraHandler(w http.ResponseWriter, r *http.Request) {
	camera, err := h.db.GetCamera(r.Context(), mux.Vars(r)["camera_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, camera)
}

// UpdateCameraHandler renames a camera and/or replaces its actions. Both
// changes are applied in one transaction.
func (h *Handlers) UpdateCameraHandler(w http.ResponseWriter, r *http.Request) {
	cameraID := mux.Vars(r)["camera_id"]

	fields, err := decodeFields(w, r, cameraFields...)
	if err != nil {
		writeError(w, err)
		return
	}

	camera, err := h.db.GetCamera(r.Context(), cameraID)
	if err != nil {
		writeError(w, err)
		return
	}

	_, renamed := fields["name"]
	if renamed {
		name, err := requiredName(fields)
		if err != nil {
			writeError(w, err)
			return
		}
		camera.Name = name
		camera.StreamingURL = renameStream(camera.StreamingURL, name)
	}

	var actions models.RawActionDict
	replace, err := field(fields, "actions", &actions)
	if err != nil {
		writeError(w, err)
		return
	}
	var dict models.ActionDict
	if replace {
		if dict, err = h.validateActions(r.Context(), actions); err != nil {
			writeError(w, err)
			return
		}
	}

	err = h.db.InTx(r.Context(), func(ctx context.Context) error {
		if renamed {
			if err := h.db.UpdateCamera(ctx, &camera); err != nil {
				return err
			}
		}
		if replace {
			return h.db.ReplaceCameraActions(ctx, camera.ID, dict)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.db.GetCamera(r.Context(), cameraID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handlers) UnregisterCameraHandler(w http.ResponseWriter, r *http.Request) {
	cameraID := mux.Vars(r)["camera_id"]

	camera, err := h.db.GetCamera(r.Context(), cameraID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.db.DeleteCamera(r.Context(), cameraID); err != nil {
		writeError(w, err)
		return
	}

	log.Info().Str("camera_id", cameraID).Msg("Camera unregistered")
	writeJSON(w, http.StatusOK, deleted(camera.Name))
}

func (h *Handlers) validateActions(ctx context.Context, actions models.RawActionDict) (models.ActionDict, error) {
	if len(actions) == 0 {
		return models.ActionDict{}, nil
	}

	algorithms, err := h.db.ListAlgorithms(ctx)
	if err != nil {
		return nil, err
	}
	known, err := h.db.ListActions(ctx)
	if err != nil {
		return nil, err
	}
	return rules.Validate(actions, algorithms, known)
}

// renameStream replaces the last path segment of a streaming url.
func renameStream(url, name string) string {
	i := strings.LastIndex(url, "/")
	if i < 0 {
		return name
	}
	return url[:i+1] + name
}
