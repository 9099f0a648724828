package api

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/rules"
)

var actionFields = []string{"name", "params", "description"}

func (h *Handlers) ListActionsHandler(w http.ResponseWriter, r *http.Request) {
	actions, err := h.db.ListActions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if actions == nil {
		actions = []models.Action{}
	}
	writeJSON(w, http.StatusOK, actions)
}

func (h *Handlers) CreateActionHandler(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r, actionFields...)
	if err != nil {
		writeError(w, err)
		return
	}

	action := models.Action{ID: uuid.NewString(), Params: map[string]models.ParamSpec{}}
	if action.Name, err = requiredName(fields); err != nil {
		writeError(w, err)
		return
	}
	if err := applyActionFields(fields, &action); err != nil {
		writeError(w, err)
		return
	}

	if err := h.db.CreateAction(r.Context(), &action); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (h *Handlers) GetActionHandler(w http.ResponseWriter, r *http.Request) {
	action, err := h.db.GetAction(r.Context(), mux.Vars(r)["action_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (h *Handlers) UpdateActionHandler(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r, actionFields...)
	if err != nil {
		writeError(w, err)
		return
	}

	action, err := h.db.GetAction(r.Context(), mux.Vars(r)["action_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if _, ok := fields["name"]; ok {
		if action.Name, err = requiredName(fields); err != nil {
			writeError(w, err)
			return
		}
	}
	if err := applyActionFields(fields, &action); err != nil {
		writeError(w, err)
		return
	}

	if err := h.db.UpdateAction(r.Context(), &action); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (h *Handlers) DeleteActionHandler(w http.ResponseWriter, r *http.Request) {
	action, err := h.db.DeleteAction(r.Context(), mux.Vars(r)["action_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleted(action.Name))
}

// applyActionFields checks the shape of every param declaration before
// decoding them.
func applyActionFields(fields map[string]json.RawMessage, action *models.Action) error {
	var specs map[string]map[string]any
	present, err := field(fields, "params", &specs)
	if err != nil {
		return err
	}
	if present {
		if err := rules.ValidateParamSpecs(specs); err != nil {
			return err
		}
		params := map[string]models.ParamSpec{}
		if _, err := field(fields, "params", &params); err != nil {
			return err
		}
		action.Params = params
	}

	_, err = field(fields, "description", &action.Description)
	return err
}
