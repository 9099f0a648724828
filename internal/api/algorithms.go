package api

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
)

var algorithmFields = []string{"name", "options", "description"}

func (h *Handlers) ListAlgorithmsHandler(w http.ResponseWriter, r *http.Request) {
	algorithms, err := h.db.ListAlgorithms(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if algorithms == nil {
		algorithms = []models.Algorithm{}
	}
	writeJSON(w, http.StatusOK, algorithms)
}

func (h *Handlers) CreateAlgorithmHandler(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r, algorithmFields...)
	if err != nil {
		writeError(w, err)
		return
	}

	algorithm := models.Algorithm{ID: uuid.NewString(), Options: []string{}}
	if algorithm.Name, err = requiredName(fields); err != nil {
		writeError(w, err)
		return
	}
	if err := applyAlgorithmFields(fields, &algorithm); err != nil {
		writeError(w, err)
		return
	}

	if err := h.db.CreateAlgorithm(r.Context(), &algorithm); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, algorithm)
}

func (h *Handlers) GetAlgorithmHandler(w http.ResponseWriter, r *http.Request) {
	algorithm, err := h.db.GetAlgorithm(r.Context(), mux.Vars(r)["algorithm_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, algorithm)
}

func (h *Handlers) UpdateAlgorithmHandler(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r, algorithmFields...)
	if err != nil {
		writeError(w, err)
		return
	}

	algorithm, err := h.db.GetAlgorithm(r.Context(), mux.Vars(r)["algorithm_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if _, ok := fields["name"]; ok {
		if algorithm.Name, err = requiredName(fields); err != nil {
			writeError(w, err)
			return
		}
	}
	if err := applyAlgorithmFields(fields, &algorithm); err != nil {
		writeError(w, err)
		return
	}

	if err := h.db.UpdateAlgorithm(r.Context(), &algorithm); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, algorithm)
}

// DeleteAlgorithmHandler refuses to delete an algorithm a camera still uses.
func (h *Handlers) DeleteAlgorithmHandler(w http.ResponseWriter, r *http.Request) {
	algorithm, err := h.db.DeleteAlgorithm(r.Context(), mux.Vars(r)["algorithm_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleted(algorithm.Name))
}

func applyAlgorithmFields(fields map[string]json.RawMessage, algorithm *models.Algorithm) error {
	if _, err := field(fields, "options", &algorithm.Options); err != nil {
		return err
	}
	if algorithm.Options == nil {
		algorithm.Options = []string{}
	}
	_, err := field(fields, "description", &algorithm.Description)
	return err
}
