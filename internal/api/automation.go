package api

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

// TriggerHandler starts the camera's idle algorithms.
func (h *Handlers) TriggerHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Trigger(r.Context(), mux.Vars(r)["camera_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ResultHandler receives worker results: {"<algorithm>": "<option>", ...}.
func (h *Handlers) ResultHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var results map[string]string
	if err := json.NewDecoder(r.Body).Decode(&results); err != nil {
		writeError(w, badRequest("Malformed result body: %v", err))
		return
	}

	report, err := h.svc.ProcessResult(r.Context(), mux.Vars(r)["camera_id"], results)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
