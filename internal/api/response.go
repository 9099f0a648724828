package api

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/orchestrator"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/rules"
)

const maxBodyBytes = 1 << 20

// Response is the envelope of every reply.
type Response struct {
	StatusCode int `json:"status_code"`
	Data       any `json:"data"`
}

type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Response{StatusCode: status, Data: data}); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	var (
		reqErr   *requestError
		verr     *rules.ValidationError
		staleErr *orchestrator.StaleCallbackError
	)

	switch {
	case errors.As(err, &reqErr), errors.As(err, &verr), errors.As(err, &staleErr):
		writeJSON(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrAlreadyExists), errors.Is(err, models.ErrInUse):
		writeJSON(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeFields reads a JSON object body and rejects keys outside allowed.
func decodeFields(w http.ResponseWriter, r *http.Request, allowed ...string) (map[string]json.RawMessage, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		return nil, badRequest("Malformed JSON body: %v", err)
	}
	if fields == nil {
		return nil, badRequest("Request body must be a JSON object")
	}

	if unknown := lo.Without(lo.Keys(fields), allowed...); len(unknown) > 0 {
		slices.Sort(unknown)
		return nil, badRequest("Invalid parameter keys: %s", strings.Join(unknown, ", "))
	}
	return fields, nil
}

// field decodes fields[name] into dst and reports whether it was present.
func field(fields map[string]json.RawMessage, name string, dst any) (bool, error) {
	raw, ok := fields[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, badRequest("Invalid %s: %v", name, err)
	}
	return true, nil
}

func requiredName(fields map[string]json.RawMessage) (string, error) {
	var name string
	if _, err := field(fields, "name", &name); err != nil {
		return "", err
	}
	if strings.TrimSpace(name) == "" {
		return "", badRequest("name is required")
	}
	return name, nil
}

func deleted(name string) map[string]string {
	return map[string]string{"name": name, "status": "deleted"}
}
