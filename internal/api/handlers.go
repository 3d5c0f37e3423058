// Package api exposes the warehouse validation report and exercise catalog over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"example.com/reps/internal/exercises"
	"example.com/reps/internal/validate"
)

// Validator runs a validation pass over the warehouse.
type Validator interface {
	Validate(ctx context.Context) (validate.Report, error)
}

// Catalog lists known exercises.
type Catalog interface {
	List() []exercises.Exercise
}

// Handler serves read-only views of the warehouse.
type Handler struct {
	validator Validator
	catalog   Catalog
	logger    *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(validator Validator, catalog Catalog, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{validator: validator, catalog: catalog, logger: logger}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/validation", h.validation)
	mux.HandleFunc("/v1/exercises", h.exercises)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ValidationView is the response body of /v1/validation.
type ValidationView struct {
	Clean    bool            `json:"clean"`
	Messages []string        `json:"messages"`
	Report   validate.Report `json:"report"`
}

func (h *Handler) validation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	report, err := h.validator.Validate(r.Context())
	if err != nil {
		h.logger.Error("validation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "validation_failed", "unable to validate warehouse")
		return
	}

	messages := report.Messages()
	if messages == nil {
		messages = []string{}
	}
	writeJSON(w, http.StatusOK, ValidationView{
		Clean:    report.Clean(),
		Messages: messages,
		Report:   report,
	})
}

func (h *Handler) exercises(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exercises": h.catalog.List()})
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
