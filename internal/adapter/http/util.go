package adapthttp

import (
	"encoding/json"
	"errors"
	"net/http"

	"matcha/internal/domain"
)

// errorBody is the uniform failure envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps application errors onto the error envelope. Anything that
// is not a domain.Error is logged and reported as an opaque 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *domain.Error
	if !errors.As(err, &appErr) {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		appErr = domain.Internal()
	}
	writeJSON(w, appErr.Status, map[string]any{"error": errorBody{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}})
}

func (s *Server) parseJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, r, domain.BadRequest("VALIDATION_ERROR", "Invalid request body"))
		return false
	}
	return true
}
