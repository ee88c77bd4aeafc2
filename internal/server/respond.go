package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/incisive-io/tabled/internal/errs"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the domain error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is a 500 with a generic message; the cause stays in
// the server log only.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *errs.Error
	if !errors.As(err, &domainErr) {
		s.log.ErrorWith("request failed", err, map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
		})
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "internal",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	switch domainErr.Kind {
	case errs.KindNotFound:
		status = http.StatusNotFound
	case errs.KindForbidden:
		status = http.StatusForbidden
	case errs.KindConflict:
		status = http.StatusConflict
	case errs.KindBadRequest:
		status = http.StatusBadRequest
	default:
		s.log.ErrorWith("request failed", err, map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
		})
	}

	writeJSON(w, status, errorResponse{
		Error:   domainErr.Kind.String(),
		Message: domainErr.Message,
		Fields:  domainErr.Fields,
	})
}

// decodeBody reads a JSON object body. An empty body is an empty map.
func decodeBody(r *http.Request) (map[string]any, error) {
	var payload map[string]any
	if r.Body == nil {
		return map[string]any{}, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, errs.BadRequest("Invalid JSON body")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return payload, nil
}
