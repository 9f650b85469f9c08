package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	apperrors "github.com/go-i2p/wgadmin/lib/errors"
	"github.com/go-i2p/wgadmin/lib/validation"
)

// maxBodyBytes bounds request payloads.
const maxBodyBytes = 64 << 10

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("json encode error")
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	if status >= http.StatusInternalServerError {
		log.WithField("request_id", middleware.GetReqID(r.Context())).
			WithField("status", status).
			WithField("path", r.URL.Path).
			Warn(message)
	}
	writeJSON(w, status, errorResponse{Error: message})
}

// writeFailure maps an engine error to its status code and writes it.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	e := apperrors.FromSentinel(err)
	writeError(w, r, e.Code, e.SafeMessage())
}

// writeText writes a rendered config.
func writeText(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.WithError(err).Debug("writing response body")
	}
}

// decode reads a JSON body into v and runs the struct validators on it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Invalid("request body is empty")
		}
		return apperrors.Invalid("malformed request body: %v", err)
	}
	if dec.More() {
		return apperrors.Invalid("request body must be a single JSON object")
	}
	if err := s.validate.Struct(v); err != nil {
		return validation.FromValidator(err)
	}
	return nil
}

// attachment sets the download headers for a named file.
func attachment(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}
