// Package httputil writes JSON responses for the debug endpoints.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/banshee-data/benchlink/internal/monitoring"
	"github.com/banshee-data/benchlink/internal/scope"
	"github.com/banshee-data/benchlink/internal/specan"
	"github.com/banshee-data/benchlink/internal/visa"
	"github.com/banshee-data/benchlink/internal/waveform"
)

// WriteJSON writes data as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Logf("failed to encode json response: %v", err)
	}
}

// WriteJSONOK writes data with 200 OK.
func WriteJSONOK(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSONError writes {"error": msg}.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// MethodNotAllowed writes a 405 response.
func MethodNotAllowed(w http.ResponseWriter) {
	WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// BadRequest writes a 400 response.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusBadRequest, msg)
}

// InternalServerError writes a 500 response.
func InternalServerError(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusInternalServerError, msg)
}

// StatusForError maps an acquisition error to an HTTP status. Bad
// caller input is 400; anything the instrument got wrong is 502.
func StatusForError(err error) int {
	var te *visa.TransportError
	var me *waveform.MalformedPreambleError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, scope.ErrInvalidChannel), errors.Is(err, specan.ErrBadSpan):
		return http.StatusBadRequest
	case errors.As(err, &te), errors.As(err, &me):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// WriteError writes err as a JSON error with the status from
// StatusForError, prefixed by what was being attempted.
func WriteError(w http.ResponseWriter, what string, err error) {
	WriteJSONError(w, StatusForError(err), what+": "+err.Error())
}
