package http

import (
	"encoding/json"
	"net/http"

	"github.com/kraterdb/krater/internal/engine"
)

// Envelope is the uniform response body. On success results carries
// the query output; on failure it carries the error kind and message
// carries detail when disclosure is enabled.
type Envelope struct {
	OK      bool   `json:"ok"`
	Results any    `json:"results"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeResults writes a successful envelope.
func writeResults(w http.ResponseWriter, results any) {
	writeJSON(w, http.StatusOK, Envelope{OK: true, Results: results})
}

// writeQueryError writes a failed envelope with the kind's status.
func writeQueryError(w http.ResponseWriter, qerr *engine.QueryError) {
	writeJSON(w, qerr.HTTPStatus(), Envelope{
		OK:      false,
		Results: string(qerr.Kind),
		Message: qerr.Message,
	})
}

// writeError writes a failed envelope with a plain message.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, Envelope{OK: false, Results: message})
}
