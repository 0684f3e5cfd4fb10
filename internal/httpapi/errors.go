package httpapi

import (
	"encoding/json"
	"net/http"

	"agentd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

type notFoundError struct{ what, id string }

func (e notFoundError) Error() string   { return e.what + " not found: " + e.id }
func (e notFoundError) StatusCode() int { return http.StatusNotFound }

// ErrTaskNotFound is returned by services for unknown task ids.
func ErrTaskNotFound(id string) error { return notFoundError{what: "task", id: id} }

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

// writeServiceError maps err to a status: HTTPError codes, else 500.
func writeServiceError(w http.ResponseWriter, err error) {
	if he, ok := err.(HTTPError); ok {
		writeJSONError(w, he.StatusCode(), he.Error())
		return
	}
	writeJSONError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
