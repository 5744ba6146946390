// Package httputil provides shared helpers for consistent JSON responses.
package httputil

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes a JSON error response with a stable error code and a
// human-readable message.
func WriteError(w http.ResponseWriter, status int, errCode, message string) {
	WriteJSON(w, status, map[string]string{
		"error":   errCode,
		"message": message,
	})
}

// WriteOK writes a 200 OK response with data.
func WriteOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a 201 Created response with data.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}

// WriteBadRequest writes a 400 Bad Request error response.
func WriteBadRequest(w http.ResponseWriter, errCode, message string) {
	WriteError(w, http.StatusBadRequest, errCode, message)
}

// WriteNotFound writes a 404 Not Found error response.
func WriteNotFound(w http.ResponseWriter, errCode, message string) {
	WriteError(w, http.StatusNotFound, errCode, message)
}

// WriteGone writes a 410 Gone error response, used for expired
// subscriptions.
func WriteGone(w http.ResponseWriter, errCode, message string) {
	WriteError(w, http.StatusGone, errCode, message)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, errCode, message string) {
	WriteError(w, http.StatusInternalServerError, errCode, message)
}
