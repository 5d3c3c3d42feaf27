// Package respond holds the JSON request/response helpers shared by the
// HTTP handlers and the server middleware.
package respond

import (
	"encoding/json"
	"log"
	"net/http"

	"specsync/internal/apperr"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

// errorBody is the uniform error response shape.
type errorBody struct {
	Error string `json:"error"`
}

// WriteError maps err through the apperr taxonomy and writes a structured
// error body. Internal errors are logged server-side and returned opaque.
func WriteError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("server: internal error: %v", err)
		msg = "internal error"
	}
	WriteJSON(w, status, errorBody{Error: msg})
}

// DecodeJSON decodes the request body into v, rejecting unknown fields is
// deliberately not done: clients may send newer fields than the server knows.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validationf("invalid JSON body: %v", err)
	}
	return nil
}
