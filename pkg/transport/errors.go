package transport

import (
	"encoding/json"
	"net/http"
)

// APIError is the JSON body of an HTTP error response.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError in the response envelope.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// WriteError writes a JSON error response with the given status code.
// If streaming has already started on this connection the status line
// is gone; callers on the SSE path emit an error frame instead.
func WriteError(w http.ResponseWriter, statusCode int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: APIError{Type: errType, Message: message}})
}
