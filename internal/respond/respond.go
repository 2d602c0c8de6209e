package respond

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform response wrapper every endpoint answers with.
// The console reads Message for user-facing toasts on failure.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// OK writes a success envelope.
func OK(w http.ResponseWriter, status int, data any) {
	write(w, status, Envelope{Success: true, Data: data})
}

// OKMessage writes a success envelope with a user-facing message.
func OKMessage(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, Envelope{Success: true, Data: data, Message: message})
}

// Err writes a failure envelope.
func Err(w http.ResponseWriter, status int, message string) {
	write(w, status, Envelope{Success: false, Message: message})
}

// ErrData writes a failure envelope carrying structured data, e.g. the
// reset-token state the console branches on.
func ErrData(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, Envelope{Success: false, Data: data, Message: message})
}

func write(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
