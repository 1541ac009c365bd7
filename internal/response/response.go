// Package response writes the JSON envelope every endpoint answers with.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/cors"
)

type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

var (
	AllowedOrigins = []string{"*"}
	AllowedHeaders = []string{"Content-Type", "Authorization"}
	AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
)

// JSON writes v as the response body. Bodies that do not use the envelope
// (the webhook acknowledgement) go through here directly.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "err", err)
	}
}

func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Success: true, Data: data})
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Success: false, Error: message})
}

// ErrorCode is Error with a machine readable code and optional details.
func ErrorCode(w http.ResponseWriter, status int, message, code string, details any) {
	JSON(w, status, Envelope{Success: false, Error: message, Code: code, Details: details})
}

// CORS is the only place CORS headers are written. Requests carrying an
// Origin get Access-Control-Allow-Origin; preflights are annotated and then
// passed on to the route's OPTIONS handler.
func CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:     AllowedOrigins,
		AllowedMethods:     AllowedMethods,
		AllowedHeaders:     AllowedHeaders,
		OptionsPassthrough: true,
	})
}

// Preflight answers OPTIONS with 200 and an empty body.
func Preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
