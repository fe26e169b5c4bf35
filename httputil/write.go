package httputil

import (
	"net/http"

	"github.com/goccy/go-json"
)

// WriteJSON encodes v and writes it with the given status code. Encoding
// failures after the header has been written can only be logged by the
// caller; the returned error carries them.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, msg string) error {
	return WriteJSON(w, status, map[string]string{"error": msg})
}
