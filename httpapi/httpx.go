package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

func newRequestID() string { return "req_" + uuid.NewString() }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"request_id": newRequestID(),
		"error": map[string]any{
			"code": code, "message": message,
		},
	})
}
