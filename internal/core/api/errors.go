package api

import (
	"encoding/json"
	"net/http"
)

// Handlers map domain sentinels to HTTP statuses inline:
// not-found sentinels to 404, validation faults to 400, oversized
// payloads to 413. Pipeline faults (resolution, rendering, delivery)
// never surface as handler errors.

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
