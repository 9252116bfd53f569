package handlers

import (
	"encoding/json"
	"net/http"

	"devboard/internal/logger"
)

type Payload struct {
	Key     string
	Payload any
}

func toPayload(key string, pl any) Payload {
	return Payload{Key: key, Payload: pl}
}

// responseWithPayload writes an object assembled from the given keys.
func responseWithPayload(w http.ResponseWriter, code int, payload ...Payload) {
	storage := make(map[string]any, len(payload))
	for _, pl := range payload {
		storage[pl.Key] = pl.Payload
	}
	responseWithJSON(w, code, storage)
}

func responseWithJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("HTTP: failed to encode response", err)
	}
}

func responseWithMessage(w http.ResponseWriter, code int, message string) {
	responseWithPayload(w, code, toPayload("message", message))
}

func responseWithError(w http.ResponseWriter, code int, errCode, message string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	responseWithPayload(w, code,
		toPayload("error", errCode),
		toPayload("message", message),
		toPayload("details", details),
	)
}
