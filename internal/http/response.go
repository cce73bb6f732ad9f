package http

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Envelope is the response shape shared with the backend API.
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, Envelope{Status: status, Data: data})
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, Envelope{Status: status, Message: message})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeEnvelope(w, Envelope{Status: status, Error: message, Code: code})
}

func writeEnvelope(w http.ResponseWriter, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.Status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}
