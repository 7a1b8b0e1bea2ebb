package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// successEnvelope is the success shape of the public API. Exactly one of the
// two envelope shapes is ever populated per response.
type successEnvelope struct {
	Success     bool      `json:"success"`
	Data        any       `json:"data"`
	Count       int       `json:"count"`
	LastUpdated time.Time `json:"lastUpdated"`
	Source      string    `json:"source"`
}

// errorEnvelope is the failure shape. It carries no cache directive: errors
// must never be cached.
type errorEnvelope struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
}

func writeSuccess(w http.ResponseWriter, logger zerolog.Logger, data any, count int, lastUpdated time.Time, source string, cacheTTL time.Duration) {
	w.Header().Set("Content-Type", "application/json")
	if cacheTTL > 0 {
		seconds := int(cacheTTL.Seconds())
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, s-maxage=%d", seconds, seconds))
	}
	w.WriteHeader(http.StatusOK)

	envelope := successEnvelope{
		Success:     true,
		Data:        data,
		Count:       count,
		LastUpdated: lastUpdated.UTC(),
		Source:      source,
	}
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		logger.Error().Err(err).Msg("failed to encode success envelope")
	}
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	envelope := errorEnvelope{
		Success:   false,
		Error:     message,
		Timestamp: time.Now().UTC(),
		Status:    status,
	}
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		logger.Error().Err(err).Msg("failed to encode error envelope")
	}
}
