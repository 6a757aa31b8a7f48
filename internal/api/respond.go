package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/quantaleap/ascent/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service error codes onto HTTP statuses and emits the
// error payload the dashboards expect.
func writeError(w http.ResponseWriter, log *zap.SugaredLogger, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	if se, ok := services.AsServiceError(err); ok {
		msg = se.Message
		switch se.Code {
		case services.ErrorInvalid:
			status = http.StatusBadRequest
		case services.ErrorUnauthorized:
			status = http.StatusUnauthorized
		case services.ErrorNotFound:
			status = http.StatusNotFound
		case services.ErrorNotConfigured:
			status = http.StatusServiceUnavailable
		case services.ErrorUnavailable:
			status = http.StatusInternalServerError
		}
	}
	if status >= http.StatusInternalServerError {
		log.Errorw("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
