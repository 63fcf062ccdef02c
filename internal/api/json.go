package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/starford/photolog/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	Kind  string `json:"kind,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusFor maps an operation error to its HTTP status.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindCaptureCancelled:
		return http.StatusConflict
	case apperr.KindCaptureUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindShare:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Server-side failures are logged and their detail
// is withheld from the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	status := statusFor(err)
	body := errResponse{Error: err.Error(), Kind: string(apperr.KindOf(err))}
	if status == http.StatusInternalServerError {
		logger.Error(msg, slog.String("error", err.Error()))
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}
