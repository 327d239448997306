package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"deepscan/internal/api"
	"deepscan/internal/logging"
	"deepscan/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, payload any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	writeJSON(w, status, payload, s.logger)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, detail, kind string) {
	resp := api.ErrorResponse{Detail: detail, Kind: kind}
	resp.RequestID, _ = services.RequestIDFromContext(r.Context())
	s.writeJSON(w, status, resp)
}
