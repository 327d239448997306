package server

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"deepscan/internal/api"
	"deepscan/internal/config"
	"deepscan/internal/history"
	"deepscan/internal/logging"
	"deepscan/internal/preflight"
)

const maxHistoryLimit = 500

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "healthy"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	thresholds := s.detector.Thresholds()
	resp := api.StatusResponse{
		PID:           os.Getpid(),
		Thresholds:    api.Thresholds{Video: thresholds.Video, Audio: thresholds.Audio},
		Dependencies:  []api.DependencyStatus{},
		Models:        []api.ModelStatus{},
		Checks:        []api.CheckStatus{},
		Archive:       config.ArchiveNone,
		Notifications: s.notifier.Enabled(),
	}
	if s.archiver.Enabled() {
		resp.Archive = s.archiver.Backend()
	}
	report := preflight.Report{}
	if s.status != nil {
		report = s.status(r.Context())
	}
	resp.Ready = report.Ready()
	resp.Dependencies, resp.Models, resp.Checks = api.FromReport(report)
	resp.History = s.historyStatus(r)
	resp.Workspaces = api.Workspaces(s.cfg.Paths.TempDir)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) historyStatus(r *http.Request) api.HistoryStatus {
	if s.history == nil {
		return api.HistoryStatus{}
	}
	status := api.HistoryStatus{
		Enabled:  true,
		Driver:   s.history.Driver(),
		Location: s.history.Location(),
	}
	summary, err := s.history.Summarize(r.Context())
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Total = summary.Total
	status.Fake = summary.Fake
	return status
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, r, http.StatusBadRequest, "limit must be a positive integer", "")
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}
	items, err := s.historySvc.List(r.Context(), limit)
	if err != nil {
		logging.WithContext(r.Context(), s.logger).Error("history list failed", logging.Error(err))
		s.writeError(w, r, http.StatusInternalServerError, err.Error(), "")
		return
	}
	s.writeJSON(w, http.StatusOK, api.HistoryListResponse{Items: items})
}

func (s *Server) handleHistoryItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.historySvc.Describe(r.Context(), r.PathValue("id"))
	if err != nil {
		s.historyError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.historySvc.Remove(r.Context(), r.PathValue("id")); err != nil {
		s.historyError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) historyError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, history.ErrNotFound) {
		s.writeError(w, r, http.StatusNotFound, "detection not found", "")
		return
	}
	logging.WithContext(r.Context(), s.logger).Error("history lookup failed", logging.Error(err))
	s.writeError(w, r, http.StatusInternalServerError, err.Error(), "")
}
