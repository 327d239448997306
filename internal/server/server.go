package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"deepscan/internal/api"
	"deepscan/internal/archive"
	"deepscan/internal/config"
	"deepscan/internal/detection"
	"deepscan/internal/history"
	"deepscan/internal/logging"
	"deepscan/internal/notifications"
	"deepscan/internal/preflight"
)

// Detector is the detection surface the HTTP layer needs.
type Detector interface {
	Detect(ctx context.Context, up detection.Upload) (detection.Result, error)
	DetectModality(ctx context.Context, up detection.Upload, modality detection.Modality) (detection.Result, error)
	DetectDual(ctx context.Context, up detection.Upload) (detection.Result, error)
	Thresholds() detection.Thresholds
}

// HistoryStore is the persistence surface used for recording and browsing
// detections.
type HistoryStore interface {
	api.HistoryStore
	Add(ctx context.Context, rec *history.Record) error
	Summarize(ctx context.Context) (history.Summary, error)
	Driver() string
	Location() string
}

// StatusFunc produces the readiness report served by /api/status.
type StatusFunc func(ctx context.Context) preflight.Report

// Options carries the collaborators of a Server. Everything but Detector is
// optional.
type Options struct {
	Detector Detector
	History  HistoryStore
	Archiver *archive.Archiver
	Notifier notifications.Service
	Status   StatusFunc
}

// Server handles HTTP requests for one configured detector.
type Server struct {
	cfg        *config.Config
	detector   Detector
	history    HistoryStore
	historySvc *api.HistoryService
	archiver   *archive.Archiver
	notifier   notifications.Service
	status     StatusFunc
	logger     *slog.Logger
	handler    http.Handler
	alerts     sync.WaitGroup
}

// New builds a Server and its middleware chain.
func New(cfg *config.Config, opts Options, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server requires config")
	}
	if opts.Detector == nil {
		return nil, errors.New("server requires a detector")
	}
	s := &Server{
		cfg:      cfg,
		detector: opts.Detector,
		history:  opts.History,
		archiver: opts.Archiver,
		notifier: opts.Notifier,
		status:   opts.Status,
		logger:   logging.NewComponentLogger(logger, "api-server"),
	}
	if s.notifier == nil {
		s.notifier = notifications.NewService(nil)
	}
	if opts.History != nil {
		s.historySvc = api.NewHistoryService(opts.History)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /detect", s.detectHandler(detection.ModeAuto))
	mux.HandleFunc("POST /detect/video", s.detectHandler(detection.ModeVideo))
	mux.HandleFunc("POST /detect/audio", s.detectHandler(detection.ModeAudio))
	mux.HandleFunc("POST /detect/dual", s.detectHandler(detection.ModeDual))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/history", s.handleHistoryList)
	mux.HandleFunc("GET /api/history/{id}", s.handleHistoryItem)
	mux.HandleFunc("DELETE /api/history/{id}", s.handleHistoryDelete)

	var handler http.Handler = mux
	handler = authMiddleware(cfg.Server.APIToken, cfg.Server.JWTSecret, handler)
	handler = corsMiddleware(cfg.Server.CORSOrigins, handler)
	handler = accessLogMiddleware(s.logger, handler)
	handler = requestIDMiddleware(handler)
	s.handler = handler
	return s, nil
}

// WaitAlerts blocks until queued notifications have been delivered.
func (s *Server) WaitAlerts() { s.alerts.Wait() }

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler { return s.handler }

// HTTPServer returns an http.Server for the configured bind address.
// Write timeouts are left open because detection time grows with upload
// length.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Server.Bind,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
