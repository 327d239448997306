package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"deepscan/internal/archive"
	"deepscan/internal/config"
	"deepscan/internal/detection"
	"deepscan/internal/history"
	"deepscan/internal/inference"
	"deepscan/internal/logging"
	"deepscan/internal/notifications"
	"deepscan/internal/preflight"
	"deepscan/internal/workspace"
)

const (
	shutdownTimeout = 30 * time.Second
	// staleWorkspaceAge bounds how long an orphaned request workspace may
	// linger before maintenance removes it.
	staleWorkspaceAge = 6 * time.Hour
)

// RunOptions configures server process runtime behavior.
type RunOptions struct {
	LogLevel    string
	Development bool
	// Ready, when set, receives the bound listener address once serving.
	Ready func(addr string)
}

// Run starts the HTTP server and blocks until ctx is cancelled or SIGINT or
// SIGTERM arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts RunOptions) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another deepscan server is already using %s", cfg.Paths.DataDir)
	}
	defer func() { _ = lock.Unlock() }()

	logger, logPath, err := newRunLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	models, err := inference.Load(cfg, logger)
	if err != nil {
		return err
	}
	detector, err := detection.New(cfg, models, logger)
	if err != nil {
		return err
	}

	serverOpts := Options{
		Detector: detector,
		Status: func(ctx context.Context) preflight.Report {
			return preflight.Collect(ctx, cfg, models)
		},
	}

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.OpenFromConfig(signalCtx, cfg)
		if err != nil {
			logger.Error("open history store", logging.Error(err))
			return err
		}
		defer store.Close()
		serverOpts.History = store
	}

	sink, err := archive.New(signalCtx, cfg)
	if err != nil {
		return err
	}
	if closer, ok := sink.(io.Closer); ok {
		defer closer.Close()
	}
	serverOpts.Archiver = archive.NewArchiver(sink, logger)
	serverOpts.Notifier = notifications.NewService(cfg)

	pruner, err := history.NewPruner(store, cfg.History.RetentionDays, cfg.History.PruneSchedule, logger,
		func(context.Context) {
			logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
				Dir:     cfg.Paths.LogDir,
				Pattern: "deepscan-*.log",
				Exclude: []string{logPath},
			})
		},
		func(ctx context.Context) {
			workspace.CleanStale(ctx, cfg.Paths.TempDir, staleWorkspaceAge, logger)
		},
	)
	if err != nil {
		return err
	}

	logReadiness(logger, preflight.Collect(signalCtx, cfg, models))
	workspace.CleanStale(signalCtx, cfg.Paths.TempDir, staleWorkspaceAge, logger)

	srv, err := New(cfg, serverOpts, logger)
	if err != nil {
		return err
	}
	listener, err := net.Listen("tcp", cfg.Server.Bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	httpServer := srv.HTTPServer()

	group, groupCtx := errgroup.WithContext(signalCtx)
	group.Go(func() error {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if err := pruner.Start(groupCtx); err != nil {
		cancel()
		_ = group.Wait()
		return err
	}
	defer pruner.Stop()

	addr := listener.Addr().String()
	logger.Info("deepscan server listening",
		logging.String("address", addr),
		logging.String("lock", cfg.LockPath()),
		logging.String(logging.FieldEventType, "server_started"),
	)
	if opts.Ready != nil {
		opts.Ready(addr)
	}

	err = group.Wait()
	srv.WaitAlerts()
	logger.Info("deepscan server stopped", logging.String(logging.FieldEventType, "server_stopped"))
	return err
}

// newRunLogger writes to stdout plus a per-run file in the log directory and
// points deepscan.log at the newest run.
func newRunLogger(cfg *config.Config, opts RunOptions) (*slog.Logger, string, error) {
	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	outputs := []string{"stdout"}
	var logPath string
	if cfg.Paths.LogDir != "" {
		runID := time.Now().UTC().Format("20060102T150405.000Z")
		logPath = filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("deepscan-%s.log", runID))
		outputs = append(outputs, logPath)
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      outputs,
		ErrorOutputPaths: outputs,
		Development:      opts.Development,
	})
	if err != nil {
		return nil, "", err
	}
	if logPath != "" {
		if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
		}
	}
	return logger, logPath, nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func logReadiness(logger *slog.Logger, report preflight.Report) {
	for _, dep := range report.Dependencies {
		if dep.Available || dep.Optional {
			continue
		}
		logging.WarnWithContext(logger, "dependency unavailable", "dependency_missing",
			logging.String("dependency", dep.Name),
			logging.String("command", dep.Command),
			logging.String("detail", dep.Detail),
			logging.String(logging.FieldErrorHint, "install ffmpeg or set [tools] paths"),
			logging.String(logging.FieldImpact, "detections will fail until the binary is available"),
		)
	}
	for _, dir := range report.Directories {
		if dir.Passed {
			continue
		}
		logging.WarnWithContext(logger, "directory check failed", "directory_unavailable",
			logging.String("check", dir.Name),
			logging.String("detail", dir.Detail),
		)
	}
	for _, model := range report.Models {
		if model.Ready {
			logger.Info("model endpoint ready",
				logging.String("model", model.Name),
				logging.String(logging.FieldModality, model.Modality),
				logging.String("detail", model.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "model endpoint unavailable", "model_unavailable",
			logging.String("model", model.Name),
			logging.String(logging.FieldModality, model.Modality),
			logging.String("detail", model.Detail),
			logging.String(logging.FieldErrorHint, "check the model server and [models] urls"),
			logging.String(logging.FieldImpact, "requests using this classifier will fail"),
		)
	}
}
