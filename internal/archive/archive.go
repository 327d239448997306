// Package archive retains uploads judged fake as evidence.
//
// A Sink copies one file to durable storage: a local directory or a Google
// Cloud Storage bucket. The Archiver wraps a sink so that archive failures
// are logged and never change a detection response.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"deepscan/internal/config"
	"deepscan/internal/logging"
	"deepscan/internal/textutil"
)

// Meta describes the archived upload.
type Meta struct {
	RequestID string
	Filename  string
	MIME      string
	CreatedAt time.Time
}

// Location is where an upload was archived.
type Location struct {
	URI    string
	SHA256 string
}

// Sink stores one file.
type Sink interface {
	Name() string
	Store(ctx context.Context, src string, meta Meta) (Location, error)
}

// New builds the sink selected by the archive section. It returns nil when
// archiving is disabled.
func New(ctx context.Context, cfg *config.Config) (Sink, error) {
	if cfg == nil {
		return nil, errors.New("archive: config required")
	}
	switch cfg.Archive.Backend {
	case config.ArchiveNone, "":
		return nil, nil
	case config.ArchiveLocal:
		return NewLocal(cfg.Archive.Dir), nil
	case config.ArchiveGCS:
		return NewGCS(ctx, cfg.Archive.Bucket, cfg.Archive.Prefix)
	default:
		return nil, fmt.Errorf("archive: unsupported backend %q", cfg.Archive.Backend)
	}
}

// objectKey lays archived files out by day: YYYY/MM/DD/<request>_<name>.
func objectKey(meta Meta) string {
	created := meta.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	created = created.UTC()
	name := textutil.SanitizeUploadName(meta.Filename)
	if id := strings.TrimSpace(meta.RequestID); id != "" {
		name = textutil.SanitizeUploadName(id) + "_" + name
	}
	return path.Join(created.Format("2006"), created.Format("01"), created.Format("02"), name)
}

// Archiver stores evidence without failing the caller.
type Archiver struct {
	sink   Sink
	logger *slog.Logger
}

// NewArchiver wraps sink. A nil sink yields an archiver that does nothing.
func NewArchiver(sink Sink, logger *slog.Logger) *Archiver {
	return &Archiver{sink: sink, logger: logging.NewComponentLogger(logger, "archive")}
}

// Enabled reports whether a sink is configured.
func (a *Archiver) Enabled() bool { return a != nil && a.sink != nil }

// Backend names the configured sink, or "none".
func (a *Archiver) Backend() string {
	if !a.Enabled() {
		return config.ArchiveNone
	}
	return a.sink.Name()
}

// Archive copies src to the sink. Failures are logged and reported as a zero
// Location.
func (a *Archiver) Archive(ctx context.Context, src string, meta Meta) Location {
	if !a.Enabled() {
		return Location{}
	}
	started := time.Now()
	loc, err := a.sink.Store(ctx, src, meta)
	logger := logging.WithContext(ctx, a.logger)
	if err != nil {
		logging.WarnWithContext(logger, "evidence archive failed", "archive_failed",
			logging.String("backend", a.sink.Name()),
			logging.String("file", meta.Filename),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check archive settings and credentials"),
			logging.String(logging.FieldImpact, "upload judged fake was not retained"),
		)
		return Location{}
	}
	logger.Info("evidence archived",
		logging.String("backend", a.sink.Name()),
		logging.String("location", loc.URI),
		logging.String("sha256", loc.SHA256),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "archive_stored"),
	)
	return loc
}
