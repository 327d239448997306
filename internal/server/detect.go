package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"deepscan/internal/api"
	"deepscan/internal/archive"
	"deepscan/internal/detection"
	"deepscan/internal/fileutil"
	"deepscan/internal/logging"
	"deepscan/internal/mediatype"
	"deepscan/internal/notifications"
	"deepscan/internal/services"
	"deepscan/internal/workspace"
)

// multipartOverhead is allowed on top of the upload limit for boundaries and
// part headers.
const multipartOverhead = 1 << 20

var (
	errNoUpload       = errors.New("no file uploaded")
	errNotMultipart   = errors.New("expected a multipart/form-data upload")
	errUploadTooLarge = errors.New("upload exceeds the configured size limit")

	// uploadFields lists accepted form field names; "video" is the legacy name.
	uploadFields = []string{"file", "video"}
)

type savedUpload struct {
	path     string
	filename string
	size     int64
}

func (s *Server) detectHandler(mode detection.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID, _ := services.RequestIDFromContext(ctx)
		logger := logging.WithContext(ctx, s.logger)

		limit := s.cfg.MaxUploadBytes()
		if limit > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
		}

		ws, err := workspace.Create(s.cfg.Paths.TempDir, s.logger)
		if err != nil {
			logger.Error("create request workspace failed", logging.Error(err))
			s.writeError(w, r, http.StatusInternalServerError, "file was not saved correctly", "")
			return
		}
		defer ws.Close()

		upload, err := receiveUpload(r, ws, limit)
		if err != nil {
			status := uploadStatus(err)
			if status == http.StatusInternalServerError {
				logger.Error("save upload failed", logging.Error(err))
			}
			s.writeError(w, r, status, err.Error(), "")
			return
		}

		up := detection.Upload{
			Path:     upload.path,
			MIME:     mediatype.Detect(upload.path, upload.filename),
			Filename: upload.filename,
			WorkDir:  ws.Dir(),
		}
		logger.Debug("upload received",
			logging.String("filename", upload.filename),
			logging.String("mime", up.MIME),
			logging.Int64("size_bytes", upload.size),
			logging.String("mode", string(mode)),
		)

		result, err := s.run(ctx, mode, up)
		if err != nil {
			status := detection.HTTPStatus(err)
			kind, _ := services.KindOf(err)
			detail := err.Error()
			if status == http.StatusInternalServerError {
				detail = "Detection failed: " + detail
				s.alert(ctx, func(ctx context.Context) error {
					return s.notifier.NotifyDetectionFailed(ctx, notifications.Failure{
						RequestID: requestID,
						Filename:  upload.filename,
						Kind:      string(kind),
						Err:       err,
					})
				})
			}
			s.writeError(w, r, status, detail, string(kind))
			return
		}

		if result.Degraded() {
			logger.Info("detection completed without a modality",
				logging.String("video_reason", result.Video.Reason),
				logging.String("audio_reason", result.Audio.Reason),
			)
		}
		meta := api.Meta{ID: ws.ID(), RequestID: requestID, Filename: upload.filename}
		dto := api.FromResult(result, meta)
		location := s.archiveEvidence(ctx, result, up, requestID)
		dto.Archived = location.URI != ""
		s.record(ctx, result, meta, up.Path, location)
		if dto.IsFake {
			s.alert(ctx, func(ctx context.Context) error {
				return s.notifier.NotifyFakeDetected(ctx, notifications.Alert{
					ID:              dto.ID,
					Filename:        dto.Filename,
					Mode:            dto.Mode,
					VideoConfidence: dto.VideoConfidence,
					AudioConfidence: dto.AudioConfidence,
					ArchiveURI:      location.URI,
				})
			})
		}
		s.writeJSON(w, http.StatusOK, dto)
	}
}

func (s *Server) run(ctx context.Context, mode detection.Mode, up detection.Upload) (detection.Result, error) {
	switch mode {
	case detection.ModeVideo:
		return s.detector.DetectModality(ctx, up, detection.ModalityVideo)
	case detection.ModeAudio:
		return s.detector.DetectModality(ctx, up, detection.ModalityAudio)
	case detection.ModeDual:
		return s.detector.DetectDual(ctx, up)
	default:
		return s.detector.Detect(ctx, up)
	}
}

// receiveUpload streams the first file part named "file" (or the legacy
// "video") into the workspace without buffering the body in memory.
func receiveUpload(r *http.Request, ws *workspace.Workspace, limit int64) (savedUpload, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return savedUpload{}, errNotMultipart
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return savedUpload{}, errNoUpload
		}
		if err != nil {
			return savedUpload{}, readError(err)
		}
		if !acceptsField(part) {
			_ = part.Close()
			continue
		}
		filename := part.FileName()
		path, n, err := ws.SaveUpload(part, filename, limit)
		_ = part.Close()
		if err != nil {
			return savedUpload{}, readError(err)
		}
		return savedUpload{path: path, filename: filename, size: n}, nil
	}
}

func acceptsField(part *multipart.Part) bool {
	if part.FileName() == "" {
		return false
	}
	name := part.FormName()
	for _, field := range uploadFields {
		if name == field {
			return true
		}
	}
	return false
}

func readError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || errors.Is(err, workspace.ErrTooLarge) || errors.Is(err, fileutil.ErrLimitExceeded) {
		return errUploadTooLarge
	}
	return fmt.Errorf("file was not saved correctly: %w", err)
}

func uploadStatus(err error) int {
	switch {
	case errors.Is(err, errUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoUpload), errors.Is(err, errNotMultipart):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// archiveEvidence copies uploads judged fake to the evidence archive. The
// returned location is empty when archiving is off or fails.
func (s *Server) archiveEvidence(ctx context.Context, result detection.Result, up detection.Upload, requestID string) archive.Location {
	if !result.IsFake || !s.archiver.Enabled() {
		return archive.Location{}
	}
	return s.archiver.Archive(ctx, up.Path, archive.Meta{
		RequestID: requestID,
		Filename:  up.Filename,
		MIME:      up.MIME,
		CreatedAt: time.Now().UTC(),
	})
}

// record persists a completed detection. Failures are logged and never change
// the response.
func (s *Server) record(ctx context.Context, result detection.Result, meta api.Meta, path string, location archive.Location) {
	if s.history == nil {
		return
	}
	logger := logging.WithContext(ctx, s.logger)
	sum := location.SHA256
	if sum == "" {
		var err error
		if sum, err = fileutil.HashFile(path); err != nil {
			logger.Debug("hash upload failed", logging.Error(err))
		}
	}
	rec := api.RecordFromResult(result, meta, sum, location.URI)
	if err := s.history.Add(context.WithoutCancel(ctx), rec); err != nil {
		logging.WarnWithContext(logger, "history insert failed", "history_insert_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check history.dsn and database health"),
			logging.String(logging.FieldImpact, "detection succeeded but will not appear in history"),
		)
	}
}

// alert delivers a notification in the background so a slow ntfy server never
// delays the response.
func (s *Server) alert(ctx context.Context, send func(context.Context) error) {
	if !s.notifier.Enabled() {
		return
	}
	logger := logging.WithContext(ctx, s.logger)
	ctx = context.WithoutCancel(ctx)
	s.alerts.Add(1)
	go func() {
		defer s.alerts.Done()
		if err := send(ctx); err != nil {
			logging.WarnWithContext(logger, "notification failed", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			)
		}
	}()
}
