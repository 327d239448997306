package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"deepscan/internal/config"
	"deepscan/internal/features"
	"deepscan/internal/inference"
	"deepscan/internal/logging"
	"deepscan/internal/media/audio"
	"deepscan/internal/media/ffprobe"
	"deepscan/internal/media/frames"
	"deepscan/internal/scoring"
	"deepscan/internal/services"
)

// ErrNoAudioStream is reported when the container holds no audio track.
var ErrNoAudioStream = errors.New("container has no audio stream")

// Upload is a saved media file handed over by the transport layer.
type Upload struct {
	Path     string
	MIME     string
	Filename string
	// WorkDir receives intermediate files. Empty means the detector's temp dir.
	WorkDir string
}

// FrameSampler decodes a video into a frame batch.
type FrameSampler interface {
	Sample(ctx context.Context, path string) (frames.Batch, error)
}

// AudioExtractor writes the audio track of source to dest as mono PCM WAV.
type AudioExtractor interface {
	Extract(ctx context.Context, source, dest string) error
}

// FeatureEncoder converts a waveform into a fixed-shape feature matrix.
type FeatureEncoder interface {
	Encode(wave audio.Waveform) (features.Matrix, error)
}

// VideoScorer reduces a frame batch to one probability.
type VideoScorer interface {
	Score(ctx context.Context, batch frames.Batch) (float64, error)
}

// AudioScorer reduces a feature matrix to one probability.
type AudioScorer interface {
	Score(ctx context.Context, m features.Matrix) (float64, error)
}

// ProbeFunc inspects a container before extraction.
type ProbeFunc func(ctx context.Context, path string) (ffprobe.Result, error)

// Pipelines holds the stages a Detector drives. Probe and ReadWAV are
// optional; without Probe the dual mode relies on extraction failing for
// files with no audio stream.
type Pipelines struct {
	Frames      FrameSampler
	Extractor   AudioExtractor
	ReadWAV     func(path string) (audio.Waveform, error)
	Encoder     FeatureEncoder
	VideoScorer VideoScorer
	AudioScorer AudioScorer
	Probe       ProbeFunc
}

// Detector runs detection requests. It holds no per-request state and is
// safe for concurrent use.
type Detector struct {
	pipelines  Pipelines
	thresholds Thresholds
	tempDir    string
	logger     *slog.Logger
}

// New wires the production pipelines from configuration and the loaded
// classifiers.
func New(cfg *config.Config, models *inference.Models, logger *slog.Logger) (*Detector, error) {
	if cfg == nil {
		return nil, errors.New("detector: config required")
	}
	if models == nil {
		return nil, errors.New("detector: models required")
	}
	encoder, err := features.NewEncoder(features.Options{
		SampleRate: cfg.Audio.SampleRate,
		NMFCC:      cfg.Audio.NMFCC,
		TimeSteps:  cfg.Audio.TimeSteps,
		NFFT:       cfg.Audio.NFFT,
		HopLength:  cfg.Audio.HopLength,
		NMels:      cfg.Audio.NMels,
	})
	if err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}
	ffprobeBinary := cfg.FFprobeBinary()
	pipelines := Pipelines{
		Frames: frames.NewSampler(frames.Options{
			FFmpeg:       cfg.FFmpegBinary(),
			Interval:     cfg.Video.FrameInterval,
			Width:        cfg.Video.FrameWidth,
			Height:       cfg.Video.FrameHeight,
			ChannelOrder: cfg.Video.ChannelOrder,
			Logger:       logger,
		}),
		Extractor:   audio.NewExtractor(cfg.FFmpegBinary(), cfg.Audio.SampleRate, logger),
		ReadWAV:     audio.ReadWAV,
		Encoder:     encoder,
		VideoScorer: scoring.NewVideoScorer(models.Video, logger),
		AudioScorer: scoring.NewAudioScorer(models.Audio, logger),
		Probe: func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, ffprobeBinary, path)
		},
	}
	thresholds := Thresholds{Video: cfg.Detection.VideoThreshold, Audio: cfg.Detection.AudioThreshold}
	return NewWithPipelines(pipelines, thresholds, cfg.Paths.TempDir, logger), nil
}

// NewWithPipelines builds a Detector from explicit stages.
func NewWithPipelines(p Pipelines, thresholds Thresholds, tempDir string, logger *slog.Logger) *Detector {
	if p.ReadWAV == nil {
		p.ReadWAV = audio.ReadWAV
	}
	if strings.TrimSpace(tempDir) == "" {
		tempDir = os.TempDir()
	}
	return &Detector{
		pipelines:  p,
		thresholds: thresholds,
		tempDir:    tempDir,
		logger:     logging.NewComponentLogger(logger, "detector"),
	}
}

// Thresholds returns the configured cutoffs.
func (d *Detector) Thresholds() Thresholds { return d.thresholds }

// Route maps a MIME type to the single pipeline that handles it.
func Route(mime string) (Modality, error) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch {
	case mime == "":
		return "", services.Errorf(services.KindUnsupportedMedia, "dispatch", "could not determine file type")
	case strings.HasPrefix(mime, "video/"):
		return ModalityVideo, nil
	case strings.HasPrefix(mime, "audio/"):
		return ModalityAudio, nil
	default:
		return "", services.Errorf(services.KindUnsupportedMedia, "dispatch", "unsupported file type %q: upload a valid audio or video file", mime)
	}
}

// Detect routes the upload by MIME type and runs exactly one pipeline. A
// failure of that pipeline is returned as the request's error.
func (d *Detector) Detect(ctx context.Context, up Upload) (Result, error) {
	modality, err := Route(up.MIME)
	if err != nil {
		d.logFailure(ctx, up, ModeAuto, err)
		return Result{}, err
	}
	return d.detectSingle(ctx, up, modality, ModeAuto)
}

// DetectModality runs the named pipeline without consulting the MIME type.
func (d *Detector) DetectModality(ctx context.Context, up Upload, modality Modality) (Result, error) {
	mode := ModeVideo
	switch modality {
	case ModalityVideo:
	case ModalityAudio:
		mode = ModeAudio
	default:
		return Result{}, services.Errorf(services.KindUnsupportedMedia, "dispatch", "unknown modality %q", modality)
	}
	return d.detectSingle(ctx, up, modality, mode)
}

func (d *Detector) detectSingle(ctx context.Context, up Upload, modality Modality, mode Mode) (Result, error) {
	started := time.Now()
	ctx = services.WithModality(ctx, string(modality))
	result := Result{
		Mode:  mode,
		MIME:  up.MIME,
		Video: absent(ReasonNotRequested),
		Audio: absent(ReasonNotRequested),
	}

	var (
		score float64
		err   error
	)
	if modality == ModalityVideo {
		score, err = d.runVideo(ctx, up)
		if errors.Is(err, scoring.ErrNoFrames) {
			err = services.Wrap(services.KindVideoDecode, "sample frames", "no decodable frames", err)
		}
	} else {
		score, err = d.runAudio(ctx, up)
	}
	if err != nil {
		d.logFailure(ctx, up, mode, err)
		return Result{}, err
	}
	if modality == ModalityVideo {
		result.Video = scored(score)
	} else {
		result.Audio = scored(score)
	}
	return d.finish(ctx, up, result, started), nil
}

// DetectDual runs both pipelines concurrently on one upload. Each worker
// returns its own outcome and both are joined before fusing. Classified
// pipeline failures leave that modality absent; unclassified failures and
// cancellation fail the request.
func (d *Detector) DetectDual(ctx context.Context, up Upload) (Result, error) {
	started := time.Now()
	type workerResult struct {
		outcome Outcome
		err     error
	}
	videoCh := make(chan workerResult, 1)
	audioCh := make(chan workerResult, 1)

	go func() {
		outcome, err := d.dualWorker(ctx, up, ModalityVideo, d.runVideo)
		videoCh <- workerResult{outcome: outcome, err: err}
	}()
	go func() {
		outcome, err := d.dualWorker(ctx, up, ModalityAudio, d.runAudioProbed)
		audioCh <- workerResult{outcome: outcome, err: err}
	}()
	video := <-videoCh
	audioRes := <-audioCh

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := errors.Join(video.err, audioRes.err); err != nil {
		d.logFailure(ctx, up, ModeDual, err)
		return Result{}, err
	}
	result := Result{
		Mode:  ModeDual,
		MIME:  up.MIME,
		Video: video.outcome,
		Audio: audioRes.outcome,
	}
	return d.finish(ctx, up, result, started), nil
}

type pipelineFunc func(ctx context.Context, up Upload) (float64, error)

func (d *Detector) dualWorker(ctx context.Context, up Upload, modality Modality, run pipelineFunc) (Outcome, error) {
	ctx = services.WithModality(ctx, string(modality))
	score, err := run(ctx, up)
	if err == nil {
		return scored(score), nil
	}
	if ctx.Err() != nil {
		return Outcome{}, ctx.Err()
	}
	reason, ok := absenceReason(err)
	if !ok {
		return Outcome{}, fmt.Errorf("%s pipeline: %w", modality, err)
	}
	logging.WarnWithContext(logging.WithContext(ctx, d.logger), "modality degraded to absent", "modality_degraded",
		logging.String("reason", reason),
		logging.Error(err),
		logging.String(logging.FieldImpact, "verdict uses the remaining modality only"),
	)
	return absent(reason), nil
}

func (d *Detector) runVideo(ctx context.Context, up Upload) (float64, error) {
	if d.pipelines.Frames == nil || d.pipelines.VideoScorer == nil {
		return 0, errors.New("video pipeline not configured")
	}
	batch, err := d.pipelines.Frames.Sample(ctx, up.Path)
	if err != nil {
		return 0, err
	}
	if batch.Len() == 0 {
		return 0, scoring.ErrNoFrames
	}
	return d.pipelines.VideoScorer.Score(ctx, batch)
}

// runAudioProbed skips extraction when the container has no audio stream.
// Probe failures are not fatal; extraction reports the real problem.
func (d *Detector) runAudioProbed(ctx context.Context, up Upload) (float64, error) {
	if d.pipelines.Probe != nil {
		probe, err := d.pipelines.Probe(ctx, up.Path)
		switch {
		case err != nil:
			d.logger.Debug("ffprobe failed; extracting anyway", logging.Error(err))
		case probe.AudioStreamCount() == 0:
			return 0, services.Wrap(services.KindAudioExtraction, "probe audio", "", ErrNoAudioStream)
		}
	}
	return d.runAudio(ctx, up)
}

func (d *Detector) runAudio(ctx context.Context, up Upload) (float64, error) {
	if d.pipelines.Extractor == nil || d.pipelines.Encoder == nil || d.pipelines.AudioScorer == nil {
		return 0, errors.New("audio pipeline not configured")
	}
	dir := up.WorkDir
	if strings.TrimSpace(dir) == "" {
		dir = d.tempDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create audio work dir: %w", err)
	}
	wavPath := filepath.Join(dir, "audio_"+uuid.NewString()+".wav")
	defer func() {
		if err := os.Remove(wavPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			d.logger.Warn("remove extracted audio failed", logging.String("path", wavPath), logging.Error(err))
		}
	}()

	if err := d.pipelines.Extractor.Extract(ctx, up.Path, wavPath); err != nil {
		return 0, err
	}
	wave, err := d.pipelines.ReadWAV(wavPath)
	if err != nil {
		return 0, services.Wrap(services.KindAudioExtraction, "read extracted audio", "", err)
	}
	matrix, err := d.pipelines.Encoder.Encode(wave)
	if err != nil {
		return 0, services.Wrap(services.KindAudioExtraction, "encode audio features", "", err)
	}
	return d.pipelines.AudioScorer.Score(ctx, matrix)
}

func (d *Detector) finish(ctx context.Context, up Upload, result Result, started time.Time) Result {
	result.IsFake = Fuse(result.Video.Confidence, result.Audio.Confidence, d.thresholds)
	result.ProcessingTime = time.Since(started)

	attrs := []logging.Attr{
		logging.String("file", up.Filename),
		logging.String("mime", up.MIME),
		logging.String("mode", string(result.Mode)),
		confidenceAttr("video_confidence", result.Video),
		confidenceAttr("audio_confidence", result.Audio),
		logging.Bool("is_fake", result.IsFake),
		logging.Int64("processing_ms", result.ProcessingTime.Milliseconds()),
		logging.String(logging.FieldEventType, "detection_complete"),
	}
	logging.WithContext(ctx, d.logger).Info("detection complete", logging.Args(attrs...)...)
	return result
}

func (d *Detector) logFailure(ctx context.Context, up Upload, mode Mode, err error) {
	kind, _ := services.KindOf(err)
	logging.ErrorWithContext(logging.WithContext(ctx, d.logger), "detection failed", "detection_failed",
		logging.String("file", up.Filename),
		logging.String("mime", up.MIME),
		logging.String("mode", string(mode)),
		logging.String("error_kind", string(kind)),
		logging.Error(err),
	)
}

func confidenceAttr(key string, o Outcome) logging.Attr {
	if o.Confidence.Present {
		return logging.Float64(key, o.Confidence.Value)
	}
	return logging.String(key, "absent:"+o.Reason)
}
