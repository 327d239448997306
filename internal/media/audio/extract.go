package audio

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"deepscan/internal/logging"
	"deepscan/internal/services"
)

// Extractor converts any media container into a mono pcm_s16le WAV file.
type Extractor struct {
	ffmpeg     string
	sampleRate int
	logger     *slog.Logger
}

// NewExtractor constructs an Extractor. sampleRate defaults to 16000.
func NewExtractor(ffmpeg string, sampleRate int, logger *slog.Logger) *Extractor {
	if strings.TrimSpace(ffmpeg) == "" {
		ffmpeg = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Extractor{ffmpeg: ffmpeg, sampleRate: sampleRate, logger: logging.NewComponentLogger(logger, "audio-extractor")}
}

// Extract writes the first audio stream of source to dest, overwriting any
// existing file. On failure dest is removed.
func (e *Extractor) Extract(ctx context.Context, source, dest string) error {
	if strings.TrimSpace(source) == "" || strings.TrimSpace(dest) == "" {
		return errors.New("extract audio: source and destination required")
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(e.sampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		dest,
	}
	cmd := exec.CommandContext(ctx, e.ffmpeg, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(dest)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.KindAudioExtraction, "ffmpeg extract audio", strings.TrimSpace(stderr.String()), err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return services.Wrap(services.KindAudioExtraction, "ffmpeg extract audio", "output file missing", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(dest)
		return services.Errorf(services.KindAudioExtraction, "ffmpeg extract audio", "output file is empty")
	}
	e.logger.Debug("audio extracted",
		logging.String("source", source),
		logging.String("dest", dest),
		logging.Int64("bytes", info.Size()),
	)
	return nil
}

// Failure reasons reported by FailureReason.
const (
	ReasonNoAudioStream    = "no_audio_stream"
	ReasonDecodeError      = "decode_error"
	ReasonUnsupportedCodec = "unsupported_codec"
	ReasonExtractionFailed = "extraction_failed"
)

// FailureReason maps an extraction error to a short machine-readable reason
// based on ffmpeg's diagnostic text.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}
	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "matches no streams"),
		strings.Contains(message, "does not contain any stream"),
		strings.Contains(message, "stream map '0:a:0'"):
		return ReasonNoAudioStream
	case strings.Contains(message, "decoder") && strings.Contains(message, "not found"),
		strings.Contains(message, "unsupported codec"),
		strings.Contains(message, "unknown codec"):
		return ReasonUnsupportedCodec
	case strings.Contains(message, "invalid data found when processing input"),
		strings.Contains(message, "error while decoding"),
		strings.Contains(message, "could not find codec parameters"):
		return ReasonDecodeError
	default:
		return ReasonExtractionFailed
	}
}
