// Package frames decodes video uploads into evenly spaced, fixed-size RGB or
// BGR rasters by piping ffmpeg rawvideo output.
package frames

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"deepscan/internal/logging"
	"deepscan/internal/services"
)

const channels = 3

// Batch is an ordered sequence of decoded frames. Every frame holds exactly
// Width*Height*3 bytes in row-major, interleaved channel order.
type Batch struct {
	Width        int
	Height       int
	ChannelOrder string
	Frames       [][]byte
}

// Len returns the number of frames.
func (b Batch) Len() int { return len(b.Frames) }

// FrameSize returns the byte length of one frame.
func (b Batch) FrameSize() int { return b.Width * b.Height * channels }

// Options configures a Sampler.
type Options struct {
	FFmpeg       string
	Interval     int
	Width        int
	Height       int
	ChannelOrder string
	Logger       *slog.Logger
}

// Sampler keeps every Nth decoded frame, resized to a fixed resolution.
type Sampler struct {
	opts   Options
	logger *slog.Logger
}

// NewSampler constructs a Sampler. Zero values fall back to interval 10,
// 224x224 and BGR.
func NewSampler(opts Options) *Sampler {
	if strings.TrimSpace(opts.FFmpeg) == "" {
		opts.FFmpeg = "ffmpeg"
	}
	if opts.Interval <= 0 {
		opts.Interval = 10
	}
	if opts.Width <= 0 {
		opts.Width = 224
	}
	if opts.Height <= 0 {
		opts.Height = 224
	}
	opts.ChannelOrder = strings.ToLower(strings.TrimSpace(opts.ChannelOrder))
	if opts.ChannelOrder != "rgb" {
		opts.ChannelOrder = "bgr"
	}
	return &Sampler{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "frame-sampler")}
}

// Sample decodes path in stream order. Decoding stops at end of stream or at
// the first decoder failure; frames read before a failure are returned. A
// failure before any frame was read is a video_decode error. An empty batch
// with a nil error means the stream held no decodable frames.
func (s *Sampler) Sample(ctx context.Context, path string) (Batch, error) {
	batch := Batch{Width: s.opts.Width, Height: s.opts.Height, ChannelOrder: s.opts.ChannelOrder}

	cmd := exec.CommandContext(ctx, s.opts.FFmpeg, s.args(path)...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return batch, fmt.Errorf("ffmpeg sample frames: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return batch, services.Wrap(services.KindVideoDecode, "ffmpeg sample frames", "", err)
	}

	frameSize := batch.FrameSize()
	var readErr error
	for {
		frame := make([]byte, frameSize)
		if _, err := io.ReadFull(stdout, frame); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				readErr = err
			}
			break
		}
		batch.Frames = append(batch.Frames, frame)
	}
	// Drain so ffmpeg never blocks on a full pipe before Wait.
	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Batch{}, ctxErr
	}
	if waitErr == nil && readErr != nil {
		waitErr = readErr
	}
	if waitErr != nil {
		detail := strings.TrimSpace(stderr.String())
		if batch.Len() == 0 {
			return batch, services.Wrap(services.KindVideoDecode, "ffmpeg sample frames", detail, waitErr)
		}
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "frame decode stopped early; using partial batch", "frame_decode_partial",
			logging.Int("frames", batch.Len()),
			logging.String("stderr", detail),
			logging.Error(waitErr),
			logging.String(logging.FieldImpact, "video confidence uses the frames decoded so far"),
		)
	}
	s.logger.Debug("frames sampled",
		logging.String("path", path),
		logging.Int("frames", batch.Len()),
		logging.Int("interval", s.opts.Interval),
	)
	return batch, nil
}

func (s *Sampler) args(path string) []string {
	filter := fmt.Sprintf("select=not(mod(n\\,%d)),scale=%d:%d:flags=bilinear", s.opts.Interval, s.opts.Width, s.opts.Height)
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-xerror",
		"-i", path,
		"-map", "0:v:0",
		"-an", "-sn", "-dn",
		"-vf", filter,
		"-fps_mode", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", s.opts.ChannelOrder + "24",
		"-",
	}
}
