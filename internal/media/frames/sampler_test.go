package frames

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"deepscan/internal/services"
)

func writeStub(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestSampleReadsFixedSizeFrames(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	// 2x2 frames are 12 bytes; 40 bytes yields three whole frames and a
	// truncated tail that must be dropped.
	stub := writeStub(t, `printf "%s\n" "$*" > "`+argsFile+`"
head -c 40 /dev/zero
`)
	sampler := NewSampler(Options{FFmpeg: stub, Interval: 10, Width: 2, Height: 2, ChannelOrder: "RGB"})

	batch, err := sampler.Sample(context.Background(), "/uploads/clip.mp4")
	if err != nil {
		t.Fatalf("Sample returned error: %v", err)
	}
	if batch.Len() != 3 {
		t.Fatalf("expected 3 frames, got %d", batch.Len())
	}
	for i, frame := range batch.Frames {
		if len(frame) != 12 {
			t.Fatalf("frame %d has %d bytes", i, len(frame))
		}
	}
	if batch.ChannelOrder != "rgb" {
		t.Fatalf("unexpected channel order %q", batch.ChannelOrder)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	for _, want := range []string{"-i /uploads/clip.mp4", `select=not(mod(n\,10)),scale=2:2`, "-pix_fmt rgb24", "-f rawvideo"} {
		if !strings.Contains(string(args), want) {
			t.Fatalf("expected %q in ffmpeg args %q", want, args)
		}
	}
}

func TestSampleDefaultsToBGR(t *testing.T) {
	sampler := NewSampler(Options{})
	args := strings.Join(sampler.args("in.mp4"), " ")
	if !strings.Contains(args, "-pix_fmt bgr24") || !strings.Contains(args, "scale=224:224") {
		t.Fatalf("unexpected default args %q", args)
	}
}

func TestSampleStopsAtFirstDecodeError(t *testing.T) {
	args := NewSampler(Options{}).args("in.mp4")
	xerror, input := slices.Index(args, "-xerror"), slices.Index(args, "-i")
	if xerror < 0 || input < 0 || xerror > input {
		t.Fatalf("expected -xerror before the input, got %q", args)
	}
}

func TestSampleReturnsPartialBatchOnDecodeFailure(t *testing.T) {
	stub := writeStub(t, `head -c 24 /dev/zero
echo "corrupt packet" >&2
exit 1
`)
	sampler := NewSampler(Options{FFmpeg: stub, Width: 2, Height: 2})

	batch, err := sampler.Sample(context.Background(), "clip.mp4")
	if err != nil {
		t.Fatalf("expected partial batch without error, got %v", err)
	}
	if batch.Len() != 2 {
		t.Fatalf("expected 2 frames, got %d", batch.Len())
	}
}

func TestSampleFailsWhenNothingDecodes(t *testing.T) {
	stub := writeStub(t, `echo "clip.mp4: Invalid data found when processing input" >&2
exit 1
`)
	sampler := NewSampler(Options{FFmpeg: stub, Width: 2, Height: 2})

	_, err := sampler.Sample(context.Background(), "clip.mp4")
	if !services.IsKind(err, services.KindVideoDecode) {
		t.Fatalf("expected video_decode error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid data") {
		t.Fatalf("expected stderr diagnostic, got %v", err)
	}
}

func TestSampleEmptyStreamIsNotAnError(t *testing.T) {
	stub := writeStub(t, "exit 0\n")
	sampler := NewSampler(Options{FFmpeg: stub, Width: 2, Height: 2})

	batch, err := sampler.Sample(context.Background(), "clip.mp4")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if batch.Len() != 0 {
		t.Fatalf("expected empty batch, got %d frames", batch.Len())
	}
}
