package detection

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"deepscan/internal/features"
	"deepscan/internal/logging"
	"deepscan/internal/media/audio"
	"deepscan/internal/media/ffprobe"
	"deepscan/internal/media/frames"
	"deepscan/internal/services"
)

type stubSampler struct {
	frames int
	err    error
	calls  atomic.Int32
}

func (s *stubSampler) Sample(_ context.Context, _ string) (frames.Batch, error) {
	s.calls.Add(1)
	batch := frames.Batch{Width: 224, Height: 224, ChannelOrder: "bgr"}
	for range s.frames {
		batch.Frames = append(batch.Frames, make([]byte, batch.FrameSize()))
	}
	return batch, s.err
}

type stubExtractor struct {
	err   error
	calls atomic.Int32
	dest  atomic.Value
}

func (s *stubExtractor) Extract(_ context.Context, _ string, dest string) error {
	s.calls.Add(1)
	s.dest.Store(dest)
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(dest, []byte("RIFF"), 0o644)
}

type stubVideoScorer struct {
	score  float64
	err    error
	frames atomic.Int32
}

func (s *stubVideoScorer) Score(_ context.Context, batch frames.Batch) (float64, error) {
	s.frames.Store(int32(batch.Len()))
	return s.score, s.err
}

type stubAudioScorer struct {
	score float64
	err   error
	steps atomic.Int32
	coefs atomic.Int32
}

func (s *stubAudioScorer) Score(_ context.Context, m features.Matrix) (float64, error) {
	s.steps.Store(int32(m.Steps))
	s.coefs.Store(int32(m.Coeffs))
	return s.score, s.err
}

type fixture struct {
	sampler   *stubSampler
	extractor *stubExtractor
	video     *stubVideoScorer
	audio     *stubAudioScorer
	probe     ProbeFunc
	tempDir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		sampler:   &stubSampler{frames: 31},
		extractor: &stubExtractor{},
		video:     &stubVideoScorer{score: 0.7},
		audio:     &stubAudioScorer{score: 0.2},
		tempDir:   t.TempDir(),
	}
}

func (f *fixture) detector(t *testing.T) *Detector {
	t.Helper()
	encoder, err := features.NewEncoder(features.Options{})
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	halfSecond := func(string) (audio.Waveform, error) {
		samples := make([]float32, 8000)
		for i := range samples {
			samples[i] = float32(i%50) / 100
		}
		return audio.Waveform{SampleRate: 16000, Samples: samples}, nil
	}
	return NewWithPipelines(Pipelines{
		Frames:      f.sampler,
		Extractor:   f.extractor,
		ReadWAV:     halfSecond,
		Encoder:     encoder,
		VideoScorer: f.video,
		AudioScorer: f.audio,
		Probe:       f.probe,
	}, Thresholds{Video: 0.4, Audio: 0.4}, f.tempDir, logging.NewNop())
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected %s to be empty, found %d entries", dir, len(entries))
	}
}

func TestDetectVideoByMIME(t *testing.T) {
	f := newFixture(t)
	result, err := f.detector(t).Detect(context.Background(), Upload{Path: "/uploads/clip.mp4", MIME: "video/mp4", Filename: "clip.mp4"})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if got := f.video.frames.Load(); got != 31 {
		t.Fatalf("expected video scorer to see 31 frames, got %d", got)
	}
	if !result.Video.Confidence.Present || result.Video.Confidence.Value != 0.7 {
		t.Fatalf("unexpected video outcome %+v", result.Video)
	}
	if result.Audio.Confidence.Present || result.Audio.Reason != ReasonNotRequested {
		t.Fatalf("audio should be absent and not requested, got %+v", result.Audio)
	}
	if f.extractor.calls.Load() != 0 {
		t.Fatal("audio pipeline should not run for a video MIME type")
	}
	if !result.IsFake || result.Mode != ModeAuto || result.Degraded() {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestDetectAudioByMIMEPadsShortClip(t *testing.T) {
	f := newFixture(t)
	f.audio.score = 0.55
	result, err := f.detector(t).Detect(context.Background(), Upload{Path: "/uploads/voice.wav", MIME: "audio/wav"})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if f.audio.steps.Load() != 100 || f.audio.coefs.Load() != 40 {
		t.Fatalf("expected a 100x40 matrix, got %dx%d", f.audio.steps.Load(), f.audio.coefs.Load())
	}
	if result.Video.Confidence.Present {
		t.Fatal("video confidence should be absent")
	}
	if !result.Audio.Confidence.Present || !result.IsFake {
		t.Fatalf("unexpected result %+v", result)
	}
	if f.sampler.calls.Load() != 0 {
		t.Fatal("video pipeline should not run for an audio MIME type")
	}
	dest, _ := f.extractor.dest.Load().(string)
	if filepath.Dir(dest) != f.tempDir {
		t.Fatalf("expected extracted audio under %s, got %s", f.tempDir, dest)
	}
	assertEmptyDir(t, f.tempDir)
}

func TestDetectRejectsUnsupportedMIME(t *testing.T) {
	for _, mime := range []string{"", "application/octet-stream"} {
		f := newFixture(t)
		_, err := f.detector(t).Detect(context.Background(), Upload{Path: "/uploads/blob", MIME: mime})
		if !services.IsKind(err, services.KindUnsupportedMedia) {
			t.Fatalf("mime %q: expected unsupported_media, got %v", mime, err)
		}
		if HTTPStatus(err) != 400 {
			t.Fatalf("mime %q: expected 400, got %d", mime, HTTPStatus(err))
		}
		if f.sampler.calls.Load() != 0 || f.extractor.calls.Load() != 0 {
			t.Fatalf("mime %q: no pipeline should run", mime)
		}
		assertEmptyDir(t, f.tempDir)
	}
}

func TestDetectSinglePipelineFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.extractor.err = services.Wrap(services.KindAudioExtraction, "ffmpeg extract audio", "Invalid data found when processing input", errors.New("exit status 1"))
	_, err := f.detector(t).Detect(context.Background(), Upload{Path: "/uploads/broken.mp3", MIME: "audio/mpeg"})
	if !services.IsKind(err, services.KindAudioExtraction) {
		t.Fatalf("expected audio_extraction error, got %v", err)
	}
	if HTTPStatus(err) != 500 {
		t.Fatalf("expected 500, got %d", HTTPStatus(err))
	}
	assertEmptyDir(t, f.tempDir)
}

func TestDetectEmptyVideoIsDecodeError(t *testing.T) {
	f := newFixture(t)
	f.sampler.frames = 0
	_, err := f.detector(t).Detect(context.Background(), Upload{Path: "/uploads/empty.mp4", MIME: "video/mp4"})
	if !services.IsKind(err, services.KindVideoDecode) {
		t.Fatalf("expected video_decode error, got %v", err)
	}
	if f.video.frames.Load() != 0 {
		t.Fatal("video scorer must not see an empty batch")
	}
}

func TestDetectModalityIgnoresMIME(t *testing.T) {
	f := newFixture(t)
	result, err := f.detector(t).DetectModality(context.Background(), Upload{Path: "/uploads/x.bin", MIME: "application/octet-stream"}, ModalityAudio)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if result.Mode != ModeAudio || !result.Audio.Confidence.Present || result.IsFake {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestDetectDualBothModalities(t *testing.T) {
	f := newFixture(t)
	result, err := f.detector(t).DetectDual(context.Background(), Upload{Path: "/uploads/clip.mp4", MIME: "video/mp4"})
	if err != nil {
		t.Fatalf("detect dual: %v", err)
	}
	if !result.Video.Confidence.Present || !result.Audio.Confidence.Present {
		t.Fatalf("expected both confidences, got %+v", result)
	}
	if result.Mode != ModeDual || !result.IsFake {
		t.Fatalf("unexpected result %+v", result)
	}
	assertEmptyDir(t, f.tempDir)
}

func TestDetectDualAudioFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.extractor.err = services.Wrap(services.KindAudioExtraction, "ffmpeg extract audio", "Error while decoding stream #0:1", errors.New("exit status 1"))
	result, err := f.detector(t).DetectDual(context.Background(), Upload{Path: "/uploads/clip.mp4", MIME: "video/mp4"})
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}
	if !result.Video.Confidence.Present {
		t.Fatal("video confidence should be present")
	}
	if result.Audio.Confidence.Present || result.Audio.Reason != audio.ReasonDecodeError {
		t.Fatalf("unexpected audio outcome %+v", result.Audio)
	}
	if !result.Degraded() || !result.IsFake {
		t.Fatalf("unexpected result %+v", result)
	}
	assertEmptyDir(t, f.tempDir)
}

func TestDetectDualVideoFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.sampler.frames = 0
	f.audio.score = 0.1
	result, err := f.detector(t).DetectDual(context.Background(), Upload{Path: "/uploads/clip.mp4", MIME: "video/mp4"})
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}
	if result.Video.Confidence.Present || result.Video.Reason != ReasonNoFrames {
		t.Fatalf("unexpected video outcome %+v", result.Video)
	}
	if result.IsFake {
		t.Fatal("verdict should rest on the low audio confidence alone")
	}
}

func TestDetectDualBothFailuresGiveNoVerdict(t *testing.T) {
	f := newFixture(t)
	f.video.err = services.Errorf(services.KindModelInference, "video classifier", "unavailable")
	f.audio.err = services.Errorf(services.KindModelInference, "audio classifier", "unavailable")
	result, err := f.detector(t).DetectDual(context.Background(), Upload{Path: "/uploads/clip.mp4", MIME: "video/mp4"})
	if err != nil {
		t.Fatalf("expected degraded success, got %v", err)
	}
	if result.Video.Confidence.Present || result.Audio.Confidence.Present || result.IsFake {
		t.Fatalf("expected no evidence and no fake verdict, got %+v", result)
	}
	if result.Video.Reason != "model_inference" || result.Audio.Reason != "model_inference" {
		t.Fatalf("unexpected reasons %q %q", result.Video.Reason, result.Audio.Reason)
	}
}

func TestDetectDualUnclassifiedErrorFails(t *testing.T) {
	f := newFixture(t)
	f.video.err = errors.New("unexpected programming error")
	_, err := f.detector(t).DetectDual(context.Background(), Upload{Path: "/uploads/clip.mp4", MIME: "video/mp4"})
	if err == nil {
		t.Fatal("expected unclassified error to fail the request")
	}
	if f.extractor.calls.Load() != 1 {
		t.Fatal("audio worker should still have run to completion")
	}
}

func TestDetectDualSkipsExtractionWithoutAudioStream(t *testing.T) {
	f := newFixture(t)
	f.probe = func(context.Context, string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video"}}}, nil
	}
	result, err := f.detector(t).DetectDual(context.Background(), Upload{Path: "/uploads/silent.mp4", MIME: "video/mp4"})
	if err != nil {
		t.Fatalf("detect dual: %v", err)
	}
	if result.Audio.Reason != audio.ReasonNoAudioStream {
		t.Fatalf("expected no_audio_stream, got %+v", result.Audio)
	}
	if f.extractor.calls.Load() != 0 {
		t.Fatal("extraction should be skipped when the probe finds no audio")
	}
}

func TestDetectDualCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.detector(t).DetectDual(ctx, Upload{Path: "/uploads/clip.mp4", MIME: "video/mp4"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDetectUsesUploadWorkDir(t *testing.T) {
	f := newFixture(t)
	work := t.TempDir()
	if _, err := f.detector(t).Detect(context.Background(), Upload{Path: "/uploads/a.wav", MIME: "audio/wav", WorkDir: work}); err != nil {
		t.Fatalf("detect: %v", err)
	}
	dest, _ := f.extractor.dest.Load().(string)
	if filepath.Dir(dest) != work {
		t.Fatalf("expected extracted audio in %s, got %s", work, dest)
	}
	assertEmptyDir(t, work)
}
