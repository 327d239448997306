package audio

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// Waveform is a mono signal with samples scaled to [-1, 1).
type Waveform struct {
	SampleRate int
	Samples    []float32
}

// Duration returns the waveform length in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// ReadWAV loads a PCM WAV file. Integer samples are divided by 2^(bits-1);
// multi-channel input is averaged down to mono.
func ReadWAV(path string) (Waveform, error) {
	file, err := os.Open(path)
	if err != nil {
		return Waveform{}, fmt.Errorf("read wav: %w", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return Waveform{}, fmt.Errorf("read wav %s: not a valid PCM wav file", path)
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("read wav %s: %w", path, err)
	}
	if buf == nil || buf.Format == nil {
		return Waveform{}, errors.New("read wav: missing format")
	}

	numChannels := buf.Format.NumChannels
	if numChannels <= 0 {
		numChannels = 1
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(decoder.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return Waveform{}, fmt.Errorf("read wav %s: unsupported bit depth %d", path, bitDepth)
	}
	scale := float32(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / numChannels
	samples := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range numChannels {
			sum += float32(buf.Data[i*numChannels+ch]) / scale
		}
		samples[i] = sum / float32(numChannels)
	}
	return Waveform{SampleRate: buf.Format.SampleRate, Samples: samples}, nil
}
