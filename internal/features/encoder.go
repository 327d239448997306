package features

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"

	"deepscan/internal/media/audio"
)

const (
	// amin guards log10 against zero power.
	amin = 1e-10
	// topDB is the dynamic range kept below the loudest mel band.
	topDB = 80.0
)

// Options describes the feature shape. Zero values take the defaults used by
// the audio classifier: 16 kHz, 40 coefficients, 100 steps, 2048-point FFT,
// hop 512 and 128 mel bands.
type Options struct {
	SampleRate int
	NMFCC      int
	TimeSteps  int
	NFFT       int
	HopLength  int
	NMels      int
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = 16000
	}
	if o.NMFCC <= 0 {
		o.NMFCC = 40
	}
	if o.TimeSteps <= 0 {
		o.TimeSteps = 100
	}
	if o.NFFT <= 0 {
		o.NFFT = 2048
	}
	if o.HopLength <= 0 {
		o.HopLength = 512
	}
	if o.NMels <= 0 {
		o.NMels = 128
	}
	return o
}

// Encoder computes MFCC matrices. It holds only precomputed read-only tables
// and is safe for concurrent use.
type Encoder struct {
	opts   Options
	window []float64
	mel    [][]float64
	dct    [][]float64
	ffts   sync.Pool
}

// NewEncoder precomputes the window, mel filterbank and DCT basis.
func NewEncoder(opts Options) (*Encoder, error) {
	opts = opts.withDefaults()
	if opts.NMFCC > opts.NMels {
		return nil, fmt.Errorf("features: n_mfcc %d exceeds n_mels %d", opts.NMFCC, opts.NMels)
	}
	if opts.NFFT < 2 || opts.NFFT%2 != 0 {
		return nil, fmt.Errorf("features: n_fft must be even, got %d", opts.NFFT)
	}
	enc := &Encoder{
		opts:   opts,
		window: hannPeriodic(opts.NFFT),
		mel:    melFilterbank(opts.SampleRate, opts.NFFT, opts.NMels),
		dct:    dctBasis(opts.NMFCC, opts.NMels),
	}
	nfft := opts.NFFT
	enc.ffts.New = func() any { return fourier.NewFFT(nfft) }
	return enc, nil
}

// Encode returns a TimeSteps x NMFCC matrix for wave. The same input always
// produces the same output.
func (e *Encoder) Encode(wave audio.Waveform) (Matrix, error) {
	if wave.SampleRate != e.opts.SampleRate {
		return Matrix{}, fmt.Errorf("features: waveform sample rate %d, encoder expects %d", wave.SampleRate, e.opts.SampleRate)
	}

	melDB := e.logMelSpectrogram(wave.Samples)

	out := NewMatrix(e.opts.TimeSteps, e.opts.NMFCC)
	steps := min(len(melDB), e.opts.TimeSteps)
	for t := range steps {
		row := out.Row(t)
		frame := melDB[t]
		for k, basis := range e.dct {
			var sum float64
			for m, v := range frame {
				sum += basis[m] * v
			}
			row[k] = float32(sum)
		}
	}
	return out, nil
}

// logMelSpectrogram returns frames x mels decibel values.
func (e *Encoder) logMelSpectrogram(samples []float32) [][]float64 {
	nfft := e.opts.NFFT
	hop := e.opts.HopLength
	pad := nfft / 2

	length := max(len(samples), e.opts.SampleRate)
	// Centre the frames with zero padding on both sides.
	padded := make([]float64, length+2*pad)
	for i, s := range samples {
		padded[pad+i] = float64(s)
	}
	frames := 1 + (len(padded)-nfft)/hop

	fft := e.ffts.Get().(*fourier.FFT)
	defer e.ffts.Put(fft)

	seq := make([]float64, nfft)
	power := make([]float64, nfft/2+1)
	var coeffs []complex128

	out := make([][]float64, frames)
	peak := math.Inf(-1)
	for f := range frames {
		start := f * hop
		for i := range seq {
			seq[i] = padded[start+i] * e.window[i]
		}
		coeffs = fft.Coefficients(coeffs, seq)
		for k, c := range coeffs {
			re, im := real(c), imag(c)
			power[k] = re*re + im*im
		}
		row := make([]float64, len(e.mel))
		for m, filter := range e.mel {
			var energy float64
			for k, w := range filter {
				if w != 0 {
					energy += w * power[k]
				}
			}
			db := 10 * math.Log10(math.Max(energy, amin))
			row[m] = db
			if db > peak {
				peak = db
			}
		}
		out[f] = row
	}

	floor := peak - topDB
	for _, row := range out {
		for m, v := range row {
			if v < floor {
				row[m] = floor
			}
		}
	}
	return out
}
