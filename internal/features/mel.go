package features

import "math"

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melFSp      = 200.0 / 3.0
	melMinLogHz = 1000.0
	melMinLog   = melMinLogHz / melFSp
)

var melLogStep = math.Log(6.4) / 27.0

func hzToMel(hz float64) float64 {
	if hz >= melMinLogHz {
		return melMinLog + math.Log(hz/melMinLogHz)/melLogStep
	}
	return hz / melFSp
}

func melToHz(mel float64) float64 {
	if mel >= melMinLog {
		return melMinLogHz * math.Exp(melLogStep*(mel-melMinLog))
	}
	return melFSp * mel
}

// melFilterbank returns nMels triangular filters over the nFFT/2+1 STFT bins
// spanning 0 Hz to Nyquist, each scaled to unit area (Slaney normalization).
func melFilterbank(sampleRate, nFFT, nMels int) [][]float64 {
	nFreq := nFFT/2 + 1
	nyquist := float64(sampleRate) / 2

	fftFreqs := make([]float64, nFreq)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * nyquist / float64(nFreq-1)
	}

	maxMel := hzToMel(nyquist)
	melF := make([]float64, nMels+2)
	for i := range melF {
		melF[i] = melToHz(maxMel * float64(i) / float64(nMels+1))
	}

	bank := make([][]float64, nMels)
	for i := range bank {
		lowerWidth := melF[i+1] - melF[i]
		upperWidth := melF[i+2] - melF[i+1]
		enorm := 2.0 / (melF[i+2] - melF[i])
		row := make([]float64, nFreq)
		for k, f := range fftFreqs {
			lower := (f - melF[i]) / lowerWidth
			upper := (melF[i+2] - f) / upperWidth
			if w := math.Min(lower, upper); w > 0 {
				row[k] = w * enorm
			}
		}
		bank[i] = row
	}
	return bank
}

// dctBasis returns the first nOut rows of the orthonormal DCT-II matrix of size n.
func dctBasis(nOut, n int) [][]float64 {
	basis := make([][]float64, nOut)
	for k := range basis {
		scale := math.Sqrt(2.0 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1.0 / float64(n))
		}
		row := make([]float64, n)
		for j := range row {
			row[j] = scale * math.Cos(math.Pi*float64(k)*(2*float64(j)+1)/(2*float64(n)))
		}
		basis[k] = row
	}
	return basis
}

// hannPeriodic returns the periodic (DFT-even) Hann window of length n.
func hannPeriodic(n int) []float64 {
	window := make([]float64, n)
	for i := range window {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return window
}
