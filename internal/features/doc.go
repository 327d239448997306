// Package features turns mono waveforms into fixed-shape cepstral matrices.
//
// The encoder reproduces the MFCC pipeline the audio classifier was trained
// on: a centred STFT with a periodic Hann window, a Slaney-style mel
// filterbank, power-to-decibel conversion with an 80 dB floor, and an
// orthonormal DCT-II. Waveforms shorter than one second are zero padded to
// one second first. The result is transposed to time steps by coefficients
// and padded with zero rows or truncated to exactly the configured number of
// time steps.
package features
