// Package audio separates the audio track of an upload into a mono PCM WAV
// file and reads it back as a normalized waveform.
//
// Extraction shells out to ffmpeg with a fixed contract: given an input and an
// output path, either a valid 16-bit mono file at the configured sample rate
// exists afterwards, or an audio_extraction error carrying ffmpeg's diagnostic
// is returned and no output file is left behind.
package audio
