// Package ffprobe wraps the ffprobe CLI so the detection pipelines can check
// which streams an upload carries before decoding it.
//
// Inspect returns typed stream and format records. The helpers answer the
// questions the dispatcher asks: is there a video stream, is there an audio
// stream, how long is the container, and roughly how many frames will the
// sampler see.
package ffprobe
