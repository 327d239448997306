// Package detection routes an upload to the video and audio pipelines and
// fuses their confidences into a verdict.
//
// Detect dispatches on the sniffed MIME type and runs exactly one pipeline;
// that pipeline's failure fails the request. DetectDual is the compatibility
// mode used for videos with an embedded audio track: both pipelines run
// concurrently and a classified failure in either leaves that modality's
// confidence absent instead of failing the request.
package detection
