// Package api defines the wire-format types shared by the HTTP server, the
// remote CLI client and command output, plus converters from internal
// detection and history models.
//
// # Key Types
//
// DetectionResult: the verdict returned for one upload. The
// video_confidence, audio_confidence and is_fake fields keep the names and
// null semantics existing clients rely on; an absent confidence is JSON null.
//
// HistoryRecord: a stored detection as listed by /api/history.
//
// StatusResponse: dependency, model endpoint and storage readiness.
//
// ErrorResponse: request failures carry a human readable detail and, for
// pipeline failures, the error kind.
//
// # Design Notes
//
// Tags are snake_case throughout to match the detection result contract.
// Timestamps use RFC3339 with milliseconds.
package api
