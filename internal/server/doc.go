// Package server exposes the detector over HTTP.
//
// Routes:
//   - POST /detect          MIME-dispatched detection (form field "file", or the legacy "video")
//   - POST /detect/video    force the video pipeline
//   - POST /detect/audio    force the audio pipeline
//   - POST /detect/dual     legacy dual pipeline; one modality may degrade to null
//   - GET  /api/health      liveness, always unauthenticated
//   - GET  /api/status      dependency, directory and model endpoint report
//   - GET  /api/history     recent detections, newest first (?limit=N)
//   - GET  /api/history/{id}
//   - DELETE /api/history/{id}
//
// Every upload is written into its own workspace under paths.temp_dir and the
// workspace is removed before the handler returns, whatever the outcome.
//
// Run wires configuration, logging, the history store, the evidence archive,
// the retention pruner and the HTTP listener into one process guarded by a
// lock file in the data directory.
package server
