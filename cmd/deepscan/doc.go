// Command deepscan runs the deepfake detection server and offers local and
// remote access to detection, history and readiness checks.
//
//	deepscan serve                       start the HTTP server
//	deepscan detect clip.mp4 [--dual]    score a file locally or via --server
//	deepscan history list|show|rm|prune  browse stored detections
//	deepscan status                      dependency and model endpoint report
//	deepscan config init|validate        manage the configuration file
//	deepscan test-notify                 send a test ntfy alert
package main
