// Package services defines shared utilities consumed by the detection
// pipelines and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp request IDs and modality names for logging.
//   - The pipeline error taxonomy: a typed Error carrying an ErrorKind so the
//     dispatcher can tell a degraded modality from a programming error, and the
//     transport can pick a status code.
package services
