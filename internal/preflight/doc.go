// Package preflight provides readiness checks for the binaries, directories
// and model endpoints deepscan depends on.
//
// These checks run in two contexts:
//   - The server logs a report at startup and serves it from /api/status.
//   - The CLI "deepscan status" command renders the same report locally when
//     no server address is given.
//
// Checks never fail the process; they only describe what is missing.
package preflight
