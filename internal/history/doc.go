// Package history persists completed detections.
//
// The default backend is an SQLite file under the data directory (modernc,
// no cgo). Deployments that share history between instances point the store
// at PostgreSQL instead. Both use the same schema and queries; placeholders
// are rewritten for the postgres dialect. A cron-driven Pruner removes
// records older than the retention window.
package history
