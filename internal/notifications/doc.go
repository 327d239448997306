// Package notifications publishes operator alerts to an ntfy topic.
//
// The server raises an alert whenever an upload is judged fake and,
// optionally, when a detection fails with a server-side error. When no topic
// is configured NewService returns a no-op implementation so callers never
// need a nil check.
package notifications
