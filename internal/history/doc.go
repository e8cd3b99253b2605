// Package history records evalpilot passes in SQLite for later inspection.
//
// Every pass writes one row plus an event per submission, promotion,
// retirement, and failure. The database is an audit log for operators and
// the `evalpilot history` command. It is never consulted when deciding what
// to submit or which exports to keep; the queue and filesystem remain the
// only sources of truth.
//
// Schema changes bump schemaVersion in schema.go; operators delete the
// database to adopt the new schema.
package history
