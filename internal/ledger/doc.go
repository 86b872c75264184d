// Package ledger persists haul's durable state in SQLite: the set of
// download completions already observed (one event row per gid, ever) and
// the upload jobs derived from them. The events table doubles as the
// watcher's seen-set so completion handling stays exactly-once across
// daemon restarts.
package ledger
