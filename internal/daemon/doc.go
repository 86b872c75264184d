// Package daemon coordinates the long-running hauld process.
//
// It wires the ledger, the aria2 RPC client, the service manager, the
// completion watcher, and the upload coordinator into a single lifecycle
// with flock-based locking to prevent multiple instances. The daemon also
// exposes the operation surface the IPC layer calls: download control,
// service lifecycle, upload views, and diagnostics.
//
// Keep orchestration logic here: polling, retry policy, and systemd details
// live in their own packages while the daemon focuses on startup, shutdown,
// and high level coordination.
package daemon
