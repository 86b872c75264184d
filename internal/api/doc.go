// Package api defines wire-format types and converters shared by the IPC
// layer and the CLI. It translates internal models into transport-friendly
// DTOs so that command output and JSON rendering never couple to internal
// types.
//
// # Key Types
//
// DownloadTask: transport representation of one aria2 download with progress,
// speeds, and error details.
//
// UploadJob: one backend delivery of a completed download, including retry
// bookkeeping.
//
// DownloadEvent: a terminal download observation from the ledger.
//
// ServiceStatus: the managed aria2 unit's state, process info, and RPC
// health.
//
// # Design Notes
//
// DTOs use snake_case JSON tags matching hauld's log fields. Timestamps use
// RFC3339 with milliseconds. Enums (task status, job state, event kind) are
// exposed as lowercase strings.
package api
