// Package upload moves finished downloads to configured destinations.
//
// The coordinator turns completion events into one durable job per enabled
// backend and works those jobs off with bounded retries and exponential
// backoff. Job state lives in the ledger, so attempts survive daemon
// restarts; local files are deleted only after every enabled backend has
// succeeded and deletion is switched on.
package upload
