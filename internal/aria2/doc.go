// Package aria2 implements the JSON-RPC 2.0 client for a managed aria2
// daemon.
//
// The client covers the download-control surface the daemon and CLI need:
// queueing URIs and torrents, polling status, pausing and removing
// transfers, session persistence, and shutdown. Every call injects the
// configured RPC secret and verifies that the response correlates to the
// request it was issued for. Errors are classified into unreachable,
// timeout, unauthorized, and structured remote failures so callers can
// decide between retrying, repairing configuration, and restarting the
// daemon.
//
// The client deliberately contains no retry logic. Lifecycle concerns such
// as backoff and daemon restarts live with the callers that own them.
package aria2
