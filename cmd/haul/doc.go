// Command haul is the CLI client for the hauld download daemon. It talks to
// a running daemon over the unix socket IPC layer, launches and terminates
// the daemon process for start/stop/restart, and falls back to direct config
// and ledger access for status when the daemon is down.
package main
