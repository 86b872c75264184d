// Package service manages the aria2 daemon as a systemd user unit.
//
// The manager renders the aria2 configuration and unit file, drives
// systemctl for lifecycle transitions, and verifies liveness over the
// RPC endpoint rather than trusting unit state alone. Stop attempts a
// graceful RPC shutdown (session save included) before falling back to
// systemctl.
package service
