// Package logs reads haul's log files for the CLI: the aria2 daemon log
// behind `haul service logs` and hauld's own file behind `haul logs`.
//
// Tail supports both a last-N view and offset-based continuation so a
// follow loop can poll for new lines without rereading the whole file.
// Callers supply context deadlines so polling shuts down cleanly when
// the CLI exits.
package logs
