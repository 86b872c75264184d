// Package preflight provides readiness checks for the directories, disk
// space, upload backends, and RPC endpoint that haul depends on.
//
// These checks run in two contexts:
//   - hauld logs a pass at startup so a broken environment surfaces in the
//     daemon log before the first download fails.
//   - The CLI "haul preflight" command renders each check for operators.
//
// Checks gated by a config toggle are skipped when the feature is off.
package preflight
