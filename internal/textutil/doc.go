// Package textutil provides small formatting helpers for CLI output:
// human-readable byte sizes, speeds, durations, and string truncation.
package textutil
