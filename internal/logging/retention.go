package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PruneRotatedLogs deletes files in dir matching pattern whose mtime is
// older than maxAgeDays. The rotation library only prunes backups when
// a rotation fires, so backups from quiet periods need this sweep.
// Paths listed in exclude (the live log) are never removed. A
// maxAgeDays of zero disables pruning.
func PruneRotatedLogs(logger *slog.Logger, dir, pattern string, maxAgeDays int, exclude ...string) {
	dir = strings.TrimSpace(dir)
	if dir == "" || maxAgeDays <= 0 {
		return
	}
	if logger == nil {
		logger = NewNop()
	}

	keep := make(map[string]struct{}, len(exclude))
	for _, path := range exclude {
		if abs, err := filepath.Abs(strings.TrimSpace(path)); err == nil {
			keep[abs] = struct{}{}
		}
	}

	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ok, err := filepath.Match(pattern, entry.Name()); err != nil || !ok {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if _, skip := keep[path]; skip {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			logger.Warn("log retention remove failed; file remains",
				String(FieldEventType, "log_retention_failed"),
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"))
			continue
		}
		logger.Info("log pruned",
			String(FieldEventType, "log_pruned"),
			String("path", path))
	}
}
