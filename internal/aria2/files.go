package aria2

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DeleteTaskFiles removes a finished task's payload from disk along with
// aria2's .aria2 control files, then prunes directories left empty. Files
// resolving outside downloadDir are refused rather than skipped, since a
// task that escapes its download directory points at a configuration
// problem worth surfacing.
func DeleteTaskFiles(t Task, downloadDir string) (int, error) {
	root, err := filepath.Abs(strings.TrimSpace(downloadDir))
	if err != nil {
		return 0, fmt.Errorf("resolve download dir: %w", err)
	}
	if root == "" || root == string(filepath.Separator) {
		return 0, fmt.Errorf("refusing to delete task files under %q", root)
	}

	removed := 0
	dirs := make(map[string]struct{})
	for _, file := range t.Files {
		if file.Path == "" {
			continue
		}
		path, err := filepath.Abs(file.Path)
		if err != nil {
			return removed, fmt.Errorf("resolve %s: %w", file.Path, err)
		}
		if !withinDir(root, path) {
			return removed, fmt.Errorf("file %s is outside download dir %s", path, root)
		}
		if err := removeIfExists(path); err != nil {
			return removed, err
		}
		if err := removeIfExists(path + ".aria2"); err != nil {
			return removed, err
		}
		removed++
		dirs[filepath.Dir(path)] = struct{}{}
	}

	for dir := range dirs {
		pruneEmptyDirs(dir, root)
	}
	return removed, nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// pruneEmptyDirs removes empty directories from dir upward, stopping at root.
func pruneEmptyDirs(dir, root string) {
	for withinDir(root, dir) && dir != root {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func withinDir(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}
