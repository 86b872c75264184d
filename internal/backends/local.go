package backends

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"haul/internal/config"
	"haul/internal/upload"
)

const localName = "local"

// Local archives finished downloads into a directory, typically on storage
// other than the download disk. Files are copied rather than moved; removal
// of the source stays with the coordinator's cleanup gate.
type Local struct {
	dir string
}

// NewLocal builds the local-directory backend.
func NewLocal(cfg config.LocalBackend) *Local {
	return &Local{dir: cfg.Dir}
}

func (l *Local) Name() string { return localName }

// Validate checks the archive directory is configured.
func (l *Local) Validate() error {
	if strings.TrimSpace(l.dir) == "" {
		return errors.New("local backend requires dir")
	}
	return nil
}

// Upload copies each file into dir/<gid>/. Re-running after a partial
// failure overwrites whatever the earlier attempt left behind.
func (l *Local) Upload(ctx context.Context, files []string, meta upload.Meta) error {
	target := filepath.Join(l.dir, meta.GID)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return upload.Transient(localName, fmt.Errorf("create %s: %w", target, err))
	}

	for _, src := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		dst := filepath.Join(target, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return upload.Permanent(localName, fmt.Errorf("source %s is gone: %w", src, err))
			}
			return upload.Transient(localName, fmt.Errorf("copy %s: %w", src, err))
		}
	}
	return nil
}

// copyFile streams src to dst and verifies size and SHA256 afterwards. The
// archive copy may be the only one left once cleanup deletes the download,
// so a silently corrupted copy must fail the attempt instead.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	readHash := sha256.New()
	writeHash := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, writeHash), io.TeeReader(in, readHash))
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != info.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("size mismatch: source %d bytes, copied %d", info.Size(), written)
	}
	if !bytes.Equal(readHash.Sum(nil), writeHash.Sum(nil)) {
		_ = os.Remove(dst)
		return errors.New("hash mismatch after copy")
	}
	return nil
}
