package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"haul/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfgVal.Aria2.RPCSecret = "test-secret"
	cfgVal.Aria2.ConfPath = filepath.Join(base, "aria2.conf")
	cfgVal.Aria2.SessionPath = filepath.Join(base, "data", "aria2.session")
	cfgVal.Aria2.LogPath = filepath.Join(base, "logs", "aria2.log")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRPCSecret overrides the aria2 RPC secret on the test config.
func WithRPCSecret(secret string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Aria2.RPCSecret = secret
	}
}

// WithLocalBackend enables uploads into an archive directory under the
// test's temp root.
func WithLocalBackend() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Uploads.Enabled = true
		b.cfg.Backends.Local.Enabled = true
		b.cfg.Backends.Local.Dir = filepath.Join(b.baseDir, "archive")
	}
}

// WithFastRetries shrinks upload retry pacing so coordinator tests run
// without real waiting.
func WithFastRetries() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Uploads.MaxAttempts = 2
		b.cfg.Uploads.BackoffBase = 1
		b.cfg.Uploads.BackoffMax = 1
		b.cfg.Uploads.ClaimInterval = 1
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default haul external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"aria2c", "systemctl"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
