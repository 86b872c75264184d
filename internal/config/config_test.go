package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"haul/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "haul")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.DownloadDir != filepath.Join(tempHome, "downloads") {
		t.Fatalf("unexpected download dir: %q", cfg.Paths.DownloadDir)
	}
	if cfg.Aria2.RPCPort != 6800 {
		t.Fatalf("unexpected rpc port: %d", cfg.Aria2.RPCPort)
	}
	if cfg.Aria2.Binary != "aria2c" {
		t.Fatalf("unexpected binary: %q", cfg.Aria2.Binary)
	}
	if !strings.HasPrefix(cfg.Aria2.SessionPath, tempHome) {
		t.Fatalf("expected session path under home, got %q", cfg.Aria2.SessionPath)
	}
	if cfg.Uploads.Enabled {
		t.Fatal("expected uploads disabled by default")
	}
	if cfg.Backends.S3.Enabled || cfg.Backends.SFTP.Enabled || cfg.Backends.Local.Enabled {
		t.Fatal("expected all backends disabled by default")
	}
	if cfg.Service.UnitName != "aria2.service" {
		t.Fatalf("unexpected unit name: %q", cfg.Service.UnitName)
	}
	if cfg.Watcher.PollInterval != config.Default().Watcher.PollInterval {
		t.Fatalf("unexpected poll interval: %d", cfg.Watcher.PollInterval)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.DownloadDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "haul.toml")

	type payload struct {
		Paths struct {
			DownloadDir string `toml:"download_dir"`
		} `toml:"paths"`
		Aria2 struct {
			RPCPort   int    `toml:"rpc_port"`
			RPCSecret string `toml:"rpc_secret"`
		} `toml:"aria2"`
		Watcher struct {
			PollInterval int `toml:"poll_interval"`
		} `toml:"watcher"`
	}
	custom := payload{}
	custom.Paths.DownloadDir = filepath.Join(tempDir, "incoming")
	custom.Aria2.RPCPort = 6801
	custom.Aria2.RPCSecret = "sekrit"
	custom.Watcher.PollInterval = 2
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.DownloadDir != filepath.Join(tempDir, "incoming") {
		t.Fatalf("expected download dir override, got %q", cfg.Paths.DownloadDir)
	}
	if cfg.Aria2.RPCPort != 6801 {
		t.Fatalf("expected rpc port 6801, got %d", cfg.Aria2.RPCPort)
	}
	if cfg.Aria2.RPCSecret != "sekrit" {
		t.Fatalf("expected rpc secret from file, got %q", cfg.Aria2.RPCSecret)
	}
	if cfg.Watcher.PollInterval != 2 {
		t.Fatalf("expected poll interval 2, got %d", cfg.Watcher.PollInterval)
	}
	if cfg.Aria2.MaxConcurrentDownloads != config.Default().Aria2.MaxConcurrentDownloads {
		t.Fatalf("expected default max concurrent, got %d", cfg.Aria2.MaxConcurrentDownloads)
	}
}

func TestEnvFallbacksFillEmptySecrets(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("ARIA2_RPC_SECRET", "env-secret")
	t.Setenv("HAUL_SFTP_PASSWORD", "env-password")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Aria2.RPCSecret != "env-secret" {
		t.Fatalf("expected rpc secret from env, got %q", cfg.Aria2.RPCSecret)
	}
	if cfg.Backends.SFTP.Password != "env-password" {
		t.Fatalf("expected sftp password from env, got %q", cfg.Backends.SFTP.Password)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[aria2]") {
		t.Fatalf("sample config missing aria2 section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Aria2.RPCPort != 6800 {
		t.Fatalf("expected sample rpc port 6800, got %d", cfg.Aria2.RPCPort)
	}
	if cfg.Uploads.Enabled {
		t.Fatal("expected sample uploads disabled")
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Aria2.RPCPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range rpc port")
	}

	cfg = config.Default()
	cfg.Watcher.PollInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive poll interval")
	}

	cfg = config.Default()
	cfg.Uploads.BackoffMax = 1
	cfg.Uploads.BackoffBase = 10
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when backoff max below base")
	}

	cfg = config.Default()
	cfg.Uploads.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when uploads enabled without backends")
	}

	cfg = config.Default()
	cfg.Backends.SFTP.Enabled = true
	cfg.Backends.SFTP.User = "deploy"
	cfg.Backends.SFTP.Password = "pw"
	cfg.Backends.SFTP.RemoteDir = "/srv/files"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when sftp enabled without host")
	}

	cfg = config.Default()
	cfg.Service.UnitName = "aria2; rm -rf /"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unit name with shell metacharacters")
	}
}

func TestValidateAcceptsConfiguredBackends(t *testing.T) {
	cfg := config.Default()
	cfg.Uploads.Enabled = true
	cfg.Backends.S3.Enabled = true
	cfg.Backends.S3.Bucket = "archive"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg = config.Default()
	cfg.Uploads.Enabled = true
	cfg.Backends.Local.Enabled = true
	cfg.Backends.Local.Dir = "/srv/mirror"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}
