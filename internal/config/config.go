package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration shared by the daemon and CLI.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
	DownloadDir string `toml:"download_dir"`
}

// Aria2 contains configuration for the managed aria2 daemon and its RPC
// endpoint.
type Aria2 struct {
	Binary                 string `toml:"binary"`
	Host                   string `toml:"host"`
	RPCPort                int    `toml:"rpc_port"`
	RPCSecret              string `toml:"rpc_secret"`
	RPCTimeout             int    `toml:"rpc_timeout"`
	ConfPath               string `toml:"conf_path"`
	SessionPath            string `toml:"session_path"`
	LogPath                string `toml:"log_path"`
	MaxConcurrentDownloads int    `toml:"max_concurrent_downloads"`
	MaxConnectionPerServer int    `toml:"max_connection_per_server"`
	Split                  int    `toml:"split"`
	ContinueDownloads      bool   `toml:"continue_downloads"`
}

// Service contains configuration for the aria2 systemd unit lifecycle.
type Service struct {
	UnitName       string `toml:"unit_name"`
	StartTimeout   int    `toml:"start_timeout"`
	HealthInterval int    `toml:"health_interval"`
	StopGrace      int    `toml:"stop_grace"`
}

// Watcher contains configuration for the completion poll loop.
type Watcher struct {
	PollInterval   int `toml:"poll_interval"`
	AbandonedGrace int `toml:"abandoned_grace"`
	StoppedWindow  int `toml:"stopped_window"`
}

// Uploads contains configuration for the upload coordinator.
type Uploads struct {
	Enabled           bool `toml:"enabled"`
	DeleteAfterUpload bool `toml:"delete_after_upload"`
	MaxAttempts       int  `toml:"max_attempts"`
	BackoffBase       int  `toml:"backoff_base"`
	BackoffMax        int  `toml:"backoff_max"`
	AttemptTimeout    int  `toml:"attempt_timeout"`
	ClaimInterval     int  `toml:"claim_interval"`
}

// S3Backend contains configuration for the S3 upload backend. Credentials come
// from the AWS SDK default chain (env vars, shared config, IAM role).
type S3Backend struct {
	Enabled   bool   `toml:"enabled"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	PathStyle bool   `toml:"path_style"`
}

// SFTPBackend contains configuration for the SFTP upload backend.
type SFTPBackend struct {
	Enabled        bool   `toml:"enabled"`
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	User           string `toml:"user"`
	Password       string `toml:"password"`
	PrivateKeyPath string `toml:"private_key_path"`
	RemoteDir      string `toml:"remote_dir"`
}

// LocalBackend contains configuration for the local-directory archive backend.
type LocalBackend struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Backends groups the upload backend adapters.
type Backends struct {
	S3    S3Backend    `toml:"s3"`
	SFTP  SFTPBackend  `toml:"sftp"`
	Local LocalBackend `toml:"local"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	NtfyServer     string `toml:"ntfy_server"`
	RequestTimeout int    `toml:"request_timeout"`
	Downloads      bool   `toml:"downloads"`
	Uploads        bool   `toml:"uploads"`
	Service        bool   `toml:"service"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for hauld's own log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Config encapsulates all configuration values for haul.
//
// Configuration sections by subsystem:
//   - Paths: data, log, and download directories
//   - Aria2: the managed daemon's binary, RPC endpoint, and tuning
//   - Service: systemd unit name and lifecycle grace periods
//   - Watcher: completion poll loop timing
//   - Uploads: retry/backoff policy and local file deletion
//   - Backends: S3, SFTP, and local-directory upload adapters
//   - Notifications: ntfy push notification settings
//   - Logging: hauld log format, level, and rotation
type Config struct {
	Paths         Paths         `toml:"paths"`
	Aria2         Aria2         `toml:"aria2"`
	Service       Service       `toml:"service"`
	Watcher       Watcher       `toml:"watcher"`
	Uploads       Uploads       `toml:"uploads"`
	Backends      Backends      `toml:"backends"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/haul/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/haul/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("haul.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// DownloadDir is created on a best-effort basis so the daemon can run when
// the target storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.DownloadDir) != "" {
		_ = os.MkdirAll(c.Paths.DownloadDir, 0o755)
	}
	if c.Backends.Local.Enabled && strings.TrimSpace(c.Backends.Local.Dir) != "" {
		if err := os.MkdirAll(c.Backends.Local.Dir, 0o755); err != nil {
			return fmt.Errorf("create local backend directory %q: %w", c.Backends.Local.Dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the hauld state database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "haul.db")
}

// RPCSecretPath returns the file holding an install-generated RPC secret.
func (c *Config) RPCSecretPath() string {
	return filepath.Join(c.Paths.DataDir, "rpc_secret")
}

// SocketPath returns the unix socket hauld serves its control API on.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "hauld.sock")
}

// LockPath returns the lock file that enforces a single hauld instance.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "hauld.lock")
}

// PIDPath returns the file recording the running hauld process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "hauld.pid")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
