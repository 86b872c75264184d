package service

import (
	"fmt"
	"os"
	"path/filepath"

	"haul/internal/config"
)

// Handle carries the resolved file locations and tuning values for one
// managed aria2 instance. Templates render from it and the manager reads
// it instead of reaching back into the full config.
type Handle struct {
	Binary      string
	BinaryPath  string
	UnitName    string
	ConfPath    string
	SessionPath string
	LogPath     string
	DownloadDir string
	SecretPath  string

	Host      string
	RPCPort   int
	RPCSecret string

	MaxConcurrentDownloads int
	MaxConnectionPerServer int
	Split                  int
	ContinueDownloads      bool
}

// NewHandle derives a Handle from configuration. BinaryPath stays empty
// until Install resolves the binary on PATH.
func NewHandle(cfg *config.Config) Handle {
	return Handle{
		Binary:                 cfg.Aria2.Binary,
		UnitName:               cfg.Service.UnitName,
		ConfPath:               cfg.Aria2.ConfPath,
		SessionPath:            cfg.Aria2.SessionPath,
		LogPath:                cfg.Aria2.LogPath,
		DownloadDir:            cfg.Paths.DownloadDir,
		SecretPath:             cfg.RPCSecretPath(),
		Host:                   cfg.Aria2.Host,
		RPCPort:                cfg.Aria2.RPCPort,
		RPCSecret:              cfg.Aria2.RPCSecret,
		MaxConcurrentDownloads: cfg.Aria2.MaxConcurrentDownloads,
		MaxConnectionPerServer: cfg.Aria2.MaxConnectionPerServer,
		Split:                  cfg.Aria2.Split,
		ContinueDownloads:      cfg.Aria2.ContinueDownloads,
	}
}

// Endpoint returns the JSON-RPC URL the rendered configuration listens on.
func (h Handle) Endpoint() string {
	return fmt.Sprintf("http://%s:%d/jsonrpc", h.Host, h.RPCPort)
}

// UnitPath returns where the systemd user unit file lives for this handle.
func (h Handle) UnitPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, "systemd", "user", h.UnitName), nil
}
