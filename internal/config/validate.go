package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Unit names end up on a systemctl command line, so the accepted character
// set excludes shell metacharacters and path separators.
var unitNamePattern = regexp.MustCompile(`^[A-Za-z0-9:_.@-]+$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAria2(); err != nil {
		return err
	}
	if err := c.validateService(); err != nil {
		return err
	}
	if err := c.validateWatcher(); err != nil {
		return err
	}
	if err := c.validateUploads(); err != nil {
		return err
	}
	if err := c.validateBackends(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		return errors.New("paths.download_dir must be set")
	}
	return nil
}

func (c *Config) validateAria2() error {
	if strings.TrimSpace(c.Aria2.Binary) == "" {
		return errors.New("aria2.binary must be set")
	}
	if c.Aria2.RPCPort < 1 || c.Aria2.RPCPort > 65535 {
		return fmt.Errorf("aria2.rpc_port must be between 1 and 65535, got %d", c.Aria2.RPCPort)
	}
	return ensurePositiveMap(map[string]int{
		"aria2.rpc_timeout":              c.Aria2.RPCTimeout,
		"aria2.max_concurrent_downloads": c.Aria2.MaxConcurrentDownloads,
		"aria2.max_connection_per_server": c.Aria2.MaxConnectionPerServer,
		"aria2.split":                    c.Aria2.Split,
	})
}

func (c *Config) validateService() error {
	if !unitNamePattern.MatchString(c.Service.UnitName) {
		return fmt.Errorf("service.unit_name %q contains invalid characters", c.Service.UnitName)
	}
	return ensurePositiveMap(map[string]int{
		"service.start_timeout":   c.Service.StartTimeout,
		"service.health_interval": c.Service.HealthInterval,
		"service.stop_grace":      c.Service.StopGrace,
	})
}

func (c *Config) validateWatcher() error {
	return ensurePositiveMap(map[string]int{
		"watcher.poll_interval":   c.Watcher.PollInterval,
		"watcher.abandoned_grace": c.Watcher.AbandonedGrace,
		"watcher.stopped_window":  c.Watcher.StoppedWindow,
	})
}

func (c *Config) validateUploads() error {
	if err := ensurePositiveMap(map[string]int{
		"uploads.max_attempts":    c.Uploads.MaxAttempts,
		"uploads.backoff_base":    c.Uploads.BackoffBase,
		"uploads.backoff_max":     c.Uploads.BackoffMax,
		"uploads.attempt_timeout": c.Uploads.AttemptTimeout,
		"uploads.claim_interval":  c.Uploads.ClaimInterval,
	}); err != nil {
		return err
	}
	if c.Uploads.BackoffMax < c.Uploads.BackoffBase {
		return errors.New("uploads.backoff_max must be greater than or equal to uploads.backoff_base")
	}
	if c.Uploads.Enabled && !c.Backends.S3.Enabled && !c.Backends.SFTP.Enabled && !c.Backends.Local.Enabled {
		return errors.New("uploads.enabled requires at least one enabled backend")
	}
	return nil
}

func (c *Config) validateBackends() error {
	if c.Backends.S3.Enabled {
		if c.Backends.S3.Bucket == "" {
			return errors.New("backends.s3.bucket must be set when backends.s3.enabled is true")
		}
	}
	if c.Backends.SFTP.Enabled {
		if c.Backends.SFTP.Host == "" {
			return errors.New("backends.sftp.host must be set when backends.sftp.enabled is true")
		}
		if c.Backends.SFTP.User == "" {
			return errors.New("backends.sftp.user must be set when backends.sftp.enabled is true")
		}
		if c.Backends.SFTP.Password == "" && strings.TrimSpace(c.Backends.SFTP.PrivateKeyPath) == "" {
			return errors.New("backends.sftp requires a password or private_key_path when enabled (or set HAUL_SFTP_PASSWORD)")
		}
		if c.Backends.SFTP.RemoteDir == "" {
			return errors.New("backends.sftp.remote_dir must be set when backends.sftp.enabled is true")
		}
		if c.Backends.SFTP.Port < 1 || c.Backends.SFTP.Port > 65535 {
			return fmt.Errorf("backends.sftp.port must be between 1 and 65535, got %d", c.Backends.SFTP.Port)
		}
	}
	if c.Backends.Local.Enabled {
		if strings.TrimSpace(c.Backends.Local.Dir) == "" {
			return errors.New("backends.local.dir must be set when backends.local.enabled is true")
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
