package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeAria2(); err != nil {
		return err
	}
	c.normalizeService()
	c.normalizeWatcher()
	c.normalizeUploads()
	if err := c.normalizeBackends(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAria2() error {
	var err error
	c.Aria2.Binary = strings.TrimSpace(c.Aria2.Binary)
	if c.Aria2.Binary == "" {
		c.Aria2.Binary = defaultAria2Binary
	}
	c.Aria2.Host = strings.TrimSpace(c.Aria2.Host)
	if c.Aria2.Host == "" {
		c.Aria2.Host = defaultAria2Host
	}
	if c.Aria2.RPCPort == 0 {
		c.Aria2.RPCPort = defaultAria2RPCPort
	}
	c.Aria2.RPCSecret = strings.TrimSpace(c.Aria2.RPCSecret)
	if c.Aria2.RPCSecret == "" {
		if value, ok := os.LookupEnv("ARIA2_RPC_SECRET"); ok {
			c.Aria2.RPCSecret = strings.TrimSpace(value)
		}
	}
	if c.Aria2.RPCSecret == "" {
		// Fall back to the secret generated at install time.
		if data, readErr := os.ReadFile(c.RPCSecretPath()); readErr == nil {
			c.Aria2.RPCSecret = strings.TrimSpace(string(data))
		}
	}
	if c.Aria2.RPCTimeout <= 0 {
		c.Aria2.RPCTimeout = defaultAria2RPCTimeout
	}
	if strings.TrimSpace(c.Aria2.ConfPath) == "" {
		c.Aria2.ConfPath = defaultAria2ConfPath
	}
	if c.Aria2.ConfPath, err = expandPath(c.Aria2.ConfPath); err != nil {
		return fmt.Errorf("aria2.conf_path: %w", err)
	}
	if strings.TrimSpace(c.Aria2.SessionPath) == "" {
		c.Aria2.SessionPath = defaultAria2Session
	}
	if c.Aria2.SessionPath, err = expandPath(c.Aria2.SessionPath); err != nil {
		return fmt.Errorf("aria2.session_path: %w", err)
	}
	if strings.TrimSpace(c.Aria2.LogPath) == "" {
		c.Aria2.LogPath = defaultAria2LogPath
	}
	if c.Aria2.LogPath, err = expandPath(c.Aria2.LogPath); err != nil {
		return fmt.Errorf("aria2.log_path: %w", err)
	}
	if c.Aria2.MaxConcurrentDownloads <= 0 {
		c.Aria2.MaxConcurrentDownloads = defaultMaxConcurrent
	}
	if c.Aria2.MaxConnectionPerServer <= 0 {
		c.Aria2.MaxConnectionPerServer = defaultMaxConnPerHost
	}
	if c.Aria2.Split <= 0 {
		c.Aria2.Split = defaultSplit
	}
	return nil
}

func (c *Config) normalizeService() {
	c.Service.UnitName = strings.TrimSpace(c.Service.UnitName)
	if c.Service.UnitName == "" {
		c.Service.UnitName = defaultUnitName
	}
	if !strings.Contains(c.Service.UnitName, ".") {
		c.Service.UnitName += ".service"
	}
	if c.Service.StartTimeout <= 0 {
		c.Service.StartTimeout = defaultStartTimeout
	}
	if c.Service.HealthInterval <= 0 {
		c.Service.HealthInterval = defaultHealthInterval
	}
	if c.Service.StopGrace <= 0 {
		c.Service.StopGrace = defaultStopGrace
	}
}

func (c *Config) normalizeWatcher() {
	if c.Watcher.PollInterval <= 0 {
		c.Watcher.PollInterval = defaultPollInterval
	}
	if c.Watcher.AbandonedGrace <= 0 {
		c.Watcher.AbandonedGrace = defaultAbandonedGrace
	}
	if c.Watcher.StoppedWindow <= 0 {
		c.Watcher.StoppedWindow = defaultStoppedWindow
	}
}

func (c *Config) normalizeUploads() {
	if c.Uploads.MaxAttempts <= 0 {
		c.Uploads.MaxAttempts = defaultUploadMaxAttempts
	}
	if c.Uploads.BackoffBase <= 0 {
		c.Uploads.BackoffBase = defaultUploadBackoffBase
	}
	if c.Uploads.BackoffMax <= 0 {
		c.Uploads.BackoffMax = defaultUploadBackoffMax
	}
	if c.Uploads.BackoffMax < c.Uploads.BackoffBase {
		c.Uploads.BackoffMax = c.Uploads.BackoffBase
	}
	if c.Uploads.AttemptTimeout <= 0 {
		c.Uploads.AttemptTimeout = defaultUploadAttemptTimeout
	}
	if c.Uploads.ClaimInterval <= 0 {
		c.Uploads.ClaimInterval = defaultUploadClaimInterval
	}
}

func (c *Config) normalizeBackends() error {
	var err error
	c.Backends.S3.Bucket = strings.TrimSpace(c.Backends.S3.Bucket)
	c.Backends.S3.Prefix = strings.Trim(strings.TrimSpace(c.Backends.S3.Prefix), "/")
	c.Backends.S3.Region = strings.TrimSpace(c.Backends.S3.Region)
	c.Backends.S3.Endpoint = strings.TrimSpace(c.Backends.S3.Endpoint)

	c.Backends.SFTP.Host = strings.TrimSpace(c.Backends.SFTP.Host)
	c.Backends.SFTP.User = strings.TrimSpace(c.Backends.SFTP.User)
	if c.Backends.SFTP.Port <= 0 {
		c.Backends.SFTP.Port = defaultSFTPPort
	}
	if c.Backends.SFTP.Password == "" {
		if value, ok := os.LookupEnv("HAUL_SFTP_PASSWORD"); ok {
			c.Backends.SFTP.Password = value
		}
	}
	if strings.TrimSpace(c.Backends.SFTP.PrivateKeyPath) != "" {
		if c.Backends.SFTP.PrivateKeyPath, err = expandPath(c.Backends.SFTP.PrivateKeyPath); err != nil {
			return fmt.Errorf("backends.sftp.private_key_path: %w", err)
		}
	}
	c.Backends.SFTP.RemoteDir = strings.TrimSpace(c.Backends.SFTP.RemoteDir)

	if strings.TrimSpace(c.Backends.Local.Dir) != "" {
		if c.Backends.Local.Dir, err = expandPath(c.Backends.Local.Dir); err != nil {
			return fmt.Errorf("backends.local.dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.NtfyServer = strings.TrimRight(strings.TrimSpace(c.Notifications.NtfyServer), "/")
	if c.Notifications.NtfyServer == "" {
		c.Notifications.NtfyServer = defaultNtfyServer
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSize
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = defaultLogBackups
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = defaultLogMaxAge
	}
}
