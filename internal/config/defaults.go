package config

const (
	defaultDataDir     = "~/.local/share/haul"
	defaultLogDir      = "~/.local/share/haul/logs"
	defaultDownloadDir = "~/downloads"

	defaultAria2Binary     = "aria2c"
	defaultAria2Host       = "localhost"
	defaultAria2RPCPort    = 6800
	defaultAria2RPCTimeout = 10
	defaultAria2ConfPath   = "~/.config/aria2/aria2.conf"
	defaultAria2Session    = "~/.local/share/haul/aria2.session"
	defaultAria2LogPath    = "~/.local/share/haul/logs/aria2.log"
	defaultMaxConcurrent   = 5
	defaultMaxConnPerHost  = 16
	defaultSplit           = 5

	defaultUnitName       = "aria2.service"
	defaultStartTimeout   = 15
	defaultHealthInterval = 1
	defaultStopGrace      = 10

	defaultPollInterval   = 5
	defaultAbandonedGrace = 15
	defaultStoppedWindow  = 100

	defaultUploadMaxAttempts    = 5
	defaultUploadBackoffBase    = 5
	defaultUploadBackoffMax     = 300
	defaultUploadAttemptTimeout = 600
	defaultUploadClaimInterval  = 2

	defaultSFTPPort = 22

	defaultNtfyServer           = "https://ntfy.sh"
	defaultNotifyRequestTimeout = 10

	defaultLogFormat  = "console"
	defaultLogLevel   = "info"
	defaultLogMaxSize = 20
	defaultLogBackups = 5
	defaultLogMaxAge  = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			DownloadDir: defaultDownloadDir,
		},
		Aria2: Aria2{
			Binary:                 defaultAria2Binary,
			Host:                   defaultAria2Host,
			RPCPort:                defaultAria2RPCPort,
			RPCTimeout:             defaultAria2RPCTimeout,
			ConfPath:               defaultAria2ConfPath,
			SessionPath:            defaultAria2Session,
			LogPath:                defaultAria2LogPath,
			MaxConcurrentDownloads: defaultMaxConcurrent,
			MaxConnectionPerServer: defaultMaxConnPerHost,
			Split:                  defaultSplit,
			ContinueDownloads:      true,
		},
		Service: Service{
			UnitName:       defaultUnitName,
			StartTimeout:   defaultStartTimeout,
			HealthInterval: defaultHealthInterval,
			StopGrace:      defaultStopGrace,
		},
		Watcher: Watcher{
			PollInterval:   defaultPollInterval,
			AbandonedGrace: defaultAbandonedGrace,
			StoppedWindow:  defaultStoppedWindow,
		},
		Uploads: Uploads{
			MaxAttempts:    defaultUploadMaxAttempts,
			BackoffBase:    defaultUploadBackoffBase,
			BackoffMax:     defaultUploadBackoffMax,
			AttemptTimeout: defaultUploadAttemptTimeout,
			ClaimInterval:  defaultUploadClaimInterval,
		},
		Backends: Backends{
			SFTP: SFTPBackend{
				Port: defaultSFTPPort,
			},
		},
		Notifications: Notifications{
			NtfyServer:     defaultNtfyServer,
			RequestTimeout: defaultNotifyRequestTimeout,
			Downloads:      true,
			Uploads:        true,
			Service:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSize,
			MaxBackups: defaultLogBackups,
			MaxAgeDays: defaultLogMaxAge,
			Compress:   true,
		},
	}
}
