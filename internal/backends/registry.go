package backends

import (
	"haul/internal/config"
	"haul/internal/upload"
)

// FromConfig returns the enabled backends in their fixed registration
// order: s3, sftp, local. The order decides job creation and is part of
// the coordinator's cleanup gate, so it must be stable across restarts.
func FromConfig(cfg *config.Config) []upload.Backend {
	var list []upload.Backend
	if cfg.Backends.S3.Enabled {
		list = append(list, NewS3(cfg.Backends.S3))
	}
	if cfg.Backends.SFTP.Enabled {
		list = append(list, NewSFTP(cfg.Backends.SFTP))
	}
	if cfg.Backends.Local.Enabled {
		list = append(list, NewLocal(cfg.Backends.Local))
	}
	return list
}
