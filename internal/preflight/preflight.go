package preflight

import (
	"context"

	"haul/internal/aria2"
	"haul/internal/config"
	"haul/internal/service"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The RPC check only runs when the managed service reports itself active;
// a stopped or uninstalled service is a state, not a failure.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Download directory", cfg.Paths.DownloadDir))
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDiskSpace("Download disk", cfg.Paths.DownloadDir))
	results = append(results, CheckBackends(cfg)...)

	manager := service.NewManager(cfg, aria2.FromConfig(cfg), service.NewSystemd(), nil)
	if status, err := manager.Status(ctx); err == nil {
		if result, applicable := CheckEndpoint(status); applicable {
			results = append(results, result)
		}
	}

	return results
}
