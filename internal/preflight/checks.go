package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"haul/internal/backends"
	"haul/internal/config"
	"haul/internal/service"
	"haul/internal/textutil"
)

// minFreeBytes is the floor under which the download disk check fails.
// aria2 preallocates files, so a nearly full disk fails downloads late
// with confusing errors instead of up front.
const minFreeBytes = 1 << 30

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDiskSpace verifies that the filesystem holding path has free space
// above the floor.
func CheckDiskSpace(name, path string) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	avail := int64(stat.Bavail) * int64(stat.Bsize)
	if avail < minFreeBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s free on %s (need at least %s)",
			textutil.HumanBytes(avail), path, textutil.HumanBytes(minFreeBytes))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s free on %s", textutil.HumanBytes(avail), path)}
}

// CheckBackends validates each enabled upload backend's configuration.
// Validation is local only; it never opens a connection.
func CheckBackends(cfg *config.Config) []Result {
	var results []Result
	for _, backend := range backends.FromConfig(cfg) {
		name := fmt.Sprintf("Upload backend (%s)", backend.Name())
		if err := backend.Validate(); err != nil {
			results = append(results, Result{Name: name, Detail: err.Error()})
			continue
		}
		results = append(results, Result{Name: name, Passed: true, Detail: "configuration ok"})
	}
	return results
}

// CheckEndpoint reports RPC reachability for an active service. The second
// return value is false when the unit is not running and the check does not
// apply.
func CheckEndpoint(status service.Status) (Result, bool) {
	const name = "aria2 RPC"
	if !status.Active {
		return Result{}, false
	}
	if status.ProbeError != "" {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%s)", status.Endpoint, status.ProbeError)}, true
	}
	detail := status.Endpoint
	if status.Version != "" {
		detail = fmt.Sprintf("%s (aria2 %s)", status.Endpoint, status.Version)
	}
	return Result{Name: name, Passed: true, Detail: detail}, true
}
