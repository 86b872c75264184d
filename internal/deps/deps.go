package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"haul/internal/config"
)

// Requirement defines an external binary haul relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
	Path        string
}

// Requirements lists haul's external binaries for the given config.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "aria2",
			Command:     cfg.Aria2.Binary,
			Description: "download engine driven over JSON-RPC",
		},
		{
			Name:        "systemctl",
			Command:     "systemctl",
			Description: "manages the aria2 user service",
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		results = append(results, status)
	}
	return results
}

// ResolveBinary returns the absolute path of a required binary, or an error
// naming what is missing.
func ResolveBinary(command string) (string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", fmt.Errorf("binary command is empty")
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("binary %q not found in PATH: %w", command, err)
	}
	return path, nil
}
