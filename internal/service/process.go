package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessInfo describes the aria2 process behind the managed unit.
type ProcessInfo struct {
	PID       int32
	Running   bool
	RSSBytes  uint64
	StartedAt time.Time
}

// ProbeProcess inspects the given pid. A pid of zero or a process that has
// already exited yields Running=false without an error; memory and start
// time are best effort and stay zero when unreadable.
func ProbeProcess(ctx context.Context, pid int32) (ProcessInfo, error) {
	info := ProcessInfo{PID: pid}
	if pid <= 0 {
		return info, nil
	}
	exists, err := process.PidExistsWithContext(ctx, pid)
	if err != nil {
		return info, fmt.Errorf("probe pid %d: %w", pid, err)
	}
	if !exists {
		return info, nil
	}
	info.Running = true

	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		// Exited between the existence check and here.
		info.Running = false
		return info, nil
	}
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		info.RSSBytes = mem.RSS
	}
	if created, err := proc.CreateTimeWithContext(ctx); err == nil && created > 0 {
		info.StartedAt = time.UnixMilli(created)
	}
	return info, nil
}
