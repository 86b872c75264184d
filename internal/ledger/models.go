package ledger

import (
	"strings"
	"time"
)

// EventKind classifies how a tracked download left the active set.
type EventKind string

const (
	EventComplete  EventKind = "complete"
	EventError     EventKind = "error"
	EventAbandoned EventKind = "abandoned"
)

// Event records a download reaching a terminal state. The gid is the
// primary key; recording the same gid twice is a no-op.
type Event struct {
	GID          string
	Kind         EventKind
	Name         string
	Files        []string
	TotalBytes   int64
	ErrorCode    int
	ErrorMessage string
	ObservedAt   time.Time
}

// JobState is the lifecycle of an upload job.
type JobState string

const (
	JobPending         JobState = "pending"
	JobInProgress      JobState = "in_progress"
	JobSucceeded       JobState = "succeeded"
	JobFailedRetryable JobState = "failed_retryable"
	JobFailedPermanent JobState = "failed_permanent"
)

// Terminal reports whether the state will never change without operator
// intervention.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailedPermanent
}

// ParseJobState validates a raw string as a job state.
func ParseJobState(raw string) (JobState, bool) {
	state := JobState(strings.ToLower(strings.TrimSpace(raw)))
	switch state {
	case JobPending, JobInProgress, JobSucceeded, JobFailedRetryable, JobFailedPermanent:
		return state, true
	}
	return "", false
}

// UploadJob tracks one backend's delivery of one completed download.
// At most one row exists per (gid, backend) pair.
type UploadJob struct {
	ID            string
	GID           string
	Backend       string
	State         JobState
	Attempts      int
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Stats aggregates row counts for diagnostics and the CLI stats view.
type Stats struct {
	Events map[EventKind]int
	Jobs   map[JobState]int
}

// DatabaseHealth captures diagnostic information about the ledger database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TablesPresent    []string
	MissingTables    []string
	IntegrityCheck   bool
	TotalEvents      int
	TotalJobs        int
	Error            string
}
