package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const jobColumns = "id, gid, backend, state, attempts, last_error, next_attempt_at, created_at, updated_at"

// EnsureJob creates a pending upload job for (gid, backend) unless one
// already exists. The returned flag reports whether a new row was created;
// either way the current row is returned. This is what makes re-observing
// a completion after a restart harmless.
func (s *Store) EnsureJob(ctx context.Context, gid, backend string) (*UploadJob, bool, error) {
	if gid == "" {
		return nil, false, errors.New("job gid is empty")
	}
	if backend == "" {
		return nil, false, errors.New("job backend is empty")
	}

	now := formatTime(time.Now())
	res, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO upload_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		gid,
		backend,
		string(JobPending),
		0,
		nil,
		now,
		now,
		now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("ensure job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	job, err := s.jobByPair(ctx, gid, backend)
	if err != nil {
		return nil, false, err
	}
	if job == nil {
		return nil, false, fmt.Errorf("job for gid %s backend %s vanished after insert", gid, backend)
	}
	return job, affected > 0, nil
}

// JobByID fetches a job by its identifier, or nil when none exists.
func (s *Store) JobByID(ctx context.Context, id string) (*UploadJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM upload_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *Store) jobByPair(ctx context.Context, gid, backend string) (*UploadJob, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM upload_jobs WHERE gid = ? AND backend = ?`,
		gid,
		backend,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job by pair: %w", err)
	}
	return job, nil
}

// UpdateJob persists changes to an existing job.
func (s *Store) UpdateJob(ctx context.Context, job *UploadJob) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE upload_jobs
         SET state = ?, attempts = ?, last_error = ?, next_attempt_at = ?, updated_at = ?
         WHERE id = ?`,
		string(job.State),
		job.Attempts,
		nullableString(job.LastError),
		formatTime(job.NextAttemptAt),
		formatTime(job.UpdatedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// DueJobs returns jobs ready for an attempt: pending rows plus retryable
// failures whose backoff has elapsed, oldest deadline first.
func (s *Store) DueJobs(ctx context.Context, now time.Time) ([]*UploadJob, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM upload_jobs
         WHERE state IN (?, ?) AND next_attempt_at <= ?
         ORDER BY next_attempt_at`,
		string(JobPending),
		string(JobFailedRetryable),
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("query due jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// JobsByGID returns every backend's job for a gid.
func (s *Store) JobsByGID(ctx context.Context, gid string) ([]*UploadJob, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM upload_jobs WHERE gid = ? ORDER BY backend`,
		gid,
	)
	if err != nil {
		return nil, fmt.Errorf("query jobs by gid: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListJobs returns jobs filtered by state set (or all jobs when no state is
// provided), newest first.
func (s *Store) ListJobs(ctx context.Context, states ...JobState) ([]*UploadJob, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM upload_jobs`
	orderClause := ` ORDER BY created_at DESC`

	var (
		rows *sql.Rows
		err  error
	)
	if len(states) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(states))
		args := make([]any, len(states))
		for i, state := range states {
			args[i] = string(state)
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE state IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ResetJob re-queues a failed job with a fresh attempt budget. Jobs in
// other states are left alone; the flag reports whether a row changed.
func (s *Store) ResetJob(ctx context.Context, id string) (bool, error) {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE upload_jobs
         SET state = ?, attempts = 0, last_error = NULL, next_attempt_at = ?, updated_at = ?
         WHERE id = ? AND state IN (?, ?)`,
		string(JobPending),
		now,
		now,
		id,
		string(JobFailedRetryable),
		string(JobFailedPermanent),
	)
	if err != nil {
		return false, fmt.Errorf("reset job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ReclaimInProgress returns in_progress rows to pending. Called once at
// daemon startup so attempts interrupted by a crash get rerun.
func (s *Store) ReclaimInProgress(ctx context.Context) (int64, error) {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE upload_jobs
         SET state = ?, next_attempt_at = ?, updated_at = ?
         WHERE state = ?`,
		string(JobPending),
		now,
		now,
		string(JobInProgress),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim in-progress jobs: %w", err)
	}
	return res.RowsAffected()
}

func collectJobs(rows *sql.Rows) ([]*UploadJob, error) {
	var jobs []*UploadJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*UploadJob, error) {
	var (
		id          string
		gid         string
		backend     string
		state       string
		attempts    int
		lastError   sql.NullString
		nextRaw     string
		createdRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(
		&id,
		&gid,
		&backend,
		&state,
		&attempts,
		&lastError,
		&nextRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &UploadJob{
		ID:        id,
		GID:       gid,
		Backend:   backend,
		State:     JobState(state),
		Attempts:  attempts,
		LastError: lastError.String,
	}
	if next, err := parseTimeString(nextRaw); err == nil {
		job.NextAttemptAt = next
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}
