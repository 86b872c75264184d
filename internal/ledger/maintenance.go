package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Stats returns row counts grouped by event kind and job state.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Events: make(map[EventKind]int),
		Jobs:   make(map[JobState]int),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(1) FROM events GROUP BY kind`)
	if err != nil {
		return Stats{}, fmt.Errorf("event stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return Stats{}, err
		}
		stats.Events[EventKind(kind)] = count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	jobRows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM upload_jobs GROUP BY state`)
	if err != nil {
		return Stats{}, fmt.Errorf("job stats: %w", err)
	}
	defer jobRows.Close()
	for jobRows.Next() {
		var state string
		var count int
		if err := jobRows.Scan(&state, &count); err != nil {
			return Stats{}, err
		}
		stats.Jobs[JobState(state)] = count
	}
	return stats, jobRows.Err()
}

// CheckHealth returns diagnostic information about the ledger database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("ledger database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat ledger database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("ledger database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("ledger database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping ledger database: %w", err)
	}
	health.DatabaseReadable = true

	expected := []string{"events", "upload_jobs", "schema_migrations"}
	present := make(map[string]struct{}, len(expected))
	rows, err := s.db.QueryContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("query table names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("scan table name: %w", err)
		}
		present[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("iterate table names: %w", err)
	}
	for _, name := range expected {
		if _, ok := present[name]; ok {
			health.TablesPresent = append(health.TablesPresent, name)
		} else {
			health.MissingTables = append(health.MissingTables, name)
		}
	}

	if len(health.MissingTables) == 0 {
		row := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM events")
		if err := row.Scan(&health.TotalEvents); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count events: %w", err)
		}
		row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM upload_jobs")
		if err := row.Scan(&health.TotalJobs); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count upload jobs: %w", err)
		}
	}

	row := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}
