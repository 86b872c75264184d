package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const eventColumns = "gid, kind, name, files_json, total_bytes, error_code, error_message, observed_at"

// RecordEvent persists a terminal event for a gid. The first write for a
// gid wins; later writes report created=false and change nothing, which is
// what makes completion handling exactly-once across restarts.
func (s *Store) RecordEvent(ctx context.Context, event Event) (bool, error) {
	if event.GID == "" {
		return false, errors.New("event gid is empty")
	}
	filesJSON, err := json.Marshal(event.Files)
	if err != nil {
		return false, fmt.Errorf("marshal event files: %w", err)
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.GID,
		string(event.Kind),
		nullableString(event.Name),
		string(filesJSON),
		event.TotalBytes,
		event.ErrorCode,
		nullableString(event.ErrorMessage),
		formatTime(event.ObservedAt),
	)
	if err != nil {
		return false, fmt.Errorf("record event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// SeenGIDs returns every gid with a recorded event.
func (s *Store) SeenGIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT gid FROM events`)
	if err != nil {
		return nil, fmt.Errorf("query seen gids: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var gid string
		if err := rows.Scan(&gid); err != nil {
			return nil, err
		}
		seen[gid] = struct{}{}
	}
	return seen, rows.Err()
}

// EventByGID fetches the recorded event for a gid, or nil when none exists.
func (s *Store) EventByGID(ctx context.Context, gid string) (*Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE gid = ?`, gid)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// ListEvents returns the most recent events, newest first. A limit <= 0
// returns everything.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY observed_at DESC`
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, query+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanEvent(scanner interface{ Scan(dest ...any) error }) (*Event, error) {
	var (
		gid          string
		kind         string
		name         sql.NullString
		filesJSON    sql.NullString
		totalBytes   int64
		errorCode    int
		errorMessage sql.NullString
		observedRaw  string
	)
	if err := scanner.Scan(
		&gid,
		&kind,
		&name,
		&filesJSON,
		&totalBytes,
		&errorCode,
		&errorMessage,
		&observedRaw,
	); err != nil {
		return nil, err
	}

	event := &Event{
		GID:          gid,
		Kind:         EventKind(kind),
		Name:         name.String,
		TotalBytes:   totalBytes,
		ErrorCode:    errorCode,
		ErrorMessage: errorMessage.String,
	}
	if filesJSON.Valid && filesJSON.String != "" {
		if err := json.Unmarshal([]byte(filesJSON.String), &event.Files); err != nil {
			return nil, fmt.Errorf("unmarshal event files: %w", err)
		}
	}
	if observed, err := parseTimeString(observedRaw); err == nil {
		event.ObservedAt = observed
	}
	return event, nil
}
