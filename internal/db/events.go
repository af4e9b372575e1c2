package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Journal actions.
const (
	ActionCreate   = "create"
	ActionStore    = "store"
	ActionRetrieve = "retrieve"
	ActionDelete   = "delete"
)

// EventRow is one journal entry. It never carries secret material.
type EventRow struct {
	ID        string
	Service   string
	Action    string
	OK        bool
	Detail    string
	CreatedAt time.Time
}

// RecordEvent appends an event and returns its ID.
func RecordEvent(d *DB, service, action string, ok bool, detail string) (string, error) {
	if d == nil || d.sql == nil {
		return "", fmt.Errorf("database handle is nil")
	}

	id := uuid.New().String()
	_, err := d.sql.Exec(
		`INSERT INTO events (id, service, action, ok, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, service, action, ok, detail, time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

// ListEvents returns the newest events first. An empty service selects all
// services; limit <= 0 means no limit.
func ListEvents(d *DB, service string, limit int) ([]EventRow, error) {
	if d == nil || d.sql == nil {
		return nil, fmt.Errorf("database handle is nil")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := d.sql.Query(
		`SELECT id, service, action, ok, detail, created_at
		 FROM events
		 WHERE ? = '' OR service = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		service, service, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	var results []EventRow
	for rows.Next() {
		var (
			r       EventRow
			created int64
		)
		if err := rows.Scan(&r.ID, &r.Service, &r.Action, &r.OK, &r.Detail, &created); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return results, nil
}
