package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/winxlab/winx/core"
	"github.com/winxlab/winx/telemetry"
)

// AuditStore persists the telemetry stream in SQLite so tool activity can be
// queried after the fact.
type AuditStore struct {
	db *sql.DB
}

// NewAuditStore opens or creates the database at dbPath.
func NewAuditStore(dbPath string) (*AuditStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, core.NewError(core.ErrOther, "open audit db: %v", err)
	}
	store := &AuditStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *AuditStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		tool TEXT,
		message TEXT,
		timestamp TIMESTAMP NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
	CREATE INDEX IF NOT EXISTS idx_events_tool ON events(tool);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return core.NewError(core.ErrOther, "init audit schema: %v", err)
	}
	return nil
}

// Emit implements telemetry.Sink by inserting the event. Failures are
// swallowed; the audit trail never blocks a tool call.
func (s *AuditStore) Emit(event telemetry.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	var meta []byte
	if event.Metadata != nil {
		meta, _ = json.Marshal(event.Metadata)
	}
	_, _ = s.db.Exec(
		`INSERT INTO events (type, tool, message, timestamp, metadata) VALUES (?, ?, ?, ?, ?)`,
		string(event.Type), event.Tool, event.Message, event.Timestamp, string(meta),
	)
}

// Query returns events filtered by type and tool (empty = any), newest first.
func (s *AuditStore) Query(ctx context.Context, eventType, tool string, limit int) ([]telemetry.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT type, tool, message, timestamp, metadata FROM events WHERE 1=1`
	var args []any
	if eventType != "" {
		query += ` AND type = ?`
		args = append(args, eventType)
	}
	if tool != "" {
		query += ` AND tool = ?`
		args = append(args, tool)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.NewError(core.ErrOther, "audit query: %v", err)
	}
	defer rows.Close()

	var events []telemetry.Event
	for rows.Next() {
		var event telemetry.Event
		var meta string
		if err := rows.Scan(&event.Type, &event.Tool, &event.Message, &event.Timestamp, &meta); err != nil {
			return nil, core.NewError(core.ErrOther, "audit scan: %v", err)
		}
		if meta != "" {
			_ = json.Unmarshal([]byte(meta), &event.Metadata)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Close releases the database handle.
func (s *AuditStore) Close() error { return s.db.Close() }
