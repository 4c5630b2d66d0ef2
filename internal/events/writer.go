// Package events appends audit records for workplace mutations. Writes are
// best-effort: the engine never fails an operation because its audit entry
// could not be stored, and the log doubles as the reconciliation hook for
// the non-transactional rename fan-out.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append writes one event row. A nil receiver or nil DB is a no-op so the
// engine can run without a SQL backend (tests use the memory store).
func (w *Writer) Append(ctx context.Context, evtType, entityKind, entityID, actor string, payload EventPayload) {
	if w == nil || w.DB == nil {
		return
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("events: marshal payload for %s: %v", evtType, err)
		return
	}
	_, err = w.DB.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, evtType, entityKind, nullable(entityID), actor, string(data))
	if err != nil {
		log.Printf("events: append %s: %v", evtType, err)
	}
}

// Event is a decoded audit row.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	Actor      string         `json:"actor"`
	Payload    map[string]any `json:"payload"`
}

// Latest returns up to n most recent events, optionally filtered by type.
func (w *Writer) Latest(ctx context.Context, n int, evtType string) ([]Event, error) {
	if w == nil || w.DB == nil {
		return nil, nil
	}
	if n <= 0 {
		n = 20
	}
	query := `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor,payload_json FROM events`
	var args []any
	if evtType != "" {
		query += ` WHERE type=?`
		args = append(args, evtType)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, n)
	rows, err := w.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		var payload string
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.Actor, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, fmt.Errorf("decode event payload: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
