package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/AndrewDeWitt/grimlog/internal/game/domain/event"
	"github.com/AndrewDeWitt/grimlog/internal/game/storage"
)

const eventColumns = "session_id, seq, timestamp, type, actor_type, actor_id, entity_type, entity_id, request_id, correlation_id, causation_id, payload"

// AppendEvent stores the event and assigns the next sequence number for its
// session. Assignment happens inside a transaction so concurrent appends to
// the same session cannot produce gaps or duplicates.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(evt.SessionID) == "" {
		return event.Event{}, fmt.Errorf("event session id is required")
	}
	if !evt.Type.IsValid() {
		return event.Event{}, fmt.Errorf("event type is required")
	}
	if evt.Timestamp.IsZero() {
		return event.Event{}, fmt.Errorf("event timestamp is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return event.Event{}, fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next uint64
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM timeline_events WHERE session_id = ?",
		evt.SessionID,
	).Scan(&next)
	if err != nil {
		return event.Event{}, fmt.Errorf("next event seq: %w", err)
	}
	evt.Seq = next

	payload := evt.PayloadJSON
	if payload == nil {
		payload = []byte{}
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO timeline_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		evt.SessionID, evt.Seq, toMillis(evt.Timestamp),
		string(evt.Type), string(evt.ActorType), evt.ActorID,
		evt.EntityType, evt.EntityID,
		evt.RequestID, evt.CorrelationID, evt.CausationID,
		string(payload),
	)
	if err != nil {
		return event.Event{}, fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return event.Event{}, fmt.Errorf("commit append tx: %w", err)
	}
	return evt, nil
}

// ListEvents returns all events for a session in sequence order.
func (s *Store) ListEvents(ctx context.Context, sessionID string) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM timeline_events WHERE session_id = ? ORDER BY seq ASC",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListEventsPage returns up to limit events with seq > afterSeq.
func (s *Store) ListEventsPage(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM timeline_events WHERE session_id = ? AND seq > ? ORDER BY seq ASC LIMIT ?",
		sessionID, afterSeq, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events page: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// GetEvent returns one event by sequence number.
func (s *Store) GetEvent(ctx context.Context, sessionID string, seq uint64) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM timeline_events WHERE session_id = ? AND seq = ?",
		sessionID, seq,
	)
	evt, err := scanEvent(row)
	if err != nil {
		return event.Event{}, err
	}
	return evt, nil
}

func collectEvents(rows *sql.Rows) ([]event.Event, error) {
	var out []event.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func scanEvent(row rowScanner) (event.Event, error) {
	var evt event.Event
	var timestamp int64
	var eventType, actorType, payload string
	err := row.Scan(
		&evt.SessionID, &evt.Seq, &timestamp,
		&eventType, &actorType, &evt.ActorID,
		&evt.EntityType, &evt.EntityID,
		&evt.RequestID, &evt.CorrelationID, &evt.CausationID,
		&payload,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event.Event{}, storage.ErrNotFound
		}
		return event.Event{}, fmt.Errorf("scan event: %w", err)
	}
	evt.Timestamp = fromMillis(timestamp)
	evt.Type = event.Type(eventType)
	evt.ActorType = event.ActorType(actorType)
	if payload != "" {
		evt.PayloadJSON = []byte(payload)
	}
	return evt, nil
}
