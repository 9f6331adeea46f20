package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/game/storage"
)

// PutSession inserts or updates a session listing row.
func (s *Store) PutSession(ctx context.Context, record storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(record.Name) == "" {
		return fmt.Errorf("session name is required")
	}
	if record.Status == "" {
		record.Status = storage.SessionStatusActive
	}
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO sessions (
	id, name, player_faction, opponent_faction, player_detachment, opponent_detachment, status, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	player_faction = excluded.player_faction,
	opponent_faction = excluded.opponent_faction,
	player_detachment = excluded.player_detachment,
	opponent_detachment = excluded.opponent_detachment,
	status = excluded.status,
	updated_at = excluded.updated_at
`,
		record.ID, record.Name, record.PlayerFaction, record.OpponentFaction,
		record.PlayerDetachment, record.OpponentDetachment, string(record.Status),
		toMillis(record.CreatedAt), toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSession loads one session listing row.
func (s *Store) GetSession(ctx context.Context, id string) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, player_faction, opponent_faction, player_detachment, opponent_detachment, status, created_at, updated_at
FROM sessions WHERE id = ?
`, id)
	return scanSession(row)
}

// ListSessions returns session rows newest-first, optionally filtered by status.
func (s *Store) ListSessions(ctx context.Context, status storage.SessionStatus, limit, offset int) ([]storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
SELECT id, name, player_faction, opponent_faction, player_detachment, opponent_detachment, status, created_at, updated_at
FROM sessions
`
	args := []any{}
	if status != "" {
		query += "WHERE status = ?\n"
		args = append(args, string(status))
	}
	query += "ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []storage.SessionRecord
	for rows.Next() {
		record, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// SetSessionStatus updates the lifecycle status of a session row.
func (s *Store) SetSessionStatus(ctx context.Context, id string, status storage.SessionStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx,
		"UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?",
		string(status), toMillis(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("set session status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set session status rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (storage.SessionRecord, error) {
	var record storage.SessionRecord
	var status string
	var createdAt, updatedAt int64
	err := row.Scan(
		&record.ID, &record.Name,
		&record.PlayerFaction, &record.OpponentFaction,
		&record.PlayerDetachment, &record.OpponentDetachment,
		&status, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SessionRecord{}, storage.ErrNotFound
		}
		return storage.SessionRecord{}, fmt.Errorf("scan session: %w", err)
	}
	record.Status = storage.SessionStatus(status)
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
