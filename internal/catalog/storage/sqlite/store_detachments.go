package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/catalog"
	"github.com/AndrewDeWitt/grimlog/internal/catalog/storage"
)

// PutDetachment inserts or updates a detachment.
func (s *Store) PutDetachment(ctx context.Context, detachment catalog.Detachment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(detachment.ID) == "" {
		return fmt.Errorf("detachment id is required")
	}
	if strings.TrimSpace(detachment.FactionID) == "" {
		return fmt.Errorf("detachment faction id is required")
	}
	name := catalog.NormalizeName(detachment.Name)
	if name == "" {
		return fmt.Errorf("detachment name is required")
	}
	now := time.Now()
	if detachment.CreatedAt.IsZero() {
		detachment.CreatedAt = now
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO detachments (id, faction_id, name, description, battle_tactic_discount, created_at, updated_at, deleted_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	faction_id = excluded.faction_id,
	name = excluded.name,
	description = excluded.description,
	battle_tactic_discount = excluded.battle_tactic_discount,
	updated_at = excluded.updated_at
`,
		detachment.ID, detachment.FactionID, name, detachment.Description,
		boolToInt(detachment.BattleTacticDiscount),
		toMillis(detachment.CreatedAt), toMillis(now), toNullMillis(detachment.DeletedAt),
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

// GetDetachment loads one detachment, excluding soft-deleted rows.
func (s *Store) GetDetachment(ctx context.Context, id string) (catalog.Detachment, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Detachment{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, faction_id, name, description, battle_tactic_discount, created_at, updated_at, deleted_at
FROM detachments WHERE id = ? AND deleted_at IS NULL
`, id)
	return scanDetachment(row)
}

// ListDetachments returns detachments ordered by name, optionally filtered by
// faction.
func (s *Store) ListDetachments(ctx context.Context, filter storage.ListFilter) ([]catalog.Detachment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter = normalizeFilter(filter)

	query := "SELECT id, faction_id, name, description, battle_tactic_discount, created_at, updated_at, deleted_at FROM detachments\n"
	where, args := listConditions(filter, "faction_id")
	query += where + "ORDER BY name ASC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list detachments: %w", err)
	}
	defer rows.Close()

	var out []catalog.Detachment
	for rows.Next() {
		detachment, err := scanDetachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, detachment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate detachments: %w", err)
	}
	return out, nil
}

// DeleteDetachment soft-deletes a detachment.
func (s *Store) DeleteDetachment(ctx context.Context, id string) error {
	return s.softDelete(ctx, "detachments", id)
}

func scanDetachment(row rowScanner) (catalog.Detachment, error) {
	var detachment catalog.Detachment
	var discount int
	var createdAt, updatedAt int64
	var deletedAt sql.NullInt64
	err := row.Scan(
		&detachment.ID, &detachment.FactionID, &detachment.Name, &detachment.Description,
		&discount, &createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Detachment{}, storage.ErrNotFound
		}
		return catalog.Detachment{}, fmt.Errorf("scan detachment: %w", err)
	}
	detachment.BattleTacticDiscount = discount != 0
	detachment.CreatedAt = fromMillis(createdAt)
	detachment.UpdatedAt = fromMillis(updatedAt)
	detachment.DeletedAt = fromNullMillis(deletedAt)
	return detachment, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// listConditions builds the WHERE clause shared by the scoped list queries.
// scopeColumn matches ListFilter.FactionID or DatasheetID depending on table.
func listConditions(filter storage.ListFilter, scopeColumn string) (string, []any) {
	var conditions []string
	var args []any
	if !filter.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}
	scope := filter.FactionID
	if scopeColumn == "datasheet_id" {
		scope = filter.DatasheetID
	}
	if scope != "" {
		conditions = append(conditions, scopeColumn+" = ?")
		args = append(args, scope)
	}
	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND ") + "\n", args
}
