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

// PutFaction inserts or updates a faction.
func (s *Store) PutFaction(ctx context.Context, faction catalog.Faction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(faction.ID) == "" {
		return fmt.Errorf("faction id is required")
	}
	name := catalog.NormalizeName(faction.Name)
	if name == "" {
		return fmt.Errorf("faction name is required")
	}
	now := time.Now()
	if faction.CreatedAt.IsZero() {
		faction.CreatedAt = now
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO factions (id, name, description, created_at, updated_at, deleted_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	description = excluded.description,
	updated_at = excluded.updated_at
`,
		faction.ID, name, faction.Description,
		toMillis(faction.CreatedAt), toMillis(now), toNullMillis(faction.DeletedAt),
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

// GetFaction loads one faction, excluding soft-deleted rows.
func (s *Store) GetFaction(ctx context.Context, id string) (catalog.Faction, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Faction{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, description, created_at, updated_at, deleted_at
FROM factions WHERE id = ? AND deleted_at IS NULL
`, id)
	return scanFaction(row)
}

// ListFactions returns factions ordered by name.
func (s *Store) ListFactions(ctx context.Context, filter storage.ListFilter) ([]catalog.Faction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter = normalizeFilter(filter)

	query := "SELECT id, name, description, created_at, updated_at, deleted_at FROM factions\n"
	if !filter.IncludeDeleted {
		query += "WHERE deleted_at IS NULL\n"
	}
	query += "ORDER BY name ASC LIMIT ? OFFSET ?"

	rows, err := s.sqlDB.QueryContext(ctx, query, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list factions: %w", err)
	}
	defer rows.Close()

	var out []catalog.Faction
	for rows.Next() {
		faction, err := scanFaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, faction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate factions: %w", err)
	}
	return out, nil
}

// DeleteFaction soft-deletes a faction.
func (s *Store) DeleteFaction(ctx context.Context, id string) error {
	return s.softDelete(ctx, "factions", id)
}

func scanFaction(row rowScanner) (catalog.Faction, error) {
	var faction catalog.Faction
	var createdAt, updatedAt int64
	var deletedAt sql.NullInt64
	err := row.Scan(&faction.ID, &faction.Name, &faction.Description, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Faction{}, storage.ErrNotFound
		}
		return catalog.Faction{}, fmt.Errorf("scan faction: %w", err)
	}
	faction.CreatedAt = fromMillis(createdAt)
	faction.UpdatedAt = fromMillis(updatedAt)
	faction.DeletedAt = fromNullMillis(deletedAt)
	return faction, nil
}
