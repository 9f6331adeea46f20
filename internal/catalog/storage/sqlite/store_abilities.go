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

// PutAbility inserts or updates a datasheet ability.
func (s *Store) PutAbility(ctx context.Context, ability catalog.Ability) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(ability.ID) == "" {
		return fmt.Errorf("ability id is required")
	}
	if strings.TrimSpace(ability.DatasheetID) == "" {
		return fmt.Errorf("ability datasheet id is required")
	}
	name := catalog.NormalizeName(ability.Name)
	if name == "" {
		return fmt.Errorf("ability name is required")
	}
	now := time.Now()
	if ability.CreatedAt.IsZero() {
		ability.CreatedAt = now
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO abilities (id, datasheet_id, name, description, created_at, updated_at, deleted_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	datasheet_id = excluded.datasheet_id,
	name = excluded.name,
	description = excluded.description,
	updated_at = excluded.updated_at
`,
		ability.ID, ability.DatasheetID, name, ability.Description,
		toMillis(ability.CreatedAt), toMillis(now), toNullMillis(ability.DeletedAt),
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

// GetAbility loads one ability, excluding soft-deleted rows.
func (s *Store) GetAbility(ctx context.Context, id string) (catalog.Ability, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Ability{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, datasheet_id, name, description, created_at, updated_at, deleted_at
FROM abilities WHERE id = ? AND deleted_at IS NULL
`, id)
	return scanAbility(row)
}

// ListAbilities returns abilities, optionally filtered by datasheet.
func (s *Store) ListAbilities(ctx context.Context, filter storage.ListFilter) ([]catalog.Ability, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter = normalizeFilter(filter)

	query := "SELECT id, datasheet_id, name, description, created_at, updated_at, deleted_at FROM abilities\n"
	where, args := listConditions(filter, "datasheet_id")
	query += where + "ORDER BY name ASC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list abilities: %w", err)
	}
	defer rows.Close()

	var out []catalog.Ability
	for rows.Next() {
		ability, err := scanAbility(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ability)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate abilities: %w", err)
	}
	return out, nil
}

// DeleteAbility soft-deletes an ability.
func (s *Store) DeleteAbility(ctx context.Context, id string) error {
	return s.softDelete(ctx, "abilities", id)
}

func scanAbility(row rowScanner) (catalog.Ability, error) {
	var ability catalog.Ability
	var createdAt, updatedAt int64
	var deletedAt sql.NullInt64
	err := row.Scan(&ability.ID, &ability.DatasheetID, &ability.Name, &ability.Description, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Ability{}, storage.ErrNotFound
		}
		return catalog.Ability{}, fmt.Errorf("scan ability: %w", err)
	}
	ability.CreatedAt = fromMillis(createdAt)
	ability.UpdatedAt = fromMillis(updatedAt)
	ability.DeletedAt = fromNullMillis(deletedAt)
	return ability, nil
}
