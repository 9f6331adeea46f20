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

const datasheetColumns = "id, faction_id, name, movement, toughness, save, invulnerable_save, wounds, leadership, objective_control, models_per_unit, points, keywords, created_at, updated_at, deleted_at"

// PutDatasheet inserts or updates a datasheet.
func (s *Store) PutDatasheet(ctx context.Context, datasheet catalog.Datasheet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(datasheet.ID) == "" {
		return fmt.Errorf("datasheet id is required")
	}
	if strings.TrimSpace(datasheet.FactionID) == "" {
		return fmt.Errorf("datasheet faction id is required")
	}
	name := catalog.NormalizeName(datasheet.Name)
	if name == "" {
		return fmt.Errorf("datasheet name is required")
	}
	if datasheet.Wounds <= 0 {
		return fmt.Errorf("datasheet wounds must be greater than zero")
	}
	if datasheet.ModelsPerUnit <= 0 {
		return fmt.Errorf("datasheet models per unit must be greater than zero")
	}
	keywords, err := encodeJSON(datasheet.Keywords)
	if err != nil {
		return err
	}
	now := time.Now()
	if datasheet.CreatedAt.IsZero() {
		datasheet.CreatedAt = now
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO datasheets (`+datasheetColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	faction_id = excluded.faction_id,
	name = excluded.name,
	movement = excluded.movement,
	toughness = excluded.toughness,
	save = excluded.save,
	invulnerable_save = excluded.invulnerable_save,
	wounds = excluded.wounds,
	leadership = excluded.leadership,
	objective_control = excluded.objective_control,
	models_per_unit = excluded.models_per_unit,
	points = excluded.points,
	keywords = excluded.keywords,
	updated_at = excluded.updated_at
`,
		datasheet.ID, datasheet.FactionID, name,
		datasheet.Movement, datasheet.Toughness, datasheet.Save, datasheet.InvulnerableSave,
		datasheet.Wounds, datasheet.Leadership, datasheet.ObjectiveControl,
		datasheet.ModelsPerUnit, datasheet.Points, keywords,
		toMillis(datasheet.CreatedAt), toMillis(now), toNullMillis(datasheet.DeletedAt),
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

// GetDatasheet loads one datasheet, excluding soft-deleted rows.
func (s *Store) GetDatasheet(ctx context.Context, id string) (catalog.Datasheet, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Datasheet{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+datasheetColumns+" FROM datasheets WHERE id = ? AND deleted_at IS NULL", id)
	return scanDatasheet(row)
}

// ListDatasheets returns datasheets ordered by name, optionally filtered by
// faction.
func (s *Store) ListDatasheets(ctx context.Context, filter storage.ListFilter) ([]catalog.Datasheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter = normalizeFilter(filter)

	query := "SELECT " + datasheetColumns + " FROM datasheets\n"
	where, args := listConditions(filter, "faction_id")
	query += where + "ORDER BY name ASC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list datasheets: %w", err)
	}
	defer rows.Close()

	var out []catalog.Datasheet
	for rows.Next() {
		datasheet, err := scanDatasheet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, datasheet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate datasheets: %w", err)
	}
	return out, nil
}

// DeleteDatasheet soft-deletes a datasheet. Callers check dependents first.
func (s *Store) DeleteDatasheet(ctx context.Context, id string) error {
	return s.softDelete(ctx, "datasheets", id)
}

// CountDatasheetDependents counts live records that reference a datasheet.
func (s *Store) CountDatasheetDependents(ctx context.Context, id string) (storage.DatasheetDependents, error) {
	if err := ctx.Err(); err != nil {
		return storage.DatasheetDependents{}, err
	}
	var deps storage.DatasheetDependents
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT
	(SELECT COUNT(*) FROM weapons WHERE datasheet_id = ? AND deleted_at IS NULL),
	(SELECT COUNT(*) FROM abilities WHERE datasheet_id = ? AND deleted_at IS NULL),
	(SELECT COUNT(*) FROM competitive_contexts WHERE datasheet_id = ?)
`, id, id, id).Scan(&deps.Weapons, &deps.Abilities, &deps.CompetitiveContexts)
	if err != nil {
		return storage.DatasheetDependents{}, fmt.Errorf("count datasheet dependents: %w", err)
	}
	return deps, nil
}

func scanDatasheet(row rowScanner) (catalog.Datasheet, error) {
	var datasheet catalog.Datasheet
	var keywords string
	var createdAt, updatedAt int64
	var deletedAt sql.NullInt64
	err := row.Scan(
		&datasheet.ID, &datasheet.FactionID, &datasheet.Name,
		&datasheet.Movement, &datasheet.Toughness, &datasheet.Save, &datasheet.InvulnerableSave,
		&datasheet.Wounds, &datasheet.Leadership, &datasheet.ObjectiveControl,
		&datasheet.ModelsPerUnit, &datasheet.Points, &keywords,
		&createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Datasheet{}, storage.ErrNotFound
		}
		return catalog.Datasheet{}, fmt.Errorf("scan datasheet: %w", err)
	}
	if err := decodeJSON(keywords, &datasheet.Keywords); err != nil {
		return catalog.Datasheet{}, err
	}
	datasheet.CreatedAt = fromMillis(createdAt)
	datasheet.UpdatedAt = fromMillis(updatedAt)
	datasheet.DeletedAt = fromNullMillis(deletedAt)
	return datasheet, nil
}
