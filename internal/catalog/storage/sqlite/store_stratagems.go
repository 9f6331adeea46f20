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

const stratagemColumns = "id, faction_id, detachment_id, name, cp_cost, phase, turn, type, description, created_at, updated_at, deleted_at"

// PutStratagem inserts or updates a stratagem.
func (s *Store) PutStratagem(ctx context.Context, stratagem catalog.Stratagem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(stratagem.ID) == "" {
		return fmt.Errorf("stratagem id is required")
	}
	if strings.TrimSpace(stratagem.FactionID) == "" {
		return fmt.Errorf("stratagem faction id is required")
	}
	name := catalog.NormalizeName(stratagem.Name)
	if name == "" {
		return fmt.Errorf("stratagem name is required")
	}
	if stratagem.CPCost < 0 {
		return fmt.Errorf("stratagem cp cost must not be negative")
	}
	if stratagem.Turn == "" {
		stratagem.Turn = catalog.TurnEither
	}
	now := time.Now()
	if stratagem.CreatedAt.IsZero() {
		stratagem.CreatedAt = now
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO stratagems (`+stratagemColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	faction_id = excluded.faction_id,
	detachment_id = excluded.detachment_id,
	name = excluded.name,
	cp_cost = excluded.cp_cost,
	phase = excluded.phase,
	turn = excluded.turn,
	type = excluded.type,
	description = excluded.description,
	updated_at = excluded.updated_at
`,
		stratagem.ID, stratagem.FactionID, stratagem.DetachmentID, name,
		stratagem.CPCost, stratagem.Phase, string(stratagem.Turn),
		string(stratagem.Type), stratagem.Description,
		toMillis(stratagem.CreatedAt), toMillis(now), toNullMillis(stratagem.DeletedAt),
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

// GetStratagem loads one stratagem, excluding soft-deleted rows.
func (s *Store) GetStratagem(ctx context.Context, id string) (catalog.Stratagem, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Stratagem{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+stratagemColumns+" FROM stratagems WHERE id = ? AND deleted_at IS NULL", id)
	return scanStratagem(row)
}

// ListStratagems returns stratagems, optionally filtered by faction.
func (s *Store) ListStratagems(ctx context.Context, filter storage.ListFilter) ([]catalog.Stratagem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter = normalizeFilter(filter)

	query := "SELECT " + stratagemColumns + " FROM stratagems\n"
	where, args := listConditions(filter, "faction_id")
	query += where + "ORDER BY name ASC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stratagems: %w", err)
	}
	defer rows.Close()

	var out []catalog.Stratagem
	for rows.Next() {
		stratagem, err := scanStratagem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, stratagem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stratagems: %w", err)
	}
	return out, nil
}

// DeleteStratagem soft-deletes a stratagem.
func (s *Store) DeleteStratagem(ctx context.Context, id string) error {
	return s.softDelete(ctx, "stratagems", id)
}

func scanStratagem(row rowScanner) (catalog.Stratagem, error) {
	var stratagem catalog.Stratagem
	var turn, stratagemType string
	var createdAt, updatedAt int64
	var deletedAt sql.NullInt64
	err := row.Scan(
		&stratagem.ID, &stratagem.FactionID, &stratagem.DetachmentID, &stratagem.Name,
		&stratagem.CPCost, &stratagem.Phase, &turn, &stratagemType, &stratagem.Description,
		&createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Stratagem{}, storage.ErrNotFound
		}
		return catalog.Stratagem{}, fmt.Errorf("scan stratagem: %w", err)
	}
	stratagem.Turn = catalog.TurnRestriction(turn)
	stratagem.Type = catalog.StratagemType(stratagemType)
	stratagem.CreatedAt = fromMillis(createdAt)
	stratagem.UpdatedAt = fromMillis(updatedAt)
	stratagem.DeletedAt = fromNullMillis(deletedAt)
	return stratagem, nil
}
