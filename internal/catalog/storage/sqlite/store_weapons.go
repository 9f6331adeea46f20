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

const weaponColumns = "id, datasheet_id, name, kind, range_inches, attacks, skill, strength, ap, damage, abilities, created_at, updated_at, deleted_at"

// PutWeapon inserts or updates a weapon profile.
func (s *Store) PutWeapon(ctx context.Context, weapon catalog.Weapon) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(weapon.ID) == "" {
		return fmt.Errorf("weapon id is required")
	}
	if strings.TrimSpace(weapon.DatasheetID) == "" {
		return fmt.Errorf("weapon datasheet id is required")
	}
	name := catalog.NormalizeName(weapon.Name)
	if name == "" {
		return fmt.Errorf("weapon name is required")
	}
	if weapon.Kind != catalog.WeaponKindRanged && weapon.Kind != catalog.WeaponKindMelee {
		return fmt.Errorf("weapon kind must be ranged or melee")
	}
	abilities, err := encodeJSON(weapon.Abilities)
	if err != nil {
		return err
	}
	if strings.TrimSpace(weapon.Attacks) == "" {
		weapon.Attacks = "1"
	}
	if strings.TrimSpace(weapon.Damage) == "" {
		weapon.Damage = "1"
	}
	now := time.Now()
	if weapon.CreatedAt.IsZero() {
		weapon.CreatedAt = now
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO weapons (`+weaponColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	datasheet_id = excluded.datasheet_id,
	name = excluded.name,
	kind = excluded.kind,
	range_inches = excluded.range_inches,
	attacks = excluded.attacks,
	skill = excluded.skill,
	strength = excluded.strength,
	ap = excluded.ap,
	damage = excluded.damage,
	abilities = excluded.abilities,
	updated_at = excluded.updated_at
`,
		weapon.ID, weapon.DatasheetID, name, string(weapon.Kind),
		weapon.RangeInches, weapon.Attacks, weapon.Skill, weapon.Strength,
		weapon.AP, weapon.Damage, abilities,
		toMillis(weapon.CreatedAt), toMillis(now), toNullMillis(weapon.DeletedAt),
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

// GetWeapon loads one weapon profile, excluding soft-deleted rows.
func (s *Store) GetWeapon(ctx context.Context, id string) (catalog.Weapon, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Weapon{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+weaponColumns+" FROM weapons WHERE id = ? AND deleted_at IS NULL", id)
	return scanWeapon(row)
}

// ListWeapons returns weapon profiles, optionally filtered by datasheet.
func (s *Store) ListWeapons(ctx context.Context, filter storage.ListFilter) ([]catalog.Weapon, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter = normalizeFilter(filter)

	query := "SELECT " + weaponColumns + " FROM weapons\n"
	where, args := listConditions(filter, "datasheet_id")
	query += where + "ORDER BY name ASC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list weapons: %w", err)
	}
	defer rows.Close()

	var out []catalog.Weapon
	for rows.Next() {
		weapon, err := scanWeapon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, weapon)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weapons: %w", err)
	}
	return out, nil
}

// DeleteWeapon soft-deletes a weapon profile.
func (s *Store) DeleteWeapon(ctx context.Context, id string) error {
	return s.softDelete(ctx, "weapons", id)
}

func scanWeapon(row rowScanner) (catalog.Weapon, error) {
	var weapon catalog.Weapon
	var kind, abilities string
	var createdAt, updatedAt int64
	var deletedAt sql.NullInt64
	err := row.Scan(
		&weapon.ID, &weapon.DatasheetID, &weapon.Name, &kind,
		&weapon.RangeInches, &weapon.Attacks, &weapon.Skill, &weapon.Strength,
		&weapon.AP, &weapon.Damage, &abilities,
		&createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Weapon{}, storage.ErrNotFound
		}
		return catalog.Weapon{}, fmt.Errorf("scan weapon: %w", err)
	}
	weapon.Kind = catalog.WeaponKind(kind)
	if err := decodeJSON(abilities, &weapon.Abilities); err != nil {
		return catalog.Weapon{}, err
	}
	weapon.CreatedAt = fromMillis(createdAt)
	weapon.UpdatedAt = fromMillis(updatedAt)
	weapon.DeletedAt = fromNullMillis(deletedAt)
	return weapon, nil
}
