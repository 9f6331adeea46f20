// Package storage defines persistence interfaces for the rules catalog.
package storage

import (
	"context"
	"errors"

	"github.com/AndrewDeWitt/grimlog/internal/catalog"
)

// ErrNotFound indicates the requested record does not exist or is deleted.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateName indicates a (faction, name) uniqueness violation.
var ErrDuplicateName = errors.New("name already exists in faction")

// ListFilter narrows list operations.
type ListFilter struct {
	// FactionID restricts results to one faction when set.
	FactionID string
	// DatasheetID restricts weapons and abilities to one datasheet when set.
	DatasheetID string
	// IncludeDeleted includes soft-deleted rows.
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// DatasheetDependents counts records that reference a datasheet. A datasheet
// with dependents cannot be deleted without force.
type DatasheetDependents struct {
	Weapons             int
	Abilities           int
	CompetitiveContexts int
}

// Total returns the sum of all dependent counts.
func (d DatasheetDependents) Total() int {
	return d.Weapons + d.Abilities + d.CompetitiveContexts
}

// FactionStore persists factions.
type FactionStore interface {
	PutFaction(ctx context.Context, faction catalog.Faction) error
	GetFaction(ctx context.Context, id string) (catalog.Faction, error)
	ListFactions(ctx context.Context, filter ListFilter) ([]catalog.Faction, error)
	DeleteFaction(ctx context.Context, id string) error
}

// DetachmentStore persists detachments.
type DetachmentStore interface {
	PutDetachment(ctx context.Context, detachment catalog.Detachment) error
	GetDetachment(ctx context.Context, id string) (catalog.Detachment, error)
	ListDetachments(ctx context.Context, filter ListFilter) ([]catalog.Detachment, error)
	DeleteDetachment(ctx context.Context, id string) error
}

// DatasheetStore persists datasheets.
type DatasheetStore interface {
	PutDatasheet(ctx context.Context, datasheet catalog.Datasheet) error
	GetDatasheet(ctx context.Context, id string) (catalog.Datasheet, error)
	ListDatasheets(ctx context.Context, filter ListFilter) ([]catalog.Datasheet, error)
	DeleteDatasheet(ctx context.Context, id string) error
	CountDatasheetDependents(ctx context.Context, id string) (DatasheetDependents, error)
}

// WeaponStore persists weapon profiles.
type WeaponStore interface {
	PutWeapon(ctx context.Context, weapon catalog.Weapon) error
	GetWeapon(ctx context.Context, id string) (catalog.Weapon, error)
	ListWeapons(ctx context.Context, filter ListFilter) ([]catalog.Weapon, error)
	DeleteWeapon(ctx context.Context, id string) error
}

// AbilityStore persists datasheet abilities.
type AbilityStore interface {
	PutAbility(ctx context.Context, ability catalog.Ability) error
	GetAbility(ctx context.Context, id string) (catalog.Ability, error)
	ListAbilities(ctx context.Context, filter ListFilter) ([]catalog.Ability, error)
	DeleteAbility(ctx context.Context, id string) error
}

// StratagemStore persists stratagems.
type StratagemStore interface {
	PutStratagem(ctx context.Context, stratagem catalog.Stratagem) error
	GetStratagem(ctx context.Context, id string) (catalog.Stratagem, error)
	ListStratagems(ctx context.Context, filter ListFilter) ([]catalog.Stratagem, error)
	DeleteStratagem(ctx context.Context, id string) error
}

// CompetitiveStore persists competitive sources, per-source extractions and
// aggregated contexts.
type CompetitiveStore interface {
	PutSource(ctx context.Context, source catalog.CompetitiveSource) error
	GetSource(ctx context.Context, id string) (catalog.CompetitiveSource, error)
	ListSources(ctx context.Context, status catalog.SourceStatus, limit int) ([]catalog.CompetitiveSource, error)
	SetSourceStatus(ctx context.Context, id string, status catalog.SourceStatus, failure string) error

	PutExtraction(ctx context.Context, extraction catalog.UnitExtraction) error
	ListExtractionsByDatasheet(ctx context.Context, datasheetID string) ([]catalog.UnitExtraction, error)

	PutContext(ctx context.Context, context catalog.CompetitiveContext) error
	GetContext(ctx context.Context, datasheetID, factionID, detachmentID string) (catalog.CompetitiveContext, error)
	ListContextsByFaction(ctx context.Context, factionID string) ([]catalog.CompetitiveContext, error)
}

// Store combines every catalog storage interface.
type Store interface {
	FactionStore
	DetachmentStore
	DatasheetStore
	WeaponStore
	AbilityStore
	StratagemStore
	CompetitiveStore
	Close() error
}
