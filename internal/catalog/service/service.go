// Package service implements catalog operations over a storage backend,
// translating storage failures into domain error codes.
package service

import (
	"context"
	stderrors "errors"
	"strconv"

	"github.com/AndrewDeWitt/grimlog/internal/catalog"
	"github.com/AndrewDeWitt/grimlog/internal/catalog/storage"
	"github.com/AndrewDeWitt/grimlog/internal/errors"
	"github.com/AndrewDeWitt/grimlog/internal/platform/id"
)

// Service exposes catalog CRUD with domain validation.
type Service struct {
	store storage.Store
	newID func() string
}

// New builds a catalog service over the given store.
func New(store storage.Store) *Service {
	return &Service{store: store, newID: id.MustNewID}
}

// DeleteDatasheetResult reports what a datasheet delete did or would do.
type DeleteDatasheetResult struct {
	Deleted    bool
	Dependents storage.DatasheetDependents
}

// CreateFaction validates and stores a new faction.
func (s *Service) CreateFaction(ctx context.Context, faction catalog.Faction) (catalog.Faction, error) {
	if catalog.NormalizeName(faction.Name) == "" {
		return catalog.Faction{}, errors.New(errors.CodeFactionNameEmpty, "faction name is required")
	}
	if faction.ID == "" {
		faction.ID = s.newID()
	}
	if err := s.store.PutFaction(ctx, faction); err != nil {
		return catalog.Faction{}, mapStoreError(err, errors.CodeFactionNameTaken)
	}
	return s.store.GetFaction(ctx, faction.ID)
}

// UpdateFaction applies changes to an existing faction.
func (s *Service) UpdateFaction(ctx context.Context, faction catalog.Faction) (catalog.Faction, error) {
	existing, err := s.store.GetFaction(ctx, faction.ID)
	if err != nil {
		return catalog.Faction{}, mapStoreError(err, errors.CodeFactionNameTaken)
	}
	if catalog.NormalizeName(faction.Name) == "" {
		return catalog.Faction{}, errors.New(errors.CodeFactionNameEmpty, "faction name is required")
	}
	faction.CreatedAt = existing.CreatedAt
	if err := s.store.PutFaction(ctx, faction); err != nil {
		return catalog.Faction{}, mapStoreError(err, errors.CodeFactionNameTaken)
	}
	return s.store.GetFaction(ctx, faction.ID)
}

// GetFaction loads one faction.
func (s *Service) GetFaction(ctx context.Context, factionID string) (catalog.Faction, error) {
	faction, err := s.store.GetFaction(ctx, factionID)
	if err != nil {
		return catalog.Faction{}, mapStoreError(err, errors.CodeConflict)
	}
	return faction, nil
}

// ListFactions lists factions.
func (s *Service) ListFactions(ctx context.Context, filter storage.ListFilter) ([]catalog.Faction, error) {
	return s.store.ListFactions(ctx, filter)
}

// DeleteFaction soft-deletes a faction.
func (s *Service) DeleteFaction(ctx context.Context, factionID string) error {
	return mapStoreError(s.store.DeleteFaction(ctx, factionID), errors.CodeConflict)
}

// CreateDetachment validates and stores a new detachment.
func (s *Service) CreateDetachment(ctx context.Context, detachment catalog.Detachment) (catalog.Detachment, error) {
	if catalog.NormalizeName(detachment.Name) == "" {
		return catalog.Detachment{}, errors.New(errors.CodeDetachmentNameEmpty, "detachment name is required")
	}
	if _, err := s.store.GetFaction(ctx, detachment.FactionID); err != nil {
		return catalog.Detachment{}, mapStoreError(err, errors.CodeConflict)
	}
	if detachment.ID == "" {
		detachment.ID = s.newID()
	}
	if err := s.store.PutDetachment(ctx, detachment); err != nil {
		return catalog.Detachment{}, mapStoreError(err, errors.CodeConflict)
	}
	return s.store.GetDetachment(ctx, detachment.ID)
}

// UpdateDetachment applies changes to an existing detachment.
func (s *Service) UpdateDetachment(ctx context.Context, detachment catalog.Detachment) (catalog.Detachment, error) {
	existing, err := s.store.GetDetachment(ctx, detachment.ID)
	if err != nil {
		return catalog.Detachment{}, mapStoreError(err, errors.CodeConflict)
	}
	if catalog.NormalizeName(detachment.Name) == "" {
		return catalog.Detachment{}, errors.New(errors.CodeDetachmentNameEmpty, "detachment name is required")
	}
	detachment.CreatedAt = existing.CreatedAt
	if err := s.store.PutDetachment(ctx, detachment); err != nil {
		return catalog.Detachment{}, mapStoreError(err, errors.CodeConflict)
	}
	return s.store.GetDetachment(ctx, detachment.ID)
}

// GetDetachment loads one detachment.
func (s *Service) GetDetachment(ctx context.Context, detachmentID string) (catalog.Detachment, error) {
	detachment, err := s.store.GetDetachment(ctx, detachmentID)
	if err != nil {
		return catalog.Detachment{}, mapStoreError(err, errors.CodeConflict)
	}
	return detachment, nil
}

// ListDetachments lists detachments.
func (s *Service) ListDetachments(ctx context.Context, filter storage.ListFilter) ([]catalog.Detachment, error) {
	return s.store.ListDetachments(ctx, filter)
}

// DeleteDetachment soft-deletes a detachment.
func (s *Service) DeleteDetachment(ctx context.Context, detachmentID string) error {
	return mapStoreError(s.store.DeleteDetachment(ctx, detachmentID), errors.CodeConflict)
}

// CreateDatasheet validates and stores a new datasheet.
func (s *Service) CreateDatasheet(ctx context.Context, datasheet catalog.Datasheet) (catalog.Datasheet, error) {
	if err := validateDatasheet(datasheet); err != nil {
		return catalog.Datasheet{}, err
	}
	if _, err := s.store.GetFaction(ctx, datasheet.FactionID); err != nil {
		return catalog.Datasheet{}, mapStoreError(err, errors.CodeConflict)
	}
	if datasheet.ID == "" {
		datasheet.ID = s.newID()
	}
	if err := s.store.PutDatasheet(ctx, datasheet); err != nil {
		return catalog.Datasheet{}, mapStoreError(err, errors.CodeDatasheetNameTaken)
	}
	return s.store.GetDatasheet(ctx, datasheet.ID)
}

// UpdateDatasheet applies changes to an existing datasheet.
func (s *Service) UpdateDatasheet(ctx context.Context, datasheet catalog.Datasheet) (catalog.Datasheet, error) {
	existing, err := s.store.GetDatasheet(ctx, datasheet.ID)
	if err != nil {
		return catalog.Datasheet{}, mapStoreError(err, errors.CodeDatasheetNameTaken)
	}
	if err := validateDatasheet(datasheet); err != nil {
		return catalog.Datasheet{}, err
	}
	datasheet.CreatedAt = existing.CreatedAt
	if err := s.store.PutDatasheet(ctx, datasheet); err != nil {
		return catalog.Datasheet{}, mapStoreError(err, errors.CodeDatasheetNameTaken)
	}
	return s.store.GetDatasheet(ctx, datasheet.ID)
}

// GetDatasheet loads one datasheet.
func (s *Service) GetDatasheet(ctx context.Context, datasheetID string) (catalog.Datasheet, error) {
	datasheet, err := s.store.GetDatasheet(ctx, datasheetID)
	if err != nil {
		return catalog.Datasheet{}, mapStoreError(err, errors.CodeConflict)
	}
	return datasheet, nil
}

// ListDatasheets lists datasheets.
func (s *Service) ListDatasheets(ctx context.Context, filter storage.ListFilter) ([]catalog.Datasheet, error) {
	return s.store.ListDatasheets(ctx, filter)
}

// DeleteDatasheet soft-deletes a datasheet. Without force, a datasheet with
// dependent records is left in place and the dependent counts are returned.
func (s *Service) DeleteDatasheet(ctx context.Context, datasheetID string, force bool) (DeleteDatasheetResult, error) {
	if _, err := s.store.GetDatasheet(ctx, datasheetID); err != nil {
		return DeleteDatasheetResult{}, mapStoreError(err, errors.CodeConflict)
	}
	dependents, err := s.store.CountDatasheetDependents(ctx, datasheetID)
	if err != nil {
		return DeleteDatasheetResult{}, err
	}
	if dependents.Total() > 0 && !force {
		return DeleteDatasheetResult{Dependents: dependents}, errors.WithMetadata(
			errors.CodeDatasheetHasDependents,
			"datasheet has dependent records; pass force to delete anyway",
			map[string]string{
				"weapons":              itoa(dependents.Weapons),
				"abilities":            itoa(dependents.Abilities),
				"competitive_contexts": itoa(dependents.CompetitiveContexts),
			},
		)
	}
	if err := s.store.DeleteDatasheet(ctx, datasheetID); err != nil {
		return DeleteDatasheetResult{}, mapStoreError(err, errors.CodeConflict)
	}
	return DeleteDatasheetResult{Deleted: true, Dependents: dependents}, nil
}

// CreateWeapon validates and stores a new weapon profile.
func (s *Service) CreateWeapon(ctx context.Context, weapon catalog.Weapon) (catalog.Weapon, error) {
	if err := validateWeapon(weapon); err != nil {
		return catalog.Weapon{}, err
	}
	if _, err := s.store.GetDatasheet(ctx, weapon.DatasheetID); err != nil {
		return catalog.Weapon{}, mapStoreError(err, errors.CodeConflict)
	}
	if weapon.ID == "" {
		weapon.ID = s.newID()
	}
	if err := s.store.PutWeapon(ctx, weapon); err != nil {
		return catalog.Weapon{}, mapStoreError(err, errors.CodeConflict)
	}
	return s.store.GetWeapon(ctx, weapon.ID)
}

// UpdateWeapon applies changes to an existing weapon profile.
func (s *Service) UpdateWeapon(ctx context.Context, weapon catalog.Weapon) (catalog.Weapon, error) {
	existing, err := s.store.GetWeapon(ctx, weapon.ID)
	if err != nil {
		return catalog.Weapon{}, mapStoreError(err, errors.CodeConflict)
	}
	if err := validateWeapon(weapon); err != nil {
		return catalog.Weapon{}, err
	}
	weapon.CreatedAt = existing.CreatedAt
	if err := s.store.PutWeapon(ctx, weapon); err != nil {
		return catalog.Weapon{}, mapStoreError(err, errors.CodeConflict)
	}
	return s.store.GetWeapon(ctx, weapon.ID)
}

// GetWeapon loads one weapon profile.
func (s *Service) GetWeapon(ctx context.Context, weaponID string) (catalog.Weapon, error) {
	weapon, err := s.store.GetWeapon(ctx, weaponID)
	if err != nil {
		return catalog.Weapon{}, mapStoreError(err, errors.CodeConflict)
	}
	return weapon, nil
}

// ListWeapons lists weapon profiles.
func (s *Service) ListWeapons(ctx context.Context, filter storage.ListFilter) ([]catalog.Weapon, error) {
	return s.store.ListWeapons(ctx, filter)
}

// DeleteWeapon soft-deletes a weapon profile.
func (s *Service) DeleteWeapon(ctx context.Context, weaponID string) error {
	return mapStoreError(s.store.DeleteWeapon(ctx, weaponID), errors.CodeConflict)
}

// CreateAbility validates and stores a new ability.
func (s *Service) CreateAbility(ctx context.Context, ability catalog.Ability) (catalog.Ability, error) {
	if catalog.NormalizeName(ability.Name) == "" {
		return catalog.Ability{}, errors.New(errors.CodeAbilityNameEmpty, "ability name is required")
	}
	if _, err := s.store.GetDatasheet(ctx, ability.DatasheetID); err != nil {
		return catalog.Ability{}, mapStoreError(err, errors.CodeConflict)
	}
	if ability.ID == "" {
		ability.ID = s.newID()
	}
	if err := s.store.PutAbility(ctx, ability); err != nil {
		return catalog.Ability{}, mapStoreError(err, errors.CodeConflict)
	}
	return s.store.GetAbility(ctx, ability.ID)
}

// UpdateAbility applies changes to an existing ability.
func (s *Service) UpdateAbility(ctx context.Context, ability catalog.Ability) (catalog.Ability, error) {
	existing, err := s.store.GetAbility(ctx, ability.ID)
	if err != nil {
		return catalog.Ability{}, mapStoreError(err, errors.CodeConflict)
	}
	ability.CreatedAt = existing.CreatedAt
	if err := s.store.PutAbility(ctx, ability); err != nil {
		return catalog.Ability{}, mapStoreError(err, errors.CodeConflict)
	}
	return s.store.GetAbility(ctx, ability.ID)
}

// GetAbility loads one ability.
func (s *Service) GetAbility(ctx context.Context, abilityID string) (catalog.Ability, error) {
	ability, err := s.store.GetAbility(ctx, abilityID)
	if err != nil {
		return catalog.Ability{}, mapStoreError(err, errors.CodeConflict)
	}
	return ability, nil
}

// ListAbilities lists abilities.
func (s *Service) ListAbilities(ctx context.Context, filter storage.ListFilter) ([]catalog.Ability, error) {
	return s.store.ListAbilities(ctx, filter)
}

// DeleteAbility soft-deletes an ability.
func (s *Service) DeleteAbility(ctx context.Context, abilityID string) error {
	return mapStoreError(s.store.DeleteAbility(ctx, abilityID), errors.CodeConflict)
}

// CreateStratagem validates and stores a new stratagem.
func (s *Service) CreateStratagem(ctx context.Context, stratagem catalog.Stratagem) (catalog.Stratagem, error) {
	if err := validateStratagem(stratagem); err != nil {
		return catalog.Stratagem{}, err
	}
	if _, err := s.store.GetFaction(ctx, stratagem.FactionID); err != nil {
		return catalog.Stratagem{}, mapStoreError(err, errors.CodeConflict)
	}
	if stratagem.ID == "" {
		stratagem.ID = s.newID()
	}
	if err := s.store.PutStratagem(ctx, stratagem); err != nil {
		return catalog.Stratagem{}, mapStoreError(err, errors.CodeConflict)
	}
	return s.store.GetStratagem(ctx, stratagem.ID)
}

// UpdateStratagem applies changes to an existing stratagem.
func (s *Service) UpdateStratagem(ctx context.Context, stratagem catalog.Stratagem) (catalog.Stratagem, error) {
	existing, err := s.store.GetStratagem(ctx, stratagem.ID)
	if err != nil {
		return catalog.Stratagem{}, mapStoreError(err, errors.CodeConflict)
	}
	if err := validateStratagem(stratagem); err != nil {
		return catalog.Stratagem{}, err
	}
	stratagem.CreatedAt = existing.CreatedAt
	if err := s.store.PutStratagem(ctx, stratagem); err != nil {
		return catalog.Stratagem{}, mapStoreError(err, errors.CodeConflict)
	}
	return s.store.GetStratagem(ctx, stratagem.ID)
}

// GetStratagem loads one stratagem.
func (s *Service) GetStratagem(ctx context.Context, stratagemID string) (catalog.Stratagem, error) {
	stratagem, err := s.store.GetStratagem(ctx, stratagemID)
	if err != nil {
		return catalog.Stratagem{}, mapStoreError(err, errors.CodeConflict)
	}
	return stratagem, nil
}

// ListStratagems lists stratagems.
func (s *Service) ListStratagems(ctx context.Context, filter storage.ListFilter) ([]catalog.Stratagem, error) {
	return s.store.ListStratagems(ctx, filter)
}

// DeleteStratagem soft-deletes a stratagem.
func (s *Service) DeleteStratagem(ctx context.Context, stratagemID string) error {
	return mapStoreError(s.store.DeleteStratagem(ctx, stratagemID), errors.CodeConflict)
}

// StratagemCost resolves the effective CP cost of a stratagem for a
// detachment, applying the Battle Tactic discount when the detachment grants
// one. Cost never drops below zero.
func (s *Service) StratagemCost(ctx context.Context, stratagemID, detachmentID string) (int, error) {
	stratagem, err := s.GetStratagem(ctx, stratagemID)
	if err != nil {
		return 0, err
	}
	cost := stratagem.CPCost
	if detachmentID != "" && stratagem.Type == catalog.StratagemBattleTactic {
		detachment, err := s.store.GetDetachment(ctx, detachmentID)
		if err == nil && detachment.BattleTacticDiscount {
			cost--
		}
	}
	if cost < 0 {
		cost = 0
	}
	return cost, nil
}

func validateDatasheet(datasheet catalog.Datasheet) error {
	if catalog.NormalizeName(datasheet.Name) == "" {
		return errors.New(errors.CodeDatasheetNameEmpty, "datasheet name is required")
	}
	if datasheet.Wounds <= 0 || datasheet.ModelsPerUnit <= 0 || datasheet.Toughness <= 0 {
		return errors.New(errors.CodeDatasheetInvalidStats, "datasheet stats must be positive")
	}
	if datasheet.Save < 2 || datasheet.Save > 7 {
		return errors.New(errors.CodeDatasheetInvalidStats, "datasheet save must be between 2+ and 7+")
	}
	return nil
}

func validateWeapon(weapon catalog.Weapon) error {
	if catalog.NormalizeName(weapon.Name) == "" {
		return errors.New(errors.CodeWeaponInvalidProfile, "weapon name is required")
	}
	if weapon.Kind != catalog.WeaponKindRanged && weapon.Kind != catalog.WeaponKindMelee {
		return errors.New(errors.CodeWeaponInvalidProfile, "weapon kind must be ranged or melee")
	}
	if weapon.Strength <= 0 {
		return errors.New(errors.CodeWeaponInvalidProfile, "weapon strength must be positive")
	}
	if weapon.AP < 0 {
		return errors.New(errors.CodeWeaponInvalidProfile, "weapon ap must not be negative")
	}
	return nil
}

func validateStratagem(stratagem catalog.Stratagem) error {
	if catalog.NormalizeName(stratagem.Name) == "" {
		return errors.New(errors.CodeStratagemNameEmpty, "stratagem name is required")
	}
	if stratagem.CPCost < 0 {
		return errors.New(errors.CodeStratagemInvalidCost, "stratagem cp cost must not be negative")
	}
	return nil
}

// mapStoreError turns storage sentinels into coded errors; duplicate gets the
// provided code so callers can distinguish the entity.
func mapStoreError(err error, duplicateCode errors.Code) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, storage.ErrNotFound):
		return errors.Wrap(errors.CodeNotFound, "record not found", err)
	case stderrors.Is(err, storage.ErrDuplicateName):
		return errors.Wrap(duplicateCode, "name already exists in faction", err)
	default:
		return err
	}
}

func itoa(value int) string {
	return strconv.Itoa(value)
}
