package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/AndrewDeWitt/grimlog/internal/catalog"
	"github.com/AndrewDeWitt/grimlog/internal/catalog/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedFaction(t *testing.T, store *Store, id, name string) {
	t.Helper()
	if err := store.PutFaction(context.Background(), catalog.Faction{ID: id, Name: name}); err != nil {
		t.Fatalf("PutFaction %s: %v", id, err)
	}
}

func seedDatasheet(t *testing.T, store *Store, id, factionID, name string) {
	t.Helper()
	err := store.PutDatasheet(context.Background(), catalog.Datasheet{
		ID: id, FactionID: factionID, Name: name,
		Movement: 6, Toughness: 6, Save: 2, Wounds: 3,
		Leadership: 6, ObjectiveControl: 2, ModelsPerUnit: 5, Points: 250,
		Keywords: []string{"INFANTRY"},
	})
	if err != nil {
		t.Fatalf("PutDatasheet %s: %v", id, err)
	}
}

func TestFactionRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedFaction(t, store, "f1", "Adeptus  Custodes")

	got, err := store.GetFaction(ctx, "f1")
	if err != nil {
		t.Fatalf("GetFaction: %v", err)
	}
	if got.Name != "Adeptus Custodes" {
		t.Errorf("name = %q, want whitespace collapsed", got.Name)
	}
}

func TestFactionNameUnique(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedFaction(t, store, "f1", "Necrons")
	err := store.PutFaction(ctx, catalog.Faction{ID: "f2", Name: "Necrons"})
	if !errors.Is(err, storage.ErrDuplicateName) {
		t.Errorf("err = %v, want ErrDuplicateName", err)
	}
}

func TestFactionSoftDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedFaction(t, store, "f1", "Drukhari")
	if err := store.DeleteFaction(ctx, "f1"); err != nil {
		t.Fatalf("DeleteFaction: %v", err)
	}

	if _, err := store.GetFaction(ctx, "f1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("get deleted err = %v, want ErrNotFound", err)
	}
	if err := store.DeleteFaction(ctx, "f1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("double delete err = %v, want ErrNotFound", err)
	}

	// Soft-deleted rows free the name for reuse.
	if err := store.PutFaction(ctx, catalog.Faction{ID: "f2", Name: "Drukhari"}); err != nil {
		t.Errorf("reuse deleted name: %v", err)
	}

	// Deleted rows still show up when asked for.
	all, err := store.ListFactions(ctx, storage.ListFilter{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("ListFactions: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d factions with deleted, want 2", len(all))
	}
	live, err := store.ListFactions(ctx, storage.ListFilter{})
	if err != nil {
		t.Fatalf("ListFactions live: %v", err)
	}
	if len(live) != 1 {
		t.Errorf("got %d live factions, want 1", len(live))
	}
}

func TestDatasheetNameUniquePerFaction(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedFaction(t, store, "f1", "Orks")
	seedFaction(t, store, "f2", "Tyranids")
	seedDatasheet(t, store, "d1", "f1", "Warboss")

	// Same name in another faction is fine.
	seedDatasheet(t, store, "d2", "f2", "Warboss")

	err := store.PutDatasheet(ctx, catalog.Datasheet{
		ID: "d3", FactionID: "f1", Name: "Warboss",
		Wounds: 5, ModelsPerUnit: 1,
	})
	if !errors.Is(err, storage.ErrDuplicateName) {
		t.Errorf("err = %v, want ErrDuplicateName", err)
	}
}

func TestDatasheetValidation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.PutDatasheet(ctx, catalog.Datasheet{ID: "d1", FactionID: "f1", Name: "Bad", Wounds: 0, ModelsPerUnit: 1})
	if err == nil {
		t.Error("expected error for zero wounds")
	}
	err = store.PutDatasheet(ctx, catalog.Datasheet{ID: "d1", FactionID: "f1", Name: "Bad", Wounds: 2, ModelsPerUnit: 0})
	if err == nil {
		t.Error("expected error for zero models")
	}
}

func TestListDatasheetsByFaction(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedFaction(t, store, "f1", "Space Marines")
	seedFaction(t, store, "f2", "Aeldari")
	seedDatasheet(t, store, "d1", "f1", "Intercessor Squad")
	seedDatasheet(t, store, "d2", "f1", "Terminator Squad")
	seedDatasheet(t, store, "d3", "f2", "Guardians")

	marines, err := store.ListDatasheets(ctx, storage.ListFilter{FactionID: "f1"})
	if err != nil {
		t.Fatalf("ListDatasheets: %v", err)
	}
	if len(marines) != 2 {
		t.Fatalf("got %d datasheets, want 2", len(marines))
	}
	// Ordered by name.
	if marines[0].Name != "Intercessor Squad" || marines[1].Name != "Terminator Squad" {
		t.Errorf("order = %s, %s", marines[0].Name, marines[1].Name)
	}
	if marines[0].Keywords[0] != "INFANTRY" {
		t.Errorf("keywords = %v", marines[0].Keywords)
	}
}

func TestWeaponRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedFaction(t, store, "f1", "Adeptus Custodes")
	seedDatasheet(t, store, "d1", "f1", "Custodian Guard")

	weapon := catalog.Weapon{
		ID: "w1", DatasheetID: "d1", Name: "Guardian spear", Kind: catalog.WeaponKindMelee,
		Attacks: "5", Skill: 2, Strength: 7, AP: 2, Damage: "2",
		Abilities: []string{"LETHAL HITS"},
	}
	if err := store.PutWeapon(ctx, weapon); err != nil {
		t.Fatalf("PutWeapon: %v", err)
	}

	got, err := store.GetWeapon(ctx, "w1")
	if err != nil {
		t.Fatalf("GetWeapon: %v", err)
	}
	if got.Strength != 7 || got.AP != 2 || got.Damage != "2" {
		t.Errorf("profile = S%d AP%d D%s", got.Strength, got.AP, got.Damage)
	}
	if len(got.Abilities) != 1 || got.Abilities[0] != "LETHAL HITS" {
		t.Errorf("abilities = %v", got.Abilities)
	}

	if err := store.PutWeapon(ctx, catalog.Weapon{ID: "w2", DatasheetID: "d1", Name: "Bad", Kind: "psychic"}); err == nil {
		t.Error("expected error for invalid kind")
	}
}

func TestStratagemDefaults(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedFaction(t, store, "f1", "Adeptus Custodes")
	err := store.PutStratagem(ctx, catalog.Stratagem{
		ID: "s1", FactionID: "f1", Name: "Arcane Genetic Alchemy", CPCost: 1,
		Type: catalog.StratagemBattleTactic,
	})
	if err != nil {
		t.Fatalf("PutStratagem: %v", err)
	}

	got, err := store.GetStratagem(ctx, "s1")
	if err != nil {
		t.Fatalf("GetStratagem: %v", err)
	}
	if got.Turn != catalog.TurnEither {
		t.Errorf("turn = %q, want either default", got.Turn)
	}
}

func TestCountDatasheetDependents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedFaction(t, store, "f1", "Tyranids")
	seedDatasheet(t, store, "d1", "f1", "Hive Tyrant")

	deps, err := store.CountDatasheetDependents(ctx, "d1")
	if err != nil {
		t.Fatalf("CountDatasheetDependents: %v", err)
	}
	if deps.Total() != 0 {
		t.Errorf("fresh datasheet dependents = %d, want 0", deps.Total())
	}

	if err := store.PutWeapon(ctx, catalog.Weapon{ID: "w1", DatasheetID: "d1", Name: "Monstrous bonesword", Kind: catalog.WeaponKindMelee}); err != nil {
		t.Fatalf("PutWeapon: %v", err)
	}
	if err := store.PutAbility(ctx, catalog.Ability{ID: "a1", DatasheetID: "d1", Name: "Synapse"}); err != nil {
		t.Fatalf("PutAbility: %v", err)
	}
	if err := store.PutContext(ctx, catalog.CompetitiveContext{
		ID: "c1", DatasheetID: "d1", FactionID: "f1", Tier: "A",
	}); err != nil {
		t.Fatalf("PutContext: %v", err)
	}

	deps, err = store.CountDatasheetDependents(ctx, "d1")
	if err != nil {
		t.Fatalf("CountDatasheetDependents: %v", err)
	}
	if deps.Weapons != 1 || deps.Abilities != 1 || deps.CompetitiveContexts != 1 {
		t.Errorf("dependents = %+v", deps)
	}

	// Soft-deleted dependents no longer count.
	if err := store.DeleteWeapon(ctx, "w1"); err != nil {
		t.Fatalf("DeleteWeapon: %v", err)
	}
	deps, _ = store.CountDatasheetDependents(ctx, "d1")
	if deps.Weapons != 0 {
		t.Errorf("weapons after delete = %d, want 0", deps.Weapons)
	}
}

func TestSourceLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	source := catalog.CompetitiveSource{
		ID: "src1", URL: "https://example.com/meta-review", Kind: catalog.SourceArticle,
	}
	if err := store.PutSource(ctx, source); err != nil {
		t.Fatalf("PutSource: %v", err)
	}

	got, err := store.GetSource(ctx, "src1")
	if err != nil {
		t.Fatalf("GetSource: %v", err)
	}
	if got.Status != catalog.SourcePending {
		t.Errorf("status = %q, want pending default", got.Status)
	}

	if err := store.SetSourceStatus(ctx, "src1", catalog.SourceFailed, "fetch timeout"); err != nil {
		t.Fatalf("SetSourceStatus: %v", err)
	}
	got, _ = store.GetSource(ctx, "src1")
	if got.Status != catalog.SourceFailed || got.Error != "fetch timeout" {
		t.Errorf("after fail: status=%q error=%q", got.Status, got.Error)
	}

	// Moving out of failed clears the error.
	if err := store.SetSourceStatus(ctx, "src1", catalog.SourcePending, "stale"); err != nil {
		t.Fatalf("SetSourceStatus reset: %v", err)
	}
	got, _ = store.GetSource(ctx, "src1")
	if got.Error != "" {
		t.Errorf("error = %q, want cleared", got.Error)
	}

	pending, err := store.ListSources(ctx, catalog.SourcePending, 10)
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1", len(pending))
	}
}

func TestExtractionAndContextRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	extraction := catalog.UnitExtraction{
		ID: "e1", SourceID: "src1", DatasheetID: "d1",
		Found: true, Tier: "S", TierReasoning: "dominates shooting",
		BestTargets: []string{"light vehicles"},
		Synergies:   []catalog.Synergy{{Unit: "Shield-Captain", Why: "reroll aura"}},
		Confidence:  0.9,
	}
	if err := store.PutExtraction(ctx, extraction); err != nil {
		t.Fatalf("PutExtraction: %v", err)
	}

	// Re-extracting the same source replaces, not duplicates.
	extraction.ID = "e2"
	extraction.Tier = "A"
	if err := store.PutExtraction(ctx, extraction); err != nil {
		t.Fatalf("PutExtraction replace: %v", err)
	}

	extractions, err := store.ListExtractionsByDatasheet(ctx, "d1")
	if err != nil {
		t.Fatalf("ListExtractionsByDatasheet: %v", err)
	}
	if len(extractions) != 1 {
		t.Fatalf("got %d extractions, want 1", len(extractions))
	}
	if extractions[0].Tier != "A" {
		t.Errorf("tier = %q, want replaced value A", extractions[0].Tier)
	}
	if len(extractions[0].Synergies) != 1 || extractions[0].Synergies[0].Unit != "Shield-Captain" {
		t.Errorf("synergies = %+v", extractions[0].Synergies)
	}

	if err := store.PutExtraction(ctx, catalog.UnitExtraction{ID: "e3", SourceID: "s", DatasheetID: "d", Found: true, Tier: "X"}); err == nil {
		t.Error("expected error for invalid tier")
	}

	record := catalog.CompetitiveContext{
		ID: "c1", DatasheetID: "d1", FactionID: "f1", DetachmentID: "det1",
		Tier: "A", Summary: "strong generalist", SourceCount: 2,
		Conflicts: []string{"source disagreement on tier: S vs B"},
	}
	if err := store.PutContext(ctx, record); err != nil {
		t.Fatalf("PutContext: %v", err)
	}

	got, err := store.GetContext(ctx, "d1", "f1", "det1")
	if err != nil {
		t.Fatalf("GetContext: %v", err)
	}
	if got.SourceCount != 2 || len(got.Conflicts) != 1 {
		t.Errorf("context = %+v", got)
	}

	if _, err := store.GetContext(ctx, "d1", "f1", "other"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing context err = %v, want ErrNotFound", err)
	}
}
