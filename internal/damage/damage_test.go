package damage

import (
	"math"
	"testing"
)

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %.6f, want %.6f", name, got, want)
	}
}

func baseDefender() Defender {
	return Defender{Toughness: 4, Save: 3, Wounds: 2, Models: 5, Keywords: []string{"INFANTRY"}}
}

func TestExpectation(t *testing.T) {
	tests := []struct {
		expr    string
		want    float64
		wantErr bool
	}{
		{expr: "4", want: 4},
		{expr: "D6", want: 3.5},
		{expr: "D3", want: 2},
		{expr: "2D6", want: 7},
		{expr: "D6+2", want: 5.5},
		{expr: "2D3+1", want: 5},
		{expr: "d6", want: 3.5},
		{expr: " D6 + 2 ", want: 5.5},
		{expr: "", wantErr: true},
		{expr: "Dsix", wantErr: true},
		{expr: "D1", wantErr: true},
	}
	for _, tt := range tests {
		got, err := Expectation(tt.expr)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Expectation(%q): expected error", tt.expr)
			}
			continue
		}
		if err != nil {
			t.Errorf("Expectation(%q): %v", tt.expr, err)
			continue
		}
		approx(t, "Expectation("+tt.expr+")", got, tt.want)
	}
}

func TestWoundTargetTable(t *testing.T) {
	tests := []struct {
		strength, toughness, want int
	}{
		{8, 4, 2},  // double
		{5, 4, 3},  // greater
		{4, 4, 4},  // equal
		{4, 5, 5},  // less
		{4, 8, 6},  // half or worse
		{3, 7, 6},  // 2S <= T
		{10, 5, 2}, // exactly double
	}
	for _, tt := range tests {
		if got := woundTarget(tt.strength, tt.toughness); got != tt.want {
			t.Errorf("woundTarget(S%d, T%d) = %d+, want %d+", tt.strength, tt.toughness, got, tt.want)
		}
	}
}

func TestResolveBoltRifle(t *testing.T) {
	result, err := Resolve(
		WeaponProfile{Attacks: "2", Skill: 3, Strength: 4, AP: 0, Damage: "1"},
		baseDefender(),
		Modifiers{},
	)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	approx(t, "attacks", result.Attacks, 2)
	approx(t, "hit probability", result.HitProbability, 2.0/3)
	approx(t, "wound probability", result.WoundProbability, 0.5)
	approx(t, "unsaved probability", result.UnsavedProbability, 1.0/3)
	approx(t, "unsaved wounds", result.UnsavedWounds, 2.0/9)
	approx(t, "damage", result.Damage, 2.0/9)
	// 1 damage into 2-wound models: half a model per unsaved wound.
	approx(t, "models slain", result.ModelsSlain, 1.0/9)
}

func TestResolveTorrentAutoHits(t *testing.T) {
	result, err := Resolve(
		WeaponProfile{Attacks: "D6", Strength: 5, Damage: "1", Torrent: true},
		baseDefender(),
		Modifiers{},
	)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	approx(t, "attacks", result.Attacks, 3.5)
	approx(t, "hit probability", result.HitProbability, 1)
	approx(t, "hits", result.Hits, 3.5)
}

func TestResolveSustainedHits(t *testing.T) {
	weapon := WeaponProfile{Attacks: "6", Skill: 3, Strength: 4, Damage: "1", SustainedHits: 1}
	result, err := Resolve(weapon, baseDefender(), Modifiers{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// Each attack adds a sixth of a hit on top of the base 2/3.
	approx(t, "hits", result.Hits, 6*(2.0/3+1.0/6))
}

func TestResolveLethalHits(t *testing.T) {
	tough := Defender{Toughness: 8, Save: 3, Wounds: 10, Models: 1}
	plain := WeaponProfile{Attacks: "1", Skill: 3, Strength: 4, Damage: "1"}
	lethal := plain
	lethal.LethalHits = true

	base, err := Resolve(plain, tough, Modifiers{})
	if err != nil {
		t.Fatalf("Resolve plain: %v", err)
	}
	boosted, err := Resolve(lethal, tough, Modifiers{})
	if err != nil {
		t.Fatalf("Resolve lethal: %v", err)
	}
	// S4 into T8 wounds on 6s, so converting critical hits to auto-wounds
	// more than doubles output.
	approx(t, "plain wounds", base.Wounds, (2.0/3)*(1.0/6))
	approx(t, "lethal wounds", boosted.Wounds, (1.0/2)*(1.0/6)+1.0/6)
}

func TestResolveDevastatingWoundsBypassSave(t *testing.T) {
	hardTarget := Defender{Toughness: 4, Save: 2, Wounds: 3, Models: 3}
	weapon := WeaponProfile{Attacks: "6", Skill: 3, Strength: 4, Damage: "1", DevastatingWounds: true}

	result, err := Resolve(weapon, hardTarget, Modifiers{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// Critical wounds skip the 2+ save entirely.
	mortalsPerAttack := (2.0 / 3) * (1.0 / 6)
	savablePerAttack := (2.0/3)*0.5 - mortalsPerAttack
	approx(t, "mortal wounds", result.MortalWounds, 6*mortalsPerAttack)
	approx(t, "unsaved wounds", result.UnsavedWounds, 6*(savablePerAttack*(1.0/6)+mortalsPerAttack))
}

func TestResolveAntiKeyword(t *testing.T) {
	monster := Defender{Toughness: 10, Save: 3, Wounds: 12, Models: 1, Keywords: []string{"MONSTER"}}
	weapon := WeaponProfile{
		Attacks: "1", Skill: 3, Strength: 3, Damage: "3",
		AntiKeyword: "MONSTER", AntiTarget: 4,
	}

	result, err := Resolve(weapon, monster, Modifiers{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// S3 into T10 would wound on 6s; ANTI-MONSTER 4+ wounds on 4s instead.
	approx(t, "wound probability", result.WoundProbability, 0.5)

	// Against a defender without the keyword the anti clause is inert.
	noKeyword := monster
	noKeyword.Keywords = nil
	result, err = Resolve(weapon, noKeyword, Modifiers{})
	if err != nil {
		t.Fatalf("Resolve no keyword: %v", err)
	}
	approx(t, "wound probability without keyword", result.WoundProbability, 1.0/6)
}

func TestResolveTwinLinkedRerollsWounds(t *testing.T) {
	weapon := WeaponProfile{Attacks: "1", Skill: 3, Strength: 4, Damage: "1", TwinLinked: true}
	result, err := Resolve(weapon, baseDefender(), Modifiers{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	approx(t, "wound probability", result.WoundProbability, 0.5+0.5*0.5)
}

func TestResolveBlastScalesWithModels(t *testing.T) {
	horde := Defender{Toughness: 3, Save: 6, Wounds: 1, Models: 12}
	weapon := WeaponProfile{Attacks: "D6", Skill: 4, Strength: 5, Damage: "1", Blast: true}

	result, err := Resolve(weapon, horde, Modifiers{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// D6 expectation plus one bonus attack per full five models.
	approx(t, "attacks", result.Attacks, 3.5+2)
}

func TestResolveRapidFireAtHalfRange(t *testing.T) {
	weapon := WeaponProfile{Attacks: "2", Skill: 3, Strength: 4, Damage: "1", RapidFire: 2}

	far, err := Resolve(weapon, baseDefender(), Modifiers{})
	if err != nil {
		t.Fatalf("Resolve far: %v", err)
	}
	near, err := Resolve(weapon, baseDefender(), Modifiers{HalfRange: true})
	if err != nil {
		t.Fatalf("Resolve near: %v", err)
	}
	approx(t, "attacks at range", far.Attacks, 2)
	approx(t, "attacks at half range", near.Attacks, 4)
}

func TestResolveCoverAndInvulnerable(t *testing.T) {
	// AP-1 into a 4+ save with cover: net 4+ again.
	result, err := Resolve(
		WeaponProfile{Attacks: "1", Skill: 3, Strength: 4, AP: 1, Damage: "1"},
		Defender{Toughness: 4, Save: 4, Wounds: 1, Models: 10},
		Modifiers{Cover: true},
	)
	if err != nil {
		t.Fatalf("Resolve cover: %v", err)
	}
	approx(t, "unsaved probability with cover", result.UnsavedProbability, 0.5)

	// Cover never improves a save beyond 2+.
	result, err = Resolve(
		WeaponProfile{Attacks: "1", Skill: 3, Strength: 4, AP: 0, Damage: "1"},
		Defender{Toughness: 4, Save: 2, Wounds: 1, Models: 10},
		Modifiers{Cover: true},
	)
	if err != nil {
		t.Fatalf("Resolve capped cover: %v", err)
	}
	approx(t, "unsaved probability capped", result.UnsavedProbability, 1.0/6)

	// A 4++ ignores AP-3 stripping the armour save.
	result, err = Resolve(
		WeaponProfile{Attacks: "1", Skill: 3, Strength: 8, AP: 3, Damage: "3"},
		Defender{Toughness: 4, Save: 3, Invulnerable: 4, Wounds: 3, Models: 5},
		Modifiers{},
	)
	if err != nil {
		t.Fatalf("Resolve invulnerable: %v", err)
	}
	approx(t, "unsaved probability invulnerable", result.UnsavedProbability, 0.5)
}

func TestResolveModifierClamps(t *testing.T) {
	weapon := WeaponProfile{Attacks: "1", Skill: 3, Strength: 4, Damage: "1"}

	// A +3 to hit still only counts as +1.
	result, err := Resolve(weapon, baseDefender(), Modifiers{HitModifier: 3})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	approx(t, "hit probability", result.HitProbability, 5.0/6)

	result, err = Resolve(weapon, baseDefender(), Modifiers{HitModifier: -3})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	approx(t, "penalized hit probability", result.HitProbability, 0.5)
}

func TestResolveRerollHits(t *testing.T) {
	weapon := WeaponProfile{Attacks: "1", Skill: 3, Strength: 4, Damage: "1"}

	ones, err := Resolve(weapon, baseDefender(), Modifiers{RerollHits: RerollOnes})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	approx(t, "reroll ones", ones.HitProbability, 2.0/3+2.0/3/6)

	all, err := Resolve(weapon, baseDefender(), Modifiers{RerollHits: RerollAll})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	approx(t, "reroll all", all.HitProbability, 2.0/3+(1.0/3)*(2.0/3))
}

func TestResolveDamageDoesNotSpill(t *testing.T) {
	// D6+2 damage into 2-wound models: each unsaved wound kills exactly one
	// model, never more.
	result, err := Resolve(
		WeaponProfile{Attacks: "4", Skill: 3, Strength: 8, AP: 2, Damage: "D6+2"},
		Defender{Toughness: 4, Save: 3, Wounds: 2, Models: 5},
		Modifiers{},
	)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	approx(t, "models slain", result.ModelsSlain, result.UnsavedWounds)
}

func TestResolveWeaponCount(t *testing.T) {
	single := WeaponProfile{Attacks: "2", Skill: 3, Strength: 4, Damage: "1"}
	squad := single
	squad.Count = 5

	one, err := Resolve(single, baseDefender(), Modifiers{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	five, err := Resolve(squad, baseDefender(), Modifiers{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	approx(t, "scaled damage", five.Damage, 5*one.Damage)
}

func TestResolveValidation(t *testing.T) {
	defender := baseDefender()
	if _, err := Resolve(WeaponProfile{Attacks: "1", Skill: 3, Damage: "1"}, defender, Modifiers{}); err == nil {
		t.Error("expected error for zero strength")
	}
	if _, err := Resolve(WeaponProfile{Attacks: "1", Skill: 7, Strength: 4, Damage: "1"}, defender, Modifiers{}); err == nil {
		t.Error("expected error for bad skill")
	}
	if _, err := Resolve(WeaponProfile{Attacks: "1", Skill: 3, Strength: 4, Damage: "1"}, Defender{}, Modifiers{}); err == nil {
		t.Error("expected error for empty defender")
	}
}

func TestApplyAbilities(t *testing.T) {
	var profile WeaponProfile
	err := profile.ApplyAbilities([]string{
		"TORRENT", "Twin-Linked", "LETHAL HITS", "DEVASTATING WOUNDS",
		"BLAST", "SUSTAINED HITS D3", "RAPID FIRE 2", "ANTI-INFANTRY 4+",
		"Precision", // unrecognized, ignored
	})
	if err != nil {
		t.Fatalf("ApplyAbilities: %v", err)
	}
	if !profile.Torrent || !profile.TwinLinked || !profile.LethalHits || !profile.DevastatingWounds || !profile.Blast {
		t.Errorf("flags = %+v", profile)
	}
	approx(t, "sustained hits", profile.SustainedHits, 2)
	if profile.RapidFire != 2 {
		t.Errorf("rapid fire = %d", profile.RapidFire)
	}
	if profile.AntiKeyword != "INFANTRY" || profile.AntiTarget != 4 {
		t.Errorf("anti = %s %d", profile.AntiKeyword, profile.AntiTarget)
	}
}
