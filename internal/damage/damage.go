// Package damage computes closed-form expected-value combat resolution for
// one weapon profile firing at one defending unit. Everything here is a pure
// function over the inputs; nothing is persisted.
package damage

import (
	"fmt"
	"strings"
)

// Reroll selects which dice in a stage are rerolled.
type Reroll string

const (
	RerollNone Reroll = ""
	RerollOnes Reroll = "ones"
	RerollAll  Reroll = "all"
)

// WeaponProfile is the attacking profile, flags included.
type WeaponProfile struct {
	// Attacks is the attacks characteristic ("5", "D6", "2D3+1").
	Attacks string
	// Skill is the BS or WS target (3 for 3+). Ignored for TORRENT weapons.
	Skill    int
	Strength int
	// AP is a non-negative magnitude.
	AP int
	// Damage is the damage characteristic ("1", "D3", "D6+2").
	Damage string
	// Count is how many identical weapons fire; zero means one.
	Count int

	Torrent           bool
	TwinLinked        bool
	LethalHits        bool
	DevastatingWounds bool
	Blast             bool
	// SustainedHits is the expected extra hits per critical hit.
	SustainedHits float64
	// RapidFire is the bonus attacks gained within half range.
	RapidFire int
	// AntiKeyword and AntiTarget implement ANTI-X N+: against a defender
	// with the keyword, unmodified wound rolls of N+ are critical wounds.
	AntiKeyword string
	AntiTarget  int
}

// Defender describes the target unit.
type Defender struct {
	Toughness int
	// Save is the armour save target (3 for 3+).
	Save int
	// Invulnerable is the invulnerable save target, 0 for none.
	Invulnerable int
	// Wounds per model.
	Wounds int
	// Models currently alive in the unit.
	Models   int
	Keywords []string
}

// Modifiers are situational adjustments to the attack sequence.
type Modifiers struct {
	// Cover grants the benefit of cover (+1 to armour saves, capped at 2+).
	Cover bool
	// HalfRange activates RAPID FIRE bonus attacks.
	HalfRange bool
	// HitModifier and WoundModifier are clamped to [-1, +1] per the rules.
	HitModifier   int
	WoundModifier int
	RerollHits    Reroll
	RerollWounds  Reroll
}

// Result is the expected outcome of the full attack sequence.
type Result struct {
	Attacks       float64 `json:"attacks"`
	Hits          float64 `json:"hits"`
	Wounds        float64 `json:"wounds"`
	UnsavedWounds float64 `json:"unsaved_wounds"`
	// MortalWounds counts DEVASTATING WOUNDS damage that bypassed saves,
	// already included in UnsavedWounds.
	MortalWounds float64 `json:"mortal_wounds"`
	Damage       float64 `json:"damage"`
	ModelsSlain  float64 `json:"models_slain"`

	// Per-roll probabilities for the breakdown view.
	HitProbability     float64 `json:"hit_probability"`
	WoundProbability   float64 `json:"wound_probability"`
	UnsavedProbability float64 `json:"unsaved_probability"`
	DamagePerWound     float64 `json:"damage_per_wound"`
}

// Resolve runs the expected-value attack sequence.
func Resolve(weapon WeaponProfile, defender Defender, mods Modifiers) (Result, error) {
	if weapon.Strength <= 0 {
		return Result{}, fmt.Errorf("weapon strength must be positive")
	}
	if defender.Toughness <= 0 || defender.Wounds <= 0 || defender.Models <= 0 {
		return Result{}, fmt.Errorf("defender toughness, wounds and models must be positive")
	}
	if !weapon.Torrent && (weapon.Skill < 2 || weapon.Skill > 6) {
		return Result{}, fmt.Errorf("weapon skill must be between 2+ and 6+")
	}

	attacks, err := Expectation(weapon.Attacks)
	if err != nil {
		return Result{}, err
	}
	if weapon.Blast {
		attacks += float64(defender.Models / 5)
	}
	if weapon.RapidFire > 0 && mods.HalfRange {
		attacks += float64(weapon.RapidFire)
	}
	count := weapon.Count
	if count <= 0 {
		count = 1
	}
	attacks *= float64(count)

	damagePerWound, err := Expectation(weapon.Damage)
	if err != nil {
		return Result{}, err
	}

	// Hit roll. Unmodified 6s are critical hits; TORRENT auto-hits cannot
	// be critical.
	var hitProb, critHitProb float64
	if weapon.Torrent {
		hitProb = 1
	} else {
		target := clampTarget(weapon.Skill - clampModifier(mods.HitModifier))
		hitProb = successProb(target)
		critHitProb = 1.0 / 6
		hitProb, critHitProb = applyReroll(mods.RerollHits, hitProb, critHitProb)
	}

	// Split hits into those that roll to wound and auto-wounds from
	// LETHAL HITS. SUSTAINED HITS extras are ordinary hits.
	sustainedExtra := critHitProb * weapon.SustainedHits
	totalHits := hitProb + sustainedExtra
	autoWounds := 0.0
	woundRollingHits := totalHits
	if weapon.LethalHits {
		autoWounds = critHitProb
		woundRollingHits = totalHits - critHitProb
	}

	// Wound roll. ANTI-X lowers the critical wound threshold against
	// matching defenders; critical wounds always wound.
	critThreshold := 6
	if weapon.AntiTarget > 0 && hasKeyword(defender.Keywords, weapon.AntiKeyword) {
		critThreshold = weapon.AntiTarget
	}
	base := woundTarget(weapon.Strength, defender.Toughness)
	target := clampTarget(base - clampModifier(mods.WoundModifier))
	if critThreshold < target {
		target = critThreshold
	}
	woundProb := successProb(target)
	critWoundProb := successProb(critThreshold)

	woundReroll := mods.RerollWounds
	if weapon.TwinLinked {
		woundReroll = RerollAll
	}
	woundProb, critWoundProb = applyReroll(woundReroll, woundProb, critWoundProb)

	// Save roll. Armour is modified by AP and cover; the invulnerable save
	// ignores both. Cover never improves a save beyond 2+.
	armour := defender.Save + weapon.AP
	if mods.Cover {
		armour--
		if armour < 2 {
			armour = 2
		}
	}
	saveTarget := armour
	if defender.Invulnerable > 0 && defender.Invulnerable < saveTarget {
		saveTarget = defender.Invulnerable
	}
	failProb := 1.0
	if saveTarget <= 6 {
		failProb = 1 - successProb(clampTarget(saveTarget))
	}

	// Assemble per-attack expectations, then scale by attacks.
	woundsPerAttack := woundRollingHits*woundProb + autoWounds
	mortalsPerAttack := 0.0
	if weapon.DevastatingWounds {
		mortalsPerAttack = woundRollingHits * critWoundProb
	}
	savablePerAttack := woundsPerAttack - mortalsPerAttack
	unsavedPerAttack := savablePerAttack*failProb + mortalsPerAttack

	result := Result{
		Attacks:            attacks,
		Hits:               attacks * totalHits,
		Wounds:             attacks * woundsPerAttack,
		MortalWounds:       attacks * mortalsPerAttack,
		UnsavedWounds:      attacks * unsavedPerAttack,
		Damage:             attacks * unsavedPerAttack * damagePerWound,
		HitProbability:     hitProb,
		WoundProbability:   woundProb,
		UnsavedProbability: failProb,
		DamagePerWound:     damagePerWound,
	}

	// Excess damage from a single unsaved wound does not spill over to the
	// next model, so cap the per-wound damage at the wounds characteristic.
	effective := damagePerWound
	if effective > float64(defender.Wounds) {
		effective = float64(defender.Wounds)
	}
	slain := result.UnsavedWounds * effective / float64(defender.Wounds)
	if slain > float64(defender.Models) {
		slain = float64(defender.Models)
	}
	result.ModelsSlain = slain

	return result, nil
}

// woundTarget implements the strength versus toughness table.
func woundTarget(strength, toughness int) int {
	switch {
	case strength >= toughness*2:
		return 2
	case strength > toughness:
		return 3
	case strength == toughness:
		return 4
	case strength*2 <= toughness:
		return 6
	default:
		return 5
	}
}

// successProb is the chance of rolling target or higher on a D6, with
// unmodified 1s always failing.
func successProb(target int) float64 {
	if target <= 1 {
		target = 2
	}
	if target > 6 {
		return 0
	}
	return float64(7-target) / 6
}

func clampTarget(target int) int {
	if target < 2 {
		return 2
	}
	if target > 6 {
		return 6
	}
	return target
}

func clampModifier(modifier int) int {
	if modifier > 1 {
		return 1
	}
	if modifier < -1 {
		return -1
	}
	return modifier
}

func applyReroll(mode Reroll, success, crit float64) (float64, float64) {
	switch mode {
	case RerollOnes:
		return success + success/6, crit + crit/6
	case RerollAll:
		return success + (1-success)*success, crit + (1-success)*crit
	default:
		return success, crit
	}
}

func hasKeyword(keywords []string, keyword string) bool {
	for _, candidate := range keywords {
		if strings.EqualFold(candidate, keyword) {
			return true
		}
	}
	return false
}
