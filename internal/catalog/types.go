// Package catalog holds the Warhammer 40K rules data model: factions,
// detachments, datasheets, weapons, abilities and stratagems, plus the
// competitive-context records derived from external sources.
package catalog

import (
	"strings"
	"time"
)

// Faction is a top-level army faction (e.g. Adeptus Custodes).
type Faction struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// Detachment is a faction sub-build that unlocks stratagems and rules.
type Detachment struct {
	ID          string
	FactionID   string
	Name        string
	Description string
	// BattleTacticDiscount reduces the CP cost of Battle Tactic stratagems
	// by one when true (some detachment rules grant this).
	BattleTacticDiscount bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
	DeletedAt            *time.Time
}

// Datasheet is one unit entry with its core statline.
type Datasheet struct {
	ID        string
	FactionID string
	Name      string
	// Movement in inches.
	Movement  int
	Toughness int
	// Save is the unmodified armour save target (e.g. 2 for 2+).
	Save int
	// InvulnerableSave is the invulnerable target, 0 when the unit has none.
	InvulnerableSave int
	Wounds           int
	Leadership       int
	ObjectiveControl int
	ModelsPerUnit    int
	Points           int
	Keywords         []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

// WeaponKind distinguishes ranged from melee profiles.
type WeaponKind string

const (
	WeaponKindRanged WeaponKind = "ranged"
	WeaponKindMelee  WeaponKind = "melee"
)

// Weapon is one weapon profile attached to a datasheet.
type Weapon struct {
	ID          string
	DatasheetID string
	Name        string
	Kind        WeaponKind
	// RangeInches is 0 for melee profiles.
	RangeInches int
	// Attacks is the attacks characteristic, possibly random ("D6", "2D3+1").
	Attacks string
	// Skill is the BS or WS target (e.g. 3 for 3+).
	Skill    int
	Strength int
	// AP is stored as a non-negative magnitude (AP-2 is 2).
	AP int
	// Damage is the damage characteristic, possibly random ("D3", "D6+2").
	Damage string
	// Abilities are weapon keywords as printed, e.g. "SUSTAINED HITS 1",
	// "ANTI-INFANTRY 4", "TWIN-LINKED", "RAPID FIRE 2".
	Abilities []string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Ability is a named rule on a datasheet.
type Ability struct {
	ID          string
	DatasheetID string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// TurnRestriction controls which side's turn a stratagem may be used in.
type TurnRestriction string

const (
	TurnEither    TurnRestriction = "either"
	TurnOurs      TurnRestriction = "ours"
	TurnOpponents TurnRestriction = "opponents"
)

// StratagemType is the printed category (Battle Tactic, Epic Deed...).
type StratagemType string

const (
	StratagemBattleTactic  StratagemType = "battle_tactic"
	StratagemEpicDeed      StratagemType = "epic_deed"
	StratagemStrategicPloy StratagemType = "strategic_ploy"
	StratagemWargear       StratagemType = "wargear"
)

// Stratagem is one stratagem entry, scoped to a faction and optionally a
// detachment.
type Stratagem struct {
	ID           string
	FactionID    string
	DetachmentID string
	Name         string
	CPCost       int
	// Phase restricts use to one phase, empty for any phase.
	Phase       string
	Turn        TurnRestriction
	Type        StratagemType
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// SourceKind identifies where competitive content came from.
type SourceKind string

const (
	SourceYoutube SourceKind = "youtube"
	SourceReddit  SourceKind = "reddit"
	SourceArticle SourceKind = "article"
	SourceForum   SourceKind = "forum"
)

// SourceStatus is the processing lifecycle of a competitive source.
type SourceStatus string

const (
	SourcePending    SourceStatus = "pending"
	SourceFetched    SourceStatus = "fetched"
	SourceExtracted  SourceStatus = "extracted"
	SourceAggregated SourceStatus = "aggregated"
	SourceFailed     SourceStatus = "failed"
)

// CompetitiveSource is one registered external source of competitive analysis.
type CompetitiveSource struct {
	ID        string
	URL       string
	Kind      SourceKind
	Title     string
	FactionID string
	Status    SourceStatus
	// Error holds the failure reason when Status is failed.
	Error string
	// Content is the fetched raw text, populated once Status reaches fetched.
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Synergy names another unit this one combines well with.
type Synergy struct {
	Unit string `json:"unit"`
	Why  string `json:"why"`
}

// UnitExtraction is the per-source competitive read on one datasheet.
type UnitExtraction struct {
	ID          string
	SourceID    string
	DatasheetID string
	// Found reports whether the source actually discussed this unit.
	Found bool
	// Tier is S, A, B, C, D or F.
	Tier          string
	TierReasoning string
	BestTargets   []string
	Counters      []string
	Synergies     []Synergy
	Playstyle     string
	Deployment    string
	// Confidence is the model's self-reported certainty in [0,1].
	Confidence float64
	CreatedAt  time.Time
}

// CompetitiveContext is the aggregated competitive picture for one datasheet
// within a faction and detachment.
type CompetitiveContext struct {
	ID           string
	DatasheetID  string
	FactionID    string
	DetachmentID string
	Tier         string
	Summary      string
	BestTargets  []string
	Counters     []string
	Synergies    []Synergy
	Playstyle    string
	Deployment   string
	// SourceCount is how many extracted sources fed this aggregation.
	SourceCount int
	// Conflicts records disagreements between sources, one note each.
	Conflicts []string
	UpdatedAt time.Time
}

// Tiers lists valid competitive tiers best-first.
var Tiers = []string{"S", "A", "B", "C", "D", "F"}

// ValidTier reports whether tier is one of the S-F grades.
func ValidTier(tier string) bool {
	for _, t := range Tiers {
		if t == tier {
			return true
		}
	}
	return false
}

// NormalizeName trims and collapses whitespace for (faction, name) uniqueness
// comparisons.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
