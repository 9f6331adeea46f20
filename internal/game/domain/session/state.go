package session

// Side identifies which player a resource or unit belongs to.
type Side string

const (
	// SidePlayer is the session owner's side.
	SidePlayer Side = "player"
	// SideOpponent is the opposing side.
	SideOpponent Side = "opponent"
)

// IsValid reports whether the side is one of the two known sides.
func (s Side) IsValid() bool {
	return s == SidePlayer || s == SideOpponent
}

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == SidePlayer {
		return SideOpponent
	}
	return SidePlayer
}

// Phase identifies a phase of the battle round.
type Phase string

const (
	PhaseCommand  Phase = "command"
	PhaseMovement Phase = "movement"
	PhaseShooting Phase = "shooting"
	PhaseCharge   Phase = "charge"
	PhaseFight    Phase = "fight"
	PhaseEnd      Phase = "end"
)

// Phases lists the phases of a turn in play order.
var Phases = []Phase{PhaseCommand, PhaseMovement, PhaseShooting, PhaseCharge, PhaseFight, PhaseEnd}

// IsValid reports whether the phase is a known phase.
func (p Phase) IsValid() bool {
	for _, known := range Phases {
		if p == known {
			return true
		}
	}
	return false
}

// UnitState captures the replayed battlefield state of one unit instance.
type UnitState struct {
	// UnitID is the unit instance identifier within the session.
	UnitID string
	// DatasheetID references the catalog datasheet this unit was built from.
	DatasheetID string
	// Name is the display name captured at deploy time.
	Name string
	// Side is the owning side.
	Side Side
	// ModelsTotal is the starting model count.
	ModelsTotal int
	// WoundsPerModel is the wounds characteristic per model.
	WoundsPerModel int
	// ModelsAlive is the current surviving model count.
	ModelsAlive int
	// WoundedModelWounds is the remaining wounds on the single partially
	// wounded model, or 0 when no model is wounded.
	WoundedModelWounds int
	// Statuses holds active status effects (battle-shocked, in-cover...).
	Statuses map[string]bool
	// Destroyed marks the unit as removed from play.
	Destroyed bool
}

// WoundsRemaining returns the total wounds left across the unit.
func (u UnitState) WoundsRemaining() int {
	if u.Destroyed || u.ModelsAlive <= 0 {
		return 0
	}
	total := u.ModelsAlive * u.WoundsPerModel
	if u.WoundedModelWounds > 0 {
		total -= u.WoundsPerModel - u.WoundedModelWounds
	}
	return total
}

// State captures the replayed session context for command routing.
type State struct {
	// Created indicates whether the session.created event has been folded.
	Created bool
	// Ended indicates whether the session has been concluded.
	Ended bool
	// SessionID is the canonical identifier for the session.
	SessionID string
	// Name is a human-facing label for the battle.
	Name string
	// Round is the current battle round (starts at 1 on creation).
	Round int
	// Turn tracks which side holds the active turn.
	Turn Side
	// Phase tracks the current phase of the active turn.
	Phase Phase
	// CommandPoints holds the CP pool per side. Never negative.
	CommandPoints map[Side]int
	// Units indexes unit state by unit instance id.
	Units map[string]UnitState
	// StratagemUses counts activations keyed by usageKey so once-per-phase
	// rules survive replay.
	StratagemUses map[string]int
	// Reverted marks timeline sequence numbers that have been reverted.
	Reverted map[uint64]bool
}

// NewState returns an empty state ready for folding.
func NewState() State {
	return State{
		CommandPoints: make(map[Side]int),
		Units:         make(map[string]UnitState),
		StratagemUses: make(map[string]int),
		Reverted:      make(map[uint64]bool),
	}
}

// CP returns the command point pool for a side.
func (s State) CP(side Side) int {
	return s.CommandPoints[side]
}

// Unit returns the state for one unit instance.
func (s State) Unit(unitID string) (UnitState, bool) {
	u, ok := s.Units[unitID]
	return u, ok
}

// clone returns a copy with fresh maps so folds never alias prior states.
func (s State) clone() State {
	out := s
	out.CommandPoints = make(map[Side]int, len(s.CommandPoints))
	for k, v := range s.CommandPoints {
		out.CommandPoints[k] = v
	}
	out.Units = make(map[string]UnitState, len(s.Units))
	for k, v := range s.Units {
		if v.Statuses != nil {
			statuses := make(map[string]bool, len(v.Statuses))
			for sk, sv := range v.Statuses {
				statuses[sk] = sv
			}
			v.Statuses = statuses
		}
		out.Units[k] = v
	}
	out.StratagemUses = make(map[string]int, len(s.StratagemUses))
	for k, v := range s.StratagemUses {
		out.StratagemUses[k] = v
	}
	out.Reverted = make(map[uint64]bool, len(s.Reverted))
	for k, v := range s.Reverted {
		out.Reverted[k] = v
	}
	return out
}
