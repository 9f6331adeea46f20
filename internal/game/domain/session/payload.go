package session

import "encoding/json"

// CreatePayload describes the session.created event.
type CreatePayload struct {
	Name               string `json:"name"`
	PlayerFaction      string `json:"playerFaction"`
	OpponentFaction    string `json:"opponentFaction"`
	PlayerDetachment   string `json:"playerDetachment,omitempty"`
	OpponentDetachment string `json:"opponentDetachment,omitempty"`
	StartingCP         int    `json:"startingCp"`
}

// EndPayload describes the session.ended event.
type EndPayload struct {
	Result string `json:"result,omitempty"`
}

// RoundAdvancePayload describes the round.advanced event. The Previous fields
// snapshot the flow state the event overwrites so it can be inverted.
type RoundAdvancePayload struct {
	Round         int   `json:"round"`
	PreviousRound int   `json:"previousRound"`
	PreviousTurn  Side  `json:"previousTurn"`
	PreviousPhase Phase `json:"previousPhase"`
	CPGranted     int   `json:"cpGranted"`
}

// TurnSetPayload describes the turn.set event. Setting a turn also resets the
// phase, so the previous phase is snapshotted alongside the previous turn.
type TurnSetPayload struct {
	Turn          Side  `json:"turn"`
	PreviousTurn  Side  `json:"previousTurn"`
	PreviousPhase Phase `json:"previousPhase"`
}

// PhaseSetPayload describes the phase.set event.
type PhaseSetPayload struct {
	Phase         Phase `json:"phase"`
	PreviousPhase Phase `json:"previousPhase"`
}

// CPAdjustPayload describes the cp.adjusted event.
type CPAdjustPayload struct {
	Side   Side   `json:"side"`
	Delta  int    `json:"delta"`
	Reason string `json:"reason,omitempty"`
}

// StratagemUsePayload describes the stratagem.used event.
type StratagemUsePayload struct {
	StratagemID  string `json:"stratagemId"`
	Name         string `json:"name"`
	Side         Side   `json:"side"`
	Cost         int    `json:"cost"`
	Round        int    `json:"round"`
	Turn         Side   `json:"turn"`
	Phase        Phase  `json:"phase"`
	TargetUnitID string `json:"targetUnitId,omitempty"`
}

// UnitDeployPayload describes the unit.deployed event.
type UnitDeployPayload struct {
	UnitID         string `json:"unitId"`
	DatasheetID    string `json:"datasheetId"`
	Name           string `json:"name"`
	Side           Side   `json:"side"`
	Models         int    `json:"models"`
	WoundsPerModel int    `json:"woundsPerModel"`
}

// UnitDamagePayload describes the unit.damaged event. Prior fields snapshot
// the allocation state before the damage so the event can be inverted.
type UnitDamagePayload struct {
	UnitID                  string `json:"unitId"`
	Wounds                  int    `json:"wounds"`
	ModelsSlain             int    `json:"modelsSlain"`
	Destroyed               bool   `json:"destroyed"`
	PriorModelsAlive        int    `json:"priorModelsAlive"`
	PriorWoundedModelWounds int    `json:"priorWoundedModelWounds"`
	SourceUnitID            string `json:"sourceUnitId,omitempty"`
}

// UnitHealPayload describes the unit.healed event.
type UnitHealPayload struct {
	UnitID                  string `json:"unitId"`
	Wounds                  int    `json:"wounds"`
	PriorModelsAlive        int    `json:"priorModelsAlive"`
	PriorWoundedModelWounds int    `json:"priorWoundedModelWounds"`
}

// UnitStatusSetPayload describes the unit.status_set event.
type UnitStatusSetPayload struct {
	UnitID      string `json:"unitId"`
	Status      string `json:"status"`
	Active      bool   `json:"active"`
	PriorActive bool   `json:"priorActive"`
}

// UnitDestroyPayload describes the unit.destroyed event.
type UnitDestroyPayload struct {
	UnitID                  string `json:"unitId"`
	PriorModelsAlive        int    `json:"priorModelsAlive"`
	PriorWoundedModelWounds int    `json:"priorWoundedModelWounds"`
}

// UnitRevivePayload describes the unit.revived event.
type UnitRevivePayload struct {
	UnitID string `json:"unitId"`
	Models int    `json:"models"`
	Wounds int    `json:"wounds"`
}

// NoteAddPayload describes the note.added event.
type NoteAddPayload struct {
	Text string `json:"text"`
}

// RevertPayload describes the event.reverted event. The target event's type
// and payload are embedded so the fold can compute the inverse without
// consulting the journal.
type RevertPayload struct {
	TargetSeq     uint64          `json:"targetSeq"`
	TargetType    string          `json:"targetType"`
	TargetPayload json.RawMessage `json:"targetPayload,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Forced        bool            `json:"forced,omitempty"`
}
