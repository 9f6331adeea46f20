package session

import (
	"encoding/json"
	"fmt"

	"github.com/AndrewDeWitt/grimlog/internal/game/domain/event"
)

// Fold replays events in sequence order into a fresh state.
func Fold(events []event.Event) (State, error) {
	state := NewState()
	for _, evt := range events {
		next, err := Apply(state, evt)
		if err != nil {
			return State{}, fmt.Errorf("fold seq %d: %w", evt.Seq, err)
		}
		state = next
	}
	return state, nil
}

// Apply folds a single event into state. The input state is never mutated.
func Apply(state State, evt event.Event) (State, error) {
	next := state.clone()

	switch evt.Type {
	case event.TypeSessionCreated:
		var payload CreatePayload
		if err := unmarshalPayload(evt.PayloadJSON, &payload); err != nil {
			return State{}, err
		}
		next.Created = true
		next.SessionID = evt.SessionID
		next.Name = payload.Name
		next.Round = 1
		next.Turn = SidePlayer
		next.Phase = PhaseCommand
		next.CommandPoints[SidePlayer] = payload.StartingCP
		next.CommandPoints[SideOpponent] = payload.StartingCP

	case event.TypeSessionEnded:
		next.Ended = true

	case event.TypeRoundAdvanced:
		var payload RoundAdvancePayload
		if err := unmarshalPayload(evt.PayloadJSON, &payload); err != nil {
			return State{}, err
		}
		next.Round = payload.Round
		next.Turn = SidePlayer
		next.Phase = PhaseCommand
		next.CommandPoints[SidePlayer] += payload.CPGranted
		next.CommandPoints[SideOpponent] += payload.CPGranted

	case event.TypeTurnSet:
		var payload TurnSetPayload
		if err := unmarshalPayload(evt.PayloadJSON, &payload); err != nil {
			return State{}, err
		}
		next.Turn = payload.Turn
		next.Phase = PhaseCommand

	case event.TypePhaseSet:
		var payload PhaseSetPayload
		if err := unmarshalPayload(evt.PayloadJSON, &payload); err != nil {
			return State{}, err
		}
		next.Phase = payload.Phase

	case event.TypeCommandPointsAdjusted:
		var payload CPAdjustPayload
		if err := unmarshalPayload(evt.PayloadJSON, &payload); err != nil {
			return State{}, err
		}
		next.CommandPoints[payload.Side] = clampCP(next.CommandPoints[payload.Side] + payload.Delta)

	case event.TypeStratagemUsed:
		var payload StratagemUsePayload
		if err := unmarshalPayload(evt.PayloadJSON, &payload); err != nil {
			return State{}, err
		}
		next.CommandPoints[payload.Side] = clampCP(next.CommandPoints[payload.Side] - payload.Cost)
		next.StratagemUses[UsageKey(payload.Side, payload.StratagemID, payload.Round, payload.Turn, payload.Phase)]++

	case event.TypeUnitDeployed:
		var payload UnitDeployPayload
		if err := unmarshalPayload(evt.PayloadJSON, &payload); err != nil {
			return State{}, err
		}
		next.Units[payload.UnitID] = UnitState{
			UnitID:         payload.UnitID,
			DatasheetID:    payload.DatasheetID,
			Name:           payload.Name,
			Side:           payload.Side,
			ModelsTotal:    payload.Models,
			WoundsPerModel: payload.WoundsPerModel,
			ModelsAlive:    payload.Models,
			Statuses:       make(map[string]bool),
		}

	case event.TypeUnitDamaged:
		var payload UnitDamagePayload
		if err := unmarshalPayload(evt.PayloadJSON, &payload); err != nil {
			return State{}, err
		}
		unit, ok := next.Units[payload.UnitID]
		if !ok {
			return State{}, fmt.Errorf("unit %s not deployed", payload.UnitID)
		}
		alive, wounded, _, destroyed := AllocateWounds(unit.ModelsAlive, unit.WoundedModelWounds, unit.WoundsPerModel, payload.Wounds)
		unit.ModelsAlive = alive
		unit.WoundedModelWounds = wounded
		unit.Destroyed = destroyed
		next.Units[payload.UnitID] = unit

	case event.TypeUnitHealed:
		var payload UnitHealPayload
		if err := unmarshalPayload(evt.PayloadJSON, &payload); err != nil {
			return State{}, err
		}
		unit, ok := next.Units[payload.UnitID]
		if !ok {
			return State{}, fmt.Errorf("unit %s not deployed", payload.UnitID)
		}
		alive, wounded := healWounds(unit.ModelsAlive, unit.WoundedModelWounds, unit.WoundsPerModel, unit.ModelsTotal, payload.Wounds)
		unit.ModelsAlive = alive
		unit.WoundedModelWounds = wounded
		next.Units[payload.UnitID] = unit

	case event.TypeUnitStatusSet:
		var payload UnitStatusSetPayload
		if err := unmarshalPayload(evt.PayloadJSON, &payload); err != nil {
			return State{}, err
		}
		unit, ok := next.Units[payload.UnitID]
		if !ok {
			return State{}, fmt.Errorf("unit %s not deployed", payload.UnitID)
		}
		if unit.Statuses == nil {
			unit.Statuses = make(map[string]bool)
		}
		if payload.Active {
			unit.Statuses[payload.Status] = true
		} else {
			delete(unit.Statuses, payload.Status)
		}
		next.Units[payload.UnitID] = unit

	case event.TypeUnitDestroyed:
		var payload UnitDestroyPayload
		if err := unmarshalPayload(evt.PayloadJSON, &payload); err != nil {
			return State{}, err
		}
		unit, ok := next.Units[payload.UnitID]
		if !ok {
			return State{}, fmt.Errorf("unit %s not deployed", payload.UnitID)
		}
		unit.ModelsAlive = 0
		unit.WoundedModelWounds = 0
		unit.Destroyed = true
		next.Units[payload.UnitID] = unit

	case event.TypeUnitRevived:
		var payload UnitRevivePayload
		if err := unmarshalPayload(evt.PayloadJSON, &payload); err != nil {
			return State{}, err
		}
		unit, ok := next.Units[payload.UnitID]
		if !ok {
			return State{}, fmt.Errorf("unit %s not deployed", payload.UnitID)
		}
		unit.Destroyed = false
		unit.ModelsAlive = payload.Models
		unit.WoundedModelWounds = payload.Wounds
		next.Units[payload.UnitID] = unit

	case event.TypeNoteAdded:
		// Notes live in the journal only; no derived state.

	case event.TypeEventReverted:
		var payload RevertPayload
		if err := unmarshalPayload(evt.PayloadJSON, &payload); err != nil {
			return State{}, err
		}
		reverted, err := applyInverse(next, payload)
		if err != nil {
			return State{}, err
		}
		next = reverted
		next.Reverted[payload.TargetSeq] = true

	default:
		return State{}, fmt.Errorf("unknown event type %s", evt.Type)
	}

	return next, nil
}

// applyInverse undoes the effect of the target event described by a revert
// payload. Each event payload snapshots the prior values it needs here.
func applyInverse(state State, payload RevertPayload) (State, error) {
	switch event.Type(payload.TargetType) {
	case event.TypeSessionEnded:
		state.Ended = false

	case event.TypeRoundAdvanced:
		var target RoundAdvancePayload
		if err := unmarshalPayload(payload.TargetPayload, &target); err != nil {
			return State{}, err
		}
		state.Round = target.PreviousRound
		state.Turn = target.PreviousTurn
		state.Phase = target.PreviousPhase
		state.CommandPoints[SidePlayer] = clampCP(state.CommandPoints[SidePlayer] - target.CPGranted)
		state.CommandPoints[SideOpponent] = clampCP(state.CommandPoints[SideOpponent] - target.CPGranted)

	case event.TypeTurnSet:
		var target TurnSetPayload
		if err := unmarshalPayload(payload.TargetPayload, &target); err != nil {
			return State{}, err
		}
		state.Turn = target.PreviousTurn
		state.Phase = target.PreviousPhase

	case event.TypePhaseSet:
		var target PhaseSetPayload
		if err := unmarshalPayload(payload.TargetPayload, &target); err != nil {
			return State{}, err
		}
		state.Phase = target.PreviousPhase

	case event.TypeCommandPointsAdjusted:
		var target CPAdjustPayload
		if err := unmarshalPayload(payload.TargetPayload, &target); err != nil {
			return State{}, err
		}
		state.CommandPoints[target.Side] = clampCP(state.CommandPoints[target.Side] - target.Delta)

	case event.TypeStratagemUsed:
		var target StratagemUsePayload
		if err := unmarshalPayload(payload.TargetPayload, &target); err != nil {
			return State{}, err
		}
		state.CommandPoints[target.Side] += target.Cost
		key := UsageKey(target.Side, target.StratagemID, target.Round, target.Turn, target.Phase)
		if state.StratagemUses[key] > 0 {
			state.StratagemUses[key]--
		}

	case event.TypeUnitDeployed:
		var target UnitDeployPayload
		if err := unmarshalPayload(payload.TargetPayload, &target); err != nil {
			return State{}, err
		}
		delete(state.Units, target.UnitID)

	case event.TypeUnitDamaged:
		var target UnitDamagePayload
		if err := unmarshalPayload(payload.TargetPayload, &target); err != nil {
			return State{}, err
		}
		unit, ok := state.Units[target.UnitID]
		if !ok {
			return State{}, fmt.Errorf("unit %s not deployed", target.UnitID)
		}
		unit.ModelsAlive = target.PriorModelsAlive
		unit.WoundedModelWounds = target.PriorWoundedModelWounds
		unit.Destroyed = false
		state.Units[target.UnitID] = unit

	case event.TypeUnitHealed:
		var target UnitHealPayload
		if err := unmarshalPayload(payload.TargetPayload, &target); err != nil {
			return State{}, err
		}
		unit, ok := state.Units[target.UnitID]
		if !ok {
			return State{}, fmt.Errorf("unit %s not deployed", target.UnitID)
		}
		unit.ModelsAlive = target.PriorModelsAlive
		unit.WoundedModelWounds = target.PriorWoundedModelWounds
		state.Units[target.UnitID] = unit

	case event.TypeUnitStatusSet:
		var target UnitStatusSetPayload
		if err := unmarshalPayload(payload.TargetPayload, &target); err != nil {
			return State{}, err
		}
		unit, ok := state.Units[target.UnitID]
		if !ok {
			return State{}, fmt.Errorf("unit %s not deployed", target.UnitID)
		}
		if unit.Statuses == nil {
			unit.Statuses = make(map[string]bool)
		}
		if target.PriorActive {
			unit.Statuses[target.Status] = true
		} else {
			delete(unit.Statuses, target.Status)
		}
		state.Units[target.UnitID] = unit

	case event.TypeUnitDestroyed:
		var target UnitDestroyPayload
		if err := unmarshalPayload(payload.TargetPayload, &target); err != nil {
			return State{}, err
		}
		unit, ok := state.Units[target.UnitID]
		if !ok {
			return State{}, fmt.Errorf("unit %s not deployed", target.UnitID)
		}
		unit.Destroyed = false
		unit.ModelsAlive = target.PriorModelsAlive
		unit.WoundedModelWounds = target.PriorWoundedModelWounds
		state.Units[target.UnitID] = unit

	case event.TypeUnitRevived:
		var target UnitRevivePayload
		if err := unmarshalPayload(payload.TargetPayload, &target); err != nil {
			return State{}, err
		}
		unit, ok := state.Units[target.UnitID]
		if !ok {
			return State{}, fmt.Errorf("unit %s not deployed", target.UnitID)
		}
		unit.Destroyed = true
		unit.ModelsAlive = 0
		unit.WoundedModelWounds = 0
		state.Units[target.UnitID] = unit

	case event.TypeNoteAdded:
		// No derived state to undo.

	default:
		return State{}, fmt.Errorf("event type %s is not revertible", payload.TargetType)
	}

	return state, nil
}

// AllocateWounds applies damage to a unit following whole-models-first
// allocation: the partially wounded model absorbs damage before fresh models.
// Returns the new alive count, the remaining wounds on the wounded model,
// models slain, and whether the unit was destroyed.
func AllocateWounds(modelsAlive, woundedModelWounds, woundsPerModel, damage int) (alive, wounded, slain int, destroyed bool) {
	alive = modelsAlive
	wounded = woundedModelWounds
	if woundsPerModel <= 0 || alive <= 0 {
		return 0, 0, 0, true
	}
	for damage > 0 && alive > 0 {
		current := woundsPerModel
		if wounded > 0 {
			current = wounded
		}
		if damage >= current {
			damage -= current
			alive--
			slain++
			wounded = 0
		} else {
			wounded = current - damage
			damage = 0
		}
	}
	if alive <= 0 {
		return 0, 0, slain, true
	}
	return alive, wounded, slain, false
}

// healWounds restores wounds, refilling the wounded model first and then
// returning slain models at full wounds, capped at the starting strength.
func healWounds(modelsAlive, woundedModelWounds, woundsPerModel, modelsTotal, amount int) (alive, wounded int) {
	alive = modelsAlive
	wounded = woundedModelWounds
	if woundsPerModel <= 0 {
		return alive, wounded
	}
	if wounded > 0 && amount > 0 {
		missing := woundsPerModel - wounded
		if amount >= missing {
			amount -= missing
			wounded = 0
		} else {
			wounded += amount
			amount = 0
		}
	}
	for amount >= woundsPerModel && alive < modelsTotal {
		alive++
		amount -= woundsPerModel
	}
	if amount > 0 && alive < modelsTotal {
		alive++
		wounded = amount
	}
	return alive, wounded
}

// UsageKey builds the replay-stable key for stratagem usage counting.
func UsageKey(side Side, stratagemID string, round int, turn Side, phase Phase) string {
	return fmt.Sprintf("%s|%s|%d|%s|%s", side, stratagemID, round, turn, phase)
}

func clampCP(value int) int {
	if value < 0 {
		return 0
	}
	return value
}

func unmarshalPayload(raw []byte, target any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}
