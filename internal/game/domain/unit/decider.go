// Package unit holds command deciders for unit instances on the battlefield.
package unit

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/game/domain/command"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/event"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/session"
)

// Command types owned by the unit aggregate.
const (
	CommandTypeDeploy    command.Type = "unit.deploy"
	CommandTypeDamage    command.Type = "unit.damage"
	CommandTypeHeal      command.Type = "unit.heal"
	CommandTypeStatusSet command.Type = "unit.status_set"
	CommandTypeDestroy   command.Type = "unit.destroy"
	CommandTypeRevive    command.Type = "unit.revive"
)

const (
	rejectionCodeSessionNotCreated = "SESSION_NOT_CREATED"
	rejectionCodeSessionEnded      = "SESSION_ENDED"
	rejectionCodeUnitIDRequired    = "UNIT_ID_REQUIRED"
	rejectionCodeUnitExists        = "UNIT_ALREADY_DEPLOYED"
	rejectionCodeUnitNotDeployed   = "UNIT_NOT_DEPLOYED"
	rejectionCodeUnitDestroyed     = "UNIT_DESTROYED"
	rejectionCodeUnitNotDestroyed  = "UNIT_NOT_DESTROYED"
	rejectionCodeInvalidSide       = "UNIT_INVALID_SIDE"
	rejectionCodeInvalidProfile    = "UNIT_INVALID_PROFILE"
	rejectionCodeInvalidWounds     = "UNIT_INVALID_WOUNDS"
	rejectionCodeStatusRequired    = "UNIT_STATUS_REQUIRED"
)

// Decide returns the decision for a unit command against current state.
func Decide(state session.State, cmd command.Command, now func() time.Time) command.Decision {
	if now == nil {
		now = time.Now
	}
	if !state.Created {
		return command.Reject(command.Rejection{Code: rejectionCodeSessionNotCreated, Message: "session not created"})
	}
	if state.Ended {
		return command.Reject(command.Rejection{Code: rejectionCodeSessionEnded, Message: "session has ended"})
	}

	switch cmd.Type {
	case CommandTypeDeploy:
		var payload session.UnitDeployPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		payload.UnitID = strings.TrimSpace(payload.UnitID)
		payload.Name = strings.TrimSpace(payload.Name)
		if payload.UnitID == "" {
			return command.Reject(command.Rejection{Code: rejectionCodeUnitIDRequired, Message: "unit id is required"})
		}
		if _, exists := state.Unit(payload.UnitID); exists {
			return command.Reject(command.Rejection{Code: rejectionCodeUnitExists, Message: "unit already deployed"})
		}
		if !payload.Side.IsValid() {
			return command.Reject(command.Rejection{Code: rejectionCodeInvalidSide, Message: "side must be player or opponent"})
		}
		if payload.Models <= 0 || payload.WoundsPerModel <= 0 {
			return command.Reject(command.Rejection{Code: rejectionCodeInvalidProfile, Message: "models and wounds per model must be positive"})
		}
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, event.TypeUnitDeployed, "unit", payload.UnitID, payloadJSON, now().UTC()))

	case CommandTypeDamage:
		var payload session.UnitDamagePayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		target, rejection := liveUnit(state, payload.UnitID)
		if rejection != nil {
			return command.Reject(*rejection)
		}
		if payload.Wounds <= 0 {
			return command.Reject(command.Rejection{Code: rejectionCodeInvalidWounds, Message: "wounds must be positive"})
		}
		payload.PriorModelsAlive = target.ModelsAlive
		payload.PriorWoundedModelWounds = target.WoundedModelWounds
		_, _, slain, destroyed := session.AllocateWounds(target.ModelsAlive, target.WoundedModelWounds, target.WoundsPerModel, payload.Wounds)
		payload.ModelsSlain = slain
		payload.Destroyed = destroyed
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, event.TypeUnitDamaged, "unit", payload.UnitID, payloadJSON, now().UTC()))

	case CommandTypeHeal:
		var payload session.UnitHealPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		target, rejection := liveUnit(state, payload.UnitID)
		if rejection != nil {
			return command.Reject(*rejection)
		}
		if payload.Wounds <= 0 {
			return command.Reject(command.Rejection{Code: rejectionCodeInvalidWounds, Message: "wounds must be positive"})
		}
		payload.PriorModelsAlive = target.ModelsAlive
		payload.PriorWoundedModelWounds = target.WoundedModelWounds
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, event.TypeUnitHealed, "unit", payload.UnitID, payloadJSON, now().UTC()))

	case CommandTypeStatusSet:
		var payload session.UnitStatusSetPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		target, rejection := liveUnit(state, payload.UnitID)
		if rejection != nil {
			return command.Reject(*rejection)
		}
		payload.Status = strings.TrimSpace(payload.Status)
		if payload.Status == "" {
			return command.Reject(command.Rejection{Code: rejectionCodeStatusRequired, Message: "status is required"})
		}
		payload.PriorActive = target.Statuses[payload.Status]
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, event.TypeUnitStatusSet, "unit", payload.UnitID, payloadJSON, now().UTC()))

	case CommandTypeDestroy:
		var payload session.UnitDestroyPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		target, rejection := liveUnit(state, payload.UnitID)
		if rejection != nil {
			return command.Reject(*rejection)
		}
		payload.PriorModelsAlive = target.ModelsAlive
		payload.PriorWoundedModelWounds = target.WoundedModelWounds
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, event.TypeUnitDestroyed, "unit", payload.UnitID, payloadJSON, now().UTC()))

	case CommandTypeRevive:
		var payload session.UnitRevivePayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		payload.UnitID = strings.TrimSpace(payload.UnitID)
		target, ok := state.Unit(payload.UnitID)
		if !ok {
			return command.Reject(command.Rejection{Code: rejectionCodeUnitNotDeployed, Message: "unit not deployed"})
		}
		if !target.Destroyed {
			return command.Reject(command.Rejection{Code: rejectionCodeUnitNotDestroyed, Message: "unit is not destroyed"})
		}
		if payload.Models <= 0 || payload.Models > target.ModelsTotal {
			return command.Reject(command.Rejection{Code: rejectionCodeInvalidProfile, Message: "revived models must be between 1 and starting strength"})
		}
		if payload.Wounds < 0 || payload.Wounds >= target.WoundsPerModel {
			payload.Wounds = 0
		}
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, event.TypeUnitRevived, "unit", payload.UnitID, payloadJSON, now().UTC()))
	}

	return command.Reject(command.Rejection{
		Code:    "UNSUPPORTED_COMMAND",
		Message: "command type is not handled by the unit decider",
	})
}

// liveUnit resolves a deployed, non-destroyed unit or the rejection to return.
func liveUnit(state session.State, unitID string) (session.UnitState, *command.Rejection) {
	unitID = strings.TrimSpace(unitID)
	if unitID == "" {
		return session.UnitState{}, &command.Rejection{Code: rejectionCodeUnitIDRequired, Message: "unit id is required"}
	}
	target, ok := state.Unit(unitID)
	if !ok {
		return session.UnitState{}, &command.Rejection{Code: rejectionCodeUnitNotDeployed, Message: "unit not deployed"}
	}
	if target.Destroyed {
		return session.UnitState{}, &command.Rejection{Code: rejectionCodeUnitDestroyed, Message: "unit is destroyed"}
	}
	return target, nil
}
