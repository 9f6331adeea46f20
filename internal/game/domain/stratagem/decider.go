// Package stratagem holds the command decider for stratagem activations.
//
// The decider enforces the CP economy: sufficient points, matching phase,
// matching turn restriction, and the once-per-phase rule. Catalog lookups
// (cost, restrictions, detachment discounts) happen in the application layer;
// the resolved values arrive in the command payload so replay stays
// deterministic even if the catalog changes later.
package stratagem

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/game/domain/command"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/event"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/session"
)

// CommandTypeUse activates a stratagem.
const CommandTypeUse command.Type = "stratagem.use"

// TurnRestriction mirrors the catalog's turn restriction values.
type TurnRestriction string

const (
	// TurnEither allows use in any turn.
	TurnEither TurnRestriction = "either"
	// TurnOurs restricts use to the acting side's own turn.
	TurnOurs TurnRestriction = "ours"
	// TurnOpponents restricts use to the opposing side's turn.
	TurnOpponents TurnRestriction = "opponents"
)

// UsePayload is the command payload for stratagem.use. The application layer
// resolves the catalog stratagem and fills cost and restrictions before the
// command reaches the decider.
type UsePayload struct {
	StratagemID     string          `json:"stratagemId"`
	Name            string          `json:"name"`
	Side            session.Side    `json:"side"`
	Cost            int             `json:"cost"`
	PhaseRestricted []session.Phase `json:"phaseRestricted,omitempty"`
	Turn            TurnRestriction `json:"turn,omitempty"`
	TargetUnitID    string          `json:"targetUnitId,omitempty"`
}

const (
	rejectionCodeSessionNotCreated = "SESSION_NOT_CREATED"
	rejectionCodeSessionEnded      = "SESSION_ENDED"
	rejectionCodeIDRequired        = "STRATAGEM_ID_REQUIRED"
	rejectionCodeInvalidSide       = "STRATAGEM_INVALID_SIDE"
	rejectionCodeInvalidCost       = "STRATAGEM_INVALID_COST"
	rejectionCodeInsufficientCP    = "INSUFFICIENT_COMMAND_POINTS"
	rejectionCodePhaseMismatch     = "STRATAGEM_PHASE_MISMATCH"
	rejectionCodeTurnMismatch      = "STRATAGEM_TURN_MISMATCH"
	rejectionCodeAlreadyUsed       = "STRATAGEM_ALREADY_USED_THIS_PHASE"
)

// Decide returns the decision for a stratagem.use command against current state.
func Decide(state session.State, cmd command.Command, now func() time.Time) command.Decision {
	if now == nil {
		now = time.Now
	}
	if cmd.Type != CommandTypeUse {
		return command.Reject(command.Rejection{
			Code:    "UNSUPPORTED_COMMAND",
			Message: "command type is not handled by the stratagem decider",
		})
	}
	if !state.Created {
		return command.Reject(command.Rejection{Code: rejectionCodeSessionNotCreated, Message: "session not created"})
	}
	if state.Ended {
		return command.Reject(command.Rejection{Code: rejectionCodeSessionEnded, Message: "session has ended"})
	}

	var payload UsePayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	payload.StratagemID = strings.TrimSpace(payload.StratagemID)
	if payload.StratagemID == "" {
		return command.Reject(command.Rejection{Code: rejectionCodeIDRequired, Message: "stratagem id is required"})
	}
	if !payload.Side.IsValid() {
		return command.Reject(command.Rejection{Code: rejectionCodeInvalidSide, Message: "side must be player or opponent"})
	}
	if payload.Cost < 0 {
		return command.Reject(command.Rejection{Code: rejectionCodeInvalidCost, Message: "cost must not be negative"})
	}
	if len(payload.PhaseRestricted) > 0 && !phaseAllowed(payload.PhaseRestricted, state.Phase) {
		return command.Reject(command.Rejection{
			Code:    rejectionCodePhaseMismatch,
			Message: "stratagem cannot be used in the current phase",
		})
	}
	if !turnAllowed(payload.Turn, payload.Side, state.Turn) {
		return command.Reject(command.Rejection{
			Code:    rejectionCodeTurnMismatch,
			Message: "stratagem cannot be used in the current turn",
		})
	}
	if state.CP(payload.Side) < payload.Cost {
		return command.Reject(command.Rejection{
			Code:    rejectionCodeInsufficientCP,
			Message: "not enough command points",
		})
	}
	key := session.UsageKey(payload.Side, payload.StratagemID, state.Round, state.Turn, state.Phase)
	if state.StratagemUses[key] > 0 {
		return command.Reject(command.Rejection{
			Code:    rejectionCodeAlreadyUsed,
			Message: "stratagem already used this phase",
		})
	}

	used := session.StratagemUsePayload{
		StratagemID:  payload.StratagemID,
		Name:         payload.Name,
		Side:         payload.Side,
		Cost:         payload.Cost,
		Round:        state.Round,
		Turn:         state.Turn,
		Phase:        state.Phase,
		TargetUnitID: payload.TargetUnitID,
	}
	payloadJSON, _ := json.Marshal(used)
	return command.Accept(command.NewEvent(cmd, event.TypeStratagemUsed, "stratagem", payload.StratagemID, payloadJSON, now().UTC()))
}

func phaseAllowed(allowed []session.Phase, current session.Phase) bool {
	for _, phase := range allowed {
		if phase == current {
			return true
		}
	}
	return false
}

func turnAllowed(restriction TurnRestriction, side session.Side, turn session.Side) bool {
	switch restriction {
	case TurnOurs:
		return side == turn
	case TurnOpponents:
		return side != turn
	case TurnEither, "":
		return true
	}
	return false
}
