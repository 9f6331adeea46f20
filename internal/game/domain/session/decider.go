package session

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/game/domain/command"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/event"
)

// Command types owned by the session aggregate.
const (
	CommandTypeCreate       command.Type = "session.create"
	CommandTypeEnd          command.Type = "session.end"
	CommandTypeRoundAdvance command.Type = "round.advance"
	CommandTypeTurnSet      command.Type = "turn.set"
	CommandTypePhaseSet     command.Type = "phase.set"
	CommandTypeCPAdjust     command.Type = "cp.adjust"
	CommandTypeNoteAdd      command.Type = "note.add"
)

const (
	rejectionCodeSessionExists      = "SESSION_ALREADY_CREATED"
	rejectionCodeSessionNotCreated  = "SESSION_NOT_CREATED"
	rejectionCodeSessionEnded       = "SESSION_ENDED"
	rejectionCodeSessionNameEmpty   = "SESSION_NAME_EMPTY"
	rejectionCodeInvalidSide        = "SESSION_INVALID_SIDE"
	rejectionCodeInvalidPhase       = "SESSION_INVALID_PHASE"
	rejectionCodeCPBelowZero        = "COMMAND_POINTS_BELOW_ZERO"
	rejectionCodeNoteTextEmpty      = "NOTE_TEXT_EMPTY"
	rejectionCodeStartingCPNegative = "STARTING_CP_NEGATIVE"
)

// DefaultCPPerRound is the command points granted to each side when a new
// battle round begins.
const DefaultCPPerRound = 1

// Decide returns the decision for a battle-flow command against current state.
//
// Every supported command maps to deterministic events; status checks live in
// replayable state transitions rather than imperative side effects.
func Decide(state State, cmd command.Command, now func() time.Time) command.Decision {
	if now == nil {
		now = time.Now
	}

	if cmd.Type == CommandTypeCreate {
		if state.Created {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeSessionExists,
				Message: "session already created",
			})
		}
		var payload CreatePayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		payload.Name = strings.TrimSpace(payload.Name)
		if payload.Name == "" {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeSessionNameEmpty,
				Message: "session name is required",
			})
		}
		if payload.StartingCP < 0 {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeStartingCPNegative,
				Message: "starting command points must not be negative",
			})
		}
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, event.TypeSessionCreated, "session", cmd.SessionID, payloadJSON, now().UTC()))
	}

	if !state.Created {
		return command.Reject(command.Rejection{
			Code:    rejectionCodeSessionNotCreated,
			Message: "session not created",
		})
	}
	if state.Ended {
		return command.Reject(command.Rejection{
			Code:    rejectionCodeSessionEnded,
			Message: "session has ended",
		})
	}

	switch cmd.Type {
	case CommandTypeEnd:
		var payload EndPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, event.TypeSessionEnded, "session", cmd.SessionID, payloadJSON, now().UTC()))

	case CommandTypeRoundAdvance:
		payload := RoundAdvancePayload{
			Round:         state.Round + 1,
			PreviousRound: state.Round,
			PreviousTurn:  state.Turn,
			PreviousPhase: state.Phase,
			CPGranted:     DefaultCPPerRound,
		}
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, event.TypeRoundAdvanced, "session", cmd.SessionID, payloadJSON, now().UTC()))

	case CommandTypeTurnSet:
		var payload TurnSetPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		if !payload.Turn.IsValid() {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeInvalidSide,
				Message: "turn side must be player or opponent",
			})
		}
		payload.PreviousTurn = state.Turn
		payload.PreviousPhase = state.Phase
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, event.TypeTurnSet, "session", cmd.SessionID, payloadJSON, now().UTC()))

	case CommandTypePhaseSet:
		var payload PhaseSetPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		if !payload.Phase.IsValid() {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeInvalidPhase,
				Message: "unknown phase",
			})
		}
		payload.PreviousPhase = state.Phase
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, event.TypePhaseSet, "session", cmd.SessionID, payloadJSON, now().UTC()))

	case CommandTypeCPAdjust:
		var payload CPAdjustPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		if !payload.Side.IsValid() {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeInvalidSide,
				Message: "side must be player or opponent",
			})
		}
		if state.CP(payload.Side)+payload.Delta < 0 {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeCPBelowZero,
				Message: "command points cannot go below zero",
			})
		}
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, event.TypeCommandPointsAdjusted, "session", cmd.SessionID, payloadJSON, now().UTC()))

	case CommandTypeNoteAdd:
		var payload NoteAddPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		payload.Text = strings.TrimSpace(payload.Text)
		if payload.Text == "" {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeNoteTextEmpty,
				Message: "note text is required",
			})
		}
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, event.TypeNoteAdded, "note", cmd.SessionID, payloadJSON, now().UTC()))
	}

	return command.Reject(command.Rejection{
		Code:    "UNSUPPORTED_COMMAND",
		Message: "command type is not handled by the session decider",
	})
}
