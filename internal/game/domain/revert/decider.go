// Package revert implements uniform timeline reversal.
//
// A revert never deletes journal rows: it appends an event.reverted entry
// whose payload embeds the target event's type and payload, which is all the
// fold needs to apply the inverse. Cascade detection protects the prior-state
// snapshots later events rely on; a forced revert compensates dependents
// newest-first before the target in a single decision.
package revert

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/game/domain/command"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/event"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/session"
)

// CommandTypeRevert reverts a timeline event.
const CommandTypeRevert command.Type = "event.revert"

// Payload is the command payload for event.revert.
type Payload struct {
	TargetSeq uint64 `json:"targetSeq"`
	Reason    string `json:"reason,omitempty"`
	Force     bool   `json:"force,omitempty"`
}

const (
	rejectionCodeSessionNotCreated = "SESSION_NOT_CREATED"
	rejectionCodeTargetRequired    = "REVERT_TARGET_REQUIRED"
	rejectionCodeTargetNotFound    = "REVERT_TARGET_NOT_FOUND"
	rejectionCodeAlreadyReverted   = "REVERT_ALREADY_REVERTED"
	rejectionCodeRevertOfRevert    = "REVERT_OF_REVERT"
	rejectionCodeNotRevertible     = "REVERT_NOT_REVERTIBLE"
	rejectionCodeHasDependents     = "REVERT_HAS_DEPENDENTS"
)

// battle-flow event types restore "previous" pointers, so reverting one out of
// order invalidates every later entry in the chain.
var flowTypes = map[event.Type]bool{
	event.TypeRoundAdvanced: true,
	event.TypeTurnSet:       true,
	event.TypePhaseSet:      true,
}

// Decide returns the decision for an event.revert command. Unlike the other
// deciders it reads the journal, because reversal is defined over events, not
// folded state.
func Decide(state session.State, events []event.Event, cmd command.Command, now func() time.Time) command.Decision {
	if now == nil {
		now = time.Now
	}
	if cmd.Type != CommandTypeRevert {
		return command.Reject(command.Rejection{
			Code:    "UNSUPPORTED_COMMAND",
			Message: "command type is not handled by the revert decider",
		})
	}
	if !state.Created {
		return command.Reject(command.Rejection{Code: rejectionCodeSessionNotCreated, Message: "session not created"})
	}

	var payload Payload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	if payload.TargetSeq == 0 {
		return command.Reject(command.Rejection{Code: rejectionCodeTargetRequired, Message: "target sequence is required"})
	}

	target, ok := findEvent(events, payload.TargetSeq)
	if !ok {
		return command.Reject(command.Rejection{Code: rejectionCodeTargetNotFound, Message: "target event not found"})
	}
	if target.Type == event.TypeEventReverted {
		return command.Reject(command.Rejection{Code: rejectionCodeRevertOfRevert, Message: "a revert cannot be reverted"})
	}
	if target.Type == event.TypeSessionCreated {
		return command.Reject(command.Rejection{Code: rejectionCodeNotRevertible, Message: "session creation cannot be reverted"})
	}
	if state.Reverted[target.Seq] {
		return command.Reject(command.Rejection{Code: rejectionCodeAlreadyReverted, Message: "event already reverted"})
	}

	dependents := Dependents(events, target, state.Reverted)
	if len(dependents) > 0 && !payload.Force {
		return command.Reject(command.Rejection{
			Code:    rejectionCodeHasDependents,
			Message: fmt.Sprintf("%d later events depend on this one; use force to revert the chain", len(dependents)),
		})
	}

	// Compensate dependents newest-first so each inverse sees the state its
	// target produced, then undo the target itself.
	chain := append([]event.Event{target}, dependents...)
	decided := make([]event.Event, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		forced := chain[i].Seq != target.Seq
		revertPayload := session.RevertPayload{
			TargetSeq:     chain[i].Seq,
			TargetType:    string(chain[i].Type),
			TargetPayload: append(json.RawMessage(nil), chain[i].PayloadJSON...),
			Reason:        payload.Reason,
			Forced:        forced,
		}
		payloadJSON, _ := json.Marshal(revertPayload)
		evt := command.NewEvent(cmd, event.TypeEventReverted, "event", fmt.Sprintf("%d", chain[i].Seq), payloadJSON, now().UTC())
		evt.CausationID = fmt.Sprintf("seq:%d", target.Seq)
		decided = append(decided, evt)
	}
	return command.Accept(decided...)
}

// Dependents returns not-yet-reverted events after target that rely on state
// the reversal would invalidate, in ascending sequence order.
func Dependents(events []event.Event, target event.Event, reverted map[uint64]bool) []event.Event {
	var out []event.Event
	for _, evt := range events {
		if evt.Seq <= target.Seq || reverted[evt.Seq] || evt.Type == event.TypeEventReverted {
			continue
		}
		if dependsOn(target, evt) {
			out = append(out, evt)
		}
	}
	return out
}

func dependsOn(target, later event.Event) bool {
	// Later unit events on the same unit carry prior-state snapshots taken
	// with the target applied.
	if target.EntityType == "unit" && later.EntityType == "unit" && later.EntityID == target.EntityID {
		return true
	}
	// Battle-flow chains restore previous round/turn/phase values in order.
	if flowTypes[target.Type] && flowTypes[later.Type] {
		return true
	}
	return false
}

func findEvent(events []event.Event, seq uint64) (event.Event, bool) {
	for _, evt := range events {
		if evt.Seq == seq {
			return evt, true
		}
	}
	return event.Event{}, false
}
