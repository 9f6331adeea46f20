package stratagem

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/game/domain/command"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/event"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/session"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC) }

func activeState(t *testing.T, cp int) session.State {
	t.Helper()
	payload, _ := json.Marshal(session.CreatePayload{Name: "test battle", StartingCP: cp})
	state, err := session.Fold([]event.Event{{
		SessionID: "sess-1", Seq: 1, Type: event.TypeSessionCreated,
		ActorType: event.ActorTypePlayer, ActorID: "p1", PayloadJSON: payload,
	}})
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	return state
}

func useCommand(payload UsePayload) command.Command {
	raw, _ := json.Marshal(payload)
	return command.Command{
		SessionID:   "sess-1",
		Type:        CommandTypeUse,
		ActorType:   command.ActorTypePlayer,
		ActorID:     "p1",
		PayloadJSON: raw,
	}
}

func TestDecideAcceptsAndSpendsCP(t *testing.T) {
	state := activeState(t, 2)
	decision := Decide(state, useCommand(UsePayload{
		StratagemID: "strat-1", Name: "Counter-Offensive", Side: session.SidePlayer, Cost: 2,
	}), fixedNow)
	if len(decision.Events) != 1 {
		t.Fatalf("expected accept, got %+v", decision.Rejections)
	}
	var used session.StratagemUsePayload
	_ = json.Unmarshal(decision.Events[0].PayloadJSON, &used)
	if used.Cost != 2 || used.Round != 1 || used.Turn != session.SidePlayer || used.Phase != session.PhaseCommand {
		t.Fatalf("unexpected usage payload %+v", used)
	}

	next, err := session.Apply(state, withSeq(decision.Events[0], 2))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.CP(session.SidePlayer) != 0 {
		t.Fatalf("expected CP spent to 0, got %d", next.CP(session.SidePlayer))
	}
}

func TestDecideRejectsInsufficientCP(t *testing.T) {
	decision := Decide(activeState(t, 1), useCommand(UsePayload{
		StratagemID: "strat-1", Side: session.SidePlayer, Cost: 2,
	}), fixedNow)
	if len(decision.Rejections) == 0 || decision.Rejections[0].Code != "INSUFFICIENT_COMMAND_POINTS" {
		t.Fatalf("expected CP rejection, got %+v", decision.Rejections)
	}
}

func TestDecideRejectsWrongPhase(t *testing.T) {
	decision := Decide(activeState(t, 3), useCommand(UsePayload{
		StratagemID: "strat-1", Side: session.SidePlayer, Cost: 1,
		PhaseRestricted: []session.Phase{session.PhaseFight},
	}), fixedNow)
	if len(decision.Rejections) == 0 || decision.Rejections[0].Code != "STRATAGEM_PHASE_MISMATCH" {
		t.Fatalf("expected phase rejection, got %+v", decision.Rejections)
	}
}

func TestDecideRejectsWrongTurn(t *testing.T) {
	// Player turn is active; an "opponents turn only" stratagem for the player
	// must be rejected.
	decision := Decide(activeState(t, 3), useCommand(UsePayload{
		StratagemID: "strat-1", Side: session.SidePlayer, Cost: 1, Turn: TurnOpponents,
	}), fixedNow)
	if len(decision.Rejections) == 0 || decision.Rejections[0].Code != "STRATAGEM_TURN_MISMATCH" {
		t.Fatalf("expected turn rejection, got %+v", decision.Rejections)
	}
}

func TestDecideRejectsSecondUseInSamePhase(t *testing.T) {
	state := activeState(t, 4)
	first := Decide(state, useCommand(UsePayload{
		StratagemID: "strat-1", Side: session.SidePlayer, Cost: 1,
	}), fixedNow)
	if len(first.Events) != 1 {
		t.Fatalf("expected first use accepted, got %+v", first.Rejections)
	}
	next, err := session.Apply(state, withSeq(first.Events[0], 2))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	second := Decide(next, useCommand(UsePayload{
		StratagemID: "strat-1", Side: session.SidePlayer, Cost: 1,
	}), fixedNow)
	if len(second.Rejections) == 0 || second.Rejections[0].Code != "STRATAGEM_ALREADY_USED_THIS_PHASE" {
		t.Fatalf("expected once-per-phase rejection, got %+v", second.Rejections)
	}
}

func TestDecideAllowsReuseAfterPhaseChange(t *testing.T) {
	state := activeState(t, 4)
	first := Decide(state, useCommand(UsePayload{
		StratagemID: "strat-1", Side: session.SidePlayer, Cost: 1,
	}), fixedNow)
	next, err := session.Apply(state, withSeq(first.Events[0], 2))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	phasePayload, _ := json.Marshal(session.PhaseSetPayload{Phase: session.PhaseMovement, PreviousPhase: session.PhaseCommand})
	next, err = session.Apply(next, event.Event{
		SessionID: "sess-1", Seq: 3, Type: event.TypePhaseSet,
		ActorType: event.ActorTypePlayer, ActorID: "p1", PayloadJSON: phasePayload,
	})
	if err != nil {
		t.Fatalf("apply phase: %v", err)
	}

	again := Decide(next, useCommand(UsePayload{
		StratagemID: "strat-1", Side: session.SidePlayer, Cost: 1,
	}), fixedNow)
	if len(again.Events) != 1 {
		t.Fatalf("expected reuse allowed in new phase, got %+v", again.Rejections)
	}
}

func withSeq(evt event.Event, seq uint64) event.Event {
	evt.Seq = seq
	return evt
}
