package unit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/game/domain/command"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/event"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/session"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC) }

func stateWithUnit(t *testing.T) session.State {
	t.Helper()
	created, _ := json.Marshal(session.CreatePayload{Name: "test battle", StartingCP: 3})
	deployed, _ := json.Marshal(session.UnitDeployPayload{
		UnitID: "u1", DatasheetID: "ds1", Name: "Grey Hunters", Side: session.SidePlayer,
		Models: 5, WoundsPerModel: 2,
	})
	state, err := session.Fold([]event.Event{
		{SessionID: "sess-1", Seq: 1, Type: event.TypeSessionCreated, ActorType: event.ActorTypePlayer, ActorID: "p1", PayloadJSON: created},
		{SessionID: "sess-1", Seq: 2, Type: event.TypeUnitDeployed, ActorType: event.ActorTypePlayer, ActorID: "p1", EntityType: "unit", EntityID: "u1", PayloadJSON: deployed},
	})
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	return state
}

func unitCommand(cmdType command.Type, payload any) command.Command {
	raw, _ := json.Marshal(payload)
	return command.Command{
		SessionID:   "sess-1",
		Type:        cmdType,
		ActorType:   command.ActorTypePlayer,
		ActorID:     "p1",
		PayloadJSON: raw,
	}
}

func TestDecideDeployRejectsDuplicate(t *testing.T) {
	decision := Decide(stateWithUnit(t), unitCommand(CommandTypeDeploy, session.UnitDeployPayload{
		UnitID: "u1", Side: session.SidePlayer, Models: 5, WoundsPerModel: 2,
	}), fixedNow)
	if len(decision.Rejections) == 0 || decision.Rejections[0].Code != "UNIT_ALREADY_DEPLOYED" {
		t.Fatalf("expected duplicate rejection, got %+v", decision.Rejections)
	}
}

func TestDecideDamageSnapshotsPriorState(t *testing.T) {
	decision := Decide(stateWithUnit(t), unitCommand(CommandTypeDamage, session.UnitDamagePayload{
		UnitID: "u1", Wounds: 3,
	}), fixedNow)
	if len(decision.Events) != 1 {
		t.Fatalf("expected accept, got %+v", decision.Rejections)
	}
	var payload session.UnitDamagePayload
	_ = json.Unmarshal(decision.Events[0].PayloadJSON, &payload)
	if payload.PriorModelsAlive != 5 || payload.PriorWoundedModelWounds != 0 {
		t.Fatalf("expected prior snapshot, got %+v", payload)
	}
	if payload.ModelsSlain != 1 || payload.Destroyed {
		t.Fatalf("expected 1 slain and not destroyed, got %+v", payload)
	}
}

func TestDecideDamageRejectsDestroyedUnit(t *testing.T) {
	state := stateWithUnit(t)
	destroyPayload, _ := json.Marshal(session.UnitDestroyPayload{UnitID: "u1", PriorModelsAlive: 5})
	state, err := session.Apply(state, event.Event{
		SessionID: "sess-1", Seq: 3, Type: event.TypeUnitDestroyed,
		ActorType: event.ActorTypePlayer, ActorID: "p1", EntityType: "unit", EntityID: "u1",
		PayloadJSON: destroyPayload,
	})
	if err != nil {
		t.Fatalf("apply destroy: %v", err)
	}
	decision := Decide(state, unitCommand(CommandTypeDamage, session.UnitDamagePayload{UnitID: "u1", Wounds: 1}), fixedNow)
	if len(decision.Rejections) == 0 || decision.Rejections[0].Code != "UNIT_DESTROYED" {
		t.Fatalf("expected destroyed rejection, got %+v", decision.Rejections)
	}
}

func TestDecideDamageRejectsUnknownUnit(t *testing.T) {
	decision := Decide(stateWithUnit(t), unitCommand(CommandTypeDamage, session.UnitDamagePayload{UnitID: "missing", Wounds: 1}), fixedNow)
	if len(decision.Rejections) == 0 || decision.Rejections[0].Code != "UNIT_NOT_DEPLOYED" {
		t.Fatalf("expected not-deployed rejection, got %+v", decision.Rejections)
	}
}

func TestDecideReviveRequiresDestroyed(t *testing.T) {
	decision := Decide(stateWithUnit(t), unitCommand(CommandTypeRevive, session.UnitRevivePayload{UnitID: "u1", Models: 2}), fixedNow)
	if len(decision.Rejections) == 0 || decision.Rejections[0].Code != "UNIT_NOT_DESTROYED" {
		t.Fatalf("expected not-destroyed rejection, got %+v", decision.Rejections)
	}
}

func TestDecideStatusSetRecordsPrior(t *testing.T) {
	decision := Decide(stateWithUnit(t), unitCommand(CommandTypeStatusSet, session.UnitStatusSetPayload{
		UnitID: "u1", Status: "battle-shocked", Active: true,
	}), fixedNow)
	if len(decision.Events) != 1 {
		t.Fatalf("expected accept, got %+v", decision.Rejections)
	}
	var payload session.UnitStatusSetPayload
	_ = json.Unmarshal(decision.Events[0].PayloadJSON, &payload)
	if payload.PriorActive {
		t.Fatal("expected prior active false")
	}
}
