// Package engine validates, routes, and journals session commands.
package engine

import (
	"encoding/json"
	"fmt"

	"github.com/AndrewDeWitt/grimlog/internal/game/domain/command"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/event"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/revert"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/session"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/stratagem"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/unit"
)

// NewCommandRegistry returns the registry of every command the engine routes.
func NewCommandRegistry() (*command.Registry, error) {
	registry := command.NewRegistry()
	defs := []command.Definition{
		{Type: session.CommandTypeCreate},
		{Type: session.CommandTypeEnd},
		{Type: session.CommandTypeRoundAdvance},
		{Type: session.CommandTypeTurnSet},
		{Type: session.CommandTypePhaseSet},
		{Type: session.CommandTypeCPAdjust},
		{Type: session.CommandTypeNoteAdd},
		{Type: stratagem.CommandTypeUse},
		{Type: unit.CommandTypeDeploy},
		{Type: unit.CommandTypeDamage},
		{Type: unit.CommandTypeHeal},
		{Type: unit.CommandTypeStatusSet},
		{Type: unit.CommandTypeDestroy},
		{Type: unit.CommandTypeRevive},
		{Type: revert.CommandTypeRevert, Ended: command.EndedPolicy{AllowAfterEnd: true}},
	}
	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return nil, fmt.Errorf("register command %s: %w", def.Type, err)
		}
	}
	return registry, nil
}

// NewEventRegistry returns the registry of every event the journal accepts.
func NewEventRegistry() (*event.Registry, error) {
	registry := event.NewRegistry()
	defs := []event.Definition{
		{Type: event.TypeSessionCreated, ValidatePayload: requirePayload},
		{Type: event.TypeSessionEnded},
		{Type: event.TypeRoundAdvanced, ValidatePayload: requirePayload},
		{Type: event.TypeTurnSet, ValidatePayload: requirePayload},
		{Type: event.TypePhaseSet, ValidatePayload: requirePayload},
		{Type: event.TypeCommandPointsAdjusted, ValidatePayload: requirePayload},
		{Type: event.TypeStratagemUsed, ValidatePayload: requirePayload},
		{Type: event.TypeUnitDeployed, ValidatePayload: requirePayload},
		{Type: event.TypeUnitDamaged, ValidatePayload: requirePayload},
		{Type: event.TypeUnitHealed, ValidatePayload: requirePayload},
		{Type: event.TypeUnitStatusSet, ValidatePayload: requirePayload},
		{Type: event.TypeUnitDestroyed, ValidatePayload: requirePayload},
		{Type: event.TypeUnitRevived, ValidatePayload: requirePayload},
		{Type: event.TypeNoteAdded, ValidatePayload: requirePayload},
		{Type: event.TypeEventReverted, ValidatePayload: requirePayload},
	}
	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return nil, fmt.Errorf("register event %s: %w", def.Type, err)
		}
	}
	return registry, nil
}

func requirePayload(raw json.RawMessage) error {
	if len(raw) == 0 {
		return fmt.Errorf("payload is required")
	}
	return nil
}
