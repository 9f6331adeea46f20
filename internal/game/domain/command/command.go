// Package command defines the command envelope and validation entry points.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/game/domain/event"
)

var (
	// ErrSessionIDRequired indicates a missing session id.
	ErrSessionIDRequired = errors.New("session id is required")
	// ErrTypeRequired indicates a missing command type.
	ErrTypeRequired = errors.New("command type is required")
	// ErrTypeUnknown indicates an unregistered command type.
	ErrTypeUnknown = errors.New("command type is not registered")
	// ErrActorTypeInvalid indicates an unknown actor type.
	ErrActorTypeInvalid = errors.New("actor type is invalid")
	// ErrActorIDRequired indicates a missing actor id for player/opponent/ai.
	ErrActorIDRequired = errors.New("actor id is required for non-system actors")
	// ErrPayloadInvalid indicates malformed payload JSON.
	ErrPayloadInvalid = errors.New("payload json must be valid")
)

// Type identifies the command type string.
type Type string

// ActorType identifies the actor who initiated the command.
type ActorType string

const (
	// ActorTypeSystem indicates a system-originated command.
	ActorTypeSystem ActorType = "system"
	// ActorTypePlayer indicates a player-originated command.
	ActorTypePlayer ActorType = "player"
	// ActorTypeOpponent indicates a command issued on the opponent's behalf.
	ActorTypeOpponent ActorType = "opponent"
	// ActorTypeAI indicates a command proposed by an AI tool call.
	ActorTypeAI ActorType = "ai"
)

// Command captures the canonical command envelope.
type Command struct {
	SessionID     string
	Type          Type
	ActorType     ActorType
	ActorID       string
	EntityType    string
	EntityID      string
	RequestID     string
	CorrelationID string
	CausationID   string
	PayloadJSON   []byte
}

// EndedPolicy declares how a command behaves once the session has ended.
type EndedPolicy struct {
	// AllowAfterEnd permits the command on an ended session. Only revert
	// commands carry this.
	AllowAfterEnd bool
}

// Definition registers metadata for a command type.
type Definition struct {
	Type            Type
	ValidatePayload PayloadValidator
	Ended           EndedPolicy
}

// PayloadValidator validates a payload JSON document.
type PayloadValidator func(json.RawMessage) error

// Registry stores command definitions and validates commands.
type Registry struct {
	definitions map[Type]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[Type]Definition)}
}

// Register adds a new command type definition to the registry.
func (r *Registry) Register(def Definition) error {
	if r == nil {
		return errors.New("registry is required")
	}
	def.Type = Type(strings.TrimSpace(string(def.Type)))
	if def.Type == "" {
		return ErrTypeRequired
	}
	if r.definitions == nil {
		r.definitions = make(map[Type]Definition)
	}
	if _, exists := r.definitions[def.Type]; exists {
		return fmt.Errorf("command type already registered: %s", def.Type)
	}
	r.definitions[def.Type] = def
	return nil
}

// Definition returns the registered definition for a type.
func (r *Registry) Definition(t Type) (Definition, bool) {
	if r == nil || r.definitions == nil {
		return Definition{}, false
	}
	def, ok := r.definitions[t]
	return def, ok
}

// Types returns all registered command types in sorted order.
func (r *Registry) Types() []Type {
	if r == nil || r.definitions == nil {
		return nil
	}
	types := make([]Type, 0, len(r.definitions))
	for t := range r.definitions {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// ValidateForDecision validates and normalizes a command before decision handling.
func (r *Registry) ValidateForDecision(cmd Command) (Command, error) {
	cmd.SessionID = strings.TrimSpace(cmd.SessionID)
	if cmd.SessionID == "" {
		return Command{}, ErrSessionIDRequired
	}
	cmd.Type = Type(strings.TrimSpace(string(cmd.Type)))
	if cmd.Type == "" {
		return Command{}, ErrTypeRequired
	}
	def, ok := r.Definition(cmd.Type)
	if !ok {
		return Command{}, fmt.Errorf("%w: %s", ErrTypeUnknown, cmd.Type)
	}
	switch cmd.ActorType {
	case ActorTypeSystem:
		// actor id optional
	case ActorTypePlayer, ActorTypeOpponent, ActorTypeAI:
		if strings.TrimSpace(cmd.ActorID) == "" {
			return Command{}, ErrActorIDRequired
		}
	default:
		return Command{}, fmt.Errorf("%w: %s", ErrActorTypeInvalid, cmd.ActorType)
	}
	if len(cmd.PayloadJSON) > 0 && !json.Valid(cmd.PayloadJSON) {
		return Command{}, ErrPayloadInvalid
	}
	if def.ValidatePayload != nil {
		if err := def.ValidatePayload(cmd.PayloadJSON); err != nil {
			return Command{}, fmt.Errorf("validate %s payload: %w", cmd.Type, err)
		}
	}
	return cmd, nil
}

// NewEvent builds an event.Event by copying the shared envelope fields from a
// command. Callers supply the event-specific type, entity addressing, payload,
// and timestamp. This eliminates per-decider boilerplate and ensures that new
// envelope fields are automatically forwarded.
func NewEvent(cmd Command, eventType event.Type, entityType, entityID string, payloadJSON []byte, now time.Time) event.Event {
	return event.Event{
		SessionID:     cmd.SessionID,
		Type:          eventType,
		Timestamp:     now,
		ActorType:     event.ActorType(cmd.ActorType),
		ActorID:       cmd.ActorID,
		EntityType:    entityType,
		EntityID:      entityID,
		RequestID:     cmd.RequestID,
		CorrelationID: cmd.CorrelationID,
		CausationID:   cmd.CausationID,
		PayloadJSON:   payloadJSON,
	}
}
