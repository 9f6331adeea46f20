package event

import (
	"strings"
	"time"
)

// Type identifies the kind of timeline event.
type Type string

// Session lifecycle events.
const (
	// TypeSessionCreated records the creation of a game session.
	TypeSessionCreated Type = "session.created"
	// TypeSessionEnded records the end of a game session.
	TypeSessionEnded Type = "session.ended"
)

// Battle flow events.
const (
	// TypeRoundAdvanced records a battle round increment.
	TypeRoundAdvanced Type = "round.advanced"
	// TypeTurnSet records which side holds the active turn.
	TypeTurnSet Type = "turn.set"
	// TypePhaseSet records a phase change within the active turn.
	TypePhaseSet Type = "phase.set"
)

// Resource events.
const (
	// TypeCommandPointsAdjusted records a manual CP correction.
	TypeCommandPointsAdjusted Type = "cp.adjusted"
	// TypeStratagemUsed records a stratagem activation and its CP spend.
	TypeStratagemUsed Type = "stratagem.used"
)

// Unit events.
const (
	// TypeUnitDeployed records a unit instance entering the battlefield roster.
	TypeUnitDeployed Type = "unit.deployed"
	// TypeUnitDamaged records wounds allocated to a unit.
	TypeUnitDamaged Type = "unit.damaged"
	// TypeUnitHealed records wounds restored to a unit.
	TypeUnitHealed Type = "unit.healed"
	// TypeUnitStatusSet records a status effect change on a unit.
	TypeUnitStatusSet Type = "unit.status_set"
	// TypeUnitDestroyed records a unit removed as destroyed.
	TypeUnitDestroyed Type = "unit.destroyed"
	// TypeUnitRevived records a destroyed unit returning to play.
	TypeUnitRevived Type = "unit.revived"
)

// Annotation events.
const (
	// TypeNoteAdded records a free-text annotation on the timeline.
	TypeNoteAdded Type = "note.added"
)

// Revert events.
const (
	// TypeEventReverted records a compensating reversal of an earlier event.
	TypeEventReverted Type = "event.reverted"
)

// ActorType identifies who or what triggered an event.
type ActorType string

const (
	// ActorTypeSystem indicates the event was triggered by the system.
	ActorTypeSystem ActorType = "system"
	// ActorTypePlayer indicates the event was triggered by the session owner.
	ActorTypePlayer ActorType = "player"
	// ActorTypeOpponent indicates the event was triggered on the opponent's behalf.
	ActorTypeOpponent ActorType = "opponent"
	// ActorTypeAI indicates the event was produced by an AI tool call.
	ActorTypeAI ActorType = "ai"
)

// Event represents an immutable entry in a session's timeline journal.
type Event struct {
	// SessionID is the game session this event belongs to.
	SessionID string
	// Seq is the event sequence number within the session (starts at 1).
	// Assigned by storage on append.
	Seq uint64
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Type identifies the kind of event.
	Type Type
	// ActorType identifies who triggered the event.
	ActorType ActorType
	// ActorID names the acting player or AI invocation.
	ActorID string
	// EntityType is the type of entity affected (unit, session, stratagem...).
	EntityType string
	// EntityID is the ID of the entity affected.
	EntityID string
	// RequestID correlates events produced by the same API request.
	RequestID string
	// CorrelationID groups events across requests (e.g. forced revert cascades).
	CorrelationID string
	// CausationID names the event or command that caused this one.
	CausationID string
	// PayloadJSON holds event-specific data as JSON. Payloads carry enough
	// prior state to compute their own inverse on revert.
	PayloadJSON []byte
}

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the domain prefix of the event type (e.g. "unit", "session").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}
