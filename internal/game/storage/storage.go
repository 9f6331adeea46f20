// Package storage defines persistence interfaces for game sessions.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/game/domain/event"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// SessionStatus tracks the lifecycle of a session row.
type SessionStatus string

const (
	// SessionStatusActive marks a session accepting commands.
	SessionStatusActive SessionStatus = "active"
	// SessionStatusEnded marks a concluded session.
	SessionStatusEnded SessionStatus = "ended"
)

// SessionRecord is the listing row for a game session. Live state is always
// derived from the journal; this row exists for cheap listings and lookups.
type SessionRecord struct {
	ID                 string
	Name               string
	PlayerFaction      string
	OpponentFaction    string
	PlayerDetachment   string
	OpponentDetachment string
	Status             SessionStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SessionStore persists session listing rows.
type SessionStore interface {
	PutSession(ctx context.Context, record SessionRecord) error
	GetSession(ctx context.Context, id string) (SessionRecord, error)
	ListSessions(ctx context.Context, status SessionStatus, limit, offset int) ([]SessionRecord, error)
	SetSessionStatus(ctx context.Context, id string, status SessionStatus) error
}

// EventStore persists the per-session timeline journal.
type EventStore interface {
	// AppendEvent stores the event and assigns the next gapless sequence
	// number for its session.
	AppendEvent(ctx context.Context, evt event.Event) (event.Event, error)
	// ListEvents returns all events for a session in sequence order.
	ListEvents(ctx context.Context, sessionID string) ([]event.Event, error)
	// ListEventsPage returns up to limit events with seq > afterSeq.
	ListEventsPage(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]event.Event, error)
	// GetEvent returns one event by sequence number.
	GetEvent(ctx context.Context, sessionID string, seq uint64) (event.Event, error)
}

// Store combines every game storage interface.
type Store interface {
	SessionStore
	EventStore
	Close() error
}
