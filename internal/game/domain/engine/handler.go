package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/game/domain/command"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/event"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/revert"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/session"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/stratagem"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/unit"
)

var (
	// ErrCommandRegistryRequired indicates a missing command registry.
	ErrCommandRegistryRequired = errors.New("command registry is required")
	// ErrEventRegistryRequired indicates a missing event registry.
	ErrEventRegistryRequired = errors.New("event registry is required")
	// ErrJournalRequired indicates a missing event journal.
	ErrJournalRequired = errors.New("event journal is required")
)

// EventJournal persists and replays a session's timeline.
type EventJournal interface {
	// AppendEvent appends an event, assigning the next sequence number.
	AppendEvent(ctx context.Context, evt event.Event) (event.Event, error)
	// ListEvents returns all events for a session in sequence order.
	ListEvents(ctx context.Context, sessionID string) ([]event.Event, error)
}

// Handler validates a command, replays state, routes to the owning decider,
// and journals accepted events.
type Handler struct {
	Commands *command.Registry
	Events   *event.Registry
	Journal  EventJournal
	Now      func() time.Time
}

// Result captures execution outcomes.
type Result struct {
	Decision command.Decision
	State    session.State
}

// Execute handles a command end to end: validate, replay, decide, append,
// and fold the accepted events into the returned state.
func (h Handler) Execute(ctx context.Context, cmd command.Command) (Result, error) {
	if h.Commands == nil {
		return Result{}, ErrCommandRegistryRequired
	}
	if h.Events == nil {
		return Result{}, ErrEventRegistryRequired
	}
	if h.Journal == nil {
		return Result{}, ErrJournalRequired
	}

	validated, err := h.Commands.ValidateForDecision(cmd)
	if err != nil {
		return Result{}, err
	}
	cmd = validated

	events, err := h.Journal.ListEvents(ctx, cmd.SessionID)
	if err != nil {
		return Result{}, err
	}
	state, err := session.Fold(events)
	if err != nil {
		return Result{}, err
	}

	// Ended sessions accept only commands that explicitly opt in (revert).
	if state.Ended {
		if def, ok := h.Commands.Definition(cmd.Type); !ok || !def.Ended.AllowAfterEnd {
			return Result{
				Decision: command.Reject(command.Rejection{
					Code:    "SESSION_ENDED",
					Message: "session has ended",
				}),
				State: state,
			}, nil
		}
	}

	decision := h.decide(state, events, cmd)
	if len(decision.Rejections) > 0 {
		return Result{Decision: decision, State: state}, nil
	}

	appended := make([]event.Event, 0, len(decision.Events))
	for _, evt := range decision.Events {
		vetted, err := h.Events.ValidateForAppend(evt)
		if err != nil {
			return Result{}, err
		}
		stored, err := h.Journal.AppendEvent(ctx, vetted)
		if err != nil {
			return Result{}, err
		}
		next, err := session.Apply(state, stored)
		if err != nil {
			return Result{}, err
		}
		state = next
		appended = append(appended, stored)
	}
	decision.Events = appended

	return Result{Decision: decision, State: state}, nil
}

// Replay folds a session's full journal into state.
func (h Handler) Replay(ctx context.Context, sessionID string) (session.State, []event.Event, error) {
	if h.Journal == nil {
		return session.State{}, nil, ErrJournalRequired
	}
	events, err := h.Journal.ListEvents(ctx, sessionID)
	if err != nil {
		return session.State{}, nil, err
	}
	state, err := session.Fold(events)
	if err != nil {
		return session.State{}, nil, err
	}
	return state, events, nil
}

func (h Handler) decide(state session.State, events []event.Event, cmd command.Command) command.Decision {
	now := h.Now
	if now == nil {
		now = time.Now
	}
	switch {
	case cmd.Type == stratagem.CommandTypeUse:
		return stratagem.Decide(state, cmd, now)
	case cmd.Type == revert.CommandTypeRevert:
		return revert.Decide(state, events, cmd, now)
	case strings.HasPrefix(string(cmd.Type), "unit."):
		return unit.Decide(state, cmd, now)
	default:
		return session.Decide(state, cmd, now)
	}
}
