// Package service coordinates the command engine, session storage, and
// catalog lookups behind the game API.
package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/catalog"
	"github.com/AndrewDeWitt/grimlog/internal/errors"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/command"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/engine"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/event"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/revert"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/session"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/stratagem"
	"github.com/AndrewDeWitt/grimlog/internal/game/storage"
	"github.com/AndrewDeWitt/grimlog/internal/platform/id"
)

// StratagemCatalog is the catalog surface the service needs to resolve
// stratagem activations.
type StratagemCatalog interface {
	GetStratagem(ctx context.Context, stratagemID string) (catalog.Stratagem, error)
	StratagemCost(ctx context.Context, stratagemID, detachmentID string) (int, error)
}

// Broadcaster pushes appended events to live timeline subscribers.
type Broadcaster interface {
	Broadcast(sessionID string, events []event.Event)
}

// Service executes commands and keeps the session listing table in step with
// the journal.
type Service struct {
	handler engine.Handler
	store   storage.Store
	catalog StratagemCatalog
	// broadcast is nil when no live stream is attached.
	broadcast Broadcaster
	newID     func() string
}

// New wires the service. catalog and broadcaster may be nil; stratagem
// resolution and live streaming are then disabled.
func New(handler engine.Handler, store storage.Store, catalog StratagemCatalog, broadcast Broadcaster) *Service {
	return &Service{
		handler:   handler,
		store:     store,
		catalog:   catalog,
		broadcast: broadcast,
		newID:     id.MustNewID,
	}
}

// Actor identifies who issued an API command.
type Actor struct {
	Type command.ActorType
	ID   string
}

// CreateSessionInput carries the fields for a new session.
type CreateSessionInput struct {
	Name               string
	PlayerFaction      string
	OpponentFaction    string
	PlayerDetachment   string
	OpponentDetachment string
	StartingCP         int
}

// SessionView combines the listing row with replayed state.
type SessionView struct {
	Record storage.SessionRecord
	State  session.State
}

// CreateSession creates a session, journals its creation event, and writes
// the listing row.
func (s *Service) CreateSession(ctx context.Context, actor Actor, input CreateSessionInput) (SessionView, error) {
	sessionID := s.newID()
	payload, err := json.Marshal(session.CreatePayload{
		Name:               strings.TrimSpace(input.Name),
		PlayerFaction:      strings.TrimSpace(input.PlayerFaction),
		OpponentFaction:    strings.TrimSpace(input.OpponentFaction),
		PlayerDetachment:   strings.TrimSpace(input.PlayerDetachment),
		OpponentDetachment: strings.TrimSpace(input.OpponentDetachment),
		StartingCP:         input.StartingCP,
	})
	if err != nil {
		return SessionView{}, fmt.Errorf("encode create payload: %w", err)
	}

	result, err := s.Execute(ctx, sessionID, actor, session.CommandTypeCreate, payload)
	if err != nil {
		return SessionView{}, err
	}
	if rejection := firstRejection(result); rejection != nil {
		return SessionView{}, rejectionError(*rejection)
	}

	record := storage.SessionRecord{
		ID:                 sessionID,
		Name:               strings.TrimSpace(input.Name),
		PlayerFaction:      strings.TrimSpace(input.PlayerFaction),
		OpponentFaction:    strings.TrimSpace(input.OpponentFaction),
		PlayerDetachment:   strings.TrimSpace(input.PlayerDetachment),
		OpponentDetachment: strings.TrimSpace(input.OpponentDetachment),
		Status:             storage.SessionStatusActive,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.store.PutSession(ctx, record); err != nil {
		return SessionView{}, fmt.Errorf("store session row: %w", err)
	}
	return SessionView{Record: record, State: result.State}, nil
}

// GetSession returns the listing row and replayed state for one session.
func (s *Service) GetSession(ctx context.Context, sessionID string) (SessionView, error) {
	record, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return SessionView{}, errors.New(errors.CodeNotFound, "session not found")
		}
		return SessionView{}, fmt.Errorf("load session: %w", err)
	}
	state, _, err := s.handler.Replay(ctx, sessionID)
	if err != nil {
		return SessionView{}, fmt.Errorf("replay session: %w", err)
	}
	return SessionView{Record: record, State: state}, nil
}

// ListSessions returns listing rows, optionally filtered by status.
func (s *Service) ListSessions(ctx context.Context, status storage.SessionStatus, limit, offset int) ([]storage.SessionRecord, error) {
	return s.store.ListSessions(ctx, status, limit, offset)
}

// Execute runs one command through the engine and keeps the listing row and
// live stream in step with the outcome.
func (s *Service) Execute(ctx context.Context, sessionID string, actor Actor, cmdType command.Type, payload json.RawMessage) (engine.Result, error) {
	result, err := s.handler.Execute(ctx, command.Command{
		SessionID:   sessionID,
		Type:        cmdType,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
		RequestID:   s.newID(),
		PayloadJSON: payload,
	})
	if err != nil {
		return engine.Result{}, err
	}
	if len(result.Decision.Rejections) > 0 {
		return result, nil
	}

	if err := s.syncRecord(ctx, sessionID, result.Decision.Events); err != nil {
		return result, err
	}
	if s.broadcast != nil && len(result.Decision.Events) > 0 {
		s.broadcast.Broadcast(sessionID, result.Decision.Events)
	}
	return result, nil
}

// UseStratagem resolves the stratagem against the catalog, applies the
// acting side's detachment discount, and executes stratagem.use.
func (s *Service) UseStratagem(ctx context.Context, sessionID string, actor Actor, stratagemID string, side session.Side, targetUnitID string) (engine.Result, error) {
	if s.catalog == nil {
		return engine.Result{}, fmt.Errorf("catalog is not configured")
	}
	entry, err := s.catalog.GetStratagem(ctx, stratagemID)
	if err != nil {
		return engine.Result{}, err
	}

	record, err := s.store.GetSession(ctx, sessionID)
	if err != nil && !stderrors.Is(err, storage.ErrNotFound) {
		return engine.Result{}, fmt.Errorf("load session: %w", err)
	}
	detachmentID := record.PlayerDetachment
	if side == session.SideOpponent {
		detachmentID = record.OpponentDetachment
	}

	cost, err := s.catalog.StratagemCost(ctx, stratagemID, detachmentID)
	if err != nil {
		return engine.Result{}, err
	}

	usePayload := stratagem.UsePayload{
		StratagemID:  entry.ID,
		Name:         entry.Name,
		Side:         side,
		Cost:         cost,
		Turn:         stratagem.TurnRestriction(entry.Turn),
		TargetUnitID: targetUnitID,
	}
	if entry.Phase != "" {
		usePayload.PhaseRestricted = []session.Phase{session.Phase(entry.Phase)}
	}
	payload, err := json.Marshal(usePayload)
	if err != nil {
		return engine.Result{}, fmt.Errorf("encode stratagem payload: %w", err)
	}
	return s.Execute(ctx, sessionID, actor, stratagem.CommandTypeUse, payload)
}

// Revert executes event.revert against the target sequence.
func (s *Service) Revert(ctx context.Context, sessionID string, actor Actor, targetSeq uint64, reason string, force bool) (engine.Result, error) {
	payload, err := json.Marshal(revert.Payload{TargetSeq: targetSeq, Reason: reason, Force: force})
	if err != nil {
		return engine.Result{}, fmt.Errorf("encode revert payload: %w", err)
	}
	return s.Execute(ctx, sessionID, actor, revert.CommandTypeRevert, payload)
}

// Timeline returns a page of the session's journal.
func (s *Service) Timeline(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.New(errors.CodeNotFound, "session not found")
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return s.store.ListEventsPage(ctx, sessionID, afterSeq, limit)
}

// syncRecord mirrors lifecycle events onto the listing row. Reverting a
// session.ended event reopens the row.
func (s *Service) syncRecord(ctx context.Context, sessionID string, events []event.Event) error {
	for _, evt := range events {
		var status storage.SessionStatus
		switch evt.Type {
		case event.TypeSessionEnded:
			status = storage.SessionStatusEnded
		case event.TypeEventReverted:
			var payload session.RevertPayload
			if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil || payload.TargetType != string(event.TypeSessionEnded) {
				continue
			}
			status = storage.SessionStatusActive
		default:
			continue
		}
		if err := s.store.SetSessionStatus(ctx, sessionID, status); err != nil && !stderrors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("update session status: %w", err)
		}
	}
	return nil
}

func firstRejection(result engine.Result) *command.Rejection {
	if len(result.Decision.Rejections) == 0 {
		return nil
	}
	return &result.Decision.Rejections[0]
}

func rejectionError(rejection command.Rejection) error {
	return errors.New(errors.Code(rejection.Code), rejection.Message)
}
