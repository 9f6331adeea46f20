// Package rest exposes game sessions, the timeline, and the damage
// calculator over HTTP.
package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/damage"
	"github.com/AndrewDeWitt/grimlog/internal/errors"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/command"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/engine"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/event"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/session"
	"github.com/AndrewDeWitt/grimlog/internal/game/service"
	"github.com/AndrewDeWitt/grimlog/internal/game/storage"
)

// Handler serves the game API.
type Handler struct {
	service *service.Service
	hub     *Hub
}

// NewHandler builds the handler. hub may be nil to disable live streams.
func NewHandler(svc *service.Service, hub *Hub) *Handler {
	return &Handler{service: svc, hub: hub}
}

// RegisterRoutes wires game routes into the provided mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", h.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{sessionID}", h.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{sessionID}/commands", h.handleCommand)
	mux.HandleFunc("POST /api/sessions/{sessionID}/stratagems", h.handleStratagem)
	mux.HandleFunc("POST /api/sessions/{sessionID}/revert", h.handleRevert)
	mux.HandleFunc("GET /api/sessions/{sessionID}/events", h.handleTimeline)
	mux.HandleFunc("POST /api/damage", h.handleDamage)
	if h.hub != nil {
		mux.HandleFunc("GET /api/sessions/{sessionID}/stream", h.handleStream)
	}
}

type createSessionRequest struct {
	Name               string `json:"name"`
	PlayerFaction      string `json:"playerFaction"`
	OpponentFaction    string `json:"opponentFaction"`
	PlayerDetachment   string `json:"playerDetachment,omitempty"`
	OpponentDetachment string `json:"opponentDetachment,omitempty"`
	StartingCP         int    `json:"startingCp"`
}

type sessionResponse struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	PlayerFaction      string    `json:"playerFaction"`
	OpponentFaction    string    `json:"opponentFaction"`
	PlayerDetachment   string    `json:"playerDetachment,omitempty"`
	OpponentDetachment string    `json:"opponentDetachment,omitempty"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
	State              stateDTO  `json:"state"`
}

type stateDTO struct {
	Round         int            `json:"round"`
	Turn          session.Side   `json:"turn"`
	Phase         session.Phase  `json:"phase"`
	Ended         bool           `json:"ended"`
	CommandPoints map[string]int `json:"commandPoints"`
	Units         []unitDTO      `json:"units"`
}

type unitDTO struct {
	UnitID             string       `json:"unitId"`
	DatasheetID        string       `json:"datasheetId,omitempty"`
	Name               string       `json:"name"`
	Side               session.Side `json:"side"`
	ModelsAlive        int          `json:"modelsAlive"`
	ModelsTotal        int          `json:"modelsTotal"`
	WoundsPerModel     int          `json:"woundsPerModel"`
	WoundedModelWounds int          `json:"woundedModelWounds,omitempty"`
	WoundsRemaining    int          `json:"woundsRemaining"`
	Statuses           []string     `json:"statuses,omitempty"`
	Destroyed          bool         `json:"destroyed"`
}

type eventDTO struct {
	SessionID     string          `json:"sessionId"`
	Seq           uint64          `json:"seq"`
	Timestamp     time.Time       `json:"timestamp"`
	Type          string          `json:"type"`
	ActorType     string          `json:"actorType"`
	ActorID       string          `json:"actorId,omitempty"`
	EntityType    string          `json:"entityType,omitempty"`
	EntityID      string          `json:"entityId,omitempty"`
	RequestID     string          `json:"requestId,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
	CausationID   string          `json:"causationId,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

type commandRequest struct {
	Type    string          `json:"type"`
	Actor   string          `json:"actor"`
	ActorID string          `json:"actorId"`
	Payload json.RawMessage `json:"payload"`
}

type commandResponse struct {
	Applied    bool                `json:"applied"`
	Rejections []command.Rejection `json:"rejections,omitempty"`
	Events     []eventDTO          `json:"events,omitempty"`
	State      stateDTO            `json:"state"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	view, err := h.service.CreateSession(r.Context(), actorFromRequest(r), service.CreateSessionInput{
		Name:               req.Name,
		PlayerFaction:      req.PlayerFaction,
		OpponentFaction:    req.OpponentFaction,
		PlayerDetachment:   req.PlayerDetachment,
		OpponentDetachment: req.OpponentDetachment,
		StartingCP:         req.StartingCP,
	})
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(view))
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	status := storage.SessionStatus(r.URL.Query().Get("status"))
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)
	records, err := h.service.ListSessions(r.Context(), status, limit, offset)
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	out := make([]sessionResponse, 0, len(records))
	for _, record := range records {
		out = append(out, toSessionResponse(service.SessionView{Record: record}))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetSession(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(view))
}

func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	if strings.TrimSpace(req.Type) == "" {
		errors.WriteHTTP(w, errors.New(errors.CodeInvalidInput, "command type is required"))
		return
	}
	actor := actorFromRequest(r)
	if req.Actor != "" {
		actor = service.Actor{Type: command.ActorType(req.Actor), ID: req.ActorID}
	}
	result, err := h.service.Execute(r.Context(), r.PathValue("sessionID"), actor, command.Type(req.Type), req.Payload)
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeCommandResult(w, result)
}

type stratagemRequest struct {
	StratagemID  string       `json:"stratagemId"`
	Side         session.Side `json:"side"`
	TargetUnitID string       `json:"targetUnitId,omitempty"`
}

func (h *Handler) handleStratagem(w http.ResponseWriter, r *http.Request) {
	var req stratagemRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	if strings.TrimSpace(req.StratagemID) == "" {
		errors.WriteHTTP(w, errors.New(errors.CodeInvalidInput, "stratagemId is required"))
		return
	}
	result, err := h.service.UseStratagem(r.Context(), r.PathValue("sessionID"), actorFromRequest(r), req.StratagemID, req.Side, req.TargetUnitID)
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeCommandResult(w, result)
}

type revertRequest struct {
	TargetSeq uint64 `json:"targetSeq"`
	Reason    string `json:"reason,omitempty"`
	Force     bool   `json:"force,omitempty"`
}

func (h *Handler) handleRevert(w http.ResponseWriter, r *http.Request) {
	var req revertRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	result, err := h.service.Revert(r.Context(), r.PathValue("sessionID"), actorFromRequest(r), req.TargetSeq, req.Reason, req.Force)
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeCommandResult(w, result)
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	afterSeq := uint64(queryInt(r, "after", 0))
	limit := queryInt(r, "limit", 0)
	events, err := h.service.Timeline(r.Context(), r.PathValue("sessionID"), afterSeq, limit)
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	out := make([]eventDTO, 0, len(events))
	var nextAfter uint64
	for _, evt := range events {
		out = append(out, toEventDTO(evt))
		nextAfter = evt.Seq
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out, "nextAfter": nextAfter})
}

type damageRequest struct {
	Weapon struct {
		Attacks   string   `json:"attacks"`
		Skill     int      `json:"skill"`
		Strength  int      `json:"strength"`
		AP        int      `json:"ap"`
		Damage    string   `json:"damage"`
		Count     int      `json:"count,omitempty"`
		Abilities []string `json:"abilities,omitempty"`
	} `json:"weapon"`
	Defender struct {
		Toughness    int      `json:"toughness"`
		Save         int      `json:"save"`
		Invulnerable int      `json:"invulnerable,omitempty"`
		Wounds       int      `json:"wounds"`
		Models       int      `json:"models"`
		Keywords     []string `json:"keywords,omitempty"`
	} `json:"defender"`
	Modifiers struct {
		Cover         bool   `json:"cover,omitempty"`
		HalfRange     bool   `json:"halfRange,omitempty"`
		HitModifier   int    `json:"hitModifier,omitempty"`
		WoundModifier int    `json:"woundModifier,omitempty"`
		RerollHits    string `json:"rerollHits,omitempty"`
		RerollWounds  string `json:"rerollWounds,omitempty"`
	} `json:"modifiers"`
}

func (h *Handler) handleDamage(w http.ResponseWriter, r *http.Request) {
	var req damageRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteHTTP(w, err)
		return
	}

	weapon := damage.WeaponProfile{
		Attacks:  req.Weapon.Attacks,
		Skill:    req.Weapon.Skill,
		Strength: req.Weapon.Strength,
		AP:       req.Weapon.AP,
		Damage:   req.Weapon.Damage,
		Count:    req.Weapon.Count,
	}
	if err := weapon.ApplyAbilities(req.Weapon.Abilities); err != nil {
		errors.WriteHTTP(w, errors.Wrap(errors.CodeInvalidInput, "invalid weapon abilities", err))
		return
	}
	result, err := damage.Resolve(weapon, damage.Defender{
		Toughness:    req.Defender.Toughness,
		Save:         req.Defender.Save,
		Invulnerable: req.Defender.Invulnerable,
		Wounds:       req.Defender.Wounds,
		Models:       req.Defender.Models,
		Keywords:     req.Defender.Keywords,
	}, damage.Modifiers{
		Cover:         req.Modifiers.Cover,
		HalfRange:     req.Modifiers.HalfRange,
		HitModifier:   req.Modifiers.HitModifier,
		WoundModifier: req.Modifiers.WoundModifier,
		RerollHits:    damage.Reroll(req.Modifiers.RerollHits),
		RerollWounds:  damage.Reroll(req.Modifiers.RerollWounds),
	})
	if err != nil {
		errors.WriteHTTP(w, errors.Wrap(errors.CodeInvalidInput, "invalid damage input", err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// actorFromRequest reads actor identity headers, defaulting to the player.
func actorFromRequest(r *http.Request) service.Actor {
	actorType := command.ActorType(r.Header.Get("X-Grimlog-Actor"))
	switch actorType {
	case command.ActorTypePlayer, command.ActorTypeOpponent, command.ActorTypeSystem, command.ActorTypeAI:
	default:
		actorType = command.ActorTypePlayer
	}
	actorID := r.Header.Get("X-Grimlog-Actor-Id")
	if actorID == "" {
		actorID = string(actorType)
	}
	return service.Actor{Type: actorType, ID: actorID}
}

func writeCommandResult(w http.ResponseWriter, result engine.Result) {
	resp := commandResponse{
		Applied:    len(result.Decision.Rejections) == 0,
		Rejections: result.Decision.Rejections,
		State:      toStateDTO(result.State),
	}
	for _, evt := range result.Decision.Events {
		resp.Events = append(resp.Events, toEventDTO(evt))
	}
	status := http.StatusOK
	if !resp.Applied {
		status = http.StatusConflict
	}
	writeJSON(w, status, resp)
}

func toSessionResponse(view service.SessionView) sessionResponse {
	return sessionResponse{
		ID:                 view.Record.ID,
		Name:               view.Record.Name,
		PlayerFaction:      view.Record.PlayerFaction,
		OpponentFaction:    view.Record.OpponentFaction,
		PlayerDetachment:   view.Record.PlayerDetachment,
		OpponentDetachment: view.Record.OpponentDetachment,
		Status:             string(view.Record.Status),
		CreatedAt:          view.Record.CreatedAt,
		State:              toStateDTO(view.State),
	}
}

func toStateDTO(state session.State) stateDTO {
	dto := stateDTO{
		Round: state.Round,
		Turn:  state.Turn,
		Phase: state.Phase,
		Ended: state.Ended,
		CommandPoints: map[string]int{
			string(session.SidePlayer):   state.CP(session.SidePlayer),
			string(session.SideOpponent): state.CP(session.SideOpponent),
		},
		Units: make([]unitDTO, 0, len(state.Units)),
	}
	for _, u := range state.Units {
		unit := unitDTO{
			UnitID:             u.UnitID,
			DatasheetID:        u.DatasheetID,
			Name:               u.Name,
			Side:               u.Side,
			ModelsAlive:        u.ModelsAlive,
			ModelsTotal:        u.ModelsTotal,
			WoundsPerModel:     u.WoundsPerModel,
			WoundedModelWounds: u.WoundedModelWounds,
			WoundsRemaining:    u.WoundsRemaining(),
			Destroyed:          u.Destroyed,
		}
		for status, active := range u.Statuses {
			if active {
				unit.Statuses = append(unit.Statuses, status)
			}
		}
		dto.Units = append(dto.Units, unit)
	}
	return dto
}

func toEventDTO(evt event.Event) eventDTO {
	return eventDTO{
		SessionID:     evt.SessionID,
		Seq:           evt.Seq,
		Timestamp:     evt.Timestamp,
		Type:          string(evt.Type),
		ActorType:     string(evt.ActorType),
		ActorID:       evt.ActorID,
		EntityType:    evt.EntityType,
		EntityID:      evt.EntityID,
		RequestID:     evt.RequestID,
		CorrelationID: evt.CorrelationID,
		CausationID:   evt.CausationID,
		Payload:       evt.PayloadJSON,
	}
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		return errors.Wrap(errors.CodeInvalidInput, "request body is not valid JSON", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
