// Package rest exposes catalog reads publicly and catalog mutations behind
// admin bearer auth.
package rest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/catalog"
	"github.com/AndrewDeWitt/grimlog/internal/catalog/service"
	"github.com/AndrewDeWitt/grimlog/internal/catalog/storage"
	"github.com/AndrewDeWitt/grimlog/internal/errors"
)

// ContextReader serves aggregated competitive context lookups.
type ContextReader interface {
	GetContext(ctx context.Context, datasheetID, factionID, detachmentID string) (catalog.CompetitiveContext, error)
	ListContextsByFaction(ctx context.Context, factionID string) ([]catalog.CompetitiveContext, error)
}

// Handler serves the catalog API.
type Handler struct {
	service  *service.Service
	contexts ContextReader
}

// NewHandler builds the handler. contexts may be nil to disable competitive
// context reads.
func NewHandler(svc *service.Service, contexts ContextReader) *Handler {
	return &Handler{service: svc, contexts: contexts}
}

// RegisterRoutes wires catalog routes into the mux. Mutating routes are
// wrapped with authorize; reads are public.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, authorize func(http.Handler) http.Handler) {
	admin := func(pattern string, handler http.HandlerFunc) {
		mux.Handle(pattern, authorize(handler))
	}

	admin("POST /api/admin/factions", h.handleCreateFaction)
	admin("PUT /api/admin/factions/{id}", h.handleUpdateFaction)
	admin("DELETE /api/admin/factions/{id}", h.handleDeleteFaction)
	admin("POST /api/admin/detachments", h.handleCreateDetachment)
	admin("PUT /api/admin/detachments/{id}", h.handleUpdateDetachment)
	admin("DELETE /api/admin/detachments/{id}", h.handleDeleteDetachment)
	admin("POST /api/admin/datasheets", h.handleCreateDatasheet)
	admin("PUT /api/admin/datasheets/{id}", h.handleUpdateDatasheet)
	admin("DELETE /api/admin/datasheets/{id}", h.handleDeleteDatasheet)
	admin("POST /api/admin/weapons", h.handleCreateWeapon)
	admin("PUT /api/admin/weapons/{id}", h.handleUpdateWeapon)
	admin("DELETE /api/admin/weapons/{id}", h.handleDeleteWeapon)
	admin("POST /api/admin/abilities", h.handleCreateAbility)
	admin("PUT /api/admin/abilities/{id}", h.handleUpdateAbility)
	admin("DELETE /api/admin/abilities/{id}", h.handleDeleteAbility)
	admin("POST /api/admin/stratagems", h.handleCreateStratagem)
	admin("PUT /api/admin/stratagems/{id}", h.handleUpdateStratagem)
	admin("DELETE /api/admin/stratagems/{id}", h.handleDeleteStratagem)

	mux.HandleFunc("GET /api/catalog/factions", h.handleListFactions)
	mux.HandleFunc("GET /api/catalog/factions/{id}", h.handleGetFaction)
	mux.HandleFunc("GET /api/catalog/detachments", h.handleListDetachments)
	mux.HandleFunc("GET /api/catalog/datasheets", h.handleListDatasheets)
	mux.HandleFunc("GET /api/catalog/datasheets/{id}", h.handleGetDatasheet)
	mux.HandleFunc("GET /api/catalog/weapons", h.handleListWeapons)
	mux.HandleFunc("GET /api/catalog/abilities", h.handleListAbilities)
	mux.HandleFunc("GET /api/catalog/stratagems", h.handleListStratagems)
	mux.HandleFunc("GET /api/catalog/stratagems/{id}/cost", h.handleStratagemCost)
	if h.contexts != nil {
		mux.HandleFunc("GET /api/catalog/competitive/context", h.handleGetContext)
		mux.HandleFunc("GET /api/catalog/competitive/contexts", h.handleListContexts)
	}
}

type factionDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toFactionDTO(f catalog.Faction) factionDTO {
	return factionDTO{ID: f.ID, Name: f.Name, Description: f.Description, CreatedAt: f.CreatedAt, UpdatedAt: f.UpdatedAt}
}

func (h *Handler) handleCreateFaction(w http.ResponseWriter, r *http.Request) {
	var req factionDTO
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	created, err := h.service.CreateFaction(r.Context(), catalog.Faction{Name: req.Name, Description: req.Description})
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFactionDTO(created))
}

func (h *Handler) handleUpdateFaction(w http.ResponseWriter, r *http.Request) {
	var req factionDTO
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	updated, err := h.service.UpdateFaction(r.Context(), catalog.Faction{
		ID: r.PathValue("id"), Name: req.Name, Description: req.Description,
	})
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFactionDTO(updated))
}

func (h *Handler) handleDeleteFaction(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteFaction(r.Context(), r.PathValue("id")); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetFaction(w http.ResponseWriter, r *http.Request) {
	faction, err := h.service.GetFaction(r.Context(), r.PathValue("id"))
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFactionDTO(faction))
}

func (h *Handler) handleListFactions(w http.ResponseWriter, r *http.Request) {
	factions, err := h.service.ListFactions(r.Context(), filterFromQuery(r))
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	out := make([]factionDTO, 0, len(factions))
	for _, faction := range factions {
		out = append(out, toFactionDTO(faction))
	}
	writeJSON(w, http.StatusOK, map[string]any{"factions": out})
}

type detachmentDTO struct {
	ID                   string    `json:"id"`
	FactionID            string    `json:"factionId"`
	Name                 string    `json:"name"`
	Description          string    `json:"description,omitempty"`
	BattleTacticDiscount bool      `json:"battleTacticDiscount"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

func toDetachmentDTO(d catalog.Detachment) detachmentDTO {
	return detachmentDTO{
		ID: d.ID, FactionID: d.FactionID, Name: d.Name, Description: d.Description,
		BattleTacticDiscount: d.BattleTacticDiscount, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

func (h *Handler) handleCreateDetachment(w http.ResponseWriter, r *http.Request) {
	var req detachmentDTO
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	created, err := h.service.CreateDetachment(r.Context(), catalog.Detachment{
		FactionID: req.FactionID, Name: req.Name, Description: req.Description,
		BattleTacticDiscount: req.BattleTacticDiscount,
	})
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDetachmentDTO(created))
}

func (h *Handler) handleUpdateDetachment(w http.ResponseWriter, r *http.Request) {
	var req detachmentDTO
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	updated, err := h.service.UpdateDetachment(r.Context(), catalog.Detachment{
		ID: r.PathValue("id"), FactionID: req.FactionID, Name: req.Name,
		Description: req.Description, BattleTacticDiscount: req.BattleTacticDiscount,
	})
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetachmentDTO(updated))
}

func (h *Handler) handleDeleteDetachment(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteDetachment(r.Context(), r.PathValue("id")); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListDetachments(w http.ResponseWriter, r *http.Request) {
	detachments, err := h.service.ListDetachments(r.Context(), filterFromQuery(r))
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	out := make([]detachmentDTO, 0, len(detachments))
	for _, detachment := range detachments {
		out = append(out, toDetachmentDTO(detachment))
	}
	writeJSON(w, http.StatusOK, map[string]any{"detachments": out})
}

type datasheetDTO struct {
	ID               string    `json:"id"`
	FactionID        string    `json:"factionId"`
	Name             string    `json:"name"`
	Movement         int       `json:"movement"`
	Toughness        int       `json:"toughness"`
	Save             int       `json:"save"`
	InvulnerableSave int       `json:"invulnerableSave,omitempty"`
	Wounds           int       `json:"wounds"`
	Leadership       int       `json:"leadership"`
	ObjectiveControl int       `json:"objectiveControl"`
	ModelsPerUnit    int       `json:"modelsPerUnit"`
	Points           int       `json:"points"`
	Keywords         []string  `json:"keywords,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func toDatasheetDTO(d catalog.Datasheet) datasheetDTO {
	return datasheetDTO{
		ID: d.ID, FactionID: d.FactionID, Name: d.Name,
		Movement: d.Movement, Toughness: d.Toughness, Save: d.Save,
		InvulnerableSave: d.InvulnerableSave, Wounds: d.Wounds, Leadership: d.Leadership,
		ObjectiveControl: d.ObjectiveControl, ModelsPerUnit: d.ModelsPerUnit,
		Points: d.Points, Keywords: d.Keywords, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

func datasheetFromDTO(id string, req datasheetDTO) catalog.Datasheet {
	return catalog.Datasheet{
		ID: id, FactionID: req.FactionID, Name: req.Name,
		Movement: req.Movement, Toughness: req.Toughness, Save: req.Save,
		InvulnerableSave: req.InvulnerableSave, Wounds: req.Wounds, Leadership: req.Leadership,
		ObjectiveControl: req.ObjectiveControl, ModelsPerUnit: req.ModelsPerUnit,
		Points: req.Points, Keywords: req.Keywords,
	}
}

func (h *Handler) handleCreateDatasheet(w http.ResponseWriter, r *http.Request) {
	var req datasheetDTO
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	created, err := h.service.CreateDatasheet(r.Context(), datasheetFromDTO("", req))
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDatasheetDTO(created))
}

func (h *Handler) handleUpdateDatasheet(w http.ResponseWriter, r *http.Request) {
	var req datasheetDTO
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	updated, err := h.service.UpdateDatasheet(r.Context(), datasheetFromDTO(r.PathValue("id"), req))
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDatasheetDTO(updated))
}

func (h *Handler) handleDeleteDatasheet(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	result, err := h.service.DeleteDatasheet(r.Context(), r.PathValue("id"), force)
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted": result.Deleted,
		"dependents": map[string]int{
			"weapons":              result.Dependents.Weapons,
			"abilities":            result.Dependents.Abilities,
			"competitive_contexts": result.Dependents.CompetitiveContexts,
		},
	})
}

func (h *Handler) handleGetDatasheet(w http.ResponseWriter, r *http.Request) {
	datasheet, err := h.service.GetDatasheet(r.Context(), r.PathValue("id"))
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDatasheetDTO(datasheet))
}

func (h *Handler) handleListDatasheets(w http.ResponseWriter, r *http.Request) {
	datasheets, err := h.service.ListDatasheets(r.Context(), filterFromQuery(r))
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	out := make([]datasheetDTO, 0, len(datasheets))
	for _, datasheet := range datasheets {
		out = append(out, toDatasheetDTO(datasheet))
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasheets": out})
}

type weaponDTO struct {
	ID          string    `json:"id"`
	DatasheetID string    `json:"datasheetId"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	RangeInches int       `json:"rangeInches,omitempty"`
	Attacks     string    `json:"attacks"`
	Skill       int       `json:"skill"`
	Strength    int       `json:"strength"`
	AP          int       `json:"ap"`
	Damage      string    `json:"damage"`
	Abilities   []string  `json:"abilities,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toWeaponDTO(weapon catalog.Weapon) weaponDTO {
	return weaponDTO{
		ID: weapon.ID, DatasheetID: weapon.DatasheetID, Name: weapon.Name,
		Kind: string(weapon.Kind), RangeInches: weapon.RangeInches, Attacks: weapon.Attacks,
		Skill: weapon.Skill, Strength: weapon.Strength, AP: weapon.AP, Damage: weapon.Damage,
		Abilities: weapon.Abilities, CreatedAt: weapon.CreatedAt, UpdatedAt: weapon.UpdatedAt,
	}
}

func weaponFromDTO(id string, req weaponDTO) catalog.Weapon {
	return catalog.Weapon{
		ID: id, DatasheetID: req.DatasheetID, Name: req.Name,
		Kind: catalog.WeaponKind(req.Kind), RangeInches: req.RangeInches, Attacks: req.Attacks,
		Skill: req.Skill, Strength: req.Strength, AP: req.AP, Damage: req.Damage,
		Abilities: req.Abilities,
	}
}

func (h *Handler) handleCreateWeapon(w http.ResponseWriter, r *http.Request) {
	var req weaponDTO
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	created, err := h.service.CreateWeapon(r.Context(), weaponFromDTO("", req))
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWeaponDTO(created))
}

func (h *Handler) handleUpdateWeapon(w http.ResponseWriter, r *http.Request) {
	var req weaponDTO
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	updated, err := h.service.UpdateWeapon(r.Context(), weaponFromDTO(r.PathValue("id"), req))
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeaponDTO(updated))
}

func (h *Handler) handleDeleteWeapon(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteWeapon(r.Context(), r.PathValue("id")); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListWeapons(w http.ResponseWriter, r *http.Request) {
	weapons, err := h.service.ListWeapons(r.Context(), filterFromQuery(r))
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	out := make([]weaponDTO, 0, len(weapons))
	for _, weapon := range weapons {
		out = append(out, toWeaponDTO(weapon))
	}
	writeJSON(w, http.StatusOK, map[string]any{"weapons": out})
}

type abilityDTO struct {
	ID          string    `json:"id"`
	DatasheetID string    `json:"datasheetId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toAbilityDTO(a catalog.Ability) abilityDTO {
	return abilityDTO{ID: a.ID, DatasheetID: a.DatasheetID, Name: a.Name, Description: a.Description, CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt}
}

func (h *Handler) handleCreateAbility(w http.ResponseWriter, r *http.Request) {
	var req abilityDTO
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	created, err := h.service.CreateAbility(r.Context(), catalog.Ability{
		DatasheetID: req.DatasheetID, Name: req.Name, Description: req.Description,
	})
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAbilityDTO(created))
}

func (h *Handler) handleUpdateAbility(w http.ResponseWriter, r *http.Request) {
	var req abilityDTO
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	updated, err := h.service.UpdateAbility(r.Context(), catalog.Ability{
		ID: r.PathValue("id"), DatasheetID: req.DatasheetID, Name: req.Name, Description: req.Description,
	})
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAbilityDTO(updated))
}

func (h *Handler) handleDeleteAbility(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAbility(r.Context(), r.PathValue("id")); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListAbilities(w http.ResponseWriter, r *http.Request) {
	abilities, err := h.service.ListAbilities(r.Context(), filterFromQuery(r))
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	out := make([]abilityDTO, 0, len(abilities))
	for _, ability := range abilities {
		out = append(out, toAbilityDTO(ability))
	}
	writeJSON(w, http.StatusOK, map[string]any{"abilities": out})
}

type stratagemDTO struct {
	ID           string    `json:"id"`
	FactionID    string    `json:"factionId"`
	DetachmentID string    `json:"detachmentId,omitempty"`
	Name         string    `json:"name"`
	CPCost       int       `json:"cpCost"`
	Phase        string    `json:"phase,omitempty"`
	Turn         string    `json:"turn"`
	Type         string    `json:"type"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toStratagemDTO(s catalog.Stratagem) stratagemDTO {
	return stratagemDTO{
		ID: s.ID, FactionID: s.FactionID, DetachmentID: s.DetachmentID, Name: s.Name,
		CPCost: s.CPCost, Phase: s.Phase, Turn: string(s.Turn), Type: string(s.Type),
		Description: s.Description, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt,
	}
}

func stratagemFromDTO(id string, req stratagemDTO) catalog.Stratagem {
	return catalog.Stratagem{
		ID: id, FactionID: req.FactionID, DetachmentID: req.DetachmentID, Name: req.Name,
		CPCost: req.CPCost, Phase: req.Phase, Turn: catalog.TurnRestriction(req.Turn),
		Type: catalog.StratagemType(req.Type), Description: req.Description,
	}
}

func (h *Handler) handleCreateStratagem(w http.ResponseWriter, r *http.Request) {
	var req stratagemDTO
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	created, err := h.service.CreateStratagem(r.Context(), stratagemFromDTO("", req))
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStratagemDTO(created))
}

func (h *Handler) handleUpdateStratagem(w http.ResponseWriter, r *http.Request) {
	var req stratagemDTO
	if err := decodeJSON(r, &req); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	updated, err := h.service.UpdateStratagem(r.Context(), stratagemFromDTO(r.PathValue("id"), req))
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStratagemDTO(updated))
}

func (h *Handler) handleDeleteStratagem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteStratagem(r.Context(), r.PathValue("id")); err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListStratagems(w http.ResponseWriter, r *http.Request) {
	stratagems, err := h.service.ListStratagems(r.Context(), filterFromQuery(r))
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	out := make([]stratagemDTO, 0, len(stratagems))
	for _, stratagem := range stratagems {
		out = append(out, toStratagemDTO(stratagem))
	}
	writeJSON(w, http.StatusOK, map[string]any{"stratagems": out})
}

func (h *Handler) handleStratagemCost(w http.ResponseWriter, r *http.Request) {
	cost, err := h.service.StratagemCost(r.Context(), r.PathValue("id"), r.URL.Query().Get("detachmentId"))
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cost": cost})
}

type contextDTO struct {
	ID           string            `json:"id"`
	DatasheetID  string            `json:"datasheetId"`
	FactionID    string            `json:"factionId"`
	DetachmentID string            `json:"detachmentId,omitempty"`
	Tier         string            `json:"tier"`
	Summary      string            `json:"summary,omitempty"`
	BestTargets  []string          `json:"bestTargets,omitempty"`
	Counters     []string          `json:"counters,omitempty"`
	Synergies    []catalog.Synergy `json:"synergies,omitempty"`
	Playstyle    string            `json:"playstyle,omitempty"`
	Deployment   string            `json:"deployment,omitempty"`
	SourceCount  int               `json:"sourceCount"`
	Conflicts    []string          `json:"conflicts,omitempty"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

func toContextDTO(c catalog.CompetitiveContext) contextDTO {
	return contextDTO{
		ID: c.ID, DatasheetID: c.DatasheetID, FactionID: c.FactionID, DetachmentID: c.DetachmentID,
		Tier: c.Tier, Summary: c.Summary, BestTargets: c.BestTargets, Counters: c.Counters,
		Synergies: c.Synergies, Playstyle: c.Playstyle, Deployment: c.Deployment,
		SourceCount: c.SourceCount, Conflicts: c.Conflicts, UpdatedAt: c.UpdatedAt,
	}
}

func (h *Handler) handleGetContext(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	result, err := h.contexts.GetContext(r.Context(),
		query.Get("datasheetId"), query.Get("factionId"), query.Get("detachmentId"))
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			errors.WriteHTTP(w, errors.New(errors.CodeNotFound, "competitive context not found"))
			return
		}
		errors.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContextDTO(result))
}

func (h *Handler) handleListContexts(w http.ResponseWriter, r *http.Request) {
	results, err := h.contexts.ListContextsByFaction(r.Context(), r.URL.Query().Get("factionId"))
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}
	out := make([]contextDTO, 0, len(results))
	for _, result := range results {
		out = append(out, toContextDTO(result))
	}
	writeJSON(w, http.StatusOK, map[string]any{"contexts": out})
}

func filterFromQuery(r *http.Request) storage.ListFilter {
	query := r.URL.Query()
	filter := storage.ListFilter{
		FactionID:   query.Get("factionId"),
		DatasheetID: query.Get("datasheetId"),
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}
	return filter
}

func decodeJSON(r *http.Request, target any) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return errors.Wrap(errors.CodeInvalidInput, "request body is not valid JSON", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
