// Package toolcall turns voice transcripts into session commands through
// provider tool calls. Every argument document is validated against a JSON
// schema before it is allowed anywhere near the engine, and every resulting
// command carries the ai actor type so the timeline records its origin.
package toolcall

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/AndrewDeWitt/grimlog/internal/ai/gatekeeper"
	"github.com/AndrewDeWitt/grimlog/internal/ai/provider"
	"github.com/AndrewDeWitt/grimlog/internal/ai/schema"
	"github.com/AndrewDeWitt/grimlog/internal/errors"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/command"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/engine"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/event"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/session"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/stratagem"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/unit"
	"github.com/AndrewDeWitt/grimlog/internal/platform/id"
)

const systemPrompt = `You are the table assistant for a Warhammer 40,000 game tracker.
You receive the current game state and a spoken transcript from one of the players.
Translate what happened on the table into tool calls. Rules:
- Only call tools for actions the transcript clearly describes.
- Use unit ids from the game state, never invent ids.
- Spending command points is a negative delta; gaining them is positive.
- If the transcript describes nothing actionable, call no tools.`

// tool binds a provider tool definition to the engine command it produces.
type tool struct {
	definition provider.ToolDefinition
	command    command.Type
	schema     *schema.Schema
	// rewrite adjusts the validated arguments into the command payload.
	// Nil means the arguments already are the payload.
	rewrite func(ctx context.Context, i *Interpreter, args json.RawMessage) (json.RawMessage, error)
}

// StratagemResolver maps a spoken stratagem name to its catalog identity and
// cost. The interpreter falls back to the spoken name and model-supplied cost
// when no resolver is configured.
type StratagemResolver func(ctx context.Context, name string) (stratagemID string, cost int, err error)

// Interpreter executes transcript-derived tool calls against the engine.
type Interpreter struct {
	completer provider.Completer
	handler   engine.Handler
	gate      *gatekeeper.Gatekeeper

	// ResolveStratagem fills catalog data for use_stratagem calls.
	ResolveStratagem StratagemResolver

	newID func() string
	tools map[string]tool
}

// New builds an interpreter. The gatekeeper is optional; when present,
// irrelevant transcripts are skipped before any tool-calling request is made.
func New(completer provider.Completer, handler engine.Handler, gate *gatekeeper.Gatekeeper) *Interpreter {
	return &Interpreter{
		completer: completer,
		handler:   handler,
		gate:      gate,
		newID:     id.MustNewID,
		tools:     buildTools(),
	}
}

// Outcome reports what happened to a single tool call.
type Outcome struct {
	Tool        string              `json:"tool"`
	CommandType command.Type        `json:"commandType,omitempty"`
	Applied     bool                `json:"applied"`
	Error       string              `json:"error,omitempty"`
	Rejections  []command.Rejection `json:"rejections,omitempty"`
	Events      []event.Event       `json:"events,omitempty"`
}

// Result is the full outcome of interpreting one transcript.
type Result struct {
	Skipped    bool          `json:"skipped"`
	SkipReason string        `json:"skipReason,omitempty"`
	FailedOpen bool          `json:"failedOpen,omitempty"`
	Outcomes   []Outcome     `json:"outcomes"`
	State      session.State `json:"-"`
}

// Interpret classifies the transcript, asks the provider for tool calls, and
// executes each valid call as an ai-actor command. Invalid calls are reported
// per-call rather than aborting the batch: the table keeps moving even when
// the model gets one action wrong.
func (i *Interpreter) Interpret(ctx context.Context, sessionID, transcript string) (Result, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return Result{Skipped: true, SkipReason: "empty transcript"}, nil
	}

	failedOpen := false
	if i.gate != nil {
		verdict := i.gate.Check(ctx, transcript)
		if !verdict.Relevant {
			return Result{Skipped: true, SkipReason: verdict.Reason}, nil
		}
		failedOpen = verdict.FailedOpen
	}

	state, _, err := i.handler.Replay(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("replay session %s: %w", sessionID, err)
	}
	if !state.Created {
		return Result{}, errors.New(errors.CodeNotFound, "session not found")
	}

	response, err := i.completer.Complete(ctx, provider.Request{
		System: systemPrompt,
		User:   fmt.Sprintf("Game state:\n%s\n\nTranscript:\n%s", summarizeState(state), transcript),
		Tools:  i.toolDefinitions(),
	})
	if err != nil {
		return Result{}, errors.Wrap(errors.CodeAIProviderFailure, "tool call completion failed", err)
	}

	correlationID := i.newID()
	result := Result{
		FailedOpen: failedOpen,
		Outcomes:   make([]Outcome, 0, len(response.ToolCalls)),
		State:      state,
	}
	for _, call := range response.ToolCalls {
		outcome := i.execute(ctx, sessionID, correlationID, call)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Applied {
			state, _, err = i.handler.Replay(ctx, sessionID)
			if err != nil {
				return result, fmt.Errorf("replay session %s: %w", sessionID, err)
			}
			result.State = state
		}
	}
	return result, nil
}

func (i *Interpreter) execute(ctx context.Context, sessionID, correlationID string, call provider.ToolCall) Outcome {
	bound, ok := i.tools[call.Name]
	if !ok {
		return Outcome{Tool: call.Name, Error: fmt.Sprintf("unknown tool %q", call.Name)}
	}
	outcome := Outcome{Tool: call.Name, CommandType: bound.command}

	if err := bound.schema.Validate(call.Arguments); err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	payload := call.Arguments
	if bound.rewrite != nil {
		rewritten, err := bound.rewrite(ctx, i, call.Arguments)
		if err != nil {
			outcome.Error = err.Error()
			return outcome
		}
		payload = rewritten
	}

	execResult, err := i.handler.Execute(ctx, command.Command{
		SessionID:     sessionID,
		Type:          bound.command,
		ActorType:     command.ActorTypeAI,
		ActorID:       "transcript-interpreter",
		RequestID:     i.newID(),
		CorrelationID: correlationID,
		PayloadJSON:   payload,
	})
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	if len(execResult.Decision.Rejections) > 0 {
		outcome.Rejections = execResult.Decision.Rejections
		return outcome
	}
	outcome.Applied = true
	outcome.Events = execResult.Decision.Events
	return outcome
}

func (i *Interpreter) toolDefinitions() []provider.ToolDefinition {
	names := make([]string, 0, len(i.tools))
	for name := range i.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	defs := make([]provider.ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, i.tools[name].definition)
	}
	return defs
}

// summarizeState renders the replayed state compactly enough to fit in a
// prompt while keeping every id the model is allowed to reference.
func summarizeState(state session.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Round %d, %s turn, %s phase.\n", state.Round, state.Turn, state.Phase)
	fmt.Fprintf(&b, "Command points: player %d, opponent %d.\n",
		state.CP(session.SidePlayer), state.CP(session.SideOpponent))

	ids := make([]string, 0, len(state.Units))
	for unitID := range state.Units {
		ids = append(ids, unitID)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		b.WriteString("No units deployed.")
		return b.String()
	}
	b.WriteString("Units:\n")
	for _, unitID := range ids {
		u := state.Units[unitID]
		if u.Destroyed {
			fmt.Fprintf(&b, "- %s (%q, %s): destroyed\n", u.UnitID, u.Name, u.Side)
			continue
		}
		fmt.Fprintf(&b, "- %s (%q, %s): %d/%d models, %d wounds remaining",
			u.UnitID, u.Name, u.Side, u.ModelsAlive, u.ModelsTotal, u.WoundsRemaining())
		statuses := activeStatuses(u)
		if len(statuses) > 0 {
			fmt.Fprintf(&b, ", %s", strings.Join(statuses, "/"))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func activeStatuses(u session.UnitState) []string {
	statuses := make([]string, 0, len(u.Statuses))
	for name, active := range u.Statuses {
		if active {
			statuses = append(statuses, name)
		}
	}
	sort.Strings(statuses)
	return statuses
}

func buildTools() map[string]tool {
	tools := []tool{
		{
			definition: provider.ToolDefinition{
				Name:        "adjust_command_points",
				Description: "Spend (negative delta) or gain (positive delta) command points for one side.",
				Parameters:  mustParameters(cpAdjustSchema),
			},
			command: session.CommandTypeCPAdjust,
			schema:  schema.MustCompile(cpAdjustSchema),
		},
		{
			definition: provider.ToolDefinition{
				Name:        "use_stratagem",
				Description: "Record a stratagem activation, paying its command point cost.",
				Parameters:  mustParameters(useStratagemSchema),
			},
			command: stratagem.CommandTypeUse,
			schema:  schema.MustCompile(useStratagemSchema),
			rewrite: rewriteStratagem,
		},
		{
			definition: provider.ToolDefinition{
				Name:        "deploy_unit",
				Description: "Add a unit to the battlefield with its model count and wounds per model.",
				Parameters:  mustParameters(deployUnitSchema),
			},
			command: unit.CommandTypeDeploy,
			schema:  schema.MustCompile(deployUnitSchema),
		},
		{
			definition: provider.ToolDefinition{
				Name:        "damage_unit",
				Description: "Apply wounds suffered by a unit.",
				Parameters:  mustParameters(damageUnitSchema),
			},
			command: unit.CommandTypeDamage,
			schema:  schema.MustCompile(damageUnitSchema),
		},
		{
			definition: provider.ToolDefinition{
				Name:        "heal_unit",
				Description: "Restore wounds to a unit.",
				Parameters:  mustParameters(healUnitSchema),
			},
			command: unit.CommandTypeHeal,
			schema:  schema.MustCompile(healUnitSchema),
		},
		{
			definition: provider.ToolDefinition{
				Name:        "set_unit_status",
				Description: "Set or clear a unit status effect such as battle-shocked or in-cover.",
				Parameters:  mustParameters(unitStatusSchema),
			},
			command: unit.CommandTypeStatusSet,
			schema:  schema.MustCompile(unitStatusSchema),
		},
		{
			definition: provider.ToolDefinition{
				Name:        "destroy_unit",
				Description: "Remove a unit from play.",
				Parameters:  mustParameters(destroyUnitSchema),
			},
			command: unit.CommandTypeDestroy,
			schema:  schema.MustCompile(destroyUnitSchema),
		},
		{
			definition: provider.ToolDefinition{
				Name:        "revive_unit",
				Description: "Return a destroyed unit to play with the given models and wounds.",
				Parameters:  mustParameters(reviveUnitSchema),
			},
			command: unit.CommandTypeRevive,
			schema:  schema.MustCompile(reviveUnitSchema),
		},
		{
			definition: provider.ToolDefinition{
				Name:        "advance_round",
				Description: "Advance the battle to the next round.",
				Parameters:  mustParameters(emptySchema),
			},
			command: session.CommandTypeRoundAdvance,
			schema:  schema.MustCompile(emptySchema),
		},
		{
			definition: provider.ToolDefinition{
				Name:        "set_turn",
				Description: "Set whose turn it is.",
				Parameters:  mustParameters(setTurnSchema),
			},
			command: session.CommandTypeTurnSet,
			schema:  schema.MustCompile(setTurnSchema),
		},
		{
			definition: provider.ToolDefinition{
				Name:        "set_phase",
				Description: "Set the current phase of the turn.",
				Parameters:  mustParameters(setPhaseSchema),
			},
			command: session.CommandTypePhaseSet,
			schema:  schema.MustCompile(setPhaseSchema),
		},
		{
			definition: provider.ToolDefinition{
				Name:        "add_note",
				Description: "Record a free-form note on the timeline.",
				Parameters:  mustParameters(addNoteSchema),
			},
			command: session.CommandTypeNoteAdd,
			schema:  schema.MustCompile(addNoteSchema),
		},
	}

	byName := make(map[string]tool, len(tools))
	for _, t := range tools {
		byName[t.definition.Name] = t
	}
	return byName
}

// stratagemArgs is the validated shape of a use_stratagem call.
type stratagemArgs struct {
	Name         string       `json:"name"`
	Side         session.Side `json:"side"`
	Cost         int          `json:"cost"`
	TargetUnitID string       `json:"targetUnitId,omitempty"`
}

// rewriteStratagem resolves the spoken stratagem name against the catalog
// when a resolver is configured, otherwise it trusts the model's cost and
// uses the name as the identifier.
func rewriteStratagem(ctx context.Context, i *Interpreter, args json.RawMessage) (json.RawMessage, error) {
	var parsed stratagemArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return nil, fmt.Errorf("decode use_stratagem arguments: %w", err)
	}
	payload := stratagem.UsePayload{
		StratagemID:  parsed.Name,
		Name:         parsed.Name,
		Side:         parsed.Side,
		Cost:         parsed.Cost,
		TargetUnitID: parsed.TargetUnitID,
	}
	if i.ResolveStratagem != nil {
		stratagemID, cost, err := i.ResolveStratagem(ctx, parsed.Name)
		if err != nil {
			return nil, fmt.Errorf("resolve stratagem %q: %w", parsed.Name, err)
		}
		payload.StratagemID = stratagemID
		payload.Cost = cost
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode stratagem.use payload: %w", err)
	}
	return encoded, nil
}

func mustParameters(schemaJSON string) map[string]any {
	var parameters map[string]any
	if err := json.Unmarshal([]byte(schemaJSON), &parameters); err != nil {
		panic(fmt.Sprintf("tool parameter schema is not valid JSON: %v", err))
	}
	return parameters
}

const emptySchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {}
}`

const cpAdjustSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["side", "delta"],
	"properties": {
		"side": {"type": "string", "enum": ["player", "opponent"]},
		"delta": {"type": "integer"},
		"reason": {"type": "string"}
	}
}`

const useStratagemSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["name", "side"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"side": {"type": "string", "enum": ["player", "opponent"]},
		"cost": {"type": "integer", "minimum": 0},
		"targetUnitId": {"type": "string"}
	}
}`

const deployUnitSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["unitId", "name", "side", "models", "woundsPerModel"],
	"properties": {
		"unitId": {"type": "string", "minLength": 1},
		"datasheetId": {"type": "string"},
		"name": {"type": "string", "minLength": 1},
		"side": {"type": "string", "enum": ["player", "opponent"]},
		"models": {"type": "integer", "minimum": 1},
		"woundsPerModel": {"type": "integer", "minimum": 1}
	}
}`

const damageUnitSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["unitId", "wounds"],
	"properties": {
		"unitId": {"type": "string", "minLength": 1},
		"wounds": {"type": "integer", "minimum": 1},
		"sourceUnitId": {"type": "string"}
	}
}`

const healUnitSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["unitId", "wounds"],
	"properties": {
		"unitId": {"type": "string", "minLength": 1},
		"wounds": {"type": "integer", "minimum": 1}
	}
}`

const unitStatusSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["unitId", "status", "active"],
	"properties": {
		"unitId": {"type": "string", "minLength": 1},
		"status": {"type": "string", "minLength": 1},
		"active": {"type": "boolean"}
	}
}`

const destroyUnitSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["unitId"],
	"properties": {
		"unitId": {"type": "string", "minLength": 1}
	}
}`

const reviveUnitSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["unitId", "models", "wounds"],
	"properties": {
		"unitId": {"type": "string", "minLength": 1},
		"models": {"type": "integer", "minimum": 1},
		"wounds": {"type": "integer", "minimum": 1}
	}
}`

const setTurnSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["turn"],
	"properties": {
		"turn": {"type": "string", "enum": ["player", "opponent"]}
	}
}`

const setPhaseSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["phase"],
	"properties": {
		"phase": {"type": "string", "enum": ["command", "movement", "shooting", "charge", "fight", "end"]}
	}
}`

const addNoteSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["text"],
	"properties": {
		"text": {"type": "string", "minLength": 1}
	}
}`
