// Package armylist parses free-text army lists into structured rosters
// matched against the catalog. The provider extracts unit entries as JSON;
// matching against datasheets is deterministic and never guessed by the
// model.
package armylist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AndrewDeWitt/grimlog/internal/ai/provider"
	"github.com/AndrewDeWitt/grimlog/internal/ai/schema"
	"github.com/AndrewDeWitt/grimlog/internal/catalog"
	"github.com/AndrewDeWitt/grimlog/internal/catalog/storage"
	"github.com/AndrewDeWitt/grimlog/internal/errors"
)

const systemPrompt = `You parse Warhammer 40,000 army lists pasted as free text.
Extract every unit entry into the JSON shape you are given. Rules:
- "name" is the unit name exactly as written, without point costs or wargear.
- "models" is the model count when stated, otherwise 1.
- "points" is the listed points cost when stated, otherwise 0.
- Include the faction and detachment when the list names them.
- Do not invent units that are not in the text.
Respond with JSON only.`

const rosterSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["units"],
	"properties": {
		"faction": {"type": "string"},
		"detachment": {"type": "string"},
		"units": {
			"type": "array",
			"items": {
				"type": "object",
				"additionalProperties": false,
				"required": ["name"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"models": {"type": "integer", "minimum": 1},
					"points": {"type": "integer", "minimum": 0}
				}
			}
		}
	}
}`

var compiledRosterSchema = schema.MustCompile(rosterSchema)

// DatasheetLister is the catalog surface the parser matches units against.
type DatasheetLister interface {
	ListDatasheets(ctx context.Context, filter storage.ListFilter) ([]catalog.Datasheet, error)
}

// Entry is one parsed unit, matched against the catalog when possible.
type Entry struct {
	Name        string `json:"name"`
	Models      int    `json:"models"`
	Points      int    `json:"points,omitempty"`
	DatasheetID string `json:"datasheetId,omitempty"`
	// Matched reports whether the name resolved to a catalog datasheet.
	// Unmatched entries are returned as written so the caller can fix them;
	// they are never silently mapped to a guess.
	Matched bool `json:"matched"`
	// Wounds comes from the matched datasheet.
	Wounds int `json:"wounds,omitempty"`
}

// Roster is the structured result of parsing one army list.
type Roster struct {
	Faction    string  `json:"faction,omitempty"`
	Detachment string  `json:"detachment,omitempty"`
	Entries    []Entry `json:"entries"`
	Unmatched  int     `json:"unmatched"`
}

// Parser extracts rosters from free text.
type Parser struct {
	completer provider.Completer
	catalog   DatasheetLister
}

// New builds a parser over the given provider and catalog.
func New(completer provider.Completer, catalog DatasheetLister) *Parser {
	return &Parser{completer: completer, catalog: catalog}
}

type rawRoster struct {
	Faction    string `json:"faction"`
	Detachment string `json:"detachment"`
	Units      []struct {
		Name   string `json:"name"`
		Models int    `json:"models"`
		Points int    `json:"points"`
	} `json:"units"`
}

// Parse extracts a roster from the list text and matches each unit name
// against catalog datasheets, optionally scoped to one faction.
func (p *Parser) Parse(ctx context.Context, listText, factionID string) (Roster, error) {
	listText = strings.TrimSpace(listText)
	if listText == "" {
		return Roster{}, errors.New(errors.CodeInvalidInput, "army list text is required")
	}

	response, err := p.completer.Complete(ctx, provider.Request{
		System:    systemPrompt,
		User:      listText,
		ForceJSON: true,
	})
	if err != nil {
		return Roster{}, errors.Wrap(errors.CodeAIProviderFailure, "army list extraction failed", err)
	}
	document := []byte(response.Text)
	if err := compiledRosterSchema.Validate(document); err != nil {
		return Roster{}, errors.Wrap(errors.CodeAIOutputInvalid, "army list output rejected", err)
	}
	var raw rawRoster
	if err := json.Unmarshal(document, &raw); err != nil {
		return Roster{}, errors.Wrap(errors.CodeAIOutputInvalid, "army list output rejected", err)
	}

	index, err := p.datasheetIndex(ctx, factionID)
	if err != nil {
		return Roster{}, fmt.Errorf("load datasheets: %w", err)
	}

	roster := Roster{
		Faction:    strings.TrimSpace(raw.Faction),
		Detachment: strings.TrimSpace(raw.Detachment),
		Entries:    make([]Entry, 0, len(raw.Units)),
	}
	for _, unit := range raw.Units {
		entry := Entry{
			Name:   strings.TrimSpace(unit.Name),
			Models: unit.Models,
			Points: unit.Points,
		}
		if entry.Name == "" {
			continue
		}
		if entry.Models <= 0 {
			entry.Models = 1
		}
		if sheet, ok := index[normalizeKey(entry.Name)]; ok {
			entry.Matched = true
			entry.DatasheetID = sheet.ID
			entry.Name = sheet.Name
			entry.Wounds = sheet.Wounds
			if entry.Points == 0 {
				entry.Points = sheet.Points
			}
		} else {
			roster.Unmatched++
		}
		roster.Entries = append(roster.Entries, entry)
	}
	return roster, nil
}

func (p *Parser) datasheetIndex(ctx context.Context, factionID string) (map[string]catalog.Datasheet, error) {
	index := make(map[string]catalog.Datasheet)
	filter := storage.ListFilter{FactionID: factionID, Limit: 500}
	for {
		sheets, err := p.catalog.ListDatasheets(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, sheet := range sheets {
			index[normalizeKey(sheet.Name)] = sheet
		}
		if len(sheets) < filter.Limit {
			return index, nil
		}
		filter.Offset += len(sheets)
	}
}

// normalizeKey folds case, whitespace, and common punctuation so "Grey
// Hunters (5)" and "grey hunters" land on the same datasheet.
func normalizeKey(name string) string {
	name = strings.ToLower(catalog.NormalizeName(name))
	for _, cut := range []string{"(", "["} {
		if idx := strings.Index(name, cut); idx >= 0 {
			name = name[:idx]
		}
	}
	name = strings.Trim(name, " -–")
	return strings.Join(strings.Fields(name), " ")
}
