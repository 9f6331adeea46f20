package competitive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/ai/provider"
	"github.com/AndrewDeWitt/grimlog/internal/ai/schema"
	"github.com/AndrewDeWitt/grimlog/internal/catalog"
	"github.com/AndrewDeWitt/grimlog/internal/errors"
	"github.com/AndrewDeWitt/grimlog/internal/platform/id"
)

const extractSystemPrompt = `You read competitive Warhammer 40,000 content and
extract what it says about specific units. You are given the source text and
the list of unit names to look for. For each unit the source actually
discusses, report its competitive assessment in the JSON shape you are given.
Rules:
- Only include units the source genuinely discusses. Never pad the list.
- "tier" grades competitive strength from S (best) to F (worst).
- "confidence" is your certainty in [0,1] that the assessment reflects the source.
- Quote the source's reasoning, do not substitute your own opinions.
Respond with JSON only.`

const extractionSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["units"],
	"properties": {
		"units": {
			"type": "array",
			"items": {
				"type": "object",
				"additionalProperties": false,
				"required": ["name", "tier", "confidence"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"tier": {"type": "string", "enum": ["S", "A", "B", "C", "D", "F"]},
					"tierReasoning": {"type": "string"},
					"bestTargets": {"type": "array", "items": {"type": "string"}},
					"counters": {"type": "array", "items": {"type": "string"}},
					"synergies": {
						"type": "array",
						"items": {
							"type": "object",
							"additionalProperties": false,
							"required": ["unit", "why"],
							"properties": {
								"unit": {"type": "string"},
								"why": {"type": "string"}
							}
						}
					},
					"playstyle": {"type": "string"},
					"deployment": {"type": "string"},
					"confidence": {"type": "number", "minimum": 0, "maximum": 1}
				}
			}
		}
	}
}`

var compiledExtractionSchema = schema.MustCompile(extractionSchema)

// Extractor pulls per-unit competitive assessments out of source text.
type Extractor struct {
	completer provider.Completer
	newID     func() string
}

// NewExtractor builds an extractor over the given provider.
func NewExtractor(completer provider.Completer) *Extractor {
	return &Extractor{completer: completer, newID: id.MustNewID}
}

type rawExtraction struct {
	Units []struct {
		Name          string            `json:"name"`
		Tier          string            `json:"tier"`
		TierReasoning string            `json:"tierReasoning"`
		BestTargets   []string          `json:"bestTargets"`
		Counters      []string          `json:"counters"`
		Synergies     []catalog.Synergy `json:"synergies"`
		Playstyle     string            `json:"playstyle"`
		Deployment    string            `json:"deployment"`
		Confidence    float64           `json:"confidence"`
	} `json:"units"`
}

// Extract reads the source content and returns one extraction per datasheet
// the source discusses. Units the model names that match no datasheet are
// dropped rather than guessed at.
func (e *Extractor) Extract(ctx context.Context, source catalog.CompetitiveSource, sheets []catalog.Datasheet) ([]catalog.UnitExtraction, error) {
	if strings.TrimSpace(source.Content) == "" {
		return nil, errors.New(errors.CodeSourceInvalidState, "source has no fetched content")
	}
	if len(sheets) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(sheets))
	index := make(map[string]catalog.Datasheet, len(sheets))
	for _, sheet := range sheets {
		names = append(names, sheet.Name)
		index[normalizeUnitKey(sheet.Name)] = sheet
	}

	response, err := e.completer.Complete(ctx, provider.Request{
		System: extractSystemPrompt,
		User: fmt.Sprintf("Units to look for:\n%s\n\nSource (%s):\n%s",
			strings.Join(names, "\n"), source.Kind, source.Content),
		ForceJSON: true,
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeAIProviderFailure, "competitive extraction failed", err)
	}

	document := []byte(response.Text)
	if err := compiledExtractionSchema.Validate(document); err != nil {
		return nil, errors.Wrap(errors.CodeAIOutputInvalid, "competitive extraction rejected", err)
	}
	var raw rawExtraction
	if err := json.Unmarshal(document, &raw); err != nil {
		return nil, errors.Wrap(errors.CodeAIOutputInvalid, "competitive extraction rejected", err)
	}

	now := time.Now().UTC()
	extractions := make([]catalog.UnitExtraction, 0, len(raw.Units))
	seen := make(map[string]bool, len(raw.Units))
	for _, unit := range raw.Units {
		sheet, ok := index[normalizeUnitKey(unit.Name)]
		if !ok || seen[sheet.ID] {
			continue
		}
		seen[sheet.ID] = true
		extractions = append(extractions, catalog.UnitExtraction{
			ID:            e.newID(),
			SourceID:      source.ID,
			DatasheetID:   sheet.ID,
			Found:         true,
			Tier:          unit.Tier,
			TierReasoning: unit.TierReasoning,
			BestTargets:   unit.BestTargets,
			Counters:      unit.Counters,
			Synergies:     unit.Synergies,
			Playstyle:     unit.Playstyle,
			Deployment:    unit.Deployment,
			Confidence:    unit.Confidence,
			CreatedAt:     now,
		})
	}
	return extractions, nil
}

// ExtractUnit asks about a single datasheet. A source that never discusses
// the unit yields a not-found extraction so the check is not repeated.
func (e *Extractor) ExtractUnit(ctx context.Context, source catalog.CompetitiveSource, sheet catalog.Datasheet) (catalog.UnitExtraction, error) {
	extractions, err := e.Extract(ctx, source, []catalog.Datasheet{sheet})
	if err != nil {
		return catalog.UnitExtraction{}, err
	}
	if len(extractions) == 0 {
		return catalog.UnitExtraction{
			ID:          e.newID(),
			SourceID:    source.ID,
			DatasheetID: sheet.ID,
			Found:       false,
			CreatedAt:   time.Now().UTC(),
		}, nil
	}
	return extractions[0], nil
}

func normalizeUnitKey(name string) string {
	return strings.ToLower(catalog.NormalizeName(name))
}
