package competitive

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/catalog"
)

// aggregate folds per-source extractions into one competitive context for a
// datasheet. The tier is decided by majority vote with ties broken toward
// the better grade; disagreements between sources are surfaced as conflicts
// instead of being papered over.
func aggregate(datasheetID, factionID, detachmentID string, extractions []catalog.UnitExtraction) (catalog.CompetitiveContext, bool) {
	found := extractions[:0:0]
	for _, extraction := range extractions {
		if extraction.Found {
			found = append(found, extraction)
		}
	}
	if len(found) == 0 {
		return catalog.CompetitiveContext{}, false
	}

	votes := make(map[string]int)
	for _, extraction := range found {
		votes[extraction.Tier]++
	}
	tier := ""
	for _, candidate := range catalog.Tiers {
		if votes[candidate] > votes[tier] {
			tier = candidate
		}
	}

	var conflicts []string
	if len(votes) > 1 {
		parts := make([]string, 0, len(votes))
		for _, candidate := range catalog.Tiers {
			if votes[candidate] > 0 {
				parts = append(parts, fmt.Sprintf("%dx%s", votes[candidate], candidate))
			}
		}
		conflicts = append(conflicts, fmt.Sprintf("tier split: %s", strings.Join(parts, ", ")))
	}

	// The most confident extraction supplies the prose fields.
	lead := found[0]
	for _, extraction := range found[1:] {
		if extraction.Confidence > lead.Confidence {
			lead = extraction
		}
	}

	targets := mergeStrings(found, func(e catalog.UnitExtraction) []string { return e.BestTargets })
	counters := mergeStrings(found, func(e catalog.UnitExtraction) []string { return e.Counters })

	return catalog.CompetitiveContext{
		DatasheetID:  datasheetID,
		FactionID:    factionID,
		DetachmentID: detachmentID,
		Tier:         tier,
		Summary:      lead.TierReasoning,
		BestTargets:  targets,
		Counters:     counters,
		Synergies:    mergeSynergies(found),
		Playstyle:    lead.Playstyle,
		Deployment:   lead.Deployment,
		SourceCount:  countSources(found),
		Conflicts:    conflicts,
		UpdatedAt:    time.Now().UTC(),
	}, true
}

func mergeStrings(extractions []catalog.UnitExtraction, pick func(catalog.UnitExtraction) []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, extraction := range extractions {
		for _, value := range pick(extraction) {
			value = strings.TrimSpace(value)
			key := strings.ToLower(value)
			if value == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, value)
		}
	}
	sort.Strings(out)
	return out
}

func mergeSynergies(extractions []catalog.UnitExtraction) []catalog.Synergy {
	seen := make(map[string]bool)
	var out []catalog.Synergy
	for _, extraction := range extractions {
		for _, synergy := range extraction.Synergies {
			key := strings.ToLower(strings.TrimSpace(synergy.Unit))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, synergy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Unit < out[j].Unit })
	return out
}

func countSources(extractions []catalog.UnitExtraction) int {
	sources := make(map[string]bool)
	for _, extraction := range extractions {
		sources[extraction.SourceID] = true
	}
	return len(sources)
}
