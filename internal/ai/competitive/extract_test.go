package competitive

import (
	"context"
	"testing"

	"github.com/AndrewDeWitt/grimlog/internal/ai/provider"
	"github.com/AndrewDeWitt/grimlog/internal/catalog"
	"github.com/AndrewDeWitt/grimlog/internal/errors"
)

func testSource() catalog.CompetitiveSource {
	return catalog.CompetitiveSource{
		ID: "src-1", URL: "https://example.com/meta",
		Kind: catalog.SourceArticle, Content: "long article text",
	}
}

func TestExtractDropsUnknownUnits(t *testing.T) {
	completer := &fakeCompleter{response: provider.Response{Text: `{
		"units": [
			{"name": "Grey Hunters", "tier": "A", "confidence": 0.8},
			{"name": "Some Other Army Unit", "tier": "S", "confidence": 0.9}
		]
	}`}}
	extractor := NewExtractor(completer)

	sheets := []catalog.Datasheet{{ID: "ds-gh", Name: "Grey Hunters"}}
	extractions, err := extractor.Extract(context.Background(), testSource(), sheets)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(extractions) != 1 {
		t.Fatalf("units outside the roster must be dropped, got %+v", extractions)
	}
	if extractions[0].DatasheetID != "ds-gh" || extractions[0].Tier != "A" {
		t.Fatalf("unexpected extraction: %+v", extractions[0])
	}
}

func TestExtractRejectsOutOfRangeConfidence(t *testing.T) {
	completer := &fakeCompleter{response: provider.Response{Text: `{
		"units": [{"name": "Grey Hunters", "tier": "A", "confidence": 1.5}]
	}`}}
	extractor := NewExtractor(completer)

	_, err := extractor.Extract(context.Background(), testSource(),
		[]catalog.Datasheet{{ID: "ds-gh", Name: "Grey Hunters"}})
	if !errors.IsCode(err, errors.CodeAIOutputInvalid) {
		t.Fatalf("expected AI_OUTPUT_INVALID, got %v", err)
	}
}

func TestExtractRequiresFetchedContent(t *testing.T) {
	extractor := NewExtractor(&fakeCompleter{})
	source := testSource()
	source.Content = ""
	_, err := extractor.Extract(context.Background(), source,
		[]catalog.Datasheet{{ID: "ds-gh", Name: "Grey Hunters"}})
	if !errors.IsCode(err, errors.CodeSourceInvalidState) {
		t.Fatalf("expected SOURCE_INVALID_STATE, got %v", err)
	}
}

func TestExtractUnitRecordsNotFound(t *testing.T) {
	completer := &fakeCompleter{response: provider.Response{Text: `{"units": []}`}}
	extractor := NewExtractor(completer)

	extraction, err := extractor.ExtractUnit(context.Background(), testSource(),
		catalog.Datasheet{ID: "ds-gh", Name: "Grey Hunters"})
	if err != nil {
		t.Fatalf("extract unit: %v", err)
	}
	if extraction.Found {
		t.Fatalf("expected not-found extraction, got %+v", extraction)
	}
	if extraction.SourceID != "src-1" || extraction.DatasheetID != "ds-gh" {
		t.Fatalf("not-found extraction must keep its keys: %+v", extraction)
	}
}
