package competitive

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/ai/provider"
	"github.com/AndrewDeWitt/grimlog/internal/catalog"
	catalogsqlite "github.com/AndrewDeWitt/grimlog/internal/catalog/storage/sqlite"
	"github.com/AndrewDeWitt/grimlog/internal/errors"
	"github.com/AndrewDeWitt/grimlog/internal/platform/id"
)

type fakeFetcher struct {
	content string
	err     error
	urls    []string
}

func (f *fakeFetcher) Fetch(_ context.Context, sourceURL string) (string, error) {
	f.urls = append(f.urls, sourceURL)
	if f.err != nil {
		return "", f.err
	}
	return f.content, nil
}

type fakeCompleter struct {
	response provider.Response
	err      error
}

func (f *fakeCompleter) Complete(_ context.Context, _ provider.Request) (provider.Response, error) {
	if f.err != nil {
		return provider.Response{}, f.err
	}
	return f.response, nil
}

func newStore(t *testing.T) *catalogsqlite.Store {
	t.Helper()
	store, err := catalogsqlite.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedCatalog(t *testing.T, store *catalogsqlite.Store) catalog.Datasheet {
	t.Helper()
	ctx := context.Background()
	if err := store.PutFaction(ctx, catalog.Faction{ID: "fac-sw", Name: "Space Wolves"}); err != nil {
		t.Fatalf("seed faction: %v", err)
	}
	sheet := catalog.Datasheet{
		ID: "ds-gh", FactionID: "fac-sw", Name: "Grey Hunters",
		Movement: 6, Toughness: 4, Save: 3, Wounds: 2, Leadership: 6,
		ObjectiveControl: 2, ModelsPerUnit: 5, Points: 90,
	}
	if err := store.PutDatasheet(ctx, sheet); err != nil {
		t.Fatalf("seed datasheet: %v", err)
	}
	return sheet
}

const extractionJSON = `{
	"units": [{
		"name": "grey hunters",
		"tier": "A",
		"tierReasoning": "Cheap objective holders with real melee threat.",
		"bestTargets": ["light infantry"],
		"counters": ["Aggressors"],
		"synergies": [{"unit": "Ragnar Blackmane", "why": "fight-first bubble"}],
		"playstyle": "midboard brawler",
		"deployment": "forward objectives",
		"confidence": 0.8
	}]
}`

func TestProcessRunsFullLifecycle(t *testing.T) {
	store := newStore(t)
	seedCatalog(t, store)
	ctx := context.Background()

	fetcher := &fakeFetcher{content: "long article about space wolves units"}
	pipeline := NewPipeline(store, fetcher, NewExtractor(&fakeCompleter{response: provider.Response{Text: extractionJSON}}))

	source, err := pipeline.AddSource(ctx, "https://example.com/meta", catalog.SourceArticle, "SW meta review", "fac-sw")
	if err != nil {
		t.Fatalf("add source: %v", err)
	}
	if source.Status != catalog.SourcePending {
		t.Fatalf("new source must be pending, got %s", source.Status)
	}

	if err := pipeline.Process(ctx, source); err != nil {
		t.Fatalf("process: %v", err)
	}

	stored, err := store.GetSource(ctx, source.ID)
	if err != nil {
		t.Fatalf("get source: %v", err)
	}
	if stored.Status != catalog.SourceAggregated {
		t.Fatalf("expected aggregated status, got %s", stored.Status)
	}
	if stored.Content == "" {
		t.Fatalf("fetched content must be stored")
	}

	extractions, err := store.ListExtractionsByDatasheet(ctx, "ds-gh")
	if err != nil {
		t.Fatalf("list extractions: %v", err)
	}
	if len(extractions) != 1 || extractions[0].Tier != "A" || !extractions[0].Found {
		t.Fatalf("unexpected extractions: %+v", extractions)
	}

	context, err := store.GetContext(ctx, "ds-gh", "fac-sw", "")
	if err != nil {
		t.Fatalf("get context: %v", err)
	}
	if context.Tier != "A" || context.SourceCount != 1 {
		t.Fatalf("unexpected context: %+v", context)
	}
	if len(context.Synergies) != 1 || context.Synergies[0].Unit != "Ragnar Blackmane" {
		t.Fatalf("synergies not carried through: %+v", context.Synergies)
	}
	if len(context.Conflicts) != 0 {
		t.Fatalf("single source must not conflict: %+v", context.Conflicts)
	}
}

func TestProcessFetchFailureParksSource(t *testing.T) {
	store := newStore(t)
	seedCatalog(t, store)
	ctx := context.Background()

	fetcher := &fakeFetcher{err: stderrors.New("connection refused")}
	pipeline := NewPipeline(store, fetcher, NewExtractor(&fakeCompleter{}))

	source, err := pipeline.AddSource(ctx, "https://example.com/dead", catalog.SourceArticle, "", "fac-sw")
	if err != nil {
		t.Fatalf("add source: %v", err)
	}
	if err := pipeline.Process(ctx, source); err == nil {
		t.Fatalf("expected fetch failure")
	}

	stored, err := store.GetSource(ctx, source.ID)
	if err != nil {
		t.Fatalf("get source: %v", err)
	}
	if stored.Status != catalog.SourceFailed {
		t.Fatalf("expected failed status, got %s", stored.Status)
	}
	if !strings.Contains(stored.Error, "connection refused") {
		t.Fatalf("failure reason must be recorded, got %q", stored.Error)
	}
}

func TestProcessRejectedExtractionParksSource(t *testing.T) {
	store := newStore(t)
	seedCatalog(t, store)
	ctx := context.Background()

	pipeline := NewPipeline(store,
		&fakeFetcher{content: "article text"},
		NewExtractor(&fakeCompleter{response: provider.Response{Text: `{"wrong": "shape"}`}}))

	source, err := pipeline.AddSource(ctx, "https://example.com/bad", catalog.SourceReddit, "", "fac-sw")
	if err != nil {
		t.Fatalf("add source: %v", err)
	}
	err = pipeline.Process(ctx, source)
	if !errors.IsCode(err, errors.CodeAIOutputInvalid) {
		t.Fatalf("expected AI_OUTPUT_INVALID, got %v", err)
	}

	stored, _ := store.GetSource(ctx, source.ID)
	if stored.Status != catalog.SourceFailed {
		t.Fatalf("expected failed status, got %s", stored.Status)
	}
}

func TestProcessRejectsNonPendingSource(t *testing.T) {
	store := newStore(t)
	pipeline := NewPipeline(store, &fakeFetcher{}, NewExtractor(&fakeCompleter{}))
	err := pipeline.Process(context.Background(), catalog.CompetitiveSource{
		ID: "src-1", Status: catalog.SourceAggregated,
	})
	if !errors.IsCode(err, errors.CodeSourceInvalidState) {
		t.Fatalf("expected SOURCE_INVALID_STATE, got %v", err)
	}
}

func TestAddSourceValidation(t *testing.T) {
	store := newStore(t)
	pipeline := NewPipeline(store, &fakeFetcher{}, NewExtractor(&fakeCompleter{}))
	ctx := context.Background()

	if _, err := pipeline.AddSource(ctx, "not a url", catalog.SourceArticle, "", ""); !errors.IsCode(err, errors.CodeSourceInvalidURL) {
		t.Fatalf("expected SOURCE_INVALID_URL, got %v", err)
	}
	if _, err := pipeline.AddSource(ctx, "ftp://example.com/x", catalog.SourceArticle, "", ""); !errors.IsCode(err, errors.CodeSourceInvalidURL) {
		t.Fatalf("expected SOURCE_INVALID_URL for ftp, got %v", err)
	}
	if _, err := pipeline.AddSource(ctx, "https://example.com/x", "tiktok", "", ""); !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for kind, got %v", err)
	}
}

func TestAggregateDatasheetRecordsConflicts(t *testing.T) {
	store := newStore(t)
	seedCatalog(t, store)
	ctx := context.Background()

	seedExtraction := func(sourceID, tier string, confidence float64) {
		if err := store.PutSource(ctx, catalog.CompetitiveSource{
			ID: sourceID, URL: "https://example.com/" + sourceID,
			Kind: catalog.SourceArticle, FactionID: "fac-sw",
		}); err != nil {
			t.Fatalf("seed source: %v", err)
		}
		if err := store.PutExtraction(ctx, catalog.UnitExtraction{
			ID: id.MustNewID(), SourceID: sourceID, DatasheetID: "ds-gh",
			Found: true, Tier: tier, TierReasoning: "reasoning from " + sourceID,
			Confidence: confidence,
		}); err != nil {
			t.Fatalf("seed extraction: %v", err)
		}
	}
	seedExtraction("src-1", "A", 0.6)
	seedExtraction("src-2", "A", 0.9)
	seedExtraction("src-3", "B", 0.7)

	pipeline := NewPipeline(store, &fakeFetcher{}, NewExtractor(&fakeCompleter{}))
	if err := pipeline.AggregateDatasheet(ctx, "ds-gh", "fac-sw", ""); err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	merged, err := store.GetContext(ctx, "ds-gh", "fac-sw", "")
	if err != nil {
		t.Fatalf("get context: %v", err)
	}
	if merged.Tier != "A" {
		t.Fatalf("majority tier must win, got %s", merged.Tier)
	}
	if merged.SourceCount != 3 {
		t.Fatalf("expected 3 sources, got %d", merged.SourceCount)
	}
	if len(merged.Conflicts) != 1 || !strings.Contains(merged.Conflicts[0], "2xA") {
		t.Fatalf("tier split must be recorded, got %+v", merged.Conflicts)
	}
	if merged.Summary != "reasoning from src-2" {
		t.Fatalf("most confident extraction must supply the summary, got %q", merged.Summary)
	}

	// Re-aggregating keeps the context id stable.
	if err := pipeline.AggregateDatasheet(ctx, "ds-gh", "fac-sw", ""); err != nil {
		t.Fatalf("re-aggregate: %v", err)
	}
	again, _ := store.GetContext(ctx, "ds-gh", "fac-sw", "")
	if again.ID != merged.ID {
		t.Fatalf("context id must survive re-aggregation: %s vs %s", again.ID, merged.ID)
	}
}

func TestWorkerDrainsPendingSources(t *testing.T) {
	store := newStore(t)
	seedCatalog(t, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline := NewPipeline(store,
		&fakeFetcher{content: "article text"},
		NewExtractor(&fakeCompleter{response: provider.Response{Text: extractionJSON}}))
	source, err := pipeline.AddSource(ctx, "https://example.com/meta", catalog.SourceArticle, "", "fac-sw")
	if err != nil {
		t.Fatalf("add source: %v", err)
	}

	worker := NewWorker(pipeline, store, 10*time.Millisecond, 5)
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for {
		stored, err := store.GetSource(context.Background(), source.ID)
		if err == nil && stored.Status == catalog.SourceAggregated {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("worker never processed the source, status %s", stored.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
