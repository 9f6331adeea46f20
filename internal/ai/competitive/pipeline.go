// Package competitive turns community content into per-unit competitive
// context. Sources move through a pending, fetched, extracted, aggregated
// lifecycle; a failure at any step parks the source as failed with the
// reason recorded.
package competitive

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/AndrewDeWitt/grimlog/internal/catalog"
	"github.com/AndrewDeWitt/grimlog/internal/catalog/storage"
	"github.com/AndrewDeWitt/grimlog/internal/errors"
	"github.com/AndrewDeWitt/grimlog/internal/platform/id"
)

// Store is the catalog surface the pipeline reads and writes.
type Store interface {
	storage.CompetitiveStore
	ListDatasheets(ctx context.Context, filter storage.ListFilter) ([]catalog.Datasheet, error)
}

// Pipeline runs sources through fetch, extract, and aggregate.
type Pipeline struct {
	store     Store
	fetcher   Fetcher
	extractor *Extractor
	newID     func() string
}

// NewPipeline wires the pipeline over its store, fetcher, and extractor.
func NewPipeline(store Store, fetcher Fetcher, extractor *Extractor) *Pipeline {
	return &Pipeline{
		store:     store,
		fetcher:   fetcher,
		extractor: extractor,
		newID:     id.MustNewID,
	}
}

var validKinds = map[catalog.SourceKind]bool{
	catalog.SourceYoutube: true,
	catalog.SourceReddit:  true,
	catalog.SourceArticle: true,
	catalog.SourceForum:   true,
}

// AddSource registers a new pending source.
func (p *Pipeline) AddSource(ctx context.Context, sourceURL string, kind catalog.SourceKind, title, factionID string) (catalog.CompetitiveSource, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	parsed, err := url.Parse(sourceURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return catalog.CompetitiveSource{}, errors.New(errors.CodeSourceInvalidURL, "source url must be a valid http url")
	}
	if !validKinds[kind] {
		return catalog.CompetitiveSource{}, errors.New(errors.CodeInvalidInput, "source kind must be youtube, reddit, article or forum")
	}

	source := catalog.CompetitiveSource{
		ID:        p.newID(),
		URL:       sourceURL,
		Kind:      kind,
		Title:     strings.TrimSpace(title),
		FactionID: factionID,
		Status:    catalog.SourcePending,
	}
	if err := p.store.PutSource(ctx, source); err != nil {
		return catalog.CompetitiveSource{}, fmt.Errorf("register source: %w", err)
	}
	return source, nil
}

// Process runs one source through the full lifecycle. The returned error is
// also recorded on the source as a failed status, so callers only need it
// for logging.
func (p *Pipeline) Process(ctx context.Context, source catalog.CompetitiveSource) error {
	if source.Status != catalog.SourcePending && source.Status != catalog.SourceFailed {
		return errors.New(errors.CodeSourceInvalidState,
			fmt.Sprintf("source %s is %s, not pending", source.ID, source.Status))
	}

	content, err := p.fetcher.Fetch(ctx, source.URL)
	if err != nil {
		return p.fail(ctx, source.ID, fmt.Errorf("fetch: %w", err))
	}
	source.Content = content
	source.Status = catalog.SourceFetched
	if err := p.store.PutSource(ctx, source); err != nil {
		return fmt.Errorf("store fetched source: %w", err)
	}

	sheets, err := p.factionDatasheets(ctx, source.FactionID)
	if err != nil {
		return p.fail(ctx, source.ID, fmt.Errorf("load datasheets: %w", err))
	}

	extractions, err := p.extractor.Extract(ctx, source, sheets)
	if err != nil {
		return p.fail(ctx, source.ID, fmt.Errorf("extract: %w", err))
	}
	for _, extraction := range extractions {
		if err := p.store.PutExtraction(ctx, extraction); err != nil {
			return p.fail(ctx, source.ID, fmt.Errorf("store extraction: %w", err))
		}
	}
	if err := p.store.SetSourceStatus(ctx, source.ID, catalog.SourceExtracted, ""); err != nil {
		return fmt.Errorf("mark source extracted: %w", err)
	}

	for _, extraction := range extractions {
		if err := p.AggregateDatasheet(ctx, extraction.DatasheetID, source.FactionID, ""); err != nil {
			return p.fail(ctx, source.ID, fmt.Errorf("aggregate %s: %w", extraction.DatasheetID, err))
		}
	}
	if err := p.store.SetSourceStatus(ctx, source.ID, catalog.SourceAggregated, ""); err != nil {
		return fmt.Errorf("mark source aggregated: %w", err)
	}
	return nil
}

// AggregateDatasheet rebuilds the competitive context for one datasheet from
// every stored extraction.
func (p *Pipeline) AggregateDatasheet(ctx context.Context, datasheetID, factionID, detachmentID string) error {
	extractions, err := p.store.ListExtractionsByDatasheet(ctx, datasheetID)
	if err != nil {
		return fmt.Errorf("list extractions: %w", err)
	}
	merged, ok := aggregate(datasheetID, factionID, detachmentID, extractions)
	if !ok {
		return nil
	}

	// Keep the existing context id stable across re-aggregations.
	existing, err := p.store.GetContext(ctx, datasheetID, factionID, detachmentID)
	switch {
	case err == nil:
		merged.ID = existing.ID
	case stderrors.Is(err, storage.ErrNotFound) || errors.IsCode(err, errors.CodeNotFound):
		merged.ID = p.newID()
	default:
		return fmt.Errorf("load context: %w", err)
	}

	if err := p.store.PutContext(ctx, merged); err != nil {
		return fmt.Errorf("store context: %w", err)
	}
	return nil
}

func (p *Pipeline) fail(ctx context.Context, sourceID string, cause error) error {
	if err := p.store.SetSourceStatus(ctx, sourceID, catalog.SourceFailed, cause.Error()); err != nil {
		return fmt.Errorf("mark source failed after %v: %w", cause, err)
	}
	return cause
}

func (p *Pipeline) factionDatasheets(ctx context.Context, factionID string) ([]catalog.Datasheet, error) {
	var out []catalog.Datasheet
	filter := storage.ListFilter{FactionID: factionID, Limit: 500}
	for {
		sheets, err := p.store.ListDatasheets(ctx, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, sheets...)
		if len(sheets) < filter.Limit {
			return out, nil
		}
		filter.Offset += len(sheets)
	}
}
