package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/catalog"
	"github.com/AndrewDeWitt/grimlog/internal/catalog/storage"
)

// PutSource inserts or updates a competitive source.
func (s *Store) PutSource(ctx context.Context, source catalog.CompetitiveSource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(source.ID) == "" {
		return fmt.Errorf("source id is required")
	}
	if strings.TrimSpace(source.URL) == "" {
		return fmt.Errorf("source url is required")
	}
	if source.Kind == "" {
		return fmt.Errorf("source kind is required")
	}
	if source.Status == "" {
		source.Status = catalog.SourcePending
	}
	now := time.Now()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO competitive_sources (id, url, kind, title, faction_id, status, error, content, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	url = excluded.url,
	kind = excluded.kind,
	title = excluded.title,
	faction_id = excluded.faction_id,
	status = excluded.status,
	error = excluded.error,
	content = excluded.content,
	updated_at = excluded.updated_at
`,
		source.ID, source.URL, string(source.Kind), source.Title, source.FactionID,
		string(source.Status), source.Error, source.Content,
		toMillis(source.CreatedAt), toMillis(now),
	)
	if err != nil {
		return fmt.Errorf("put source: %w", err)
	}
	return nil
}

// GetSource loads one competitive source.
func (s *Store) GetSource(ctx context.Context, id string) (catalog.CompetitiveSource, error) {
	if err := ctx.Err(); err != nil {
		return catalog.CompetitiveSource{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, url, kind, title, faction_id, status, error, content, created_at, updated_at
FROM competitive_sources WHERE id = ?
`, id)
	return scanSource(row)
}

// ListSources returns sources oldest-first, optionally filtered by status.
// Oldest-first makes the worker drain pending sources in registration order.
func (s *Store) ListSources(ctx context.Context, status catalog.SourceStatus, limit int) ([]catalog.CompetitiveSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := "SELECT id, url, kind, title, faction_id, status, error, content, created_at, updated_at FROM competitive_sources\n"
	args := []any{}
	if status != "" {
		query += "WHERE status = ?\n"
		args = append(args, string(status))
	}
	query += "ORDER BY created_at ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []catalog.CompetitiveSource
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}

// SetSourceStatus advances a source through its lifecycle. failure is stored
// only when status is failed.
func (s *Store) SetSourceStatus(ctx context.Context, id string, status catalog.SourceStatus, failure string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if status != catalog.SourceFailed {
		failure = ""
	}
	result, err := s.sqlDB.ExecContext(ctx,
		"UPDATE competitive_sources SET status = ?, error = ?, updated_at = ? WHERE id = ?",
		string(status), failure, toMillis(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("set source status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set source status rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// PutExtraction stores one per-source unit extraction, replacing any earlier
// extraction for the same (source, datasheet) pair.
func (s *Store) PutExtraction(ctx context.Context, extraction catalog.UnitExtraction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(extraction.ID) == "" {
		return fmt.Errorf("extraction id is required")
	}
	if strings.TrimSpace(extraction.SourceID) == "" {
		return fmt.Errorf("extraction source id is required")
	}
	if strings.TrimSpace(extraction.DatasheetID) == "" {
		return fmt.Errorf("extraction datasheet id is required")
	}
	if extraction.Found && !catalog.ValidTier(extraction.Tier) {
		return fmt.Errorf("extraction tier %q is not valid", extraction.Tier)
	}
	bestTargets, err := encodeJSON(extraction.BestTargets)
	if err != nil {
		return err
	}
	counters, err := encodeJSON(extraction.Counters)
	if err != nil {
		return err
	}
	synergies, err := encodeJSON(extraction.Synergies)
	if err != nil {
		return err
	}
	if extraction.CreatedAt.IsZero() {
		extraction.CreatedAt = time.Now()
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO unit_extractions (id, source_id, datasheet_id, found, tier, tier_reasoning, best_targets, counters, synergies, playstyle, deployment, confidence, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(source_id, datasheet_id) DO UPDATE SET
	found = excluded.found,
	tier = excluded.tier,
	tier_reasoning = excluded.tier_reasoning,
	best_targets = excluded.best_targets,
	counters = excluded.counters,
	synergies = excluded.synergies,
	playstyle = excluded.playstyle,
	deployment = excluded.deployment,
	confidence = excluded.confidence
`,
		extraction.ID, extraction.SourceID, extraction.DatasheetID,
		boolToInt(extraction.Found), extraction.Tier, extraction.TierReasoning,
		bestTargets, counters, synergies,
		extraction.Playstyle, extraction.Deployment, extraction.Confidence,
		toMillis(extraction.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put extraction: %w", err)
	}
	return nil
}

// ListExtractionsByDatasheet returns all extractions for one datasheet.
func (s *Store) ListExtractionsByDatasheet(ctx context.Context, datasheetID string) ([]catalog.UnitExtraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, source_id, datasheet_id, found, tier, tier_reasoning, best_targets, counters, synergies, playstyle, deployment, confidence, created_at
FROM unit_extractions WHERE datasheet_id = ? ORDER BY created_at ASC
`, datasheetID)
	if err != nil {
		return nil, fmt.Errorf("list extractions: %w", err)
	}
	defer rows.Close()

	var out []catalog.UnitExtraction
	for rows.Next() {
		var extraction catalog.UnitExtraction
		var found int
		var bestTargets, counters, synergies string
		var createdAt int64
		err := rows.Scan(
			&extraction.ID, &extraction.SourceID, &extraction.DatasheetID,
			&found, &extraction.Tier, &extraction.TierReasoning,
			&bestTargets, &counters, &synergies,
			&extraction.Playstyle, &extraction.Deployment, &extraction.Confidence,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan extraction: %w", err)
		}
		extraction.Found = found != 0
		if err := decodeJSON(bestTargets, &extraction.BestTargets); err != nil {
			return nil, err
		}
		if err := decodeJSON(counters, &extraction.Counters); err != nil {
			return nil, err
		}
		if err := decodeJSON(synergies, &extraction.Synergies); err != nil {
			return nil, err
		}
		extraction.CreatedAt = fromMillis(createdAt)
		out = append(out, extraction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate extractions: %w", err)
	}
	return out, nil
}

// PutContext stores the aggregated competitive context for one datasheet key,
// replacing any earlier aggregation for the same key.
func (s *Store) PutContext(ctx context.Context, record catalog.CompetitiveContext) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("context id is required")
	}
	if strings.TrimSpace(record.DatasheetID) == "" {
		return fmt.Errorf("context datasheet id is required")
	}
	if strings.TrimSpace(record.FactionID) == "" {
		return fmt.Errorf("context faction id is required")
	}
	if !catalog.ValidTier(record.Tier) {
		return fmt.Errorf("context tier %q is not valid", record.Tier)
	}
	bestTargets, err := encodeJSON(record.BestTargets)
	if err != nil {
		return err
	}
	counters, err := encodeJSON(record.Counters)
	if err != nil {
		return err
	}
	synergies, err := encodeJSON(record.Synergies)
	if err != nil {
		return err
	}
	conflicts, err := encodeJSON(record.Conflicts)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO competitive_contexts (id, datasheet_id, faction_id, detachment_id, tier, summary, best_targets, counters, synergies, playstyle, deployment, source_count, conflicts, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(datasheet_id, faction_id, detachment_id) DO UPDATE SET
	tier = excluded.tier,
	summary = excluded.summary,
	best_targets = excluded.best_targets,
	counters = excluded.counters,
	synergies = excluded.synergies,
	playstyle = excluded.playstyle,
	deployment = excluded.deployment,
	source_count = excluded.source_count,
	conflicts = excluded.conflicts,
	updated_at = excluded.updated_at
`,
		record.ID, record.DatasheetID, record.FactionID, record.DetachmentID,
		record.Tier, record.Summary, bestTargets, counters, synergies,
		record.Playstyle, record.Deployment, record.SourceCount, conflicts,
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("put context: %w", err)
	}
	return nil
}

// GetContext loads the aggregated context for one datasheet key.
func (s *Store) GetContext(ctx context.Context, datasheetID, factionID, detachmentID string) (catalog.CompetitiveContext, error) {
	if err := ctx.Err(); err != nil {
		return catalog.CompetitiveContext{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, datasheet_id, faction_id, detachment_id, tier, summary, best_targets, counters, synergies, playstyle, deployment, source_count, conflicts, updated_at
FROM competitive_contexts WHERE datasheet_id = ? AND faction_id = ? AND detachment_id = ?
`, datasheetID, factionID, detachmentID)
	return scanContext(row)
}

// ListContextsByFaction returns all aggregated contexts for one faction.
func (s *Store) ListContextsByFaction(ctx context.Context, factionID string) ([]catalog.CompetitiveContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, datasheet_id, faction_id, detachment_id, tier, summary, best_targets, counters, synergies, playstyle, deployment, source_count, conflicts, updated_at
FROM competitive_contexts WHERE faction_id = ? ORDER BY datasheet_id ASC
`, factionID)
	if err != nil {
		return nil, fmt.Errorf("list contexts: %w", err)
	}
	defer rows.Close()

	var out []catalog.CompetitiveContext
	for rows.Next() {
		record, err := scanContext(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contexts: %w", err)
	}
	return out, nil
}

func scanSource(row rowScanner) (catalog.CompetitiveSource, error) {
	var source catalog.CompetitiveSource
	var kind, status string
	var createdAt, updatedAt int64
	err := row.Scan(
		&source.ID, &source.URL, &kind, &source.Title, &source.FactionID,
		&status, &source.Error, &source.Content, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.CompetitiveSource{}, storage.ErrNotFound
		}
		return catalog.CompetitiveSource{}, fmt.Errorf("scan source: %w", err)
	}
	source.Kind = catalog.SourceKind(kind)
	source.Status = catalog.SourceStatus(status)
	source.CreatedAt = fromMillis(createdAt)
	source.UpdatedAt = fromMillis(updatedAt)
	return source, nil
}

func scanContext(row rowScanner) (catalog.CompetitiveContext, error) {
	var record catalog.CompetitiveContext
	var bestTargets, counters, synergies, conflicts string
	var updatedAt int64
	err := row.Scan(
		&record.ID, &record.DatasheetID, &record.FactionID, &record.DetachmentID,
		&record.Tier, &record.Summary, &bestTargets, &counters, &synergies,
		&record.Playstyle, &record.Deployment, &record.SourceCount, &conflicts,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.CompetitiveContext{}, storage.ErrNotFound
		}
		return catalog.CompetitiveContext{}, fmt.Errorf("scan context: %w", err)
	}
	if err := decodeJSON(bestTargets, &record.BestTargets); err != nil {
		return catalog.CompetitiveContext{}, err
	}
	if err := decodeJSON(counters, &record.Counters); err != nil {
		return catalog.CompetitiveContext{}, err
	}
	if err := decodeJSON(synergies, &record.Synergies); err != nil {
		return catalog.CompetitiveContext{}, err
	}
	if err := decodeJSON(conflicts, &record.Conflicts); err != nil {
		return catalog.CompetitiveContext{}, err
	}
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
