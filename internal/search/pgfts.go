package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search queries unified_meditations using plainto_tsquery and ts_rank, with
// ts_headline for snippets. Only public and church items are searchable.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM unified_meditations
		WHERE visibility IN ('public', 'church')
		  AND fts @@ plainto_tsquery('simple', $1)`,
		q.Text,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id,
			CASE WHEN is_anonymous THEN '익명' ELSE author_name END,
			content_type, visibility, coalesce(bible_range, ''), day_number, created_at,
			ts_headline('simple',
				coalesce(content, '') || ' ' ||
				coalesce(my_sentence, '') || ' ' ||
				coalesce(meditation_answer, '') || ' ' ||
				coalesce(gratitude, '') || ' ' ||
				coalesce(my_prayer, '') || ' ' ||
				coalesce(day_review, ''),
				plainto_tsquery('simple', $1),
				'MaxFragments=1,MaxWords=30,StartSel=<mark>,StopSel=</mark>') AS snippet
		FROM unified_meditations
		WHERE visibility IN ('public', 'church')
		  AND fts @@ plainto_tsquery('simple', $1)
		ORDER BY ts_rank(fts, plainto_tsquery('simple', $1)) DESC, created_at DESC
		LIMIT $2`,
		q.Text, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var dayNumber sql.NullInt64
		var createdAt time.Time
		if err := rows.Scan(&r.ID, &r.AuthorName, &r.ContentType, &r.Visibility, &r.BibleRange, &dayNumber, &createdAt, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		if dayNumber.Valid {
			r.DayNumber = int(dayNumber.Int64)
		}
		r.CreatedAt = createdAt.Format(time.RFC3339)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every searchable meditation for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]MeditationRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id,
			CASE WHEN is_anonymous THEN '익명' ELSE author_name END,
			content_type, visibility, source_type,
			trim(
				coalesce(content, '') || ' ' ||
				coalesce(my_sentence, '') || ' ' ||
				coalesce(meditation_answer, '') || ' ' ||
				coalesce(gratitude, '') || ' ' ||
				coalesce(my_prayer, '') || ' ' ||
				coalesce(day_review, '')),
			coalesce(bible_range, ''), day_number, created_at
		FROM unified_meditations
		WHERE visibility IN ('public', 'church')
	`)
	if err != nil {
		return nil, fmt.Errorf("load meditations: %w", err)
	}
	defer rows.Close()

	records := make([]MeditationRecord, 0)
	for rows.Next() {
		var r MeditationRecord
		var dayNumber sql.NullInt64
		var createdAt time.Time
		if err := rows.Scan(&r.ID, &r.AuthorName, &r.ContentType, &r.Visibility, &r.SourceType, &r.Text, &r.BibleRange, &dayNumber, &createdAt); err != nil {
			return nil, fmt.Errorf("scan meditation: %w", err)
		}
		if dayNumber.Valid {
			r.DayNumber = int(dayNumber.Int64)
		}
		r.CreatedAt = createdAt.Format(time.RFC3339)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meditations: %w", err)
	}

	return records, nil
}
