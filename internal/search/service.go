package search

import (
	"context"
	"log"

	"dailybread/api/internal/store"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, text string, limit int) (Results, error) {
	q := Query{Text: text, Limit: limit}

	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Results{Results: nonNil(results), Total: total, Query: text}, nil
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Results{Results: []Result{}, Query: text}, nil
	}
	return Results{Results: nonNil(results), Total: total, Query: text}, nil
}

// IndexMeditation indexes a meditation (fire-and-forget to Meilisearch).
// Private and group items never enter the index.
func (s *Service) IndexMeditation(m store.UnifiedMeditation) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	if !indexable(m) {
		// A visibility change may pull an item out of the shared index.
		s.DeleteMeditation(m.ID)
		return
	}
	record := recordFromMeditation(m)
	go func() {
		if err := s.meili.IndexMeditation(record); err != nil {
			log.Printf("search: index meditation %s: %v", record.ID, err)
		}
	}()
}

// DeleteMeditation removes a meditation from the search index (fire-and-forget).
func (s *Service) DeleteMeditation(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteMeditation(id); err != nil {
			log.Printf("search: delete meditation %s: %v", id, err)
		}
	}()
}

// ReindexAllFromPG reindexes every searchable meditation from PostgreSQL into
// Meilisearch. Called at startup when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	records, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if err := s.meili.IndexMeditations(records); err != nil {
		log.Printf("search: reindex meditations: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
