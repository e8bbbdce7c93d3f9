package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch for work lookups and falls
// back to Postgres, and runs chunk queries against the store procedure.
type Service struct {
	meili   *Meili
	pgworks *PgWorks
	chunks  *PgChunks
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, pgworks *PgWorks, chunks *PgChunks) *Service {
	return &Service{meili: meili, pgworks: pgworks, chunks: chunks}
}

// SearchWorks tries Meilisearch if healthy, otherwise falls back to Postgres.
func (s *Service) SearchWorks(q WorkQuery) WorkResponse {
	if s.meili != nil && s.meili.Healthy() {
		hits, total, err := s.meili.SearchWorks(q)
		if err == nil {
			return WorkResponse{Results: nonNil(hits), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	hits, total, err := s.pgworks.SearchWorks(q)
	if err != nil {
		log.Printf("search: pg works error: %v", err)
		return WorkResponse{Results: []WorkHit{}, Total: 0, Query: q.Text}
	}
	return WorkResponse{Results: nonNil(hits), Total: total, Query: q.Text}
}

// SearchChunks queries the store's full-text procedure. No fallback: chunk
// search lives in Postgres only.
func (s *Service) SearchChunks(ctx context.Context, queryText string, matchCount int, metadataFilter map[string]string) ([]Chunk, error) {
	return s.chunks.SearchChunks(ctx, queryText, matchCount, metadataFilter)
}

// IndexWork indexes one work (fire-and-forget to Meilisearch).
func (s *Service) IndexWork(record WorkRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexWork(record); err != nil {
			log.Printf("search: index work %d: %v", record.ID, err)
		}
	}()
}

// ReindexAllFromPG reads every work from Postgres and pushes the batch into
// Meilisearch. Called during bootstrap when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgworks == nil {
		return
	}
	records, err := s.pgworks.LoadAllWorkRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if err := s.meili.IndexWorks(records); err != nil {
		log.Printf("search: reindex works: %v", err)
	}
}

func nonNil(hits []WorkHit) []WorkHit {
	if hits == nil {
		return []WorkHit{}
	}
	return hits
}
