package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgWorks implements WorkSearcher using PostgreSQL full-text search as the
// fallback when Meilisearch is unavailable.
type PgWorks struct {
	db *sql.DB
}

func NewPgWorks(db *sql.DB) *PgWorks {
	return &PgWorks{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgWorks) Healthy() bool {
	return true
}

func (p *PgWorks) SearchWorks(q WorkQuery) ([]WorkHit, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := `to_tsvector('indonesian', title) @@ plainto_tsquery('indonesian', $1)`
	args := []any{q.Text}
	if q.FilterType != "" {
		where += " AND work_type = $2"
		args = append(args, q.FilterType)
	}

	countSQL := `SELECT count(*) FROM works WHERE ` + where
	dataSQL := fmt.Sprintf(`
		SELECT id, work_type, number, year, title, status,
			ts_headline('indonesian', title, plainto_tsquery('indonesian', $1),
				'MaxFragments=1,MaxWords=30') AS snippet
		FROM works
		WHERE %s
		ORDER BY ts_rank(to_tsvector('indonesian', title), plainto_tsquery('indonesian', $1)) DESC
		LIMIT %d OFFSET %d
	`, where, limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pg works count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pg works query: %w", err)
	}
	defer rows.Close()

	var hits []WorkHit
	for rows.Next() {
		var hit WorkHit
		if err := rows.Scan(&hit.ID, &hit.WorkType, &hit.Number, &hit.Year, &hit.Title, &hit.Status, &hit.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pg works scan: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, total, rows.Err()
}

// LoadAllWorkRecords returns every work for full reindexing into Meilisearch.
func (p *PgWorks) LoadAllWorkRecords(ctx context.Context) ([]WorkRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, work_type, number, year, title, status, citation_uri
		FROM works
	`)
	if err != nil {
		return nil, fmt.Errorf("load works: %w", err)
	}
	defer rows.Close()

	records := make([]WorkRecord, 0)
	for rows.Next() {
		var record WorkRecord
		if err := rows.Scan(&record.ID, &record.WorkType, &record.Number, &record.Year,
			&record.Title, &record.Status, &record.Citation); err != nil {
			return nil, fmt.Errorf("scan work record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
