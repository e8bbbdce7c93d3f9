package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PgChunks executes the store's search_legal_chunks procedure. Ranking lives
// in the database; this side only shapes rows into Chunks.
type PgChunks struct {
	db *sql.DB
}

func NewPgChunks(db *sql.DB) *PgChunks {
	return &PgChunks{db: db}
}

// SearchChunks runs one full-text query. metadataFilter narrows matches by
// JSON containment (e.g. {"jenis_peraturan":"uu"}); nil means no filter.
func (p *PgChunks) SearchChunks(ctx context.Context, queryText string, matchCount int, metadataFilter map[string]string) ([]Chunk, error) {
	if matchCount <= 0 {
		matchCount = 20
	}
	filter := map[string]string{}
	if metadataFilter != nil {
		filter = metadataFilter
	}
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata filter: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, work_id, content, metadata, score, snippet
		FROM search_legal_chunks($1, $2, $3::jsonb)
	`, queryText, matchCount, string(filterJSON))
	if err != nil {
		return nil, fmt.Errorf("search_legal_chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]Chunk, 0)
	for rows.Next() {
		var chunk Chunk
		var metadata []byte
		var snippet sql.NullString
		if err := rows.Scan(&chunk.ID, &chunk.WorkID, &chunk.Content, &metadata, &chunk.Score, &snippet); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunk.Metadata = decodeMetadata(metadata)
		chunk.Snippet = snippet.String
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, nil
}

// decodeMetadata flattens a JSON object into a string map, skipping
// non-string values. Chunk metadata is written by the ingestion pipeline and
// not trusted to be uniform.
func decodeMetadata(raw []byte) map[string]string {
	metadata := make(map[string]string)
	if len(raw) == 0 {
		return metadata
	}
	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return metadata
	}
	for key, value := range parsed {
		if s, ok := value.(string); ok {
			metadata[key] = s
		}
	}
	return metadata
}
