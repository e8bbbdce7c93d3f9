package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxWorks = "peraturan_works"

// Meili implements WorkSearcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the works index.
// The initial connection failing is tolerated; a background loop keeps
// probing and reconfigures the index once the server comes back.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxWorks,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxWorks, err)
	}

	index := m.client.Index(idxWorks)
	filterable := []interface{}{"type", "year", "status"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs for %s: %v", idxWorks, err)
	}
	searchable := []string{"title", "number", "citation"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxWorks, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// SearchWorks queries the works index.
func (m *Meili) SearchWorks(q WorkQuery) ([]WorkHit, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	request := &meili.SearchRequest{
		Limit:                 limit,
		Offset:                int64(q.Offset),
		AttributesToHighlight: []string{"title"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	}
	if q.FilterType != "" {
		request.Filter = fmt.Sprintf("type = %q", q.FilterType)
	}

	resp, err := m.client.Index(idxWorks).Search(q.Text, request)
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch works search: %w", err)
	}

	hits := make([]WorkHit, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		hits = append(hits, hitToWorkHit(hit))
	}
	return hits, int(resp.EstimatedTotalHits), nil
}

func hitToWorkHit(hit meili.Hit) WorkHit {
	return WorkHit{
		ID:       decodeInt64(hit, "id"),
		WorkType: decodeString(hit, "type"),
		Number:   decodeString(hit, "number"),
		Year:     int(decodeInt64(hit, "year")),
		Title:    decodeString(hit, "title"),
		Status:   decodeString(hit, "status"),
		Snippet:  decodeFormattedString(hit, "title"),
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeInt64(hit meili.Hit, key string) int64 {
	raw, ok := hit[key]
	if !ok {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		parsed, _ := strconv.ParseInt(s, 10, 64)
		return parsed
	}
	return 0
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

// IndexWork adds or updates one work in the search index.
func (m *Meili) IndexWork(record WorkRecord) error {
	_, err := m.client.Index(idxWorks).AddDocuments([]WorkRecord{record}, nil)
	return err
}

// IndexWorks bulk-indexes works.
func (m *Meili) IndexWorks(records []WorkRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxWorks).AddDocuments(records, nil)
	return err
}
