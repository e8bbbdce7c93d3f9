package search

// Chunk is a scored text fragment returned by the store's full-text
// procedure. Chunks are per-query and never persisted by this tier.
type Chunk struct {
	ID       int64             `json:"id"`
	WorkID   int64             `json:"work_id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"score"`
	Snippet  string            `json:"snippet,omitempty"`
}

// GroupedResult collapses a chunk batch into one entry per work.
type GroupedResult struct {
	WorkID         int64    `json:"work_id"`
	BestChunk      Chunk    `json:"best_chunk"`
	BestScore      float64  `json:"best_score"`
	MatchingPasals []string `json:"matching_pasals"`
	TotalChunks    int      `json:"total_chunks"`
}

// WorkHit is a single hit from the works (title) search.
type WorkHit struct {
	ID       int64  `json:"id"`
	WorkType string `json:"type"`
	Number   string `json:"number"`
	Year     int    `json:"year"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Snippet  string `json:"snippet,omitempty"`
}

// WorkQuery describes a works search request.
type WorkQuery struct {
	Text       string
	FilterType string // work type (uu, pp, perpres...); empty = all
	Limit      int
	Offset     int
}

// WorkResponse is the envelope returned by the works search endpoint.
type WorkResponse struct {
	Results []WorkHit `json:"results"`
	Total   int       `json:"total"`
	Query   string    `json:"query"`
}

// WorkSearcher can execute a full-text works search.
type WorkSearcher interface {
	SearchWorks(q WorkQuery) ([]WorkHit, int, error)
	Healthy() bool
}

// WorkRecord is the data indexed per work.
type WorkRecord struct {
	ID       int64  `json:"id"`
	WorkType string `json:"type"`
	Number   string `json:"number"`
	Year     int    `json:"year"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Citation string `json:"citation"`
}
