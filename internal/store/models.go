package store

import (
	"encoding/json"
	"time"
)

// Work is one regulation or statute, identified by type, number, and year.
type Work struct {
	ID          int64     `json:"id"`
	WorkType    string    `json:"type"`
	Number      string    `json:"number"`
	Year        int       `json:"year"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	CitationURI string    `json:"citation_uri"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DocumentNode is one structural unit of a work's text (bab, pasal, ayat...).
// Nodes form a tree ordered by SortOrder.
type DocumentNode struct {
	ID          int64  `json:"id"`
	WorkID      int64  `json:"work_id"`
	NodeType    string `json:"node_type"`
	Number      string `json:"number"`
	Heading     string `json:"heading"`
	ContentText string `json:"content_text"`
	ParentID    *int64 `json:"parent_id"`
	SortOrder   int    `json:"sort_order"`
}

// Suggestion statuses.
const (
	SuggestionPending  = "pending"
	SuggestionApproved = "approved"
	SuggestionRejected = "rejected"
)

// Suggestion is a user-submitted correction proposal against a document node.
// The agent_* columns are written only by the verification orchestrator.
type Suggestion struct {
	ID               int64           `json:"id"`
	WorkID           int64           `json:"work_id"`
	NodeID           int64           `json:"node_id"`
	NodeType         string          `json:"node_type"`
	NodeNumber       string          `json:"node_number,omitempty"`
	CurrentContent   string          `json:"current_content"`
	SuggestedContent string          `json:"suggested_content"`
	UserReason       string          `json:"user_reason,omitempty"`
	SubmitterEmail   string          `json:"submitter_email,omitempty"`
	SubmitterIP      string          `json:"-"`
	Status           string          `json:"status"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`

	AgentTriggeredAt      *time.Time `json:"agent_triggered_at,omitempty"`
	AgentModel            string     `json:"agent_model,omitempty"`
	AgentResponse         string     `json:"agent_response,omitempty"`
	AgentDecision         string     `json:"agent_decision,omitempty"`
	AgentConfidence       *float64   `json:"agent_confidence,omitempty"`
	AgentModifiedContent  string     `json:"agent_modified_content,omitempty"`
	AgentCompletedAt      *time.Time `json:"agent_completed_at,omitempty"`
}

// AgentResult carries one verification run's outcome onto a suggestion row.
type AgentResult struct {
	Model           string
	RawResponse     string
	Decision        string
	Confidence      float64
	ModifiedContent string
}

// CrawlJob tracks one ingestion attempt by the external scraper. This tier
// only reads and resets jobs; the scraper itself runs elsewhere.
type CrawlJob struct {
	ID          int64      `json:"id"`
	WorkID      *int64     `json:"work_id,omitempty"`
	SourceURL   string     `json:"source_url"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CrawlSummary is the scraper dashboard roll-up.
type CrawlSummary struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Admin is a back-office account. Accounts are provisioned by operators;
// there is no self-service signup.
type Admin struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

// CommitInfo describes one entry in a work's revision history.
type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// WorkFilter narrows the paginated works listing.
type WorkFilter struct {
	WorkType string
	Year     int
	Status   string
	Limit    int
	Offset   int
}
