package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"peraturan/api/internal/adminauth"
	"peraturan/api/internal/export"
	"peraturan/api/internal/gate"
	"peraturan/api/internal/gitrepo"
	"peraturan/api/internal/search"
	"peraturan/api/internal/store"
	"peraturan/api/internal/suggest"
	"peraturan/api/internal/verify"
)

// Chunk search over-fetches so grouping by work still fills a page, with a
// hard cap on what is pulled from the store per request.
const (
	chunkOverFetch  = 3
	chunkFetchCap   = 60
	defaultPageSize = 20
	maxPageSize     = 100
	historyPageSize = 50
)

// dataStore is the document store surface the service uses.
type dataStore interface {
	Ping(ctx context.Context) error

	ListWorks(ctx context.Context, filter store.WorkFilter) ([]store.Work, int, error)
	GetWork(ctx context.Context, workID int64) (store.Work, error)
	GetNode(ctx context.Context, nodeID int64) (store.DocumentNode, error)
	ListNodesByWork(ctx context.Context, workID int64) ([]store.DocumentNode, error)
	UpdateNodeContent(ctx context.Context, nodeID int64, content string) error

	InsertSuggestion(ctx context.Context, sg store.Suggestion) (int64, error)
	GetSuggestion(ctx context.Context, id int64) (store.Suggestion, error)
	ListSuggestions(ctx context.Context, status string, limit, offset int) ([]store.Suggestion, error)
	UpdateSuggestionStatus(ctx context.Context, id int64, status string) error

	CrawlSummary(ctx context.Context) (store.CrawlSummary, error)
	ListRecentCrawlFailures(ctx context.Context, limit int) ([]store.CrawlJob, error)
	CountPendingCrawlJobs(ctx context.Context) (int, error)
	ResetFailedCrawlJobs(ctx context.Context) (int, error)
}

// Searcher is the search facade surface the service uses.
type Searcher interface {
	SearchWorks(q search.WorkQuery) search.WorkResponse
	SearchChunks(ctx context.Context, queryText string, matchCount int, metadataFilter map[string]string) ([]search.Chunk, error)
	ReindexAllFromPG(ctx context.Context)
}

// Verifier runs one verification pass over a suggestion.
type Verifier interface {
	Verify(ctx context.Context, suggestionID int64) (verify.Verdict, error)
}

// Exporter renders a work as a downloadable file.
type Exporter interface {
	ExportWork(ctx context.Context, workID int64) (*export.Result, error)
}

// SourceArchive stores and serves the raw scraped source documents.
type SourceArchive interface {
	PutSource(ctx context.Context, workID int64, contentType string, data []byte) error
	GetSource(ctx context.Context, workID int64) ([]byte, string, error)
}

// SessionPinger reports connectivity of the admin session store.
type SessionPinger interface {
	Ping(ctx context.Context) error
}

// AdminAuthenticator signs admins in and out.
type AdminAuthenticator interface {
	SignIn(ctx context.Context, email, password string) (store.Admin, string, error)
	SignOut(ctx context.Context, token string) error
	AdminFromToken(ctx context.Context, token string) (store.Admin, error)
}

// Deps bundles the service's collaborators. Search, Repos, Verifier,
// Exporter, and Archive may be nil when their backing system is not
// configured; the corresponding endpoints then report unavailability.
type Deps struct {
	Search    Searcher
	Validator *suggest.Validator
	Verifier  Verifier
	Gate      *gate.Gate
	Auth      AdminAuthenticator
	Sessions  SessionPinger
	Repos     *gitrepo.Service
	Exporter  Exporter
	Archive   SourceArchive
}

type Service struct {
	db        dataStore
	search    Searcher
	validator *suggest.Validator
	verifier  Verifier
	gate      *gate.Gate
	auth      AdminAuthenticator
	sessions  SessionPinger
	repos     *gitrepo.Service
	exporter  Exporter
	archive   SourceArchive
}

func NewService(db dataStore, deps Deps) *Service {
	return &Service{
		db:        db,
		search:    deps.Search,
		validator: deps.Validator,
		verifier:  deps.Verifier,
		gate:      deps.Gate,
		auth:      deps.Auth,
		sessions:  deps.Sessions,
		repos:     deps.Repos,
		exporter:  deps.Exporter,
		archive:   deps.Archive,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// PingSessions reports session store health. The first return is false when
// no session store is configured and the check does not apply.
func (s *Service) PingSessions(ctx context.Context) (bool, error) {
	if s.sessions == nil {
		return false, nil
	}
	return true, s.sessions.Ping(ctx)
}

// Bootstrap runs startup work that must not block serving: the search
// reindex races the Meilisearch health probe, so it is retried once shortly
// after boot.
func (s *Service) Bootstrap(ctx context.Context) {
	if s.search == nil {
		return
	}
	s.search.ReindexAllFromPG(ctx)
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(15 * time.Second):
			s.search.ReindexAllFromPG(ctx)
		}
	}()
}

// --- Public reading ---

func (s *Service) ListWorks(ctx context.Context, filter store.WorkFilter) ([]store.Work, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.db.ListWorks(ctx, filter)
}

// GetWorkWithNodes loads a work and its full node tree for the reader page.
func (s *Service) GetWorkWithNodes(ctx context.Context, workID int64) (store.Work, []store.DocumentNode, error) {
	work, err := s.db.GetWork(ctx, workID)
	if err != nil {
		return store.Work{}, nil, err
	}
	nodes, err := s.db.ListNodesByWork(ctx, workID)
	if err != nil {
		return store.Work{}, nil, err
	}
	return work, nodes, nil
}

// --- Search ---

func (s *Service) SearchWorks(q search.WorkQuery) search.WorkResponse {
	if q.Limit <= 0 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	if s.search == nil {
		return search.WorkResponse{Results: []search.WorkHit{}, Query: q.Text}
	}
	return s.search.SearchWorks(q)
}

// SearchChunks runs the full-text chunk query and collapses the batch to one
// entry per work. More chunks than requested groups are fetched so that works
// matching on many sections do not starve the page.
func (s *Service) SearchChunks(ctx context.Context, queryText string, limit int, metadataFilter map[string]string) ([]search.GroupedResult, error) {
	if s.search == nil {
		return []search.GroupedResult{}, nil
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	fetch := limit * chunkOverFetch
	if fetch > chunkFetchCap {
		fetch = chunkFetchCap
	}

	chunks, err := s.search.SearchChunks(ctx, queryText, fetch, metadataFilter)
	if err != nil {
		return nil, fmt.Errorf("chunk search: %w", err)
	}

	groups := search.Group(chunks)
	if len(groups) > limit {
		groups = groups[:limit]
	}
	return groups, nil
}

// --- Suggestions ---

// SubmitSuggestion validates and persists one correction proposal.
// submitterIP is resolved by the HTTP layer according to proxy trust.
func (s *Service) SubmitSuggestion(ctx context.Context, input suggest.Input, submitterIP string) (int64, error) {
	sg, err := s.validator.Validate(ctx, input, submitterIP)
	if err != nil {
		return 0, err
	}
	id, err := s.db.InsertSuggestion(ctx, sg)
	if err != nil {
		return 0, fmt.Errorf("insert suggestion: %w", err)
	}
	return id, nil
}

func (s *Service) GetSuggestion(ctx context.Context, id int64) (store.Suggestion, error) {
	return s.db.GetSuggestion(ctx, id)
}

func (s *Service) ListSuggestions(ctx context.Context, status string, limit, offset int) ([]store.Suggestion, error) {
	switch status {
	case "", store.SuggestionPending, store.SuggestionApproved, store.SuggestionRejected:
	default:
		return nil, domainError(400, "INVALID_STATUS", "Status filter tidak dikenal.", nil)
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.db.ListSuggestions(ctx, status, limit, offset)
}

// VerifySuggestion triggers one generative review run. Concurrent triggers
// for the same suggestion are allowed; the last completed run wins.
func (s *Service) VerifySuggestion(ctx context.Context, id int64) (verify.Verdict, error) {
	if s.verifier == nil {
		return verify.Verdict{}, domainError(503, "VERIFIER_UNAVAILABLE", "Layanan verifikasi tidak tersedia.", nil)
	}
	return s.verifier.Verify(ctx, id)
}

// ReviewSuggestion approves or rejects a pending suggestion. Approval applies
// the corrected text to the node and records a revision commit; the review
// still succeeds if the commit fails, since the store is authoritative.
func (s *Service) ReviewSuggestion(ctx context.Context, id int64, approve bool, reviewer string) (store.Suggestion, error) {
	sg, err := s.db.GetSuggestion(ctx, id)
	if err != nil {
		return store.Suggestion{}, err
	}
	if sg.Status != store.SuggestionPending {
		return store.Suggestion{}, domainError(409, "ALREADY_REVIEWED", "Usulan sudah ditinjau.", nil)
	}

	status := store.SuggestionRejected
	if approve {
		status = store.SuggestionApproved

		content := sg.SuggestedContent
		if sg.AgentDecision == verify.DecisionAcceptCorrections && sg.AgentModifiedContent != "" {
			content = sg.AgentModifiedContent
		}
		if err := s.db.UpdateNodeContent(ctx, sg.NodeID, content); err != nil {
			return store.Suggestion{}, fmt.Errorf("apply suggestion %d: %w", id, err)
		}
		s.recordRevision(ctx, sg, reviewer)
	}

	if err := s.db.UpdateSuggestionStatus(ctx, id, status); err != nil {
		return store.Suggestion{}, fmt.Errorf("update suggestion status: %w", err)
	}

	sg.Status = status
	return sg, nil
}

// recordRevision snapshots the work's text into its git repository.
func (s *Service) recordRevision(ctx context.Context, sg store.Suggestion, reviewer string) {
	if s.repos == nil {
		return
	}
	work, err := s.db.GetWork(ctx, sg.WorkID)
	if err != nil {
		log.Printf("revision: load work %d: %v", sg.WorkID, err)
		return
	}
	nodes, err := s.db.ListNodesByWork(ctx, sg.WorkID)
	if err != nil {
		log.Printf("revision: load nodes for work %d: %v", sg.WorkID, err)
		return
	}

	content := gitrepo.WorkContent{WorkID: work.ID, Title: work.Title}
	for _, node := range nodes {
		content.Nodes = append(content.Nodes, gitrepo.NodeContent{
			NodeID:      node.ID,
			NodeType:    node.NodeType,
			Number:      node.Number,
			Heading:     node.Heading,
			ContentText: node.ContentText,
		})
	}

	if !s.repos.Exists(work.ID) {
		if err := s.repos.EnsureWorkRepo(work.ID, content, reviewer); err != nil {
			log.Printf("revision: init repo for work %d: %v", work.ID, err)
		}
		return
	}

	message := fmt.Sprintf("Terapkan usulan #%d pada %s %s", sg.ID, sg.NodeType, sg.NodeNumber)
	if _, err := s.repos.CommitContent(work.ID, content, reviewer, message); err != nil {
		log.Printf("revision: commit for work %d: %v", work.ID, err)
	}
}

// WorkHistory lists the revision commits of a work, newest first.
func (s *Service) WorkHistory(ctx context.Context, workID int64) ([]store.CommitInfo, error) {
	if s.repos == nil || !s.repos.Exists(workID) {
		// No approved corrections yet; an empty history is not an error.
		if _, err := s.db.GetWork(ctx, workID); err != nil {
			return nil, err
		}
		return []store.CommitInfo{}, nil
	}
	return s.repos.History(workID, historyPageSize)
}

// --- Admin session ---

func (s *Service) AdminLogin(ctx context.Context, email, password string) (store.Admin, string, error) {
	if s.auth == nil {
		return store.Admin{}, "", domainError(503, "AUTH_UNAVAILABLE", "Layanan autentikasi tidak tersedia.", nil)
	}
	admin, token, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		if errors.Is(err, adminauth.ErrBadCredentials) {
			return store.Admin{}, "", domainError(401, "INVALID_CREDENTIALS", "Email atau kata sandi salah.", nil)
		}
		return store.Admin{}, "", err
	}
	return admin, token, nil
}

func (s *Service) AdminLogout(ctx context.Context, token string) error {
	if s.auth == nil || token == "" {
		return nil
	}
	return s.auth.SignOut(ctx, token)
}

// AdminFromToken resolves the admin behind a bearer token, or an error when
// the token is invalid, expired, or revoked.
func (s *Service) AdminFromToken(ctx context.Context, token string) (store.Admin, error) {
	if s.auth == nil {
		return store.Admin{}, domainError(503, "AUTH_UNAVAILABLE", "Layanan autentikasi tidak tersedia.", nil)
	}
	return s.auth.AdminFromToken(ctx, token)
}

// Authorize applies the dual-credential admin gate: a valid static API key
// or a signed-in admin whose email is allow-listed.
func (s *Service) Authorize(ctx context.Context, apiKey, token string) bool {
	if s.gate == nil {
		return false
	}
	if s.gate.KeyValid(apiKey) {
		return true
	}
	if token == "" || s.auth == nil {
		return false
	}
	admin, err := s.auth.AdminFromToken(ctx, token)
	if err != nil {
		return false
	}
	return s.gate.EmailAllowed(admin.Email)
}

// --- Scraper dashboard ---

type ScraperStatus struct {
	Summary        store.CrawlSummary `json:"summary"`
	RecentFailures []store.CrawlJob   `json:"recent_failures"`
}

func (s *Service) ScraperStatus(ctx context.Context) (ScraperStatus, error) {
	summary, err := s.db.CrawlSummary(ctx)
	if err != nil {
		return ScraperStatus{}, fmt.Errorf("crawl summary: %w", err)
	}
	failures, err := s.db.ListRecentCrawlFailures(ctx, 10)
	if err != nil {
		return ScraperStatus{}, fmt.Errorf("recent failures: %w", err)
	}
	if failures == nil {
		failures = []store.CrawlJob{}
	}
	return ScraperStatus{Summary: summary, RecentFailures: failures}, nil
}

type TriggerResult struct {
	Message     string `json:"message"`
	PendingJobs int    `json:"pending_jobs"`
	ResetFailed int    `json:"reset_failed"`
}

// TriggerScraper re-queues failed crawl jobs. The scraper itself polls the
// jobs table; this endpoint only resets state.
func (s *Service) TriggerScraper(ctx context.Context) (TriggerResult, error) {
	reset, err := s.db.ResetFailedCrawlJobs(ctx)
	if err != nil {
		return TriggerResult{}, fmt.Errorf("reset failed jobs: %w", err)
	}
	pending, err := s.db.CountPendingCrawlJobs(ctx)
	if err != nil {
		return TriggerResult{}, fmt.Errorf("count pending jobs: %w", err)
	}
	return TriggerResult{
		Message:     "Antrean scraper diperbarui.",
		PendingJobs: pending,
		ResetFailed: reset,
	}, nil
}

// --- Export and sources ---

func (s *Service) ExportWork(ctx context.Context, workID int64) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(503, "EXPORT_UNAVAILABLE", "Ekspor PDF tidak tersedia.", nil)
	}
	return s.exporter.ExportWork(ctx, workID)
}

// UploadSource archives a raw source document for a work, replacing any
// earlier upload.
func (s *Service) UploadSource(ctx context.Context, workID int64, contentType string, data []byte) error {
	if s.archive == nil {
		return domainError(503, "ARCHIVE_UNAVAILABLE", "Arsip sumber tidak tersedia.", nil)
	}
	if len(data) == 0 {
		return domainError(400, "EMPTY_SOURCE", "Dokumen sumber kosong.", nil)
	}
	if _, err := s.db.GetWork(ctx, workID); err != nil {
		return err
	}
	return s.archive.PutSource(ctx, workID, contentType, data)
}

func (s *Service) GetSource(ctx context.Context, workID int64) ([]byte, string, error) {
	if s.archive == nil {
		return nil, "", domainError(503, "ARCHIVE_UNAVAILABLE", "Arsip sumber tidak tersedia.", nil)
	}
	if _, err := s.db.GetWork(ctx, workID); err != nil {
		return nil, "", err
	}
	return s.archive.GetSource(ctx, workID)
}
