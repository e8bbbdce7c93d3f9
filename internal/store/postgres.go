package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── Works ──

func (s *PostgresStore) ListWorks(ctx context.Context, filter WorkFilter) ([]Work, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	argN := 1
	if filter.WorkType != "" {
		where = append(where, fmt.Sprintf("work_type = $%d", argN))
		args = append(args, filter.WorkType)
		argN++
	}
	if filter.Year > 0 {
		where = append(where, fmt.Sprintf("year = $%d", argN))
		args = append(args, filter.Year)
		argN++
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argN))
		args = append(args, filter.Status)
		argN++
	}
	whereSQL := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM works WHERE `+whereSQL, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count works: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT id, work_type, number, year, title, status, citation_uri, created_at, updated_at
		FROM works
		WHERE %s
		ORDER BY year DESC, id DESC
		LIMIT %d OFFSET %d
	`, whereSQL, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list works: %w", err)
	}
	defer rows.Close()

	items := make([]Work, 0)
	for rows.Next() {
		var item Work
		if err := rows.Scan(&item.ID, &item.WorkType, &item.Number, &item.Year, &item.Title,
			&item.Status, &item.CitationURI, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan work: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate works: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) GetWork(ctx context.Context, workID int64) (Work, error) {
	var item Work
	err := s.db.QueryRowContext(ctx, `
		SELECT id, work_type, number, year, title, status, citation_uri, created_at, updated_at
		FROM works
		WHERE id=$1
	`, workID).Scan(&item.ID, &item.WorkType, &item.Number, &item.Year, &item.Title,
		&item.Status, &item.CitationURI, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Work{}, err
	}
	return item, nil
}

// ── Document nodes ──

func (s *PostgresStore) GetNode(ctx context.Context, nodeID int64) (DocumentNode, error) {
	var node DocumentNode
	err := s.db.QueryRowContext(ctx, `
		SELECT id, work_id, node_type, number, heading, content_text, parent_id, sort_order
		FROM document_nodes
		WHERE id=$1
	`, nodeID).Scan(&node.ID, &node.WorkID, &node.NodeType, &node.Number, &node.Heading,
		&node.ContentText, &node.ParentID, &node.SortOrder)
	if err != nil {
		return DocumentNode{}, err
	}
	return node, nil
}

func (s *PostgresStore) ListNodesByWork(ctx context.Context, workID int64) ([]DocumentNode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, work_id, node_type, number, heading, content_text, parent_id, sort_order
		FROM document_nodes
		WHERE work_id=$1
		ORDER BY sort_order ASC
	`, workID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	nodes := make([]DocumentNode, 0)
	for rows.Next() {
		var node DocumentNode
		if err := rows.Scan(&node.ID, &node.WorkID, &node.NodeType, &node.Number, &node.Heading,
			&node.ContentText, &node.ParentID, &node.SortOrder); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

// ListSiblingNodes returns up to 2*radius+1 nodes of the same structural kind
// in the same work, centered on the given sort position.
func (s *PostgresStore) ListSiblingNodes(ctx context.Context, workID int64, nodeType string, sortOrder, radius int) ([]DocumentNode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, work_id, node_type, number, heading, content_text, parent_id, sort_order
		FROM document_nodes
		WHERE work_id=$1 AND node_type=$2 AND sort_order BETWEEN $3 AND $4
		ORDER BY sort_order ASC
	`, workID, nodeType, sortOrder-radius, sortOrder+radius)
	if err != nil {
		return nil, fmt.Errorf("list sibling nodes: %w", err)
	}
	defer rows.Close()

	nodes := make([]DocumentNode, 0)
	for rows.Next() {
		var node DocumentNode
		if err := rows.Scan(&node.ID, &node.WorkID, &node.NodeType, &node.Number, &node.Heading,
			&node.ContentText, &node.ParentID, &node.SortOrder); err != nil {
			return nil, fmt.Errorf("scan sibling node: %w", err)
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sibling nodes: %w", err)
	}
	return nodes, nil
}

func (s *PostgresStore) UpdateNodeContent(ctx context.Context, nodeID int64, content string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE document_nodes SET content_text=$2 WHERE id=$1`, nodeID, content)
	if err != nil {
		return fmt.Errorf("update node content: %w", err)
	}
	return nil
}

// ── Suggestions ──

func (s *PostgresStore) InsertSuggestion(ctx context.Context, sg Suggestion) (int64, error) {
	metadata := sg.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO suggestions
			(work_id, node_id, node_type, node_number, current_content, suggested_content,
			 user_reason, submitter_email, submitter_ip, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, sg.WorkID, sg.NodeID, sg.NodeType, sg.NodeNumber, sg.CurrentContent, sg.SuggestedContent,
		sg.UserReason, sg.SubmitterEmail, sg.SubmitterIP, SuggestionPending, []byte(metadata)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert suggestion: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetSuggestion(ctx context.Context, id int64) (Suggestion, error) {
	var sg Suggestion
	var nodeNumber, userReason, submitterEmail sql.NullString
	var agentModel, agentResponse, agentDecision, agentModified sql.NullString
	var agentConfidence sql.NullFloat64
	var metadata []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, work_id, node_id, node_type, node_number, current_content, suggested_content,
			user_reason, submitter_email, submitter_ip, status, metadata, created_at,
			agent_triggered_at, agent_model, agent_response, agent_decision,
			agent_confidence, agent_modified_content, agent_completed_at
		FROM suggestions
		WHERE id=$1
	`, id).Scan(&sg.ID, &sg.WorkID, &sg.NodeID, &sg.NodeType, &nodeNumber,
		&sg.CurrentContent, &sg.SuggestedContent, &userReason, &submitterEmail,
		&sg.SubmitterIP, &sg.Status, &metadata, &sg.CreatedAt,
		&sg.AgentTriggeredAt, &agentModel, &agentResponse, &agentDecision,
		&agentConfidence, &agentModified, &sg.AgentCompletedAt)
	if err != nil {
		return Suggestion{}, err
	}
	sg.NodeNumber = nodeNumber.String
	sg.UserReason = userReason.String
	sg.SubmitterEmail = submitterEmail.String
	sg.Metadata = json.RawMessage(metadata)
	sg.AgentModel = agentModel.String
	sg.AgentResponse = agentResponse.String
	sg.AgentDecision = agentDecision.String
	sg.AgentModifiedContent = agentModified.String
	if agentConfidence.Valid {
		sg.AgentConfidence = &agentConfidence.Float64
	}
	return sg, nil
}

func (s *PostgresStore) ListSuggestions(ctx context.Context, status string, limit, offset int) ([]Suggestion, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	where := "TRUE"
	args := []any{}
	if status != "" {
		where = "status = $1"
		args = append(args, status)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, work_id, node_id, node_type, node_number, current_content, suggested_content,
			user_reason, submitter_email, status, created_at,
			agent_decision, agent_confidence, agent_completed_at
		FROM suggestions
		WHERE %s
		ORDER BY created_at DESC
		LIMIT %d OFFSET %d
	`, where, limit, offset), args...)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()

	items := make([]Suggestion, 0)
	for rows.Next() {
		var sg Suggestion
		var nodeNumber, userReason, submitterEmail, agentDecision sql.NullString
		var agentConfidence sql.NullFloat64
		if err := rows.Scan(&sg.ID, &sg.WorkID, &sg.NodeID, &sg.NodeType, &nodeNumber,
			&sg.CurrentContent, &sg.SuggestedContent, &userReason, &submitterEmail,
			&sg.Status, &sg.CreatedAt, &agentDecision, &agentConfidence, &sg.AgentCompletedAt); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		sg.NodeNumber = nodeNumber.String
		sg.UserReason = userReason.String
		sg.SubmitterEmail = submitterEmail.String
		sg.AgentDecision = agentDecision.String
		if agentConfidence.Valid {
			sg.AgentConfidence = &agentConfidence.Float64
		}
		items = append(items, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", err)
	}
	return items, nil
}

// CountRecentSuggestionsByIP counts submissions from one address inside the
// trailing window. Used by the rate limiter; check-then-act, no transaction.
func (s *PostgresStore) CountRecentSuggestionsByIP(ctx context.Context, ip string, window time.Duration) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM suggestions
		WHERE submitter_ip=$1 AND created_at > NOW() - $2::interval
	`, ip, window.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent suggestions: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) UpdateSuggestionStatus(ctx context.Context, id int64, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE suggestions SET status=$2 WHERE id=$1`, id, status)
	if err != nil {
		return fmt.Errorf("update suggestion status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update suggestion status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkAgentTriggered stamps the in-progress timestamp. Best-effort: callers
// log and continue on failure.
func (s *PostgresStore) MarkAgentTriggered(ctx context.Context, id int64, model string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE suggestions SET agent_triggered_at=$2, agent_model=$3 WHERE id=$1
	`, id, at, model)
	if err != nil {
		return fmt.Errorf("mark agent triggered: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveAgentResult(ctx context.Context, id int64, result AgentResult, completedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE suggestions
		SET agent_model=$2, agent_response=$3, agent_decision=$4,
			agent_confidence=$5, agent_modified_content=$6, agent_completed_at=$7
		WHERE id=$1
	`, id, result.Model, result.RawResponse, result.Decision,
		result.Confidence, result.ModifiedContent, completedAt)
	if err != nil {
		return fmt.Errorf("save agent result: %w", err)
	}
	return nil
}

// ── Crawl jobs ──

func (s *PostgresStore) CrawlSummary(ctx context.Context) (CrawlSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, count(*) FROM crawl_jobs GROUP BY status
	`)
	if err != nil {
		return CrawlSummary{}, fmt.Errorf("crawl summary: %w", err)
	}
	defer rows.Close()

	var summary CrawlSummary
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return CrawlSummary{}, fmt.Errorf("scan crawl summary: %w", err)
		}
		switch status {
		case "pending":
			summary.Pending = count
		case "running":
			summary.Running = count
		case "completed":
			summary.Completed = count
		case "failed":
			summary.Failed = count
		}
	}
	return summary, rows.Err()
}

func (s *PostgresStore) ListRecentCrawlFailures(ctx context.Context, limit int) ([]CrawlJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, work_id, source_url, status, attempts, last_error, started_at, completed_at, updated_at
		FROM crawl_jobs
		WHERE status='failed'
		ORDER BY updated_at DESC
		LIMIT %d
	`, limit))
	if err != nil {
		return nil, fmt.Errorf("list crawl failures: %w", err)
	}
	defer rows.Close()

	jobs := make([]CrawlJob, 0)
	for rows.Next() {
		var job CrawlJob
		var lastError sql.NullString
		if err := rows.Scan(&job.ID, &job.WorkID, &job.SourceURL, &job.Status, &job.Attempts,
			&lastError, &job.StartedAt, &job.CompletedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan crawl job: %w", err)
		}
		job.LastError = lastError.String
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) CountPendingCrawlJobs(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM crawl_jobs WHERE status='pending'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending jobs: %w", err)
	}
	return count, nil
}

// ResetFailedCrawlJobs flips failed jobs back to pending so the scraper picks
// them up on its next pass, and reports how many were reset.
func (s *PostgresStore) ResetFailedCrawlJobs(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE crawl_jobs
		SET status='pending', last_error=NULL, updated_at=NOW()
		WHERE status='failed'
	`)
	if err != nil {
		return 0, fmt.Errorf("reset failed jobs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset failed jobs: %w", err)
	}
	return int(affected), nil
}

// ── Admins ──

func (s *PostgresStore) GetAdminByEmail(ctx context.Context, email string) (Admin, error) {
	var admin Admin
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, created_at
		FROM admins
		WHERE LOWER(email)=LOWER($1)
	`, email).Scan(&admin.ID, &admin.Email, &admin.DisplayName, &admin.PasswordHash, &admin.CreatedAt)
	if err != nil {
		return Admin{}, err
	}
	return admin, nil
}
