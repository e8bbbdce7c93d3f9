package verify

import (
	"context"
	"fmt"
	"log"
	"time"

	"peraturan/api/internal/store"
)

// dataStore is the slice of the document store the orchestrator needs.
type dataStore interface {
	GetSuggestion(ctx context.Context, id int64) (store.Suggestion, error)
	GetNode(ctx context.Context, nodeID int64) (store.DocumentNode, error)
	GetWork(ctx context.Context, workID int64) (store.Work, error)
	ListSiblingNodes(ctx context.Context, workID int64, nodeType string, sortOrder, radius int) ([]store.DocumentNode, error)
	MarkAgentTriggered(ctx context.Context, id int64, model string, at time.Time) error
	SaveAgentResult(ctx context.Context, id int64, result store.AgentResult, completedAt time.Time) error
}

// Orchestrator runs one verification pass over a pending suggestion.
// Runs have at-least-once semantics: concurrent re-triggers for the same
// suggestion are not deduplicated, and the last completed run wins.
type Orchestrator struct {
	db  dataStore
	gen Generator
}

func NewOrchestrator(db dataStore, gen Generator) *Orchestrator {
	return &Orchestrator{db: db, gen: gen}
}

// Verify loads the suggestion, assembles its document neighborhood into a
// prompt, calls the generative service, and persists the parsed verdict onto
// the suggestion's agent columns. The raw reply is persisted even when it
// cannot be parsed.
func (o *Orchestrator) Verify(ctx context.Context, suggestionID int64) (Verdict, error) {
	sug, err := o.db.GetSuggestion(ctx, suggestionID)
	if err != nil {
		return Verdict{}, fmt.Errorf("load suggestion %d: %w", suggestionID, err)
	}

	// Best-effort progress marker; a failed write must not abort the run.
	if err := o.db.MarkAgentTriggered(ctx, sug.ID, o.gen.ModelName(), time.Now().UTC()); err != nil {
		log.Printf("verify: mark triggered suggestion=%d: %v", sug.ID, err)
	}

	node, err := o.db.GetNode(ctx, sug.NodeID)
	if err != nil {
		return Verdict{}, fmt.Errorf("load node %d: %w", sug.NodeID, err)
	}
	work, err := o.db.GetWork(ctx, sug.WorkID)
	if err != nil {
		return Verdict{}, fmt.Errorf("load work %d: %w", sug.WorkID, err)
	}
	siblings, err := o.db.ListSiblingNodes(ctx, node.WorkID, node.NodeType, node.SortOrder, siblingRadius)
	if err != nil {
		return Verdict{}, fmt.Errorf("load siblings for node %d: %w", node.ID, err)
	}
	if len(siblings) == 0 {
		siblings = []store.DocumentNode{node}
	}

	prompt := buildPrompt(work, node, siblings, sug)

	raw, err := o.gen.Generate(ctx, prompt)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	verdict := parseVerdict(raw)

	result := store.AgentResult{
		Model:           o.gen.ModelName(),
		RawResponse:     raw,
		Decision:        verdict.Decision,
		Confidence:      verdict.Confidence,
		ModifiedContent: verdict.CorrectedContent,
	}
	if err := o.db.SaveAgentResult(ctx, sug.ID, result, time.Now().UTC()); err != nil {
		return Verdict{}, fmt.Errorf("save agent result for suggestion %d: %w", sug.ID, err)
	}

	return verdict, nil
}
