package verify

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"peraturan/api/internal/store"
)

type fakeStore struct {
	suggestion store.Suggestion
	node       store.DocumentNode
	work       store.Work
	siblings   []store.DocumentNode

	suggestionErr error
	triggeredErr  error

	markedModel string
	saved       *store.AgentResult
	savedAt     time.Time
}

func (f *fakeStore) GetSuggestion(ctx context.Context, id int64) (store.Suggestion, error) {
	if f.suggestionErr != nil {
		return store.Suggestion{}, f.suggestionErr
	}
	return f.suggestion, nil
}

func (f *fakeStore) GetNode(ctx context.Context, nodeID int64) (store.DocumentNode, error) {
	return f.node, nil
}

func (f *fakeStore) GetWork(ctx context.Context, workID int64) (store.Work, error) {
	return f.work, nil
}

func (f *fakeStore) ListSiblingNodes(ctx context.Context, workID int64, nodeType string, sortOrder, radius int) ([]store.DocumentNode, error) {
	return f.siblings, nil
}

func (f *fakeStore) MarkAgentTriggered(ctx context.Context, id int64, model string, at time.Time) error {
	f.markedModel = model
	return f.triggeredErr
}

func (f *fakeStore) SaveAgentResult(ctx context.Context, id int64, result store.AgentResult, completedAt time.Time) error {
	f.saved = &result
	f.savedAt = completedAt
	return nil
}

type fakeGenerator struct {
	reply string
	err   error

	prompt string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeGenerator) ModelName() string { return "test-model" }

func verifyFixture() *fakeStore {
	target := store.DocumentNode{
		ID: 7, WorkID: 3, NodeType: "pasal", Number: "5",
		ContentText: "Setiap orang berhak atas informasi.", SortOrder: 12,
	}
	return &fakeStore{
		suggestion: store.Suggestion{
			ID: 42, WorkID: 3, NodeID: 7, NodeType: "pasal",
			CurrentContent:   "Setiap orang berhak atas informasi.",
			SuggestedContent: "Setiap Orang berhak atas informasi publik.",
			UserReason:       "sesuai naskah asli",
			Status:           store.SuggestionPending,
		},
		node: target,
		work: store.Work{ID: 3, Title: "UU No. 14 Tahun 2008", CitationURI: "https://peraturan.go.id/uu-14-2008"},
		siblings: []store.DocumentNode{
			{ID: 6, WorkID: 3, NodeType: "pasal", Number: "4", ContentText: strings.Repeat("x", 900), SortOrder: 11},
			target,
			{ID: 8, WorkID: 3, NodeType: "pasal", Number: "6", ContentText: "Pasal berikutnya.", SortOrder: 13},
		},
	}
}

func TestVerifyPersistsVerdict(t *testing.T) {
	db := verifyFixture()
	gen := &fakeGenerator{reply: "```json\n" + sampleReply + "\n```"}

	v, err := NewOrchestrator(db, gen).Verify(context.Background(), 42)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if v.Decision != DecisionAcceptCorrections {
		t.Errorf("decision = %q", v.Decision)
	}
	if db.markedModel != "test-model" {
		t.Errorf("triggered model = %q", db.markedModel)
	}
	if db.saved == nil {
		t.Fatal("agent result not persisted")
	}
	if db.saved.Decision != DecisionAcceptCorrections || db.saved.ModifiedContent != "Teks final." {
		t.Errorf("saved = %+v", db.saved)
	}
	if db.saved.RawResponse != gen.reply {
		t.Error("raw response not captured verbatim")
	}
	if db.savedAt.IsZero() {
		t.Error("completion timestamp not stamped")
	}
}

func TestVerifyPromptContents(t *testing.T) {
	db := verifyFixture()
	gen := &fakeGenerator{reply: sampleReply}

	if _, err := NewOrchestrator(db, gen).Verify(context.Background(), 42); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	for _, want := range []string{
		"UU No. 14 Tahun 2008",
		"[BAGIAN TARGET]",
		"Setiap Orang berhak atas informasi publik.",
		"sesuai naskah asli",
		`"decision"`,
	} {
		if !strings.Contains(gen.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	// The long sibling must be truncated, not embedded whole.
	if strings.Contains(gen.prompt, strings.Repeat("x", 501)) {
		t.Error("sibling text not truncated")
	}
	if !strings.Contains(gen.prompt, strings.Repeat("x", 500)+"...") {
		t.Error("truncation marker missing")
	}
}

func TestVerifySuggestionNotFound(t *testing.T) {
	db := &fakeStore{suggestionErr: sql.ErrNoRows}
	gen := &fakeGenerator{reply: sampleReply}

	_, err := NewOrchestrator(db, gen).Verify(context.Background(), 999)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want ErrNoRows", err)
	}
	if db.saved != nil {
		t.Error("agent result persisted for missing suggestion")
	}
}

func TestVerifyUpstreamFailure(t *testing.T) {
	db := verifyFixture()
	gen := &fakeGenerator{err: errors.New("deadline exceeded")}

	_, err := NewOrchestrator(db, gen).Verify(context.Background(), 42)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	if db.saved != nil {
		t.Error("agent result persisted despite upstream failure")
	}
}

func TestVerifyTriggerMarkFailureIsNonFatal(t *testing.T) {
	db := verifyFixture()
	db.triggeredErr = errors.New("connection reset")
	gen := &fakeGenerator{reply: sampleReply}

	if _, err := NewOrchestrator(db, gen).Verify(context.Background(), 42); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if db.saved == nil {
		t.Error("agent result not persisted")
	}
}

func TestVerifyParseFailureStillPersists(t *testing.T) {
	db := verifyFixture()
	gen := &fakeGenerator{reply: "Saya tidak yakin."}

	v, err := NewOrchestrator(db, gen).Verify(context.Background(), 42)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if v.Decision != DecisionError || v.Reasoning != "parse failure" {
		t.Errorf("verdict = %+v", v)
	}
	if db.saved == nil || db.saved.RawResponse != "Saya tidak yakin." {
		t.Errorf("raw output not captured: %+v", db.saved)
	}
}
