package gitrepo

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func sampleContent() WorkContent {
	return WorkContent{
		WorkID: 3,
		Title:  "UU No. 14 Tahun 2008",
		Nodes: []NodeContent{
			{NodeID: 6, NodeType: "pasal", Number: "4", ContentText: "Pasal empat."},
			{NodeID: 7, NodeType: "pasal", Number: "5", ContentText: "Pasal lima."},
		},
	}
}

func TestWorkRepoLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := sampleContent()
	if err := svc.EnsureWorkRepo(3, initial, "Redaksi"); err != nil {
		t.Fatalf("EnsureWorkRepo() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "work-3")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}
	if !svc.Exists(3) {
		t.Fatal("Exists() = false after init")
	}

	updated := initial
	updated.Nodes = append([]NodeContent(nil), initial.Nodes...)
	updated.Nodes[1].ContentText = "Pasal lima yang diperbaiki."
	commit, err := svc.CommitContent(3, updated, "Redaksi", "Terapkan usulan #42")
	if err != nil {
		t.Fatalf("CommitContent() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}

	head, headCommit, err := svc.GetHeadContent(3)
	if err != nil {
		t.Fatalf("GetHeadContent() error = %v", err)
	}
	if headCommit.Hash != commit.Hash {
		t.Fatalf("head = %s, want %s", headCommit.Hash, commit.Hash)
	}
	if head.Nodes[1].ContentText != "Pasal lima yang diperbaiki." {
		t.Fatalf("unexpected head content: %+v", head)
	}

	history, err := svc.History(3, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Hash != commit.Hash {
		t.Fatalf("history not newest-first: %+v", history)
	}
}

func TestEnsureWorkRepoIsIdempotent(t *testing.T) {
	svc := New(t.TempDir())

	if err := svc.EnsureWorkRepo(3, sampleContent(), "Redaksi"); err != nil {
		t.Fatalf("first EnsureWorkRepo() error = %v", err)
	}
	if err := svc.EnsureWorkRepo(3, WorkContent{WorkID: 3, Title: "other"}, "Redaksi"); err != nil {
		t.Fatalf("second EnsureWorkRepo() error = %v", err)
	}

	head, _, err := svc.GetHeadContent(3)
	if err != nil {
		t.Fatalf("GetHeadContent() error = %v", err)
	}
	if head.Title != "UU No. 14 Tahun 2008" {
		t.Fatalf("baseline overwritten: %+v", head)
	}
}

func TestHistoryLimit(t *testing.T) {
	svc := New(t.TempDir())

	content := sampleContent()
	if err := svc.EnsureWorkRepo(3, content, "Redaksi"); err != nil {
		t.Fatalf("EnsureWorkRepo() error = %v", err)
	}
	for i := 0; i < 4; i++ {
		content.Nodes[0].ContentText = fmt.Sprintf("Revisi %d", i)
		if _, err := svc.CommitContent(3, content, "Redaksi", fmt.Sprintf("Revisi %d", i)); err != nil {
			t.Fatalf("CommitContent() error = %v", err)
		}
	}

	history, err := svc.History(3, 3)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
}

func TestConcurrentCommitsSerialize(t *testing.T) {
	svc := New(t.TempDir())

	if err := svc.EnsureWorkRepo(3, sampleContent(), "Redaksi"); err != nil {
		t.Fatalf("EnsureWorkRepo() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			content := sampleContent()
			content.Nodes[0].ContentText = fmt.Sprintf("Paralel %d", i)
			if _, err := svc.CommitContent(3, content, "Redaksi", fmt.Sprintf("Paralel %d", i)); err != nil {
				t.Errorf("CommitContent() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	history, err := svc.History(3, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 6 {
		t.Fatalf("history length = %d, want 6", len(history))
	}
}
