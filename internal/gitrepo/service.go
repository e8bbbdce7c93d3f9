// Package gitrepo keeps an audit trail of each work's text in a per-work git
// repository. Every approved correction becomes one commit, so the full
// revision history of a regulation's text is reconstructable.
package gitrepo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"peraturan/api/internal/store"
)

// NodeContent is one document node as stored in the repo snapshot.
type NodeContent struct {
	NodeID      int64  `json:"node_id"`
	NodeType    string `json:"node_type"`
	Number      string `json:"number"`
	Heading     string `json:"heading,omitempty"`
	ContentText string `json:"content_text"`
}

// WorkContent is the full text snapshot committed per revision.
type WorkContent struct {
	WorkID int64         `json:"work_id"`
	Title  string        `json:"title"`
	Nodes  []NodeContent `json:"nodes"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[int64]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[int64]*sync.Mutex),
	}
}

// EnsureWorkRepo initializes the repo for a work with a baseline commit.
// Existing repos are left untouched.
func (s *Service) EnsureWorkRepo(workID int64, initial WorkContent, author string) error {
	lock := s.workLock(workID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(workID)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}

	repo, err := git.PlainInit(path, false)
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := writeContentFile(path, initial); err != nil {
		return err
	}
	if _, err := worktree.Add("content.json"); err != nil {
		return fmt.Errorf("git add initial content: %w", err)
	}
	hash, err := worktree.Commit("Impor teks awal", &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return fmt.Errorf("commit initial content: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	return nil
}

// CommitContent records a new snapshot of the work's text.
func (s *Service) CommitContent(workID int64, content WorkContent, author, message string) (store.CommitInfo, error) {
	lock := s.workLock(workID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(workID)
	repo, err := git.PlainOpen(path)
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("open repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}
	if err := writeContentFile(path, content); err != nil {
		return store.CommitInfo{}, err
	}
	if _, err := worktree.Add("content.json"); err != nil {
		return store.CommitInfo{}, fmt.Errorf("git add content: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("commit content: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// GetHeadContent returns the latest committed snapshot.
func (s *Service) GetHeadContent(workID int64) (WorkContent, store.CommitInfo, error) {
	lock := s.workLock(workID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(workID))
	if err != nil {
		return WorkContent{}, store.CommitInfo{}, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Head()
	if err != nil {
		return WorkContent{}, store.CommitInfo{}, fmt.Errorf("resolve HEAD: %w", err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return WorkContent{}, store.CommitInfo{}, fmt.Errorf("load commit object: %w", err)
	}

	content, err := readContentFromCommit(commitObj)
	if err != nil {
		return WorkContent{}, store.CommitInfo{}, err
	}
	return content, toCommitInfo(commitObj), nil
}

// History lists commits from newest to oldest, up to limit when positive.
func (s *Service) History(workID int64, limit int) ([]store.CommitInfo, error) {
	lock := s.workLock(workID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(workID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]store.CommitInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Exists reports whether a work's repo has been initialized yet.
func (s *Service) Exists(workID int64) bool {
	_, err := os.Stat(s.repoPath(workID))
	return err == nil
}

func (s *Service) repoPath(workID int64) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("work-%d", workID))
}

func (s *Service) workLock(workID int64) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[workID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[workID] = lock
	return lock
}

func writeContentFile(repoRoot string, content WorkContent) error {
	payload, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	if err := os.WriteFile(filepath.Join(repoRoot, "content.json"), append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write content.json: %w", err)
	}
	return nil
}

func readContentFromCommit(commitObj *object.Commit) (WorkContent, error) {
	file, err := commitObj.File("content.json")
	if err != nil {
		return WorkContent{}, fmt.Errorf("load content.json from commit: %w", err)
	}
	reader, err := file.Reader()
	if err != nil {
		return WorkContent{}, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return WorkContent{}, fmt.Errorf("read content bytes: %w", err)
	}

	var content WorkContent
	if err := json.Unmarshal(raw, &content); err != nil {
		return WorkContent{}, fmt.Errorf("decode commit content: %w", err)
	}
	return content, nil
}

func toCommitInfo(commitObj *object.Commit) store.CommitInfo {
	return store.CommitInfo{
		Hash:      commitObj.Hash.String(),
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func signature(author string) *object.Signature {
	if author == "" {
		author = "peraturan"
	}
	return &object.Signature{
		Name:  author,
		Email: "redaksi@peraturan.local",
		When:  time.Now(),
	}
}
