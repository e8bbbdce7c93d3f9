// Package suggest validates user-submitted correction proposals before they
// are persisted. Checks run in a fixed order so clients see predictable
// error messages.
package suggest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"peraturan/api/internal/store"
)

const (
	MaxContentLength = 50000
	MaxReasonLength  = 2000
	MaxMetadataBytes = 10000
	MaxPerWindow     = 10
	RateLimitWindow  = 60 * time.Minute
)

// Kind classifies a validation failure for HTTP status mapping.
type Kind int

const (
	KindInvalid Kind = iota
	KindNotFound
	KindConflict
	KindRateLimited
)

// Error is a validation failure with a user-facing message in the
// submission locale.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func reject(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Input is one raw suggestion submission.
type Input struct {
	WorkID           int64           `json:"work_id"`
	NodeID           int64           `json:"node_id"`
	NodeType         string          `json:"node_type"`
	NodeNumber       string          `json:"node_number"`
	CurrentContent   string          `json:"current_content"`
	SuggestedContent string          `json:"suggested_content"`
	UserReason       string          `json:"user_reason"`
	SubmitterEmail   string          `json:"submitter_email"`
	Metadata         json.RawMessage `json:"metadata"`
}

// NodeStore is the slice of the document store the validator needs.
type NodeStore interface {
	GetNode(ctx context.Context, nodeID int64) (store.DocumentNode, error)
	CountRecentSuggestionsByIP(ctx context.Context, ip string, window time.Duration) (int, error)
}

// Indonesian regulation structure kinds.
var allowedNodeTypes = map[string]struct{}{
	"bab":              {},
	"bagian":           {},
	"paragraf":         {},
	"pasal":            {},
	"ayat":             {},
	"penjelasan_umum":  {},
	"penjelasan_pasal": {},
	"pembukaan":        {},
	"konten_bebas":     {},
	"aturan_peralihan": {},
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Validator runs the ordered check pipeline against a submission.
type Validator struct {
	store NodeStore
}

func New(store NodeStore) *Validator {
	return &Validator{store: store}
}

// Validate short-circuits on the first failing check and, on success,
// returns the normalized record ready for insertion. The staleness and
// rate-limit checks are separate store round trips; near-simultaneous
// submissions can both pass before either commits.
func (v *Validator) Validate(ctx context.Context, input Input, submitterIP string) (store.Suggestion, error) {
	if err := checkShape(input); err != nil {
		return store.Suggestion{}, err
	}

	current := strings.TrimSpace(input.CurrentContent)
	suggested := strings.TrimSpace(input.SuggestedContent)
	if current == suggested {
		return store.Suggestion{}, reject(KindInvalid, "Usulan tidak mengubah konten yang ada")
	}

	node, err := v.store.GetNode(ctx, input.NodeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Suggestion{}, reject(KindNotFound, "Bagian dokumen tidak ditemukan")
		}
		return store.Suggestion{}, fmt.Errorf("lookup node: %w", err)
	}
	if node.WorkID != input.WorkID {
		return store.Suggestion{}, reject(KindConflict, "Bagian dokumen bukan bagian dari peraturan yang dimaksud")
	}

	if strings.TrimSpace(node.ContentText) != current {
		return store.Suggestion{}, reject(KindConflict, "Konten dokumen telah berubah sejak halaman dimuat. Muat ulang halaman dan coba lagi")
	}

	count, err := v.store.CountRecentSuggestionsByIP(ctx, submitterIP, RateLimitWindow)
	if err != nil {
		return store.Suggestion{}, fmt.Errorf("count recent suggestions: %w", err)
	}
	if count >= MaxPerWindow {
		return store.Suggestion{}, reject(KindRateLimited, "Terlalu banyak usulan dari alamat Anda. Silakan coba lagi nanti")
	}

	return store.Suggestion{
		WorkID:           input.WorkID,
		NodeID:           input.NodeID,
		NodeType:         input.NodeType,
		NodeNumber:       strings.TrimSpace(input.NodeNumber),
		CurrentContent:   current,
		SuggestedContent: suggested,
		UserReason:       strings.TrimSpace(input.UserReason),
		SubmitterEmail:   strings.TrimSpace(input.SubmitterEmail),
		SubmitterIP:      submitterIP,
		Status:           store.SuggestionPending,
		Metadata:         input.Metadata,
	}, nil
}

func checkShape(input Input) *Error {
	if input.WorkID <= 0 {
		return reject(KindInvalid, "ID peraturan tidak valid")
	}
	if input.NodeID <= 0 {
		return reject(KindInvalid, "ID bagian dokumen tidak valid")
	}
	if strings.TrimSpace(input.CurrentContent) == "" {
		return reject(KindInvalid, "Konten saat ini wajib diisi")
	}
	if utf8.RuneCountInString(input.CurrentContent) > MaxContentLength {
		return reject(KindInvalid, "Konten saat ini melebihi batas 50.000 karakter")
	}
	if strings.TrimSpace(input.SuggestedContent) == "" {
		return reject(KindInvalid, "Konten usulan wajib diisi")
	}
	if utf8.RuneCountInString(input.SuggestedContent) > MaxContentLength {
		return reject(KindInvalid, "Konten usulan melebihi batas 50.000 karakter")
	}
	if utf8.RuneCountInString(input.UserReason) > MaxReasonLength {
		return reject(KindInvalid, "Alasan melebihi batas 2.000 karakter")
	}
	if _, ok := allowedNodeTypes[input.NodeType]; !ok {
		return reject(KindInvalid, "Jenis bagian dokumen tidak dikenal")
	}
	if email := strings.TrimSpace(input.SubmitterEmail); email != "" && !emailPattern.MatchString(email) {
		return reject(KindInvalid, "Format alamat email tidak valid")
	}
	if len(input.Metadata) > MaxMetadataBytes {
		return reject(KindInvalid, "Metadata terlalu besar")
	}
	if len(input.Metadata) > 0 && !json.Valid(input.Metadata) {
		return reject(KindInvalid, "Metadata bukan JSON yang valid")
	}
	return nil
}
