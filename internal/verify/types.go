// Package verify orchestrates the generative review of a pending suggestion:
// it assembles a bounded document-context prompt, calls the external
// generative-text service, parses the semi-structured reply, and persists the
// verdict onto the suggestion record.
package verify

import "errors"

// Decisions a verification run can produce. The judgment is made by the
// external service; this tier only enforces structure around it.
const (
	DecisionAccept            = "accept"
	DecisionAcceptCorrections = "accept_with_corrections"
	DecisionReject            = "reject"
	DecisionError             = "error"
)

// Issue is one additional problem the reviewer noticed near the target text.
type Issue struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// Verdict is the structured outcome of one verification run.
type Verdict struct {
	Decision         string  `json:"decision"`
	Confidence       float64 `json:"confidence"`
	Reasoning        string  `json:"reasoning"`
	CorrectedContent string  `json:"corrected_content,omitempty"`
	AdditionalIssues []Issue `json:"additional_issues,omitempty"`
	ParserFeedback   string  `json:"parser_feedback,omitempty"`
}

// ErrUpstream marks a generative-service failure; handlers surface it as a
// gateway error.
var ErrUpstream = errors.New("generative service failure")
