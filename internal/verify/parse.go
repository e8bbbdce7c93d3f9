package verify

import (
	"encoding/json"
	"strings"
)

// parseVerdict decodes the model reply into a Verdict. Replies are sometimes
// wrapped in a Markdown code fence; the fence is stripped before decoding.
// Malformed replies degrade to an error verdict instead of failing the run,
// so the raw output is still captured for later analysis.
func parseVerdict(raw string) Verdict {
	body := stripFences(raw)

	var v Verdict
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return Verdict{
			Decision:   DecisionError,
			Confidence: 0,
			Reasoning:  "parse failure",
		}
	}

	switch v.Decision {
	case DecisionAccept, DecisionAcceptCorrections, DecisionReject:
	default:
		return Verdict{
			Decision:   DecisionError,
			Confidence: 0,
			Reasoning:  "parse failure",
		}
	}

	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}
	return v
}

// stripFences removes an optional ```...``` wrapper, with or without a
// language tag on the opening fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag line, e.g. "json".
		first := strings.TrimSpace(s[:idx])
		if first == "" || !strings.ContainsAny(first, "{}") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
