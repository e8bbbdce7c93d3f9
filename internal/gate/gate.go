// Package gate authorizes administrative requests. Two independent
// credentials are accepted: the static service API key, or a signed-in admin
// whose email is on the configured allow-list. Either one suffices; neither
// configured means nothing passes.
package gate

import (
	"crypto/subtle"
	"strings"
)

type Gate struct {
	apiKey  []byte
	allowed map[string]struct{}
}

func New(apiKey string, allowedEmails []string) *Gate {
	g := &Gate{allowed: make(map[string]struct{}, len(allowedEmails))}
	if apiKey != "" {
		g.apiKey = []byte(apiKey)
	}
	for _, email := range allowedEmails {
		email = strings.TrimSpace(strings.ToLower(email))
		if email != "" {
			g.allowed[email] = struct{}{}
		}
	}
	return g
}

// KeyValid reports whether candidate matches the configured API key. The
// compare is constant time; an unset key never matches.
func (g *Gate) KeyValid(candidate string) bool {
	if len(g.apiKey) == 0 || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare(g.apiKey, []byte(candidate)) == 1
}

// EmailAllowed reports whether a signed-in email is on the allow-list.
// Matching is case-insensitive.
func (g *Gate) EmailAllowed(email string) bool {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return false
	}
	_, ok := g.allowed[email]
	return ok
}

// Authorize applies the dual-credential rule: a valid API key passes, an
// allow-listed session email passes, anything else fails closed.
func (g *Gate) Authorize(candidateKey, sessionEmail string) bool {
	return g.KeyValid(candidateKey) || g.EmailAllowed(sessionEmail)
}
