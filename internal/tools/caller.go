package tools

import "slices"

// Scopes required by the caller-facing operations
const (
	ScopeRequest = "bridge:request"
	ScopeRead    = "bridge:read"
)

// Caller is an authenticated caller identity
type Caller struct {
	ClientID string
	Scopes   []string
}

// HasScope reports whether the caller was granted scope
func (c Caller) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// Actor is the identity written to audit records
func (c Caller) Actor() string {
	if c.ClientID == "" {
		return "unknown"
	}
	return c.ClientID
}
