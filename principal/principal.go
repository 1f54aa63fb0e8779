// Package principal carries the authenticated identity of a request.
package principal

import "context"

// Principal is the identity behind a valid access token.
type Principal struct {
	SubjectID   string `json:"id"`
	Role        string `json:"role"`
	DisplayName string `json:"nickname"`
}

// HasRole reports whether the principal holds any of roles.
func (p Principal) HasRole(roles ...string) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

type contextKey struct{}

func NewContext(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the principal stored by NewContext. ok is false for
// anonymous requests.
func FromContext(ctx context.Context) (p Principal, ok bool) {
	p, ok = ctx.Value(contextKey{}).(Principal)
	return p, ok
}
