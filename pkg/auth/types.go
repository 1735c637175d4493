// Package auth authenticates the admin and provider surface of the
// gateway. The oracle callback route is deliberately outside this package's
// reach: it is public by design and defended by the protocol's own checks.
package auth

// Principal is the authenticated caller of an API request.
type Principal struct {
	Actor string
	Roles []string
}

// HasRole reports role membership.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
