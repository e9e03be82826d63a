package domain

// PrincipalKind distinguishes how a caller authenticated.
type PrincipalKind string

const (
	PrincipalUser   PrincipalKind = "user"
	PrincipalAPIKey PrincipalKind = "api_key"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	Kind PrincipalKind
	User *User
	Key  *APIKey // set only for PrincipalAPIKey
}

// IsUser reports whether the caller presented a user session credential.
func (p *Principal) IsUser() bool {
	return p != nil && p.Kind == PrincipalUser
}

// Can reports whether the caller may exercise perm. User sessions carry every
// permission; API keys only those they were scoped to.
func (p *Principal) Can(perm Permission) bool {
	if p == nil {
		return false
	}
	switch p.Kind {
	case PrincipalUser:
		return true
	case PrincipalAPIKey:
		return p.Key != nil && p.Key.HasPermission(perm)
	}
	return false
}
