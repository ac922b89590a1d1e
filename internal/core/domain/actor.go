package domain

// Actor is the authenticated caller of an operation. A nil *Actor means the request is unauthenticated.
type Actor struct {
	// ID doubles as the tenant scoping key for resources the actor creates.
	ID    string
	Role  Role
	Email *string
}

// Can reports whether the actor's role grants perm. Unknown roles are reported through the error.
func (a *Actor) Can(perm Permission) (bool, error) {
	if a == nil {
		return false, ErrUnauthenticated
	}
	return HasPermission(a.Role, perm)
}
