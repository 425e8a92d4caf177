package auth

// Owned is implemented by resources subject to ownership checks.
type Owned interface {
	// ResourceID identifies the resource itself.
	ResourceID() string
	// OwnerID identifies the principal owning the resource.
	OwnerID() string
}

// RequireRole passes when the principal holds one of the allowed roles.
// A nil principal fails ErrUnauthenticated rather than ErrForbidden, so the
// two cases stay distinguishable at the HTTP boundary.
func RequireRole(p *Principal, allowed ...RoleKind) error {
	if p == nil {
		return ErrUnauthenticated
	}
	for _, role := range allowed {
		if p.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

// RequireOwnership passes when the principal is an admin, owns the resource,
// or the resource is the principal's own record. A nil resource fails
// ErrNotFound; callers must render that the same way as ErrForbidden so the
// response never reveals whether the resource exists.
func RequireOwnership(p *Principal, res Owned) error {
	if p == nil {
		return ErrUnauthenticated
	}
	if res == nil {
		return ErrNotFound
	}
	if p.Role == RoleAdmin {
		return nil
	}
	if res.OwnerID() == p.ID || res.ResourceID() == p.ID {
		return nil
	}
	return ErrForbidden
}

// RequirePermission passes when the principal's role grants the permission
// key per the role matrix. A nil principal fails ErrUnauthenticated.
func RequirePermission(p *Principal, perm string) error {
	if p == nil {
		return ErrUnauthenticated
	}
	if !p.Role.Can(perm) {
		return ErrForbidden
	}
	return nil
}

// RequireVerifiedEmail passes when the principal's email address has been
// confirmed.
func RequireVerifiedEmail(p *Principal) error {
	if p == nil {
		return ErrUnauthenticated
	}
	if !p.EmailVerified {
		return ErrForbidden
	}
	return nil
}
