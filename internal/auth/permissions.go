package auth

// Permission keys used by route handlers.
const (
	PermApplicationSubmit = "application.submit"
	PermApplicationReview = "application.review"
	PermBookingCreate     = "booking.create"
)

var rolePermissions = map[RoleKind][]string{
	RoleClient:   {PermBookingCreate},
	RoleProvider: {PermApplicationSubmit},
	RoleAdmin:    {PermApplicationSubmit, PermApplicationReview, PermBookingCreate},
}

// Can reports whether the role grants the permission key.
func (k RoleKind) Can(perm string) bool {
	for _, p := range rolePermissions[k] {
		if p == perm {
			return true
		}
	}
	return false
}
