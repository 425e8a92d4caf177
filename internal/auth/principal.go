package auth

import (
	"fmt"
	"strings"
)

// RoleKind is the closed set of roles a principal may hold.
type RoleKind int

const (
	RoleClient RoleKind = iota
	RoleProvider
	RoleAdmin
)

func (k RoleKind) String() string {
	switch k {
	case RoleClient:
		return "client"
	case RoleProvider:
		return "provider"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("role(%d)", int(k))
	}
}

// ParseRoleKind converts a stored role string into a RoleKind.
func ParseRoleKind(s string) (RoleKind, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "client":
		return RoleClient, nil
	case "provider":
		return RoleProvider, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return RoleClient, fmt.Errorf("unknown role %q", s)
	}
}

// ProviderStatus is the verification lifecycle state carried on a Principal.
// It is meaningful only when the role is RoleProvider.
type ProviderStatus string

const (
	ProviderNone        ProviderStatus = ""
	ProviderPending     ProviderStatus = "pending"
	ProviderUnderReview ProviderStatus = "under_review"
	ProviderApproved    ProviderStatus = "approved"
	ProviderRejected    ProviderStatus = "rejected"
)

// Principal is the resolved identity for a request. It is built once per
// request from verified claims plus a store lookup and never mutated.
type Principal struct {
	ID             string
	Email          string
	DisplayName    string
	Role           RoleKind
	Active         bool
	EmailVerified  bool
	ProviderStatus ProviderStatus
}

// IsAdmin reports whether the principal holds the platform admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
