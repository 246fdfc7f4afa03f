// Package principal defines the identity value the rest of the API reasons
// about: who is asking, as a (kind, id) pair plus the staff sub-role when the
// actor is a staff member.
package principal

import "fmt"

type Kind string

const (
	KindCompany Kind = "company"
	KindClient  Kind = "client"
	KindStaff   Kind = "staff"
)

// StaffRole distinguishes the four staff positions used for role grants and
// for the project-manager modify rule.
type StaffRole string

const (
	RoleProjectManager   StaffRole = "project_manager"
	RoleArchitect        StaffRole = "architect"
	RoleEngineer         StaffRole = "engineer"
	RoleQuantitySurveyor StaffRole = "quantity_surveyor"
)

// Principal identifies an authenticated actor. StaffRole is set only when
// Kind is KindStaff.
type Principal struct {
	Kind      Kind      `json:"kind"`
	ID        string    `json:"id"`
	StaffRole StaffRole `json:"staffRole,omitempty"`
}

// Ref is a bare (kind, id) pair as stored in grants and ownership columns.
// It deliberately omits the staff role: grants bind to an identity, while the
// role is always read from the current principal at evaluation time.
type Ref struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

func (p Principal) Ref() Ref {
	return Ref{Kind: p.Kind, ID: p.ID}
}

// Is reports whether the principal is the same identity as ref.
func (p Principal) Is(ref Ref) bool {
	return p.Kind == ref.Kind && p.ID == ref.ID
}

// GrantRole returns the role string this principal matches in an allowed-roles
// set: the staff sub-role for staff, the kind literal for company and client.
func (p Principal) GrantRole() string {
	if p.Kind == KindStaff {
		return string(p.StaffRole)
	}
	return string(p.Kind)
}

func (p Principal) String() string {
	if p.Kind == KindStaff && p.StaffRole != "" {
		return fmt.Sprintf("%s:%s(%s)", p.Kind, p.ID, p.StaffRole)
	}
	return fmt.Sprintf("%s:%s", p.Kind, p.ID)
}

// Valid reports whether the principal is well-formed. A malformed principal
// on a stored record is an invariant violation, not a policy outcome.
func (p Principal) Valid() bool {
	if p.ID == "" {
		return false
	}
	switch p.Kind {
	case KindCompany, KindClient:
		return true
	case KindStaff:
		switch p.StaffRole {
		case RoleProjectManager, RoleArchitect, RoleEngineer, RoleQuantitySurveyor:
			return true
		}
		// Staff accounts created before role assignment carry no sub-role;
		// they are still a valid identity, they just match no role grant.
		return p.StaffRole == ""
	}
	return false
}

func (r Ref) Valid() bool {
	if r.ID == "" {
		return false
	}
	switch r.Kind {
	case KindCompany, KindClient, KindStaff:
		return true
	}
	return false
}

// ParseKind validates a kind string from a request or a stored row.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCompany, KindClient, KindStaff:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown principal kind %q", s)
}

// ParseStaffRole validates a staff sub-role string. Empty is allowed.
func ParseStaffRole(s string) (StaffRole, error) {
	switch StaffRole(s) {
	case "", RoleProjectManager, RoleArchitect, RoleEngineer, RoleQuantitySurveyor:
		return StaffRole(s), nil
	}
	return "", fmt.Errorf("unknown staff role %q", s)
}
