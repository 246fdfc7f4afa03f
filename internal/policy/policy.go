// Package policy decides document access. It contains the per-object
// evaluator and the list-time filter builder; the two must stay equivalent
// for the view action (see policy_test.go).
package policy

import (
	"context"
	"errors"
	"fmt"

	"sitebook/api/internal/principal"
)

type Action string

const (
	ActionView   Action = "view"
	ActionModify Action = "modify"
	ActionDelete Action = "delete"
)

// Grant is the access-control facet stored inline on a document. Roles holds
// grant-role strings: staff sub-roles plus the coarse "company"/"client"
// kind literals, all in the same set (preserved source behavior).
type Grant struct {
	Public     bool            `json:"isPublic"`
	Roles      []string        `json:"allowedRoles"`
	Principals []principal.Ref `json:"allowedPrincipals"`
}

// HasRole reports whether role appears in the allowed-roles set.
func (g Grant) HasRole(role string) bool {
	if role == "" {
		return false
	}
	for _, r := range g.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPrincipal reports whether the (kind, id) pair appears in the explicit
// principal grants.
func (g Grant) HasPrincipal(ref principal.Ref) bool {
	for _, r := range g.Principals {
		if r == ref {
			return true
		}
	}
	return false
}

// Document is the facet of a stored document the evaluator needs. ProjectID
// is empty for documents not tied to a project.
type Document struct {
	ID        string
	Owner     principal.Ref
	ProjectID string
	Grant     Grant
}

// Membership is a principal's relationship to one project.
type Membership struct {
	IsOwner  bool // the project's owning company
	IsClient bool
	IsStaff  bool // listed in the project's staff set
}

func (m Membership) Any() bool {
	return m.IsOwner || m.IsClient || m.IsStaff
}

// ErrProjectNotFound is returned by a MembershipResolver when the project id
// does not resolve. The evaluator treats it as a non-matching rule, never as
// a failure of the permission check.
var ErrProjectNotFound = errors.New("project not found")

// MembershipResolver answers project-relationship questions. Implementations
// read committed project state and perform no mutation.
type MembershipResolver interface {
	// Membership resolves the principal's relationship to one project, or
	// ErrProjectNotFound.
	Membership(ctx context.Context, p principal.Principal, projectID string) (Membership, error)
	// ProjectsFor returns every project id where the principal is the owning
	// company, the client, or an assigned staff member.
	ProjectsFor(ctx context.Context, p principal.Principal) ([]string, error)
}

// Evaluator makes per-object access decisions. It is stateless apart from the
// injected resolver and safe for concurrent use.
type Evaluator struct {
	projects MembershipResolver
}

func NewEvaluator(projects MembershipResolver) *Evaluator {
	return &Evaluator{projects: projects}
}

// Evaluate decides whether p may perform action on doc. Rules are checked in
// strict priority order; the first match wins. A non-nil error means the
// stored document violates an invariant (malformed owner), not that access
// was denied.
func (e *Evaluator) Evaluate(ctx context.Context, p principal.Principal, doc Document, action Action) (bool, error) {
	if !doc.Owner.Valid() {
		return false, fmt.Errorf("document %s: malformed owner %q/%q", doc.ID, doc.Owner.Kind, doc.Owner.ID)
	}
	switch action {
	case ActionView, ActionModify, ActionDelete:
	default:
		return false, fmt.Errorf("unknown action %q", action)
	}

	// Rule 1: the owner may always do everything, regardless of the grant.
	if p.Is(doc.Owner) {
		return true, nil
	}

	if action == ActionView {
		// Rule 2: public documents are viewable by anyone.
		if doc.Grant.Public {
			return true, nil
		}
		// Rule 3: role grant. Staff match their sub-role; company and client
		// match their kind literal in the same set.
		if doc.Grant.HasRole(p.GrantRole()) {
			return true, nil
		}
		// Rule 4: explicit principal grant.
		if doc.Grant.HasPrincipal(p.Ref()) {
			return true, nil
		}
	}

	// Rule 5: project-derived authority.
	if doc.ProjectID == "" {
		return false, nil
	}
	m, err := e.projects.Membership(ctx, p, doc.ProjectID)
	if err != nil {
		// A dangling project reference must neither crash the check nor
		// grant access.
		if errors.Is(err, ErrProjectNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("resolve project %s: %w", doc.ProjectID, err)
	}

	switch action {
	case ActionView:
		return m.Any(), nil
	case ActionModify:
		if m.IsOwner {
			return true, nil
		}
		return m.IsStaff && p.StaffRole == principal.RoleProjectManager, nil
	case ActionDelete:
		// Staff, project managers included, may not delete via the project.
		return m.IsOwner, nil
	}
	return false, nil
}
