// Package project resolves principal-to-project relationships for the policy
// engine. It is a pure read layer over the project store.
package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sitebook/api/internal/policy"
	"sitebook/api/internal/principal"
	"sitebook/api/internal/store"
)

// Store is the slice of the persistence layer the resolver reads.
type Store interface {
	GetProject(ctx context.Context, projectID string) (store.Project, error)
	ListProjectIDsFor(ctx context.Context, p principal.Principal) ([]string, error)
}

// Resolver implements policy.MembershipResolver against the store.
type Resolver struct {
	store Store
}

func NewResolver(s Store) *Resolver {
	return &Resolver{store: s}
}

// Membership resolves the principal's relationship to one project. A missing
// project is reported as policy.ErrProjectNotFound, never as a raw store
// error, so the evaluator can treat it as a non-matching rule.
func (r *Resolver) Membership(ctx context.Context, p principal.Principal, projectID string) (policy.Membership, error) {
	proj, err := r.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return policy.Membership{}, policy.ErrProjectNotFound
		}
		return policy.Membership{}, fmt.Errorf("get project %s: %w", projectID, err)
	}

	m := policy.Membership{}
	switch p.Kind {
	case principal.KindCompany:
		m.IsOwner = p.ID == proj.CompanyID
	case principal.KindClient:
		m.IsClient = p.ID == proj.ClientID
	case principal.KindStaff:
		for _, member := range proj.Staff {
			if member.StaffID == p.ID {
				m.IsStaff = true
				break
			}
		}
	}
	return m, nil
}

// ProjectsFor returns the principal's full project set, resolved once per
// request for the list predicate.
func (r *Resolver) ProjectsFor(ctx context.Context, p principal.Principal) ([]string, error) {
	ids, err := r.store.ListProjectIDsFor(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return ids, nil
}
