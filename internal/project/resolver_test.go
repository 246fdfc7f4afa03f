package project

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"sitebook/api/internal/policy"
	"sitebook/api/internal/principal"
	"sitebook/api/internal/store"
)

type fakeStore struct {
	getProjectFn         func(ctx context.Context, id string) (store.Project, error)
	listProjectIDsForFn  func(ctx context.Context, p principal.Principal) ([]string, error)
}

func (f *fakeStore) GetProject(ctx context.Context, id string) (store.Project, error) {
	return f.getProjectFn(ctx, id)
}

func (f *fakeStore) ListProjectIDsFor(ctx context.Context, p principal.Principal) ([]string, error) {
	return f.listProjectIDsForFn(ctx, p)
}

func TestMembership(t *testing.T) {
	proj := store.Project{
		ID:        "proj-1",
		CompanyID: "co-1",
		ClientID:  "cl-1",
		Staff: []store.ProjectStaff{
			{StaffID: "st-1", Role: principal.RoleProjectManager},
			{StaffID: "st-2", Role: principal.RoleEngineer},
		},
	}
	r := NewResolver(&fakeStore{
		getProjectFn: func(_ context.Context, id string) (store.Project, error) {
			if id == proj.ID {
				return proj, nil
			}
			return store.Project{}, sql.ErrNoRows
		},
	})
	ctx := context.Background()

	cases := []struct {
		name      string
		principal principal.Principal
		want      policy.Membership
	}{
		{
			name:      "owning company",
			principal: principal.Principal{Kind: principal.KindCompany, ID: "co-1"},
			want:      policy.Membership{IsOwner: true},
		},
		{
			name:      "other company",
			principal: principal.Principal{Kind: principal.KindCompany, ID: "co-2"},
			want:      policy.Membership{},
		},
		{
			name:      "project client",
			principal: principal.Principal{Kind: principal.KindClient, ID: "cl-1"},
			want:      policy.Membership{IsClient: true},
		},
		{
			name:      "assigned staff",
			principal: principal.Principal{Kind: principal.KindStaff, ID: "st-2", StaffRole: principal.RoleEngineer},
			want:      policy.Membership{IsStaff: true},
		},
		{
			name:      "unassigned staff",
			principal: principal.Principal{Kind: principal.KindStaff, ID: "st-9", StaffRole: principal.RoleArchitect},
			want:      policy.Membership{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Membership(ctx, tc.principal, "proj-1")
			if err != nil {
				t.Fatalf("Membership() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("Membership() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestMembershipMissingProject(t *testing.T) {
	r := NewResolver(&fakeStore{
		getProjectFn: func(context.Context, string) (store.Project, error) {
			return store.Project{}, sql.ErrNoRows
		},
	})
	_, err := r.Membership(context.Background(), principal.Principal{Kind: principal.KindCompany, ID: "co-1"}, "gone")
	if !errors.Is(err, policy.ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestProjectsFor(t *testing.T) {
	r := NewResolver(&fakeStore{
		listProjectIDsForFn: func(_ context.Context, p principal.Principal) ([]string, error) {
			if p.ID == "st-1" {
				return []string{"proj-1", "proj-3"}, nil
			}
			return nil, nil
		},
	})
	ids, err := r.ProjectsFor(context.Background(), principal.Principal{Kind: principal.KindStaff, ID: "st-1"})
	if err != nil {
		t.Fatalf("ProjectsFor() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "proj-1" || ids[1] != "proj-3" {
		t.Fatalf("ProjectsFor() = %v", ids)
	}
}
