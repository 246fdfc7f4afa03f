package app

import (
	"context"
	"fmt"
	"net/http"

	"sitebook/api/internal/principal"
	"sitebook/api/internal/store"
	"sitebook/api/internal/util"
)

type CreateProjectInput struct {
	Name     string
	ClientID string
	Staff    []StaffAssignment
}

type StaffAssignment struct {
	StaffID string
	Role    string
}

// CreateProject opens a project owned by the calling company. Only company
// principals create projects; staff are attached with their per-project roles.
func (s *Service) CreateProject(ctx context.Context, session Session, in CreateProjectInput) (store.Project, error) {
	if session.Principal.Kind != principal.KindCompany {
		return store.Project{}, ErrPermissionDenied
	}
	if in.Name == "" {
		return store.Project{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	proj := store.Project{
		ID:        util.NewID("proj"),
		Name:      in.Name,
		CompanyID: session.Principal.ID,
		ClientID:  in.ClientID,
		Status:    "active",
	}
	for _, member := range in.Staff {
		role, err := principal.ParseStaffRole(member.Role)
		if err != nil || role == "" {
			return store.Project{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
				"unknown staff role", map[string]any{"staffId": member.StaffID, "role": member.Role})
		}
		proj.Staff = append(proj.Staff, store.ProjectStaff{StaffID: member.StaffID, Role: role})
	}

	if err := s.store.InsertProject(ctx, proj); err != nil {
		return store.Project{}, fmt.Errorf("create project: %w", err)
	}
	return s.store.GetProject(ctx, proj.ID)
}

// AssignStaff adds or re-roles a staff member on a project. Only the owning
// company may change the roster.
func (s *Service) AssignStaff(ctx context.Context, session Session, projectID, staffID, roleName string) (store.Project, error) {
	proj, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return store.Project{}, err
	}
	if session.Principal.Kind != principal.KindCompany || session.Principal.ID != proj.CompanyID {
		return store.Project{}, ErrPermissionDenied
	}

	if staffID == "" {
		return store.Project{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "staffId is required", nil)
	}
	role, err := principal.ParseStaffRole(roleName)
	if err != nil || role == "" {
		return store.Project{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			"unknown staff role", map[string]any{"role": roleName})
	}

	if err := s.store.AssignProjectStaff(ctx, projectID, staffID, role); err != nil {
		return store.Project{}, fmt.Errorf("assign staff: %w", err)
	}
	return s.store.GetProject(ctx, projectID)
}
