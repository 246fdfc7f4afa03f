package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"sitebook/api/internal/policy"
	"sitebook/api/internal/principal"
	"sitebook/api/internal/search"
	"sitebook/api/internal/store"
	"sitebook/api/internal/util"
)

const downloadLinkTTL = 15 * time.Minute

// grant roles accepted on a document: the staff sub-roles plus the coarse
// kind literals, one shared set.
var allowedGrantRoles = map[string]struct{}{
	"company":                              {},
	"client":                               {},
	string(principal.RoleProjectManager):   {},
	string(principal.RoleArchitect):        {},
	string(principal.RoleEngineer):         {},
	string(principal.RoleQuantitySurveyor): {},
}

// forward status transitions; approval is one-way and archived is terminal.
var statusTransitions = map[string]map[string]bool{
	store.StatusDraft:           {store.StatusPendingApproval: true},
	store.StatusPendingApproval: {store.StatusApproved: true, store.StatusRejected: true, store.StatusArchived: true},
	store.StatusApproved:        {store.StatusArchived: true},
	store.StatusRejected:        {store.StatusDraft: true},
}

type CreateDocumentInput struct {
	Name        string
	Description string
	Category    string
	Tags        []string
	ProjectID   string
	Grant       policy.Grant
	ContentType string
	Size        int64
	File        io.Reader
}

type UpdateDocumentInput struct {
	Name        string
	Description string
	Category    string
	Tags        []string
}

type ReplaceFileInput struct {
	ContentType string
	Size        int64
	File        io.Reader
	Note        string
}

func validateGrant(grant policy.Grant) error {
	for _, role := range grant.Roles {
		if _, ok := allowedGrantRoles[role]; !ok {
			return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
				fmt.Sprintf("unknown grant role %q", role), nil)
		}
	}
	for _, ref := range grant.Principals {
		if !ref.Valid() {
			return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
				"grant principals need a valid kind and a non-empty id", nil)
		}
	}
	return nil
}

// requireDecision runs the policy evaluation for one action and converts a
// Deny into ErrPermissionDenied.
func (s *Service) requireDecision(ctx context.Context, session Session, doc store.Document, action policy.Action) error {
	allowed, err := s.evaluator.Evaluate(ctx, session.Principal, doc.Policy(), action)
	if err != nil {
		return fmt.Errorf("evaluate %s on %s: %w", action, doc.ID, err)
	}
	if !allowed {
		return ErrPermissionDenied
	}
	return nil
}

func currentKey(documentID string) string {
	return "documents/" + documentID + "/current"
}

func revisionKey(documentID string, version int) string {
	return fmt.Sprintf("documents/%s/v%d", documentID, version)
}

func (s *Service) CreateDocument(ctx context.Context, session Session, in CreateDocumentInput) (store.Document, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return store.Document{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if in.File == nil || in.Size <= 0 {
		return store.Document{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "a file upload is required", nil)
	}
	if err := validateGrant(in.Grant); err != nil {
		return store.Document{}, err
	}
	if in.ProjectID != "" {
		if _, err := s.store.GetProject(ctx, in.ProjectID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.Document{}, domainError(http.StatusUnprocessableEntity, "UNKNOWN_PROJECT",
					fmt.Sprintf("project %s does not exist", in.ProjectID), nil)
			}
			return store.Document{}, fmt.Errorf("resolve project %s: %w", in.ProjectID, err)
		}
	}

	documentID := util.NewID("doc")
	location := currentKey(documentID)
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.blobs.Put(ctx, location, in.File, in.Size, contentType); err != nil {
		return store.Document{}, fmt.Errorf("store document file: %w", err)
	}

	doc := store.Document{
		ID:          documentID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Tags:        in.Tags,
		ContentType: contentType,
		SizeBytes:   in.Size,
		Location:    location,
		Version:     1,
		Owner:       session.Principal.Ref(),
		ProjectID:   in.ProjectID,
		Grant:       in.Grant,
		Status:      store.StatusDraft,
	}
	if err := s.store.InsertDocument(ctx, doc); err != nil {
		if removeErr := s.blobs.Remove(ctx, location); removeErr != nil {
			log.Printf("orphaned object %s after failed insert: %v", location, removeErr)
		}
		return store.Document{}, err
	}

	created, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return store.Document{}, err
	}
	s.search.IndexDocument(searchRecord(created))
	return created, nil
}

func (s *Service) GetDocument(ctx context.Context, session Session, documentID string) (store.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return store.Document{}, err
	}
	if err := s.requireDecision(ctx, session, doc, policy.ActionView); err != nil {
		return store.Document{}, err
	}
	return doc, nil
}

// ListDocuments scans only rows the caller's access predicate admits; the
// caller filters are ANDed on top inside the store.
func (s *Service) ListDocuments(ctx context.Context, session Session, q store.DocumentFilter) ([]store.Document, int, error) {
	access, err := s.filters.BuildFilter(ctx, session.Principal)
	if err != nil {
		return nil, 0, fmt.Errorf("build access filter: %w", err)
	}
	return s.store.ListDocuments(ctx, access, q)
}

func (s *Service) UpdateDocument(ctx context.Context, session Session, documentID string, in UpdateDocumentInput) (store.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return store.Document{}, err
	}
	if err := s.requireDecision(ctx, session, doc, policy.ActionModify); err != nil {
		return store.Document{}, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return store.Document{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if err := s.store.UpdateDocumentMeta(ctx, documentID, name, strings.TrimSpace(in.Description), strings.TrimSpace(in.Category), in.Tags); err != nil {
		return store.Document{}, err
	}

	updated, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return store.Document{}, err
	}
	s.search.IndexDocument(searchRecord(updated))
	return updated, nil
}

func (s *Service) UpdateGrant(ctx context.Context, session Session, documentID string, grant policy.Grant) (store.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return store.Document{}, err
	}
	if err := s.requireDecision(ctx, session, doc, policy.ActionModify); err != nil {
		return store.Document{}, err
	}
	if err := validateGrant(grant); err != nil {
		return store.Document{}, err
	}
	if err := s.store.UpdateDocumentGrant(ctx, documentID, grant); err != nil {
		return store.Document{}, err
	}
	return s.store.GetDocument(ctx, documentID)
}

// Transition moves a document through the approval state machine. A move to
// approved records the approver and timestamp atomically with the status; the
// guarded update also rejects a transition raced by a concurrent one.
func (s *Service) Transition(ctx context.Context, session Session, documentID, toStatus string) (store.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return store.Document{}, err
	}
	if err := s.requireDecision(ctx, session, doc, policy.ActionModify); err != nil {
		return store.Document{}, err
	}

	if !statusTransitions[doc.Status][toStatus] {
		return store.Document{}, ErrInvalidTransition
	}

	var approvedBy *principal.Ref
	var approvedAt *time.Time
	if toStatus == store.StatusApproved {
		ref := session.Principal.Ref()
		now := time.Now().UTC()
		approvedBy = &ref
		approvedAt = &now
	}

	applied, err := s.store.TransitionDocumentStatus(ctx, documentID, doc.Status, toStatus, approvedBy, approvedAt)
	if err != nil {
		return store.Document{}, err
	}
	if !applied {
		return store.Document{}, ErrInvalidTransition
	}

	updated, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return store.Document{}, err
	}
	s.search.IndexDocument(searchRecord(updated))
	return updated, nil
}

// ReplaceFile uploads a new version. The superseded object is parked at a
// versioned key and the history entry referencing it is appended before the
// current file reference is swapped, so history survives a failed swap.
func (s *Service) ReplaceFile(ctx context.Context, session Session, documentID string, in ReplaceFileInput) (store.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return store.Document{}, err
	}
	if err := s.requireDecision(ctx, session, doc, policy.ActionModify); err != nil {
		return store.Document{}, err
	}
	if in.File == nil || in.Size <= 0 {
		return store.Document{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "a file upload is required", nil)
	}

	priorLocation := revisionKey(documentID, doc.Version)
	if err := s.blobs.Move(ctx, doc.Location, priorLocation); err != nil {
		return store.Document{}, fmt.Errorf("park version %d of %s: %w", doc.Version, documentID, err)
	}

	rev := store.Revision{
		Version:       doc.Version,
		PriorLocation: priorLocation,
		UpdatedBy:     session.Principal,
		Timestamp:     time.Now().UTC(),
		Note:          strings.TrimSpace(in.Note),
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.store.ReplaceDocumentFile(ctx, documentID, rev, doc.Location, contentType, in.Size); err != nil {
		return store.Document{}, err
	}
	if err := s.blobs.Put(ctx, doc.Location, in.File, in.Size, contentType); err != nil {
		return store.Document{}, fmt.Errorf("store replacement file: %w", err)
	}

	return s.store.GetDocument(ctx, documentID)
}

func (s *Service) Revisions(ctx context.Context, session Session, documentID string) ([]store.Revision, error) {
	doc, err := s.GetDocument(ctx, session, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Revisions == nil {
		return []store.Revision{}, nil
	}
	return doc.Revisions, nil
}

func (s *Service) DeleteDocument(ctx context.Context, session Session, documentID string) error {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.requireDecision(ctx, session, doc, policy.ActionDelete); err != nil {
		return err
	}

	if err := s.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	s.search.DeleteDocument(documentID)

	// Object cleanup is best-effort once the row is gone.
	if err := s.blobs.Remove(ctx, doc.Location); err != nil {
		log.Printf("remove object %s: %v", doc.Location, err)
	}
	for _, rev := range doc.Revisions {
		if err := s.blobs.Remove(ctx, rev.PriorLocation); err != nil {
			log.Printf("remove object %s: %v", rev.PriorLocation, err)
		}
	}
	return nil
}

func (s *Service) DownloadURL(ctx context.Context, session Session, documentID string) (string, error) {
	doc, err := s.GetDocument(ctx, session, documentID)
	if err != nil {
		return "", err
	}
	url, err := s.blobs.PresignGet(ctx, doc.Location, downloadLinkTTL)
	if err != nil {
		return "", fmt.Errorf("presign download for %s: %w", documentID, err)
	}
	return url, nil
}

// Search routes the query through the search backends. Hits from the external
// index carry no access information, so each one is re-checked against the
// evaluator before it is returned.
func (s *Service) Search(ctx context.Context, session Session, q search.Query) (search.Response, error) {
	access, err := s.filters.BuildFilter(ctx, session.Principal)
	if err != nil {
		return search.Response{}, fmt.Errorf("build access filter: %w", err)
	}

	resp := s.search.Search(ctx, q, access)
	if !resp.Unverified {
		return resp, nil
	}

	verified := make([]search.Result, 0, len(resp.Results))
	for _, hit := range resp.Results {
		doc, err := s.store.GetDocument(ctx, hit.ID)
		if err != nil {
			// Stale index entry.
			continue
		}
		allowed, err := s.evaluator.Evaluate(ctx, session.Principal, doc.Policy(), policy.ActionView)
		if err != nil {
			log.Printf("search: verify hit %s: %v", hit.ID, err)
			continue
		}
		if allowed {
			verified = append(verified, hit)
		}
	}
	resp.Results = verified
	resp.Total = len(verified)
	resp.Unverified = false
	return resp, nil
}

func (s *Service) ListProjects(ctx context.Context, session Session) ([]store.Project, error) {
	projects, err := s.store.ListProjectsFor(ctx, session.Principal)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []store.Project{}
	}
	return projects, nil
}

func (s *Service) GetProject(ctx context.Context, session Session, projectID string) (store.Project, error) {
	membership, err := s.projects.Membership(ctx, session.Principal, projectID)
	if err != nil {
		if errors.Is(err, policy.ErrProjectNotFound) {
			return store.Project{}, sql.ErrNoRows
		}
		return store.Project{}, err
	}
	if !membership.Any() {
		return store.Project{}, ErrPermissionDenied
	}
	return s.store.GetProject(ctx, projectID)
}

func searchRecord(doc store.Document) search.DocumentRecord {
	return search.DocumentRecord{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Category:    doc.Category,
		ProjectID:   doc.ProjectID,
		Status:      doc.Status,
	}
}
