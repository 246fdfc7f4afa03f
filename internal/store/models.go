package store

import (
	"time"

	"sitebook/api/internal/policy"
	"sitebook/api/internal/principal"
)

// Document statuses. Approved is one-way; Rejected and Archived are terminal
// except that a rejected document may be resubmitted back to draft.
const (
	StatusDraft           = "draft"
	StatusPendingApproval = "pending_approval"
	StatusApproved        = "approved"
	StatusRejected        = "rejected"
	StatusArchived        = "archived"
)

type Document struct {
	ID          string
	Name        string
	Description string
	Category    string
	Tags        []string
	ContentType string
	SizeBytes   int64
	Location    string // current object key in blob storage
	Version     int
	Owner       principal.Ref
	ProjectID   string // empty when not tied to a project
	Grant       policy.Grant
	Status      string
	ApprovedBy  *principal.Ref
	ApprovedAt  *time.Time
	Revisions   []Revision
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Policy returns the access-control facet the evaluator consumes.
func (d Document) Policy() policy.Document {
	return policy.Document{
		ID:        d.ID,
		Owner:     d.Owner,
		ProjectID: d.ProjectID,
		Grant:     d.Grant,
	}
}

// Revision is one entry of the append-only replacement history. PriorLocation
// is the object key the superseded file was moved to.
type Revision struct {
	Version       int                 `json:"version"`
	PriorLocation string              `json:"priorLocation"`
	UpdatedBy     principal.Principal `json:"updatedBy"`
	Timestamp     time.Time           `json:"timestamp"`
	Note          string              `json:"note,omitempty"`
}

type Project struct {
	ID        string
	Name      string
	CompanyID string
	ClientID  string
	Staff     []ProjectStaff
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ProjectStaff struct {
	StaffID string
	Role    principal.StaffRole
}

// Account is a sign-in identity for any of the three principal kinds.
type Account struct {
	Kind         principal.Kind
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	StaffRole    principal.StaffRole // staff accounts only
	CreatedAt    time.Time
}

func (a Account) Principal() principal.Principal {
	return principal.Principal{Kind: a.Kind, ID: a.ID, StaffRole: a.StaffRole}
}

// DocumentFilter carries the caller-supplied list filters that compose with
// the access predicate by conjunction.
type DocumentFilter struct {
	Category  string
	Tag       string
	ProjectID string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
