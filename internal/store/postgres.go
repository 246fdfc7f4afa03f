package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sitebook/api/internal/policy"
	"sitebook/api/internal/principal"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ============================================================================
// Documents
// ============================================================================

const documentColumns = `
	id, name, description, category, tags, content_type, size_bytes, location,
	version, owner_kind, owner_id, COALESCE(project_id, ''), access_grant,
	status, approved_by, approved_at, revision_history, created_at, updated_at
`

func encodeGrant(grant policy.Grant) ([]byte, error) {
	// Empty sets marshal as [], not null, so the JSONB operators in the list
	// predicate behave.
	if grant.Roles == nil {
		grant.Roles = []string{}
	}
	if grant.Principals == nil {
		grant.Principals = []principal.Ref{}
	}
	return json.Marshal(grant)
}

func (s *PostgresStore) InsertDocument(ctx context.Context, doc Document) error {
	grantJSON, err := encodeGrant(doc.Grant)
	if err != nil {
		return fmt.Errorf("encode access grant: %w", err)
	}
	tagsJSON, err := json.Marshal(append([]string{}, doc.Tags...))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (
			id, name, description, category, tags, content_type, size_bytes,
			location, version, owner_kind, owner_id, project_id, access_grant,
			status, revision_history
		)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13::jsonb, $14, '[]'::jsonb)
	`, doc.ID, doc.Name, doc.Description, doc.Category, string(tagsJSON),
		doc.ContentType, doc.SizeBytes, doc.Location, doc.Version,
		string(doc.Owner.Kind), doc.Owner.ID, doc.ProjectID, string(grantJSON), doc.Status)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func scanDocument(scan func(dest ...any) error) (Document, error) {
	var (
		doc          Document
		ownerKind    string
		tagsRaw      []byte
		grantRaw     []byte
		approvedRaw  []byte
		revisionsRaw []byte
	)
	err := scan(
		&doc.ID, &doc.Name, &doc.Description, &doc.Category, &tagsRaw,
		&doc.ContentType, &doc.SizeBytes, &doc.Location, &doc.Version,
		&ownerKind, &doc.Owner.ID, &doc.ProjectID, &grantRaw,
		&doc.Status, &approvedRaw, &doc.ApprovedAt, &revisionsRaw,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return Document{}, err
	}
	doc.Owner.Kind = principal.Kind(ownerKind)
	_ = json.Unmarshal(tagsRaw, &doc.Tags)
	if err := json.Unmarshal(grantRaw, &doc.Grant); err != nil {
		return Document{}, fmt.Errorf("decode access grant for %s: %w", doc.ID, err)
	}
	if len(approvedRaw) > 0 {
		var ref principal.Ref
		if err := json.Unmarshal(approvedRaw, &ref); err == nil && ref.ID != "" {
			doc.ApprovedBy = &ref
		}
	}
	_ = json.Unmarshal(revisionsRaw, &doc.Revisions)
	return doc, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, documentID)
	return scanDocument(row.Scan)
}

// ListDocuments restricts a paginated scan with the access filter ANDed with
// the caller's category/tag/project/date filters, and returns the page plus
// the total match count.
func (s *PostgresStore) ListDocuments(ctx context.Context, access policy.Filter, q DocumentFilter) ([]Document, int, error) {
	where, args := access.SQL(1)
	conditions := []string{where}
	argN := len(args) + 1

	if q.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argN))
		args = append(args, q.Category)
		argN++
	}
	if q.Tag != "" {
		conditions = append(conditions, fmt.Sprintf("tags ? $%d", argN))
		args = append(args, q.Tag)
		argN++
	}
	if q.ProjectID != "" {
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", argN))
		args = append(args, q.ProjectID)
		argN++
	}
	if q.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argN))
		args = append(args, *q.From)
		argN++
	}
	if q.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argN))
		args = append(args, *q.To)
		argN++
	}

	whereClause := strings.Join(conditions, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM documents WHERE ` + whereClause
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	pageArgs := append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT %s FROM documents
		WHERE %s
		ORDER BY updated_at DESC
		LIMIT $%d OFFSET $%d
	`, documentColumns, whereClause, argN, argN+1)

	rows, err := s.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate documents: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) UpdateDocumentMeta(ctx context.Context, documentID, name, description, category string, tags []string) error {
	tagsJSON, err := json.Marshal(append([]string{}, tags...))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE documents
		SET name=$2, description=$3, category=$4, tags=$5::jsonb, updated_at=NOW()
		WHERE id=$1
	`, documentID, name, description, category, string(tagsJSON))
	if err != nil {
		return fmt.Errorf("update document meta: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateDocumentGrant(ctx context.Context, documentID string, grant policy.Grant) error {
	grantJSON, err := encodeGrant(grant)
	if err != nil {
		return fmt.Errorf("encode access grant: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE documents SET access_grant=$2::jsonb, updated_at=NOW() WHERE id=$1
	`, documentID, string(grantJSON))
	if err != nil {
		return fmt.Errorf("update document grant: %w", err)
	}
	return nil
}

// TransitionDocumentStatus applies a status change guarded by the expected
// current status, recording the approver atomically with the change. The
// false return means the document was not in fromStatus anymore.
func (s *PostgresStore) TransitionDocumentStatus(ctx context.Context, documentID, fromStatus, toStatus string, approvedBy *principal.Ref, approvedAt *time.Time) (bool, error) {
	var approvedJSON any
	if approvedBy != nil {
		encoded, err := json.Marshal(approvedBy)
		if err != nil {
			return false, fmt.Errorf("encode approver: %w", err)
		}
		approvedJSON = string(encoded)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET status=$3,
			approved_by=COALESCE($4::jsonb, approved_by),
			approved_at=COALESCE($5, approved_at),
			updated_at=NOW()
		WHERE id=$1 AND status=$2
	`, documentID, fromStatus, toStatus, approvedJSON, approvedAt)
	if err != nil {
		return false, fmt.Errorf("transition document status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition rows affected: %w", err)
	}
	return affected == 1, nil
}

// ReplaceDocumentFile appends the revision entry and swaps the current file
// reference in one transaction, history first.
func (s *PostgresStore) ReplaceDocumentFile(ctx context.Context, documentID string, rev Revision, newLocation, contentType string, sizeBytes int64) error {
	revJSON, err := json.Marshal(rev)
	if err != nil {
		return fmt.Errorf("encode revision: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE documents
		SET revision_history = revision_history || $2::jsonb
		WHERE id=$1
	`, documentID, string(revJSON)); err != nil {
		return fmt.Errorf("append revision: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE documents
		SET location=$2, content_type=$3, size_bytes=$4, version=version+1, updated_at=NOW()
		WHERE id=$1
	`, documentID, newLocation, contentType, sizeBytes); err != nil {
		return fmt.Errorf("swap file reference: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// ============================================================================
// Projects
// ============================================================================

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	var proj Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, company_id, client_id, status, created_at, updated_at
		FROM projects WHERE id=$1
	`, projectID).Scan(&proj.ID, &proj.Name, &proj.CompanyID, &proj.ClientID,
		&proj.Status, &proj.CreatedAt, &proj.UpdatedAt)
	if err != nil {
		return Project{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT staff_id, role FROM project_staff WHERE project_id=$1 ORDER BY assigned_at
	`, projectID)
	if err != nil {
		return Project{}, fmt.Errorf("list project staff: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var member ProjectStaff
		var role string
		if err := rows.Scan(&member.StaffID, &role); err != nil {
			return Project{}, fmt.Errorf("scan project staff: %w", err)
		}
		member.Role = principal.StaffRole(role)
		proj.Staff = append(proj.Staff, member)
	}
	if err := rows.Err(); err != nil {
		return Project{}, fmt.Errorf("iterate project staff: %w", err)
	}
	return proj, nil
}

// ListProjectIDsFor returns every project where the principal is the owning
// company, the client, or assigned staff. This is the one pre-resolved lookup
// behind the list predicate's project clause.
func (s *PostgresStore) ListProjectIDsFor(ctx context.Context, p principal.Principal) ([]string, error) {
	var query string
	switch p.Kind {
	case principal.KindCompany:
		query = `SELECT id FROM projects WHERE company_id=$1`
	case principal.KindClient:
		query = `SELECT id FROM projects WHERE client_id=$1`
	case principal.KindStaff:
		query = `SELECT project_id FROM project_staff WHERE staff_id=$1`
	default:
		return nil, fmt.Errorf("unknown principal kind %q", p.Kind)
	}

	rows, err := s.db.QueryContext(ctx, query, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list projects for %s: %w", p, err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan project id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project ids: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) ListProjectsFor(ctx context.Context, p principal.Principal) ([]Project, error) {
	ids, err := s.ListProjectIDsFor(ctx, p)
	if err != nil {
		return nil, err
	}
	projects := make([]Project, 0, len(ids))
	for _, id := range ids {
		proj, err := s.GetProject(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get project %s: %w", id, err)
		}
		projects = append(projects, proj)
	}
	return projects, nil
}

func (s *PostgresStore) InsertProject(ctx context.Context, proj Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, company_id, client_id, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, proj.ID, proj.Name, proj.CompanyID, proj.ClientID, proj.Status)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	for _, member := range proj.Staff {
		if err := s.AssignProjectStaff(ctx, proj.ID, member.StaffID, member.Role); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) AssignProjectStaff(ctx context.Context, projectID, staffID string, role principal.StaffRole) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_staff (project_id, staff_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, staff_id) DO UPDATE SET role=EXCLUDED.role
	`, projectID, staffID, string(role))
	if err != nil {
		return fmt.Errorf("assign project staff: %w", err)
	}
	return nil
}

// ============================================================================
// Accounts
// ============================================================================

func (s *PostgresStore) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	var account Account
	var kind, staffRole string
	err := s.db.QueryRowContext(ctx, `
		SELECT kind, id, email, display_name, password_hash, COALESCE(staff_role, ''), created_at
		FROM accounts WHERE email=$1
	`, email).Scan(&kind, &account.ID, &account.Email, &account.DisplayName,
		&account.PasswordHash, &staffRole, &account.CreatedAt)
	if err != nil {
		return Account{}, err
	}
	account.Kind = principal.Kind(kind)
	account.StaffRole = principal.StaffRole(staffRole)
	return account, nil
}

func (s *PostgresStore) CreateAccount(ctx context.Context, account Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (kind, id, email, display_name, password_hash, staff_role)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		ON CONFLICT (kind, id) DO NOTHING
	`, string(account.Kind), account.ID, account.Email, account.DisplayName,
		account.PasswordHash, string(account.StaffRole))
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// ============================================================================
// Refresh sessions (Postgres fallback when Redis is not configured)
// ============================================================================

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash string, p principal.Principal, name string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, principal_kind, principal_id, staff_role, display_name, expires_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		ON CONFLICT (token_hash) DO UPDATE
		SET principal_kind=EXCLUDED.principal_kind, principal_id=EXCLUDED.principal_id,
			staff_role=EXCLUDED.staff_role, display_name=EXCLUDED.display_name,
			expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, string(p.Kind), p.ID, string(p.StaffRole), name, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (principal.Principal, string, error) {
	var kind, id, staffRole, name string
	err := s.db.QueryRowContext(ctx, `
		SELECT principal_kind, principal_id, COALESCE(staff_role, ''), display_name
		FROM refresh_sessions
		WHERE token_hash=$1 AND revoked_at IS NULL AND expires_at > NOW()
	`, tokenHash).Scan(&kind, &id, &staffRole, &name)
	if err != nil {
		return principal.Principal{}, "", err
	}
	return principal.Principal{
		Kind:      principal.Kind(kind),
		ID:        id,
		StaffRole: principal.StaffRole(staffRole),
	}, name, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}
