package app

import (
	"context"
	"io"
	"net/http"
	"time"

	"sitebook/api/internal/auth"
	"sitebook/api/internal/config"
	"sitebook/api/internal/policy"
	"sitebook/api/internal/principal"
	"sitebook/api/internal/search"
	"sitebook/api/internal/store"
	"sitebook/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	Principal    principal.Principal
	Name         string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	InsertDocument(context.Context, store.Document) error
	GetDocument(context.Context, string) (store.Document, error)
	ListDocuments(context.Context, policy.Filter, store.DocumentFilter) ([]store.Document, int, error)
	UpdateDocumentMeta(ctx context.Context, documentID, name, description, category string, tags []string) error
	UpdateDocumentGrant(context.Context, string, policy.Grant) error
	TransitionDocumentStatus(ctx context.Context, documentID, fromStatus, toStatus string, approvedBy *principal.Ref, approvedAt *time.Time) (bool, error)
	ReplaceDocumentFile(ctx context.Context, documentID string, rev store.Revision, newLocation, contentType string, sizeBytes int64) error
	DeleteDocument(context.Context, string) error
	GetProject(context.Context, string) (store.Project, error)
	ListProjectsFor(context.Context, principal.Principal) ([]store.Project, error)
	InsertProject(context.Context, store.Project) error
	AssignProjectStaff(ctx context.Context, projectID, staffID string, role principal.StaffRole) error
	Ping(ctx context.Context) error
}

// sessionStore is satisfied by both the Redis store and the Postgres fallback.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, p principal.Principal, name string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (principal.Principal, string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type blobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Move(ctx context.Context, srcKey, dstKey string) error
	Remove(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type searcher interface {
	Search(ctx context.Context, q search.Query, access policy.Filter) search.Response
	IndexDocument(doc search.DocumentRecord)
	DeleteDocument(id string)
}

type passwordAuth interface {
	SignIn(ctx context.Context, email, password string) (store.Account, error)
	Register(ctx context.Context, account store.Account, password string) error
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	blobs     blobStore
	search    searcher
	passwords passwordAuth
	evaluator *policy.Evaluator
	filters   *policy.Builder
	projects  policy.MembershipResolver
}

func New(cfg config.Config, dataStore dataStore, sessions sessionStore, blobs blobStore, searchSvc searcher, passwords passwordAuth, projects policy.MembershipResolver) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  sessions,
		blobs:     blobs,
		search:    searchSvc,
		passwords: passwords,
		evaluator: policy.NewEvaluator(projects),
		filters:   policy.NewBuilder(projects),
		projects:  projects,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	account, err := s.passwords.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, account.Principal(), account.DisplayName)
}

type SignUpInput struct {
	Kind      string
	Email     string
	Password  string
	Name      string
	StaffRole string
}

// SignUp registers an account and signs it in. The staff role is fixed at
// registration; company and client accounts must not carry one.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (Session, error) {
	kind, err := principal.ParseKind(in.Kind)
	if err != nil {
		return Session{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unknown account kind", map[string]any{"kind": in.Kind})
	}
	if in.Email == "" || len(in.Password) < 8 {
		return Session{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Email and a password of at least 8 characters are required", nil)
	}

	account := store.Account{
		Kind:        kind,
		Email:       in.Email,
		DisplayName: in.Name,
	}
	switch kind {
	case principal.KindCompany:
		account.ID = util.NewID("co")
	case principal.KindClient:
		account.ID = util.NewID("cl")
	case principal.KindStaff:
		role, err := principal.ParseStaffRole(in.StaffRole)
		if err != nil {
			return Session{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unknown staff role", map[string]any{"staffRole": in.StaffRole})
		}
		account.ID = util.NewID("st")
		account.StaffRole = role
	}
	if kind != principal.KindStaff && in.StaffRole != "" {
		return Session{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Only staff accounts carry a staff role", nil)
	}

	if err := s.passwords.Register(ctx, account, in.Password); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, account.Principal(), account.DisplayName)
}

// Refresh rotates the refresh token: the presented one is revoked and a fresh
// pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	p, name, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, p, name)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

func (s *Service) issueSession(ctx context.Context, p principal.Principal, name string) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:       p.ID,
		Name:      name,
		Kind:      string(p.Kind),
		StaffRole: string(p.StaffRole),
		JTI:       jti,
		Exp:       expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), p, name, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		Principal:    p,
		Name:         name,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}

	kind, err := principal.ParseKind(claims.Kind)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}
	p := principal.Principal{Kind: kind, ID: claims.Sub}
	if claims.StaffRole != "" {
		role, err := principal.ParseStaffRole(claims.StaffRole)
		if err != nil {
			return Session{}, auth.ErrInvalidToken
		}
		p.StaffRole = role
	}

	return Session{
		Token:     token,
		Principal: p,
		Name:      claims.Name,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}
