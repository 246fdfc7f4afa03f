package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sitebook/api/internal/authpw"
	"sitebook/api/internal/policy"
	"sitebook/api/internal/principal"
	"sitebook/api/internal/store"
)

func newTestServer(t *testing.T, data *fakeData) (*testEnv, http.Handler) {
	t.Helper()
	env := newTestEnv(data, siteProjects())
	return env, NewHTTPServer(env.service, "*").Handler()
}

func issueToken(t *testing.T, env *testEnv, sess Session) string {
	t.Helper()
	issued, err := env.service.issueSession(context.Background(), sess.Principal, sess.Name)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return issued.Token
}

func doJSON(handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	_, handler := newTestServer(t, &fakeData{})
	rec := doJSON(handler, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if payload := decodeResponse(t, rec); payload["ok"] != true {
		t.Fatalf("payload = %v", payload)
	}
}

func TestDocumentsRequireSession(t *testing.T) {
	_, handler := newTestServer(t, &fakeData{})

	rec := doJSON(handler, http.MethodGet, "/api/documents", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}

	rec = doJSON(handler, http.MethodGet, "/api/documents", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status = %d, want 401", rec.Code)
	}
}

func TestSignInEndpoint(t *testing.T) {
	env, handler := newTestServer(t, &fakeData{})
	env.passwords.signInFn = func(_ context.Context, email, password string) (store.Account, error) {
		if email == "priya@harlow.build" && password == "correct horse" {
			return store.Account{Kind: principal.KindStaff, ID: "st-pm", DisplayName: "Priya", StaffRole: principal.RoleProjectManager}, nil
		}
		return store.Account{}, authpw.ErrInvalidCredentials
	}

	rec := doJSON(handler, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email": "priya@harlow.build", "password": "correct horse",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	if payload["accessToken"] == "" || payload["refreshToken"] == "" {
		t.Fatalf("payload = %v", payload)
	}

	rec = doJSON(handler, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email": "priya@harlow.build", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: status = %d, want 401", rec.Code)
	}
	if payload := decodeResponse(t, rec); payload["code"] != "INVALID_CREDENTIALS" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestGetDocumentForbiddenForOutsider(t *testing.T) {
	data := &fakeData{
		getDocumentFn: func(context.Context, string) (store.Document, error) {
			return projectDocument(store.StatusDraft), nil
		},
	}
	env, handler := newTestServer(t, data)
	outsider := Session{Principal: principal.Principal{Kind: principal.KindClient, ID: "cl-9"}, Name: "Elsewhere"}
	token := issueToken(t, env, outsider)

	rec := doJSON(handler, http.MethodGet, "/api/documents/doc-1", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if payload := decodeResponse(t, rec); payload["code"] != "FORBIDDEN" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestGetDocumentPayload(t *testing.T) {
	data := &fakeData{
		getDocumentFn: func(context.Context, string) (store.Document, error) {
			return projectDocument(store.StatusDraft), nil
		},
	}
	env, handler := newTestServer(t, data)
	token := issueToken(t, env, clientSession)

	rec := doJSON(handler, http.MethodGet, "/api/documents/doc-1", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	doc, ok := payload["document"].(map[string]any)
	if !ok {
		t.Fatalf("payload = %v", payload)
	}
	if doc["id"] != "doc-1" || doc["status"] != store.StatusDraft || doc["projectId"] != "proj-1" {
		t.Fatalf("document = %v", doc)
	}
	owner, ok := doc["owner"].(map[string]any)
	if !ok || owner["kind"] != "company" || owner["id"] != "co-1" {
		t.Fatalf("owner = %v", doc["owner"])
	}
}

func TestStatusTransitionConflict(t *testing.T) {
	data := &fakeData{
		getDocumentFn: func(context.Context, string) (store.Document, error) {
			return projectDocument(store.StatusArchived), nil
		},
	}
	env, handler := newTestServer(t, data)
	token := issueToken(t, env, companySession)

	rec := doJSON(handler, http.MethodPut, "/api/documents/doc-1/status", token, map[string]string{"status": store.StatusApproved})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if payload := decodeResponse(t, rec); payload["code"] != "INVALID_TRANSITION" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestMissingDocumentIs404(t *testing.T) {
	env, handler := newTestServer(t, &fakeData{})
	token := issueToken(t, env, companySession)

	rec := doJSON(handler, http.MethodGet, "/api/documents/doc-404", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListDocumentsValidation(t *testing.T) {
	env, handler := newTestServer(t, &fakeData{})
	token := issueToken(t, env, companySession)

	rec := doJSON(handler, http.MethodGet, "/api/documents?limit=ten", token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad limit: status = %d, want 422", rec.Code)
	}
	rec = doJSON(handler, http.MethodGet, "/api/documents?from=yesterday", token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad from: status = %d, want 422", rec.Code)
	}
}

func TestUpdateGrantEndpoint(t *testing.T) {
	var gotGrant string
	data := &fakeData{
		getDocumentFn: func(context.Context, string) (store.Document, error) {
			return projectDocument(store.StatusDraft), nil
		},
		updateGrantFn: func(_ context.Context, _ string, grant policy.Grant) error {
			encoded, _ := json.Marshal(grant)
			gotGrant = string(encoded)
			return nil
		},
	}
	env, handler := newTestServer(t, data)
	token := issueToken(t, env, companySession)

	body := map[string]any{"grant": map[string]any{
		"isPublic":     false,
		"allowedRoles": []string{"engineer"},
	}}
	rec := doJSON(handler, http.MethodPut, "/api/documents/doc-1/grant", token, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(gotGrant, `"allowedRoles":["engineer"]`) {
		t.Fatalf("stored grant = %s", gotGrant)
	}
}

func TestRefreshAndLogoutEndpoints(t *testing.T) {
	env, handler := newTestServer(t, &fakeData{})
	issued, err := env.service.issueSession(context.Background(), companySession.Principal, companySession.Name)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	rec := doJSON(handler, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": issued.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: status = %d", rec.Code)
	}
	payload := decodeResponse(t, rec)
	rotated, _ := payload["refreshToken"].(string)
	if rotated == "" || rotated == issued.RefreshToken {
		t.Fatalf("refresh token not rotated: %v", payload)
	}

	rec = doJSON(handler, http.MethodPost, "/api/auth/logout", "", map[string]string{"refreshToken": rotated})
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: status = %d", rec.Code)
	}
	rec = doJSON(handler, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": rotated})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked refresh: status = %d, want 401", rec.Code)
	}
}

func TestSignUpEndpoint(t *testing.T) {
	env, handler := newTestServer(t, &fakeData{})

	rec := doJSON(handler, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"kind": "company", "email": "office@harlow.build", "password": "correct horse battery", "name": "Harlow Build Co",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	if payload["accessToken"] == "" || payload["refreshToken"] == "" {
		t.Fatalf("payload = %v", payload)
	}
	if len(env.passwords.registered) != 1 || env.passwords.registered[0].Kind != principal.KindCompany {
		t.Fatalf("registered = %+v", env.passwords.registered)
	}

	rec = doJSON(handler, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"kind": "vendor", "email": "x@y.test", "password": "correct horse battery",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown kind: status = %d, want 422", rec.Code)
	}
}

func TestProjectAdminEndpoints(t *testing.T) {
	var inserted store.Project
	data := &fakeData{
		insertProjectFn: func(_ context.Context, proj store.Project) error {
			inserted = proj
			return nil
		},
		getProjectFn: func(_ context.Context, id string) (store.Project, error) {
			if id == inserted.ID {
				return inserted, nil
			}
			return store.Project{ID: id, Name: "Meadow Rise", CompanyID: "co-1", ClientID: "cl-1"}, nil
		},
	}
	env, handler := newTestServer(t, data)
	companyToken := issueToken(t, env, companySession)
	staffToken := issueToken(t, env, pmSession)

	rec := doJSON(handler, http.MethodPost, "/api/projects", companyToken, map[string]any{
		"name": "Meadow Rise Phase 2", "clientId": "cl-1",
		"staff": []map[string]string{{"staffId": "st-pm", "role": "project_manager"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	project, _ := payload["project"].(map[string]any)
	if project["companyId"] != "co-1" || project["status"] != "active" {
		t.Fatalf("project = %v", project)
	}

	rec = doJSON(handler, http.MethodPost, "/api/projects", staffToken, map[string]any{"name": "Side project"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("staff create: status = %d, want 403", rec.Code)
	}

	rec = doJSON(handler, http.MethodPut, "/api/projects/proj-1/staff", companyToken, map[string]string{
		"staffId": "st-qs", "role": "quantity_surveyor",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign: status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(handler, http.MethodPut, "/api/projects/proj-1/staff", staffToken, map[string]string{
		"staffId": "st-qs", "role": "engineer",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("staff assign: status = %d, want 403", rec.Code)
	}
}
