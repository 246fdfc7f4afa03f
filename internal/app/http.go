package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sitebook/api/internal/auth"
	"sitebook/api/internal/authpw"
	"sitebook/api/internal/policy"
	"sitebook/api/internal/search"
	"sitebook/api/internal/session"
	"sitebook/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleSignIn(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		sess, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(sess))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r, sess)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/documents" {
		s.handleListDocuments(w, r, sess)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/documents" {
		s.handleCreateDocument(w, r, sess)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/projects" {
		projects, err := s.service.ListProjects(r.Context(), sess)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		payload := make([]map[string]any, 0, len(projects))
		for _, proj := range projects {
			payload = append(payload, projectPayload(proj))
		}
		writeJSON(w, http.StatusOK, map[string]any{"projects": payload})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/projects" {
		s.handleCreateProject(w, r, sess)
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "projects" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		project, err := s.service.GetProject(r.Context(), sess, parts[2])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"project": projectPayload(project)})
		return
	}

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "projects" && parts[3] == "staff" {
		if r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		s.handleAssignStaff(w, r, sess, parts[2])
		return
	}

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "documents" {
		s.handleDocument(w, r, sess, parts[2], parts)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	sess, err := s.service.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
			return
		}
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(sess))
}

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Kind      string `json:"kind"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		Name      string `json:"name"`
		StaffRole string `json:"staffRole"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	sess, err := s.service.SignUp(r.Context(), SignUpInput{
		Kind:      body.Kind,
		Email:     body.Email,
		Password:  body.Password,
		Name:      body.Name,
		StaffRole: body.StaffRole,
	})
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, sessionPayload(sess))
}

func (s *HTTPServer) handleCreateProject(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		Name     string `json:"name"`
		ClientID string `json:"clientId"`
		Staff    []struct {
			StaffID string `json:"staffId"`
			Role    string `json:"role"`
		} `json:"staff"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	in := CreateProjectInput{Name: body.Name, ClientID: body.ClientID}
	for _, member := range body.Staff {
		in.Staff = append(in.Staff, StaffAssignment{StaffID: member.StaffID, Role: member.Role})
	}
	project, err := s.service.CreateProject(r.Context(), sess, in)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"project": projectPayload(project)})
}

func (s *HTTPServer) handleAssignStaff(w http.ResponseWriter, r *http.Request, sess Session, projectID string) {
	var body struct {
		StaffID string `json:"staffId"`
		Role    string `json:"role"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	project, err := s.service.AssignStaff(r.Context(), sess, projectID, body.StaffID, body.Role)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project": projectPayload(project)})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, sess Session) {
	q := search.Query{
		Text:      strings.TrimSpace(r.URL.Query().Get("q")),
		Category:  strings.TrimSpace(r.URL.Query().Get("category")),
		ProjectID: strings.TrimSpace(r.URL.Query().Get("project")),
	}
	var err error
	if q.Limit, err = queryInt(r, "limit", 20); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if q.Offset, err = queryInt(r, "offset", 0); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	payload, err := s.service.Search(r.Context(), sess, q)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleListDocuments(w http.ResponseWriter, r *http.Request, sess Session) {
	q := store.DocumentFilter{
		Category:  strings.TrimSpace(r.URL.Query().Get("category")),
		Tag:       strings.TrimSpace(r.URL.Query().Get("tag")),
		ProjectID: strings.TrimSpace(r.URL.Query().Get("project")),
	}
	var err error
	if q.Limit, err = queryInt(r, "limit", 0); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if q.Offset, err = queryInt(r, "offset", 0); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	for name, target := range map[string]**time.Time{"from": &q.From, "to": &q.To} {
		raw := strings.TrimSpace(r.URL.Query().Get(name))
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", name+" must be an RFC 3339 timestamp", nil)
			return
		}
		*target = &parsed
	}

	documents, total, err := s.service.ListDocuments(r.Context(), sess, q)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	items := make([]map[string]any, 0, len(documents))
	for _, doc := range documents {
		items = append(items, documentPayload(doc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": items, "total": total})
}

func (s *HTTPServer) handleCreateDocument(w http.ResponseWriter, r *http.Request, sess Session) {
	in, err := decodeDocumentUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	doc, err := s.service.CreateDocument(r.Context(), sess, in)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"document": documentPayload(doc)})
}

func (s *HTTPServer) handleDocument(w http.ResponseWriter, r *http.Request, sess Session, documentID string, parts []string) {
	if len(parts) == 3 {
		switch r.Method {
		case http.MethodGet:
			doc, err := s.service.GetDocument(r.Context(), sess, documentID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"document": documentPayload(doc)})
			return
		case http.MethodPut:
			var body struct {
				Name        string   `json:"name"`
				Description string   `json:"description"`
				Category    string   `json:"category"`
				Tags        []string `json:"tags"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			doc, err := s.service.UpdateDocument(r.Context(), sess, documentID, UpdateDocumentInput{
				Name:        body.Name,
				Description: body.Description,
				Category:    body.Category,
				Tags:        body.Tags,
			})
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"document": documentPayload(doc)})
			return
		case http.MethodDelete:
			if err := s.service.DeleteDocument(r.Context(), sess, documentID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(parts) == 4 && parts[3] == "grant" && r.Method == http.MethodPut {
		var body struct {
			Grant json.RawMessage `json:"grant"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		grant, err := decodeGrant(body.Grant)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		doc, err := s.service.UpdateGrant(r.Context(), sess, documentID, grant)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"document": documentPayload(doc)})
		return
	}

	if len(parts) == 4 && parts[3] == "status" && r.Method == http.MethodPut {
		var body struct {
			Status string `json:"status"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		doc, err := s.service.Transition(r.Context(), sess, documentID, strings.TrimSpace(body.Status))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"document": documentPayload(doc)})
		return
	}

	if len(parts) == 4 && parts[3] == "file" && r.Method == http.MethodPut {
		in, err := decodeFileReplacement(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		doc, err := s.service.ReplaceFile(r.Context(), sess, documentID, in)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"document": documentPayload(doc)})
		return
	}

	if len(parts) == 4 && parts[3] == "revisions" && r.Method == http.MethodGet {
		revisions, err := s.service.Revisions(r.Context(), sess, documentID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"revisions": revisions})
		return
	}

	if len(parts) == 4 && parts[3] == "download" && r.Method == http.MethodGet {
		url, err := s.service.DownloadURL(r.Context(), sess, documentID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"url": url, "expiresIn": int(downloadLinkTTL.Seconds())})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

const maxUploadMemory = 32 << 20

func decodeDocumentUpload(r *http.Request) (CreateDocumentInput, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return CreateDocumentInput{}, fmt.Errorf("expected multipart form upload")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return CreateDocumentInput{}, fmt.Errorf("file part is required")
	}

	grant, err := decodeGrant([]byte(r.FormValue("grant")))
	if err != nil {
		return CreateDocumentInput{}, err
	}

	return CreateDocumentInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		Tags:        splitTags(r.FormValue("tags")),
		ProjectID:   strings.TrimSpace(r.FormValue("projectId")),
		Grant:       grant,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		File:        file,
	}, nil
}

func decodeFileReplacement(r *http.Request) (ReplaceFileInput, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return ReplaceFileInput{}, fmt.Errorf("expected multipart form upload")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return ReplaceFileInput{}, fmt.Errorf("file part is required")
	}
	return ReplaceFileInput{
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		File:        file,
		Note:        r.FormValue("note"),
	}, nil
}

func decodeGrant(raw []byte) (policy.Grant, error) {
	if len(raw) == 0 {
		return policy.Grant{}, nil
	}
	var grant policy.Grant
	if err := json.Unmarshal(raw, &grant); err != nil {
		return policy.Grant{}, fmt.Errorf("invalid grant JSON")
	}
	return grant, nil
}

func splitTags(raw string) []string {
	tags := make([]string, 0)
	for _, tag := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return parsed, nil
}

func sessionPayload(sess Session) map[string]any {
	return map[string]any{
		"accessToken":  sess.Token,
		"refreshToken": sess.RefreshToken,
		"principal":    sess.Principal,
		"name":         sess.Name,
		"expiresAt":    sess.ExpiresAt.Unix(),
	}
}

func documentPayload(doc store.Document) map[string]any {
	payload := map[string]any{
		"id":          doc.ID,
		"name":        doc.Name,
		"description": doc.Description,
		"category":    doc.Category,
		"tags":        doc.Tags,
		"contentType": doc.ContentType,
		"sizeBytes":   doc.SizeBytes,
		"version":     doc.Version,
		"owner":       doc.Owner,
		"accessGrant": doc.Grant,
		"status":      doc.Status,
		"createdAt":   doc.CreatedAt,
		"updatedAt":   doc.UpdatedAt,
	}
	if doc.Tags == nil {
		payload["tags"] = []string{}
	}
	if doc.ProjectID != "" {
		payload["projectId"] = doc.ProjectID
	}
	if doc.ApprovedBy != nil {
		payload["approvedBy"] = doc.ApprovedBy
		payload["approvedAt"] = doc.ApprovedAt
	}
	return payload
}

func projectPayload(proj store.Project) map[string]any {
	staff := make([]map[string]any, 0, len(proj.Staff))
	for _, member := range proj.Staff {
		staff = append(staff, map[string]any{
			"staffId": member.StaffID,
			"role":    string(member.Role),
		})
	}
	return map[string]any{
		"id":        proj.ID,
		"name":      proj.Name,
		"companyId": proj.CompanyID,
		"clientId":  proj.ClientID,
		"staff":     staff,
		"status":    proj.Status,
		"createdAt": proj.CreatedAt,
		"updatedAt": proj.UpdatedAt,
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	sess, err := s.service.SessionFromToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	return sess, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, ErrPermissionDenied) {
		return http.StatusForbidden, "FORBIDDEN", "Forbidden", nil
	}
	if errors.Is(err, ErrInvalidTransition) {
		return http.StatusConflict, "INVALID_TRANSITION", "Status transition not permitted", nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, session.ErrNotFound) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
