// Package httpapi exposes the service surface over HTTP. It is a thin layer:
// handlers decode, delegate, and map errors; all business rules live in the
// services.
package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/custodialabs/custodia/internal/audit"
	"github.com/custodialabs/custodia/internal/errs"
	"github.com/custodialabs/custodia/internal/forensic"
	"github.com/custodialabs/custodia/internal/model"
	"github.com/custodialabs/custodia/internal/service"
)

// maxUploadBytes caps a single evidence upload.
const maxUploadBytes = 4 << 30

// cookieName carries the session token for the admin/report surface.
const cookieName = "access_token"

// Server wires services into HTTP handlers.
type Server struct {
	auth      service.AuthService
	cases     service.CaseService
	jobs      service.JobService
	auditor   *audit.Recorder
	registry  *forensic.Registry
	log       *zap.Logger
	maxUpload int64
}

// New constructs the API server with injected services.
func New(
	auth service.AuthService,
	cases service.CaseService,
	jobs service.JobService,
	auditor *audit.Recorder,
	registry *forensic.Registry,
	log *zap.Logger,
) *Server {
	return &Server{
		auth:      auth,
		cases:     cases,
		jobs:      jobs,
		auditor:   auditor,
		registry:  registry,
		log:       log,
		maxUpload: maxUploadBytes,
	}
}

// Handler returns the routed handler with middleware applied. Evidentiary
// routes sit behind both the credential check and the acknowledgment gate.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/token", s.handleLogin)
	mux.HandleFunc("GET /auth/ack/status", s.handleAckStatus)
	mux.Handle("POST /auth/ack", s.requireUser(s.handleAck))
	mux.Handle("POST /auth/logout", s.requireUser(s.handleLogout))
	mux.Handle("GET /auth/me", s.requireUser(s.handleMe))

	mux.Handle("GET /modules", s.requireUser(s.handleModules))

	mux.Handle("POST /cases", s.evidentiary(s.handleCreateCase))
	mux.Handle("GET /cases", s.evidentiary(s.handleListCases))
	mux.Handle("GET /cases/{id}", s.evidentiary(s.handleGetCase))
	mux.Handle("POST /cases/{id}/evidence", s.evidentiary(s.handleIngest))
	mux.Handle("GET /cases/{id}/evidence", s.evidentiary(s.handleListEvidence))
	mux.Handle("POST /evidence/{id}/verify", s.evidentiary(s.handleVerify))

	mux.Handle("POST /jobs", s.evidentiary(s.handleSubmitJob))
	mux.Handle("GET /jobs", s.evidentiary(s.handleListJobs))
	mux.Handle("GET /jobs/{id}", s.evidentiary(s.handleGetJob))

	mux.Handle("GET /audit", s.evidentiary(s.handleAudit))

	return s.recoverMW(s.loggingMW(mux))
}

// --- auth ---

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	tokens, _, err := s.auth.Login(r.Context(), req.Username, req.Password, clientOrigin(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Same token as a browser cookie for the admin/report surface.
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    tokens.AccessToken,
		Path:     "/",
		Expires:  tokens.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": tokens.AccessToken,
		"token_type":   "bearer",
		"expires_at":   tokens.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout(r.Context(), userFrom(r.Context()), clientOrigin(r))
	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"username": u.Username,
		"role":     u.Role,
		"active":   u.Active,
	})
}

func (s *Server) handleAckStatus(w http.ResponseWriter, r *http.Request) {
	acked, required, err := s.auth.AckStatus(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"acknowledged":  acked,
		"required_text": required,
	})
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	actor := userFrom(r.Context()).Username
	if err := s.auth.SubmitAck(r.Context(), req.Text, actor, clientOrigin(r)); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
}

// --- modules ---

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	type modView struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	var out []modView
	for _, m := range s.registry.List() {
		out = append(out, modView{Name: m.Name(), Description: m.Description()})
	}
	writeJSON(w, http.StatusOK, out)
}

// --- cases & evidence ---

func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	c, err := s.cases.CreateCase(r.Context(), req.Name, userFrom(r.Context()).Username, clientOrigin(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, caseView(c))
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	list, err := s.cases.ListCases(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for i := range list {
		out = append(out, caseView(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	c, err := s.cases.GetCase(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, caseView(c))
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	caseID, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"error": "upload exceeds size limit"})
			return
		}
		s.writeError(w, errs.ErrValidation)
		return
	}
	defer file.Close()

	e, err := s.cases.IngestEvidence(r.Context(), caseID, header.Filename, file,
		userFrom(r.Context()).Username, clientOrigin(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, evidenceView(e))
}

func (s *Server) handleListEvidence(w http.ResponseWriter, r *http.Request) {
	caseID, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	list, err := s.cases.ListEvidence(r.Context(), caseID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for i := range list {
		out = append(out, evidenceView(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	report, err := s.cases.VerifyEvidence(r.Context(), id, userFrom(r.Context()).Username, clientOrigin(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"match":          report.Match,
		"stored_sha256":  report.Stored.SHA256,
		"current_sha256": report.Current.SHA256,
		"stored_md5":     report.Stored.MD5,
		"current_md5":    report.Current.MD5,
		"md5_anomaly":    report.MD5Anomaly(),
	})
}

// --- jobs ---

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CaseID     string         `json:"case_id"`
		ToolName   string         `json:"tool_name"`
		EvidenceID string         `json:"evidence_id"`
		Options    map[string]any `json:"options"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	caseID, err := uuid.FromString(req.CaseID)
	if err != nil {
		s.writeError(w, errs.ErrValidation)
		return
	}
	var evidenceID *uuid.UUID
	if req.EvidenceID != "" {
		id, err := uuid.FromString(req.EvidenceID)
		if err != nil {
			s.writeError(w, errs.ErrValidation)
			return
		}
		evidenceID = &id
	}
	j, err := s.jobs.Submit(r.Context(), caseID, req.ToolName, evidenceID, req.Options,
		userFrom(r.Context()).Username, clientOrigin(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobView(j))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	caseID, err := uuid.FromString(r.URL.Query().Get("case_id"))
	if err != nil {
		s.writeError(w, errs.ErrValidation)
		return
	}
	list, err := s.jobs.ListByCase(r.Context(), caseID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for i := range list {
		out = append(out, jobView(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	j, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobView(j))
}

// --- audit ---

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	var f model.AuditFilter
	if v := r.URL.Query().Get("case_id"); v != "" {
		id, err := uuid.FromString(v)
		if err != nil {
			s.writeError(w, errs.ErrValidation)
			return
		}
		f.CaseID = &id
	}
	f.Actor = r.URL.Query().Get("actor")
	f.ActionPrefix = r.URL.Query().Get("action")

	entries, err := s.auditor.Query(r.Context(), f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(entries))
	for i := range entries {
		out = append(out, auditView(&entries[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// --- views ---

func caseView(c *model.Case) map[string]any {
	return map[string]any{
		"id":         c.ID.String(),
		"name":       c.Name,
		"created_at": c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func evidenceView(e *model.Evidence) map[string]any {
	return map[string]any{
		"id":            e.ID.String(),
		"case_id":       e.CaseID.String(),
		"original_name": e.OriginalName,
		"size":          e.Size,
		"sha256":        e.SHA256,
		"md5":           e.MD5,
		"ingested_at":   e.IngestedAt.UTC().Format(time.RFC3339),
	}
}

func jobView(j *model.Job) map[string]any {
	v := map[string]any{
		"id":         j.ID.String(),
		"case_id":    j.CaseID.String(),
		"tool_name":  j.ToolName,
		"status":     string(j.Status),
		"queued_at":  j.QueuedAt.UTC().Format(time.RFC3339),
		"created_at": j.CreatedAt.UTC().Format(time.RFC3339),
	}
	if j.EvidenceID != nil {
		v["evidence_id"] = j.EvidenceID.String()
	}
	if j.CompletedAt != nil {
		v["completed_at"] = j.CompletedAt.UTC().Format(time.RFC3339)
	}
	if j.Result != nil {
		v["result"] = j.Result
	}
	if j.Error != "" {
		v["error"] = j.Error
	}
	return v
}

func auditView(e *model.AuditEntry) map[string]any {
	v := map[string]any{
		"seq":        e.Seq,
		"action":     e.Action,
		"actor":      e.Actor,
		"origin":     e.Origin,
		"details":    e.Details,
		"created_at": e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.CaseID != nil {
		v["case_id"] = e.CaseID.String()
	}
	return v
}

// --- helpers ---

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return errs.ErrValidation
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.FromString(r.PathValue(name))
	if err != nil {
		return uuid.Nil, errs.ErrValidation
	}
	return id, nil
}

func clientOrigin(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps sentinel errors to HTTP statuses once, here. Unknown
// errors are logged and reported as an opaque 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, errs.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, errs.ErrAckMismatch):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, errs.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, errs.ErrAckRequired):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, errs.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, errs.ErrAlreadyExists), errors.Is(err, errs.ErrTerminalState):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, errs.ErrRateLimited):
		status, msg = http.StatusTooManyRequests, err.Error()
	default:
		s.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]any{"error": msg})
}
