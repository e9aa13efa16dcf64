// Package api exposes the paper service over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/hazyhaar/paperforge/internal/audit"
	"github.com/hazyhaar/paperforge/internal/auth"
	"github.com/hazyhaar/paperforge/internal/collab"
	"github.com/hazyhaar/paperforge/internal/config"
	"github.com/hazyhaar/paperforge/internal/db"
	"github.com/hazyhaar/paperforge/internal/export"
	"github.com/hazyhaar/paperforge/internal/llm"
	"github.com/hazyhaar/paperforge/internal/paper"
)

// handleRe validates handle format: ASCII alphanumeric, underscore, hyphen only.
var handleRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// maxBodySize caps message bodies; paper answers are prose, not uploads.
const maxBodySize = 64 * 1024

// MessageRateLimiter throttles the LLM-backed endpoints (20 req/60s per IP).
var MessageRateLimiter = NewRateLimiter(20, 60*time.Second)

type API struct {
	store     *db.DB
	auth      *auth.Service
	generator *paper.Generator
	registry  *llm.Registry
	roles     config.RolesConfig
	audit     audit.Logger
	logger    *slog.Logger
	version   string
}

func New(store *db.DB, authSvc *auth.Service, generator *paper.Generator, registry *llm.Registry, roles config.RolesConfig, auditLog audit.Logger, logger *slog.Logger, version string) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		store:     store,
		auth:      authSvc,
		generator: generator,
		registry:  registry,
		roles:     roles,
		audit:     auditLog,
		logger:    logger,
		version:   version,
	}
}

// RegisterRoutes attaches all endpoints to mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/register", a.handleRegister)
	mux.HandleFunc("POST /api/login", a.handleLogin)

	mux.HandleFunc("POST /api/paper/start", a.handleStart)
	mux.HandleFunc("POST /api/paper/message", RateLimitMiddleware(MessageRateLimiter, a.handleMessage))
	mux.HandleFunc("POST /api/paper/generate", RateLimitMiddleware(MessageRateLimiter, a.handleGenerate))
	mux.HandleFunc("POST /api/paper/regenerate", RateLimitMiddleware(MessageRateLimiter, a.handleRegenerate))

	mux.HandleFunc("GET /api/paper/sessions", a.handleListSessions)
	mux.HandleFunc("GET /api/paper/session/{id}", a.handleGetSession)
	mux.HandleFunc("DELETE /api/paper/session/{id}", a.handleDeleteSession)
	mux.HandleFunc("GET /api/paper/messages/{id}", a.handleGetMessages)
	mux.HandleFunc("GET /api/paper/content/{id}", a.handleGetContent)
	mux.HandleFunc("GET /api/paper/export/{id}", a.handleExport)

	mux.HandleFunc("GET /api/services", a.handleServices)
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("GET /api/", a.handleIndex)
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle   string `json:"handle"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !handleRe.MatchString(req.Handle) || len(req.Handle) < 3 || len(req.Handle) > 32 {
		jsonError(w, "handle must be 3-32 characters of [a-zA-Z0-9_-]", http.StatusBadRequest)
		return
	}
	if len(req.Password) < 8 {
		jsonError(w, "password must be at least 8 characters", http.StatusBadRequest)
		return
	}
	token, u, err := a.auth.Register(req.Handle, req.Password)
	if errors.Is(err, db.ErrHandleTaken) {
		jsonError(w, "handle already taken", http.StatusConflict)
		return
	}
	if err != nil {
		a.logger.Error("register failed", "error", err)
		jsonError(w, "registration failed", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusCreated, map[string]any{
		"token":   token,
		"user_id": u.UserID,
		"handle":  u.Handle,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle   string `json:"handle"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	token, u, err := a.auth.Login(req.Handle, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		jsonError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		a.logger.Error("login failed", "error", err)
		jsonError(w, "login failed", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, map[string]any{
		"token":   token,
		"user_id": u.UserID,
		"handle":  u.Handle,
	})
}

func (a *API) handleStart(w http.ResponseWriter, r *http.Request) {
	userID := a.auth.UserID(r)
	var req struct {
		Title            string            `json:"title"`
		CollectedInfo    map[string]string `json:"collected_info"`
		SkipConversation bool              `json:"skip_conversation"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
			jsonError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	start := time.Now()
	res, err := a.generator.StartNewPaper(r.Context(), userID, req.Title, req.CollectedInfo)
	if err != nil {
		a.logger.Error("start paper failed", "error", err)
		jsonError(w, "failed to start paper session", http.StatusInternalServerError)
		return
	}
	a.auditLog("paper.start", userID, res.SessionID, "", start, nil)

	// skip_conversation goes straight to generation with the pre-filled
	// information.
	if req.SkipConversation {
		gen, err := a.generator.GenerateNow(r.Context(), res.SessionID)
		if err != nil {
			a.sessionError(w, err, "failed to generate paper")
			return
		}
		a.auditLog("paper.generate", userID, res.SessionID, gen.Status, start, nil)
		jsonResp(w, http.StatusCreated, gen)
		return
	}
	jsonResp(w, http.StatusCreated, res)
}

func (a *API) handleMessage(w http.ResponseWriter, r *http.Request) {
	userID := a.auth.UserID(r)
	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" || req.Message == "" {
		jsonError(w, "session_id and message are required", http.StatusBadRequest)
		return
	}
	if !a.ownsSession(w, req.SessionID, userID) {
		return
	}
	start := time.Now()
	res, err := a.generator.ProcessUserInput(r.Context(), req.SessionID, req.Message)
	if err != nil {
		a.auditLog("paper.message", userID, req.SessionID, "", start, err)
		a.sessionError(w, err, "failed to process message")
		return
	}
	a.auditLog("paper.message", userID, req.SessionID, res.Status, start, nil)
	jsonResp(w, http.StatusOK, res)
}

func (a *API) handleGenerate(w http.ResponseWriter, r *http.Request) {
	userID := a.auth.UserID(r)
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !a.ownsSession(w, req.SessionID, userID) {
		return
	}
	start := time.Now()
	res, err := a.generator.GenerateNow(r.Context(), req.SessionID)
	if err != nil {
		a.auditLog("paper.generate", userID, req.SessionID, "", start, err)
		a.sessionError(w, err, "failed to generate paper")
		return
	}
	a.auditLog("paper.generate", userID, req.SessionID, res.Status, start, nil)
	jsonResp(w, http.StatusOK, res)
}

func (a *API) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	userID := a.auth.UserID(r)
	var req struct {
		SessionID string `json:"session_id"`
		Section   string `json:"section"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !a.ownsSession(w, req.SessionID, userID) {
		return
	}
	start := time.Now()
	res, err := a.generator.RegenerateSection(r.Context(), req.SessionID, req.Section)
	if err != nil {
		a.auditLog("paper.regenerate", userID, req.SessionID, req.Section, start, err)
		if errors.Is(err, db.ErrNotFound) {
			jsonError(w, "session not found", http.StatusNotFound)
			return
		}
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.auditLog("paper.regenerate", userID, req.SessionID, req.Section, start, nil)
	jsonResp(w, http.StatusOK, res)
}

func (a *API) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := a.auth.UserID(r)
	sessions, err := a.store.ListSessions(userID)
	if err != nil {
		a.logger.Error("list sessions failed", "error", err)
		jsonError(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []db.SessionSummary{}
	}
	jsonResp(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	userID := a.auth.UserID(r)
	s, ok := a.loadOwned(w, r.PathValue("id"), userID)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, s)
}

func (a *API) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	userID := a.auth.UserID(r)
	sessionID := r.PathValue("id")
	err := a.store.DeleteSession(sessionID, userID)
	if errors.Is(err, db.ErrNotFound) {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		a.logger.Error("delete session failed", "error", err)
		jsonError(w, "failed to delete session", http.StatusInternalServerError)
		return
	}
	a.audit.LogAsync(&audit.Entry{Action: "paper.delete", UserID: userID, SessionID: sessionID})
	jsonResp(w, http.StatusOK, map[string]any{"deleted": sessionID})
}

func (a *API) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	userID := a.auth.UserID(r)
	s, ok := a.loadOwned(w, r.PathValue("id"), userID)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, map[string]any{
		"session_id": s.SessionID,
		"messages":   s.Messages,
	})
}

func (a *API) handleGetContent(w http.ResponseWriter, r *http.Request) {
	userID := a.auth.UserID(r)
	s, ok := a.loadOwned(w, r.PathValue("id"), userID)
	if !ok {
		return
	}
	content, status, err := a.generator.GetPaperContent(s.SessionID)
	if err != nil {
		jsonError(w, "failed to load paper content", http.StatusInternalServerError)
		return
	}
	jsonResp(w, http.StatusOK, map[string]any{
		"session_id": s.SessionID,
		"title":      s.Title,
		"status":     status,
		"content":    content,
	})
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	userID := a.auth.UserID(r)
	s, ok := a.loadOwned(w, r.PathValue("id"), userID)
	if !ok {
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	content := paperContentOf(s)
	if len(content) == 0 {
		jsonError(w, "paper has no generated content yet", http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="paper_%s.%s"`, s.SessionID, format.Extension()))
	if err := export.Write(w, s.Title, content, format); err != nil {
		a.logger.Error("export failed", "error", err, "session_id", s.SessionID)
	}
	a.audit.LogAsync(&audit.Entry{Action: "paper.export", UserID: userID, SessionID: s.SessionID, Detail: string(format)})
}

// handleServices reports the registered LLM backends and the current
// role-to-backend assignment.
func (a *API) handleServices(w http.ResponseWriter, r *http.Request) {
	names := a.registry.Names()
	services := make([]map[string]any, 0, len(names))
	for _, name := range names {
		entry := map[string]any{"name": name}
		if b, ok := a.registry.Get(name); ok {
			entry["available"] = b.IsAvailable(r.Context())
		}
		services = append(services, entry)
	}
	assign := collab.Assign(a.registry, a.roles)
	roles := make(map[string]any, len(collab.Roles))
	for _, role := range collab.Roles {
		params := assign.Params(role)
		roles[string(role)] = map[string]any{
			"backend":     assign.Backend(role),
			"description": params.Description,
			"temperature": params.Temperature,
			"max_tokens":  params.MaxTokens,
		}
	}
	jsonResp(w, http.StatusOK, map[string]any{"services": services, "roles": roles})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  a.version,
		"backends": len(a.registry.Names()),
	})
}

func (a *API) handleIndex(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, map[string]any{
		"service": "paperforge",
		"version": a.version,
		"endpoints": []string{
			"POST /api/register",
			"POST /api/login",
			"POST /api/paper/start",
			"POST /api/paper/message",
			"POST /api/paper/generate",
			"POST /api/paper/regenerate",
			"GET /api/paper/sessions",
			"GET /api/paper/session/{id}",
			"DELETE /api/paper/session/{id}",
			"GET /api/paper/messages/{id}",
			"GET /api/paper/content/{id}",
			"GET /api/paper/export/{id}?format=markdown|text",
			"GET /api/services",
			"GET /api/health",
		},
	})
}

// loadOwned fetches a session and enforces ownership, writing the
// error response itself when the check fails.
func (a *API) loadOwned(w http.ResponseWriter, sessionID, userID string) (*db.Session, bool) {
	s, err := a.store.GetSession(sessionID)
	if errors.Is(err, db.ErrNotFound) {
		jsonError(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		a.logger.Error("get session failed", "error", err)
		jsonError(w, "failed to load session", http.StatusInternalServerError)
		return nil, false
	}
	if s.UserID != userID {
		jsonError(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return s, true
}

func (a *API) ownsSession(w http.ResponseWriter, sessionID, userID string) bool {
	_, ok := a.loadOwned(w, sessionID, userID)
	return ok
}

func (a *API) sessionError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, db.ErrNotFound) {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	a.logger.Error(msg, "error", err)
	jsonError(w, msg, http.StatusInternalServerError)
}

func (a *API) auditLog(action, userID, sessionID, detail string, start time.Time, err error) {
	entry := &audit.Entry{
		Action:     action,
		UserID:     userID,
		SessionID:  sessionID,
		Detail:     detail,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	a.audit.LogAsync(entry)
}

// paperContentOf pulls the generated sections from a session context.
func paperContentOf(s *db.Session) map[string]string {
	out := map[string]string{}
	if m, ok := s.Context["paper_content"].(map[string]any); ok {
		for k, v := range m {
			if str, ok := v.(string); ok {
				out[k] = str
			}
		}
	}
	return out
}

func jsonResp(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
