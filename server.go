package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/orian/querybuilder/models"
	"go.uber.org/zap"
)

// Server handles HTTP requests and coordinates between query sessions,
// the search API and the request log.
type Server struct {
	cfg       *Config
	sessions  *SessionManager
	storage   models.Storage
	submitter *Submitter
	metrics   *Metrics
	logger    *zap.Logger
	validate  *validator.Validate
}

// NewServer wires the handlers. metrics may be nil.
func NewServer(cfg *Config, sessions *SessionManager, storage models.Storage, submitter *Submitter, metrics *Metrics, logger *zap.Logger) *Server {
	return &Server{
		cfg:       cfg,
		sessions:  sessions,
		storage:   storage,
		submitter: submitter,
		metrics:   metrics,
		logger:    logger,
		validate:  validator.New(),
	}
}

// Routes returns the router serving the API, metrics and static files.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/schema", s.handleGetSchema)

		// Query sessions
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{sessionId}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleCloseSession)
			r.Post("/actions", s.handleDispatch)
			r.Get("/nodes/remaining", s.handleRemainingTypes)
			r.Post("/send", s.handleSend)
		})

		// Request log
		r.Get("/history", s.handleGetHistory)
		r.Route("/history/{entryId}", func(r chi.Router) {
			r.Get("/", s.handleGetEntry)
			r.Post("/tags", s.handleAddTag)
			r.Post("/star", s.handleToggleStar)
		})
		r.Delete("/tags/{tagId}", s.handleDeleteTag)

		r.Post("/trace/export", s.handleTraceExport)
		r.Get("/server/ping", s.handlePing)
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Handle("/*", http.FileServer(http.Dir(s.cfg.Server.StaticDir)))
	return r
}

// requestLogger logs every request through zap once it has been served.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sessionView is a session snapshot together with the editor rows.
type sessionView struct {
	ID    string            `json:"id"`
	State models.QueryState `json:"state"`
	Tree  []models.NodeView `json:"tree"`
}

func newSessionView(id string, state models.QueryState) sessionView {
	return sessionView{ID: id, State: state, Tree: models.Annotate(state.Params)}
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Root())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Create()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionView(session.ID, session.State()))
}

// session resolves the {sessionId} URL parameter, writing a 404 when the
// session does not exist.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	session, err := s.sessions.Get(chi.URLParam(r, "sessionId"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return session, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session.ID, session.State()))
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(chi.URLParam(r, "sessionId")); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	action, err := req.toAction()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	state, err := s.sessions.Dispatch(session, action)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, models.ErrNodeNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session.ID, state))
}

func (s *Server) handleRemainingTypes(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	id := r.URL.Query().Get("id")
	node := models.Resolve(session.State().Params, id)
	if node == nil {
		http.Error(w, fmt.Sprintf("%v: %q", models.ErrNodeNotFound, id), http.StatusNotFound)
		return
	}
	if !node.Type.HasChildren() {
		http.Error(w, fmt.Sprintf("%v: '%s'", models.ErrNotAParent, node.Name()), http.StatusBadRequest)
		return
	}

	remaining := models.RemainingTypes(node, "")
	if remaining == nil {
		remaining = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        id,
		"bag":       node.Type.IsBag(),
		"remaining": remaining,
	})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	state, err := s.sessions.Send(session)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, newSessionView(session.ID, state))
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if tag := r.URL.Query().Get("tag"); tag != "" {
		entries, err := s.storage.GetEntriesByTag(tag)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}

	limit := s.cfg.History.Limit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.storage.ListEntries(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.storage.GetEntry(chi.URLParam(r, "entryId"))
	if !ok {
		http.Error(w, ErrEntryNotFound.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryId")

	var req struct {
		Tag string `json:"tag" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tag, err := s.storage.AddTag(entryID, req.Tag)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, ErrEntryNotFound):
			status = http.StatusNotFound
		case errors.Is(err, ErrTagExists):
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.RemoveTag(chi.URLParam(r, "tagId")); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleStar(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryId")

	isStarred, err := s.storage.ToggleStarred(entryID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrEntryNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"starred": isStarred})
}

// handleTraceExport converts a traced search response into a Jaeger file.
// The response is taken from the request log when entryId is given and
// from the request body otherwise.
func (s *Server) handleTraceExport(w http.ResponseWriter, r *http.Request) {
	var payload []byte
	if entryID := r.URL.Query().Get("entryId"); entryID != "" {
		entry, ok := s.storage.GetEntry(entryID)
		if !ok {
			http.Error(w, ErrEntryNotFound.Error(), http.StatusNotFound)
			return
		}
		payload = []byte(entry.Response)
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		payload = body
	}

	traceID := r.URL.Query().Get("traceId")
	if traceID == "" {
		traceID = newTraceID()
	}

	doc, err := models.ExportTrace(payload, traceID, time.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="trace-%s.json"`, traceID))
	writeJSON(w, http.StatusOK, doc)
}

func newTraceID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Query().Get("url")
	if endpoint == "" {
		endpoint = s.cfg.Search.DefaultURL
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, err := s.submitter.Ping(ctx, endpoint)

	response := map[string]any{
		"url":       endpoint,
		"connected": err == nil,
		"status":    status,
		"timestamp": time.Now().Unix(),
	}
	if err != nil {
		response["error"] = err.Error()
		s.logger.Info("search endpoint ping failed", zap.String("url", endpoint), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, response)
}
