// Package server provides the HTTP JSON API over the engine.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/bryan-buckman/feedcache/internal/engine"
	"github.com/bryan-buckman/feedcache/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// userHeader names the caller; authorization happened upstream, the
// API only needs to know whose data to touch.
const userHeader = "X-User-ID"

// Server is the HTTP API server.
type Server struct {
	engine      *engine.Engine
	router      chi.Router
	log         zerolog.Logger
	defaultUser string
}

// New creates a server. Requests without a user header act as
// defaultUser.
func New(eng *engine.Engine, defaultUser string, logger zerolog.Logger) *Server {
	s := &Server{
		engine:      eng,
		log:         logger.With().Str("component", "server").Logger(),
		defaultUser: defaultUser,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Route("/api", func(r chi.Router) {
		r.Route("/sources", func(r chi.Router) {
			r.Get("/", s.handleListSources)
			r.Post("/", s.handleAddSource)
			r.Delete("/{sourceID}", s.handleRemoveSource)
			r.Post("/{sourceID}/restore", s.handleRestoreSource)
			r.Post("/{sourceID}/star", s.handleStarSource)
			r.Delete("/{sourceID}/star", s.handleUnstarSource)
			r.Put("/{sourceID}/group", s.handleAssignGroup)
			r.Post("/{sourceID}/refresh", s.handleRefreshSource)
		})
		r.Route("/groups", func(r chi.Router) {
			r.Get("/", s.handleListGroups)
			r.Post("/", s.handleCreateGroup)
			r.Put("/{groupID}", s.handleRenameGroup)
			r.Delete("/{groupID}", s.handleDeleteGroup)
		})
		r.Post("/refresh", s.handleRefreshAll)
		r.Get("/entries", s.handleEntriesView)
		r.Get("/entries/days", s.handleEntriesByDay)
		r.Get("/read-states", s.handleGetReadStates)
		r.Post("/read-states", s.handleMarkRead)
	})

	s.router = r
}

// Handler exposes the routed handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the API on addr.
func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("server starting")
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) userID(r *http.Request) string {
	if id := r.Header.Get(userHeader); id != "" {
		return id
	}
	return s.defaultUser
}

// --- Source Handlers ---

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := model.SourceOptions{
		IncludeRemoved: q.Get("include_removed") == "true",
		OnlyStarred:    q.Get("starred") == "true",
		Section:        model.ListSection(q.Get("section")),
	}
	if q.Has("group") {
		opts.FilterGroup = true
		if g := q.Get("group"); g != "" && g != "none" {
			opts.GroupID = &g
		}
	}
	sources, err := s.engine.GetSources(r.Context(), s.userID(r), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sources)
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Route       string  `json:"route"`
		DisplayName string  `json:"display_name"`
		GroupID     *string `json:"group_id"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	src, err := s.engine.AddSource(r.Context(), s.userID(r), req.Route, req.DisplayName, req.GroupID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, src)
}

func (s *Server) handleRemoveSource(w http.ResponseWriter, r *http.Request) {
	src, err := s.engine.RemoveSource(r.Context(), s.userID(r), chi.URLParam(r, "sourceID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, src)
}

func (s *Server) handleRestoreSource(w http.ResponseWriter, r *http.Request) {
	src, err := s.engine.RestoreSource(r.Context(), s.userID(r), chi.URLParam(r, "sourceID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, src)
}

func (s *Server) handleStarSource(w http.ResponseWriter, r *http.Request) {
	src, err := s.engine.StarSource(r.Context(), s.userID(r), chi.URLParam(r, "sourceID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, src)
}

func (s *Server) handleUnstarSource(w http.ResponseWriter, r *http.Request) {
	src, err := s.engine.UnstarSource(r.Context(), s.userID(r), chi.URLParam(r, "sourceID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, src)
}

func (s *Server) handleAssignGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupID *string `json:"group_id"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	src, err := s.engine.AssignSourceGroup(r.Context(), s.userID(r), chi.URLParam(r, "sourceID"), req.GroupID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, src)
}

// --- Group Handlers ---

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.engine.GetSourceGroups(r.Context(), s.userID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	group, err := s.engine.CreateSourceGroup(r.Context(), s.userID(r), req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, group)
}

func (s *Server) handleRenameGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	group, err := s.engine.RenameSourceGroup(r.Context(), s.userID(r), chi.URLParam(r, "groupID"), req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, group)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteSourceGroup(r.Context(), s.userID(r), chi.URLParam(r, "groupID")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Refresh Handlers ---

func (s *Server) handleRefreshSource(w http.ResponseWriter, r *http.Request) {
	res := s.engine.RefreshSource(r.Context(), s.userID(r), chi.URLParam(r, "sourceID"))
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	res := s.engine.RefreshAll(r.Context(), s.userID(r))
	s.writeJSON(w, http.StatusOK, res)
}

// --- Entry Handlers ---

func scopeFromQuery(r *http.Request) model.EntryScope {
	q := r.URL.Query()
	switch model.ScopeKind(q.Get("scope")) {
	case model.ScopeSource:
		return model.EntryScope{Kind: model.ScopeSource, SourceID: q.Get("source_id")}
	case model.ScopeGroup:
		scope := model.EntryScope{Kind: model.ScopeGroup}
		if g := q.Get("group_id"); g != "" && g != "none" {
			scope.GroupID = &g
		}
		return scope
	case model.ScopeStarred:
		return model.EntryScope{Kind: model.ScopeStarred}
	default:
		return model.EntryScope{Kind: model.ScopeAllActive}
	}
}

func (s *Server) handleEntriesView(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.GetEntriesView(r.Context(), s.userID(r), scopeFromQuery(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleEntriesByDay(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.GetEntriesView(r.Context(), s.userID(r), scopeFromQuery(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, engine.GroupEntriesByDay(entries, time.Now()))
}

// --- Read-State Handlers ---

func (s *Server) handleGetReadStates(w http.ResponseWriter, r *http.Request) {
	states, err := s.engine.GetReadStates(r.Context(), s.userID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, states)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EntryIDs []string `json:"entry_ids"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	states, err := s.engine.MarkEntriesAsRead(r.Context(), s.userID(r), req.EntryIDs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, states)
}

// --- helpers ---

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encoding response failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Message})
		return
	}
	s.log.Error().Err(err).Msg("request failed")
	s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal error"})
}
