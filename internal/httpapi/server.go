// Package httpapi exposes the chat orchestrator over HTTP.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/foreman-dev/foreman/internal/config"
	apperrors "github.com/foreman-dev/foreman/pkg/errors"
	"github.com/foreman-dev/foreman/pkg/orchestrator"
	"github.com/foreman-dev/foreman/pkg/session"
	"github.com/foreman-dev/foreman/pkg/store"
)

// UserMessage is the inbound chat request body
type UserMessage struct {
	Content        string `json:"content"`
	ThreadID       string `json:"thread_id"`
	IsFirstMessage bool   `json:"is_first_message"`
}

// AgentMessage is the chat response body: the orchestrator's question when
// the turn suspended, its output otherwise
type AgentMessage struct {
	Content string `json:"content"`
}

// Server wires the orchestrator, session store, and project store behind
// an HTTP handler
type Server struct {
	orch     *orchestrator.Orchestrator
	sessions session.Store
	db       *store.DB
	cfg      config.ServerConfig
	log      logr.Logger

	mu      sync.Mutex
	threads map[string]*sync.Mutex
}

// NewServer creates the HTTP surface over the given components
func NewServer(orch *orchestrator.Orchestrator, sessions session.Store, db *store.DB, cfg config.ServerConfig, log logr.Logger) *Server {
	return &Server{
		orch:     orch,
		sessions: sessions,
		db:       db,
		cfg:      cfg,
		log:      log.WithName("http"),
		threads:  map[string]*sync.Mutex{},
	}
}

// Handler builds the route table
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.HandleFunc("/api/chat", s.handleChat).Methods("POST")
	router.HandleFunc("/api/threads/{threadId}/actions", s.handleActions).Methods("GET")
	router.HandleFunc("/api/projects", s.handleProjects).Methods("GET")

	return s.cors(router)
}

// HTTPServer wraps the handler in a configured http.Server
func (s *Server) HTTPServer() *http.Server {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	return &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// threadLock serializes turns per thread. Sessions are load-run-save, so
// concurrent turns on one thread would clobber each other.
func (s *Server) threadLock(threadID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.threads[threadID]
	if !ok {
		lock = &sync.Mutex{}
		s.threads[threadID] = lock
	}
	return lock
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var msg UserMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		s.writeError(w, http.StatusBadRequest,
			apperrors.New(apperrors.ErrCodeInvalidInput, "malformed request body", err))
		return
	}
	if msg.Content == "" {
		s.writeError(w, http.StatusBadRequest,
			apperrors.New(apperrors.ErrCodeInvalidInput, "content is required", nil))
		return
	}
	if _, err := uuid.Parse(msg.ThreadID); err != nil {
		s.writeError(w, http.StatusBadRequest,
			apperrors.New(apperrors.ErrCodeInvalidInput, "thread_id must be a UUID", err))
		return
	}

	lock := s.threadLock(msg.ThreadID)
	lock.Lock()
	defer lock.Unlock()

	ctx := r.Context()

	sess, err := s.sessions.Load(ctx, msg.ThreadID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if sess == nil {
		sess = session.New(msg.ThreadID)
	}

	reply, err := s.orch.HandleMessage(ctx, sess, msg.Content, msg.IsFirstMessage)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	if err := s.sessions.Save(ctx, sess); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, AgentMessage{Content: reply})
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["threadId"]

	sess, err := s.sessions.Load(r.Context(), threadID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if sess == nil {
		s.writeError(w, http.StatusNotFound,
			apperrors.New(apperrors.ErrCodeInvalidInput, "unknown thread", nil))
		return
	}

	actions := sess.Actions
	if actions == nil {
		actions = []session.Action{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Select(r.Context(), "SELECT name, description FROM projects ORDER BY project_id")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	type project struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	projects := make([]project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, project{
			Name:        store.AsString(row[0]),
			Description: store.AsString(row[1]),
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error(err, "failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.log.Error(err, "request failed", "status", status)
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// cors answers preflight requests for the configured origins
func (s *Server) cors(next http.Handler) http.Handler {
	allowed := map[string]bool{}
	for _, origin := range s.cfg.AllowedOrigins {
		allowed[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
