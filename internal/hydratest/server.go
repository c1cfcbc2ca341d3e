// Package hydratest provides an in-process fake of the Hydra HTTP API for
// tests. It implements the login, project and jobset endpoints with the
// same session-cookie and Referer rules as Hydra and records every request
// it receives.
package hydratest

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// SessionCookie is the name of the cookie Hydra uses for its session.
const SessionCookie = "hydra_session"

// Route keys accepted by WithStatus.
const (
	RouteLogin   = "POST /login"
	RouteProject = "PUT /project/{project}"
	RouteJobset  = "PUT /jobset/{project}/{jobset}"
)

// Request is one request received by the server.
type Request struct {
	Method  string
	Path    string
	Referer string
	Cookie  string // value of the session cookie, if sent
	Header  http.Header
	Body    []byte
}

// Project is a stored project.
type Project struct {
	DisplayName string `json:"displayname"`
	Enabled     bool   `json:"enabled"`
	Visible     bool   `json:"visible"`
}

// Server is a fake Hydra server.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	requests []Request
	users    map[string]string
	sessions map[string]string // session id -> user
	projects map[string]Project
	jobsets  map[string]json.RawMessage // "project/jobset" -> body
	statuses map[string]int
}

// Option configures a Server.
type Option func(*Server)

// WithUser registers an account. Without any users, every login succeeds.
func WithUser(username, password string) Option {
	return func(s *Server) {
		s.users[username] = password
	}
}

// WithStatus makes the route answer with the given status instead of
// handling the request. The request is still recorded.
func WithStatus(route string, code int) Option {
	return func(s *Server) {
		s.statuses[route] = code
	}
}

// WithProject pre-creates a project.
func WithProject(name string, p Project) Option {
	return func(s *Server) {
		s.projects[name] = p
	}
}

// NewServer starts a fake Hydra server that is closed when the test ends.
func NewServer(tb testing.TB, opts ...Option) *Server {
	tb.Helper()

	s := &Server{
		users:    make(map[string]string),
		sessions: make(map[string]string),
		projects: make(map[string]Project),
		jobsets:  make(map[string]json.RawMessage),
		statuses: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Server = httptest.NewServer(s.routes())
	tb.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recordMiddleware)
	r.Use(contentTypeMiddleware)
	r.Use(s.refererMiddleware)

	r.Post("/login", s.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)
		r.Put("/project/{project}", s.handleProject)
		r.Put("/jobset/{project}/{jobset}", s.handleJobset)
	})
	return r
}

// Requests returns a copy of the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Project returns a stored project.
func (s *Server) Project(name string) (Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[name]
	return p, ok
}

// Jobset returns the body stored for a jobset.
func (s *Server) Jobset(project, name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.jobsets[project+"/"+name]
	return bytes.Clone(body), ok
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.injected(w, RouteLogin) {
		return
	}

	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid login request")
		return
	}

	s.mu.Lock()
	password, known := s.users[creds.Username]
	authOK := len(s.users) == 0 || (known && password == creds.Password)
	s.mu.Unlock()
	if !authOK {
		writeError(w, http.StatusForbidden, "Bad username or password.")
		return
	}

	id := newSessionID()
	s.mu.Lock()
	s.sessions[id] = creds.Username
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: id, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]string{"username": creds.Username})
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	if s.injected(w, RouteProject) {
		return
	}

	name := chi.URLParam(r, "project")
	var p Project
	if err := decodeStrict(r.Body, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid project: "+err.Error())
		return
	}

	s.mu.Lock()
	_, existed := s.projects[name]
	s.projects[name] = p
	s.mu.Unlock()

	writeJSON(w, createdOrOK(existed), map[string]string{"name": name, "redirect": s.URL + "/project/" + name})
}

func (s *Server) handleJobset(w http.ResponseWriter, r *http.Request) {
	if s.injected(w, RouteJobset) {
		return
	}

	project := chi.URLParam(r, "project")
	name := chi.URLParam(r, "jobset")

	s.mu.Lock()
	_, projectExists := s.projects[project]
	s.mu.Unlock()
	if !projectExists {
		writeError(w, http.StatusNotFound, "Project "+project+" doesn't exist.")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil || !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "invalid jobset")
		return
	}

	key := project + "/" + name
	s.mu.Lock()
	_, existed := s.jobsets[key]
	s.jobsets[key] = body
	s.mu.Unlock()

	writeJSON(w, createdOrOK(existed), map[string]string{"name": name, "redirect": s.URL + "/jobset/" + key})
}

// injected writes the configured status for route, if any.
func (s *Server) injected(w http.ResponseWriter, route string) bool {
	s.mu.Lock()
	code, ok := s.statuses[route]
	s.mu.Unlock()
	if !ok {
		return false
	}
	writeError(w, code, http.StatusText(code))
	return true
}

func createdOrOK(existed bool) int {
	if existed {
		return http.StatusOK
	}
	return http.StatusCreated
}

func decodeStrict(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func newSessionID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": strings.TrimSpace(message)})
}
