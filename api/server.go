// Package api exposes the game over HTTP: a JSON API under /api, a
// websocket feed of match status changes, and the static frontend.
package api

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Skryldev/tippspiel/db"
	"github.com/Skryldev/tippspiel/game"
	"github.com/Skryldev/tippspiel/models"
	"github.com/gorilla/mux"
)

const sessionCookie = "session"

// Options configures a Server.
type Options struct {
	Service *game.Service

	// DB and QueryStats feed /api/healthz; either may be nil.
	DB         *db.DB
	QueryStats *db.QueryStats

	// Hub serves /api/events; nil disables the feed.
	Hub *Hub

	// StaticDir is served at /; empty disables static files.
	StaticDir string

	// AllowedOrigin enables credentialed CORS for one origin.
	AllowedOrigin string
	SessionTTL    time.Duration

	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
	Logger        *slog.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	svc    *game.Service
	db     *db.DB
	stats  *db.QueryStats
	hub    *Hub
	opts   Options
	log    *slog.Logger
	router *mux.Router
}

// New builds the router.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = game.DefaultSessionTTL
	}
	s := &Server{
		svc:   opts.Service,
		db:    opts.DB,
		stats: opts.QueryStats,
		hub:   opts.Hub,
		opts:  opts,
		log:   opts.Logger,
	}
	s.router = s.routes()
	return s
}

// ServeHTTP applies CORS ahead of routing so preflight requests never reach
// method matching.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.cors(w, r) {
		return
	}
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.logRequests, s.withSession)

	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)

	api.HandleFunc("/matches", s.handleListMatches).Methods(http.MethodGet)
	api.HandleFunc("/matches", s.handleCreateMatch).Methods(http.MethodPost)
	api.HandleFunc("/matches/{id:[0-9]+}/result", s.handleEnterResult).Methods(http.MethodPatch)
	api.HandleFunc("/matches/{id:[0-9]+}", s.handleDeleteMatch).Methods(http.MethodDelete)

	api.HandleFunc("/predictions", s.handleListPredictions).Methods(http.MethodGet)
	api.HandleFunc("/predictions", s.handleSubmitPrediction).Methods(http.MethodPost)
	api.HandleFunc("/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)

	api.HandleFunc("/teams", s.handleListTeams).Methods(http.MethodGet)
	api.HandleFunc("/teams", s.handleCreateTeam).Methods(http.MethodPost)
	api.HandleFunc("/teams/{id:[0-9]+}", s.handleDeleteTeam).Methods(http.MethodDelete)

	api.HandleFunc("/kickoff-slots", s.handleListSlots).Methods(http.MethodGet)
	api.HandleFunc("/kickoff-slots", s.handleCreateSlot).Methods(http.MethodPost)
	api.HandleFunc("/kickoff-slots/{id:[0-9]+}", s.handleDeleteSlot).Methods(http.MethodDelete)

	api.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	api.HandleFunc("/users", s.handleCreateUser).Methods(http.MethodPost)
	api.HandleFunc("/users/{id:[0-9]+}", s.handleDeleteUser).Methods(http.MethodDelete)

	api.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "no such endpoint")
	})
	api.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	if s.opts.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.opts.StaticDir)))
	}
	return r
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

type ctxKey struct{}

// actor returns the logged-in user, or nil.
func actor(r *http.Request) *models.User {
	u, _ := r.Context().Value(ctxKey{}).(*models.User)
	return u
}

// withSession resolves the session cookie. A missing or stale session
// leaves the request anonymous; role checks happen in the game layer.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		u, err := s.svc.SessionUser(r.Context(), c.Value)
		if err != nil {
			if !game.IsNotAuthenticated(err) {
				s.writeGameError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	})
}

// cors answers preflight requests itself and reports whether it did.
func (s *Server) cors(w http.ResponseWriter, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if s.opts.AllowedOrigin == "" || origin != s.opts.AllowedOrigin {
		return false
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Add("Vary", "Origin")
	if r.Method == http.MethodOptions {
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Max-Age", "600")
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

// CheckOrigin returns the websocket handshake policy for NewHub: the
// configured origin and the serving host are admitted.
func CheckOrigin(allowedOrigin string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if allowedOrigin != "" && origin == allowedOrigin {
			return true
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter { return rec.ResponseWriter }

// Hijack passes through to the underlying writer for the websocket upgrade.
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("api: %T does not support hijacking", rec.ResponseWriter)
	}
	rec.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.DebugContext(r.Context(), "api: request",
			"method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}
