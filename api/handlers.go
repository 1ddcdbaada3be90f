package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Skryldev/tippspiel/game"
	"github.com/Skryldev/tippspiel/models"
	"github.com/gorilla/mux"
)

// ─────────────────────────────────────────────────────────────────────────────
// Session
// ─────────────────────────────────────────────────────────────────────────────

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeGameError(w, r, err)
		return
	}
	sess, u, err := s.svc.Login(r.Context(), req.Name, req.Password)
	if err != nil {
		s.writeGameError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(s.opts.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if err := s.svc.Logout(r.Context(), c.Value); err != nil {
			s.writeGameError(w, r, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleSession reports the current user, or null when logged out.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"user": actor(r)})
}

// ─────────────────────────────────────────────────────────────────────────────
// Matches and predictions
// ─────────────────────────────────────────────────────────────────────────────

type createMatchRequest struct {
	Kickoff  time.Time `json:"kickoff"`
	HomeTeam string    `json:"home_team"`
	AwayTeam string    `json:"away_team"`
}

type scoreRequest struct {
	HomeGoals *int `json:"home_goals"`
	AwayGoals *int `json:"away_goals"`
}

func (sr scoreRequest) values() (int, int, error) {
	if sr.HomeGoals == nil || sr.AwayGoals == nil {
		return 0, 0, &game.Error{Kind: game.ErrValidation, Message: "home_goals and away_goals are required"}
	}
	return *sr.HomeGoals, *sr.AwayGoals, nil
}

type predictionRequest struct {
	MatchID int64 `json:"match_id"`
	scoreRequest
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.ListMatches(r.Context(), actor(r))
	respond(s, w, r, orEmpty(out), err)
}

func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeGameError(w, r, err)
		return
	}
	m, err := s.svc.CreateMatch(r.Context(), actor(r), models.CreateMatchParams{
		Kickoff:  req.Kickoff,
		HomeTeam: req.HomeTeam,
		AwayTeam: req.AwayTeam,
	})
	if err != nil {
		s.writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleEnterResult(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	var req scoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeGameError(w, r, err)
		return
	}
	home, away, err := req.values()
	if err != nil {
		s.writeGameError(w, r, err)
		return
	}
	sum, err := s.svc.EnterResult(r.Context(), actor(r), id, home, away)
	if err != nil {
		s.writeGameError(w, r, err)
		return
	}
	if s.hub != nil {
		s.hub.MatchStatusChanged(r.Context(), id, models.StatusScored)
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleDeleteMatch(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := s.svc.DeleteMatch(r.Context(), actor(r), id); err != nil {
		s.writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

func (s *Server) handleSubmitPrediction(w http.ResponseWriter, r *http.Request) {
	var req predictionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeGameError(w, r, err)
		return
	}
	home, away, err := req.values()
	if err != nil {
		s.writeGameError(w, r, err)
		return
	}
	p, err := s.svc.SubmitPrediction(r.Context(), actor(r), req.MatchID, home, away)
	respond(s, w, r, p, err)
}

func (s *Server) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.ListAllPredictions(r.Context(), actor(r))
	respond(s, w, r, orEmpty(out), err)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Leaderboard(r.Context(), actor(r))
	respond(s, w, r, orEmpty(out), err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Catalogs
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.ListTeams(r.Context(), actor(r))
	respond(s, w, r, orEmpty(out), err)
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeGameError(w, r, err)
		return
	}
	t, err := s.svc.CreateTeam(r.Context(), actor(r), req.Name)
	created(s, w, r, t, err)
}

func (s *Server) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	deleted(s, w, r, id, s.svc.DeleteTeam(r.Context(), actor(r), id))
}

func (s *Server) handleListSlots(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.ListSlots(r.Context(), actor(r))
	respond(s, w, r, orEmpty(out), err)
}

func (s *Server) handleCreateSlot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeGameError(w, r, err)
		return
	}
	slot, err := s.svc.CreateSlot(r.Context(), actor(r), req.Label)
	created(s, w, r, slot, err)
}

func (s *Server) handleDeleteSlot(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	deleted(s, w, r, id, s.svc.DeleteSlot(r.Context(), actor(r), id))
}

// ─────────────────────────────────────────────────────────────────────────────
// Users
// ─────────────────────────────────────────────────────────────────────────────

type createUserRequest struct {
	Name     string      `json:"name"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.ListUsers(r.Context(), actor(r))
	respond(s, w, r, orEmpty(out), err)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeGameError(w, r, err)
		return
	}
	u, err := s.svc.CreateUser(r.Context(), actor(r), req.Name, req.Password, req.Role)
	created(s, w, r, u, err)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	deleted(s, w, r, id, s.svc.DeleteUser(r.Context(), actor(r), id))
}

// ─────────────────────────────────────────────────────────────────────────────
// Health and events
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	code := http.StatusOK

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.log.WarnContext(r.Context(), "api: health ping failed", "error", err)
			body["status"] = "degraded"
			body["database"] = "unreachable"
			code = http.StatusServiceUnavailable
		} else {
			body["database"] = "ok"
		}
		st := s.db.Stats()
		body["pool"] = map[string]any{
			"open":       st.OpenConnections,
			"in_use":     st.InUse,
			"idle":       st.Idle,
			"wait_count": st.WaitCount,
		}
	}
	if s.stats != nil {
		body["queries"] = s.stats.Snapshot()
	}
	if s.hub != nil {
		body["event_clients"] = s.hub.Len()
	}
	writeJSON(w, code, body)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusNotFound, "event feed disabled")
		return
	}
	if actor(r) == nil {
		writeError(w, http.StatusUnauthorized, "login required")
		return
	}
	s.hub.ServeWS(w, r)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// pathID reads the {id} route variable; the route pattern guarantees digits.
func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

// orEmpty keeps empty lists encoding as [] rather than null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func respond(s *Server, w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		s.writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func created(s *Server, w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		s.writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func deleted(s *Server, w http.ResponseWriter, r *http.Request, id int64, err error) {
	if err != nil {
		s.writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}
