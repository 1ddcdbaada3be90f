package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Skryldev/tippspiel/game"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{
		"error":   http.StatusText(code),
		"message": msg,
		"status":  code,
	})
}

// statusFor maps a game error kind to its HTTP status. Unknown errors are
// 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, game.ErrNotAuthorized),
		errors.Is(err, game.ErrNotOpen),
		errors.Is(err, game.ErrPastKickoff):
		return http.StatusForbidden
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeGameError answers with err's status and client message. Internal
// errors are logged with their cause and answered generically.
func (s *Server) writeGameError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "api: request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, code, "internal error")
		return
	}
	if cause := errors.Unwrap(err); cause != nil {
		s.log.DebugContext(r.Context(), "api: request rejected",
			"method", r.Method, "path", r.URL.Path, "status", code, "cause", cause)
	}
	writeError(w, code, game.Message(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return &game.Error{Kind: game.ErrValidation, Message: "invalid JSON body", Cause: err}
	}
	return nil
}
