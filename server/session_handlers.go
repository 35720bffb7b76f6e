package server

import (
	"encoding/json"
	"net/http"
	"time"

	apperrors "github.com/jrsteele09/campus-portal/internal/errors"
	"github.com/jrsteele09/campus-portal/session"
	"github.com/jrsteele09/campus-portal/token"
	"github.com/rs/zerolog"
)

// SessionStatus is the body of GET /session/status.
type SessionStatus struct {
	LoggedIn         bool          `json:"logged_in"`
	Loading          bool          `json:"loading"`
	User             *session.User `json:"user,omitempty"`
	RemainingSeconds int64         `json:"remaining_seconds"`
	Remaining        string        `json:"remaining"`
	ExpiresAt        *time.Time    `json:"expires_at,omitempty"`
	MonitorState     string        `json:"monitor_state"`
}

func (s *Server) SessionStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := s.deps.Store.Snapshot()
		mon := s.deps.Monitor.Status()

		resp := SessionStatus{
			LoggedIn:     st.LoggedIn,
			Loading:      st.Loading,
			User:         st.User,
			MonitorState: mon.State.String(),
		}
		if seconds, ok := s.remainingSeconds(r.Context()); ok {
			resp.RemainingSeconds = seconds
		}
		resp.Remaining = token.FormatRemainingIn(s.lang, resp.RemainingSeconds)
		if !mon.ExpiresAt.IsZero() {
			expiresAt := mon.ExpiresAt.UTC()
			resp.ExpiresAt = &expiresAt
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// SessionCheckHandler runs the expiry check and a throttled login re-check.
// Pages call it when they regain focus or become visible, which catches
// timers the host slept through.
func (s *Server) SessionCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := zerolog.Ctx(ctx)

		if err := s.deps.Monitor.Check(ctx); err != nil {
			logger.Err(err).Msg("Expiry check failed")
		}
		if err := s.deps.Bootstrapper.Refresh(ctx); err != nil && !apperrors.Is(err, apperrors.ErrThrottled) {
			logger.Debug().Err(err).Msg("Session re-check did not verify the session")
		}
		s.syncMonitor(ctx)

		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
