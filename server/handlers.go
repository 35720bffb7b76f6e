package server

import (
	"context"
	"html/template"
	"net/http"
	"strings"

	"github.com/jrsteele09/campus-portal/gate"
	apperrors "github.com/jrsteele09/campus-portal/internal/errors"
	"github.com/jrsteele09/campus-portal/notice"
	"github.com/jrsteele09/campus-portal/session"
	"github.com/jrsteele09/campus-portal/token"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// PageData is shared by every HTML page.
type PageData struct {
	AppName   string
	Lang      string
	LoggedIn  bool
	Loading   bool
	User      *session.User
	Notices   []string
	Remaining string
	CheckURL  string
}

func (s *Server) pageData(ctx context.Context) PageData {
	st := s.deps.Store.Snapshot()
	data := PageData{
		AppName:  s.config.GetAppName(),
		Lang:     s.lang.String(),
		LoggedIn: st.LoggedIn,
		Loading:  st.Loading,
		User:     st.User,
		CheckURL: RouteSessionCheck,
	}
	if seconds, ok := s.remainingSeconds(ctx); ok && st.LoggedIn {
		data.Remaining = token.FormatRemainingIn(s.lang, seconds)
	}
	return data
}

// LandingHandler renders the landing page and shows pending notices once.
func (s *Server) LandingHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("landing.html")

	return func(w http.ResponseWriter, r *http.Request) {
		data := s.pageData(r.Context())
		for _, n := range s.deps.Notices.Drain() {
			data.Notices = append(data.Notices, n.Message(s.lang))
		}
		renderHTML(w, r, tmpl, data)
	}
}

// LoginHandler signs in with the submitted id and password.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := r.ParseForm(); err != nil {
			http.Error(w, "400 - Bad Request", http.StatusBadRequest)
			return
		}

		userID := strings.TrimSpace(r.PostFormValue("id"))
		password := r.PostFormValue("password")
		remember := r.PostFormValue("remember") != ""

		if err := s.deps.Bootstrapper.Login(ctx, userID, password, remember); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Login failed")
			if !apperrors.Is(err, apperrors.ErrTransient) {
				s.deps.Notices.Notify(notice.New(notice.LoginFailed, s.nowFunc()))
			}
			http.Redirect(w, r, RouteLanding, http.StatusSeeOther)
			return
		}

		s.syncMonitor(ctx)
		zerolog.Ctx(ctx).Info().Str("user_id", userID).Msg("User logged in")
		http.Redirect(w, r, RouteProfile, http.StatusSeeOther)
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := s.deps.Store.Logout(ctx); err != nil {
			zerolog.Ctx(ctx).Err(err).Msg("Logout could not clear credentials")
		}
		s.deps.Monitor.Stop()
		http.Redirect(w, r, RouteLanding, http.StatusSeeOther)
	}
}

func (s *Server) ProfileHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("profile.html")

	return func(w http.ResponseWriter, r *http.Request) {
		data := s.pageData(r.Context())
		if user, ok := gate.UserFromContext(r.Context()); ok {
			data.User = user
		}
		renderHTML(w, r, tmpl, data)
	}
}

func (s *Server) AdminHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("admin.html")

	return func(w http.ResponseWriter, r *http.Request) {
		data := s.pageData(r.Context())
		if user, ok := gate.UserFromContext(r.Context()); ok {
			data.User = user
		}
		renderHTML(w, r, tmpl, data)
	}
}

func renderHTML(w http.ResponseWriter, r *http.Request, tmpl *template.Template, data PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		zerolog.Ctx(r.Context()).Err(err).Str("template", tmpl.Name()).Msg("Unable to render page")
	}
}

// remainingSeconds reports the lifetime left on the persisted token.
func (s *Server) remainingSeconds(ctx context.Context) (int64, bool) {
	pair, err := s.deps.Credentials.Load(ctx)
	if err != nil {
		return 0, false
	}
	p := token.Decode(pair.AccessToken)
	if p == nil {
		return 0, false
	}
	return token.RemainingSeconds(p, s.nowFunc()), true
}

// attachBearer adds the persisted access token to a proxied API request.
func (s *Server) attachBearer(req *http.Request) {
	pair, err := s.deps.Credentials.Load(req.Context())
	if err != nil {
		req.Header.Del("Authorization")
		return
	}
	tok := &oauth2.Token{AccessToken: pair.AccessToken, TokenType: "Bearer"}
	tok.SetAuthHeader(req)
}

func (s *Server) syncMonitor(ctx context.Context) {
	if err := s.deps.Monitor.Sync(ctx); err != nil {
		zerolog.Ctx(ctx).Err(err).Msg("Unable to sync expiration monitor")
	}
}
