// Package gate decides whether a protected page may render for the current
// session and enforces that decision over HTTP.
package gate

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/jrsteele09/campus-portal/notice"
	"github.com/jrsteele09/campus-portal/session"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Decision is the outcome of evaluating a session against a requirement.
type Decision int

const (
	// Pending means the session is still loading. Nothing is decided yet.
	Pending Decision = iota
	Allow
	Unauthenticated
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case Allow:
		return "allow"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Requirement describes what a page needs. An empty Role only requires a login.
type Requirement struct {
	Role string
}

// LoggedIn requires any signed-in user.
var LoggedIn = Requirement{}

// Evaluate decides req against st. A loading session is always Pending so
// that no redirect happens before the login check finishes.
func Evaluate(st session.State, req Requirement) Decision {
	if st.Loading {
		return Pending
	}
	if !st.LoggedIn || st.User == nil {
		return Unauthenticated
	}
	if req.Role != "" && !st.User.HasRole(req.Role) {
		return Forbidden
	}
	return Allow
}

// StateSource supplies the session state a gate evaluates.
type StateSource interface {
	Snapshot() session.State
}

const DefaultLanding = "/"

const placeholderKey = "Verifying sign-in status…"

func init() {
	message.SetString(language.SimplifiedChinese, placeholderKey, "正在验证登录状态…")
}

// Gate enforces decisions on HTTP requests.
type Gate struct {
	source   StateSource
	notifier notice.Notifier
	landing  string
	lang     language.Tag
	nowFunc  func() time.Time
}

type Option func(*Gate)

// WithLanding sets where rejected requests are redirected.
func WithLanding(path string) Option {
	return func(g *Gate) {
		g.landing = path
	}
}

func WithLanguage(tag language.Tag) Option {
	return func(g *Gate) {
		g.lang = tag
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(g *Gate) {
		g.nowFunc = now
	}
}

func New(source StateSource, notifier notice.Notifier, options ...Option) *Gate {
	g := &Gate{
		source:   source,
		notifier: notifier,
		landing:  DefaultLanding,
		lang:     language.English,
	}
	for _, opt := range options {
		opt(g)
	}
	if g.notifier == nil {
		g.notifier = notice.Discard
	}
	if g.nowFunc == nil {
		g.nowFunc = time.Now
	}
	return g
}

// Check is the hook shape: it writes the placeholder or the redirect and
// returns false, or returns true and leaves the response to the caller.
func (g *Gate) Check(w http.ResponseWriter, r *http.Request, req Requirement) bool {
	_, ok := g.enforce(w, r, req)
	return ok
}

// Wrap is the wrapper shape. Allowed requests reach h with the user in the
// request context.
func (g *Gate) Wrap(h http.HandlerFunc, req Requirement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := g.enforce(w, r, req)
		if !ok {
			return
		}
		h(w, r.WithContext(ContextWithUser(r.Context(), user)))
	}
}

// Require is the middleware shape for an arbitrary requirement.
func (g *Gate) Require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return g.Wrap(next.ServeHTTP, req)
	}
}

// RequireLogin admits any signed-in user.
func (g *Gate) RequireLogin(next http.Handler) http.Handler {
	return g.Require(LoggedIn)(next)
}

// RequireRole admits only users holding role.
func (g *Gate) RequireRole(role string) func(http.Handler) http.Handler {
	return g.Require(Requirement{Role: role})
}

func (g *Gate) enforce(w http.ResponseWriter, r *http.Request, req Requirement) (*session.User, bool) {
	st := g.source.Snapshot()

	switch Evaluate(st, req) {
	case Allow:
		return st.User, true
	case Pending:
		g.writePlaceholder(w)
	case Unauthenticated:
		g.reject(w, r, notice.LoginRequired)
	case Forbidden:
		log.Info().Str("path", r.URL.Path).Str("required_role", req.Role).Str("role", st.User.Role).Msg("Role gate rejected request")
		g.reject(w, r, notice.Forbidden)
	}
	return nil, false
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, kind notice.Kind) {
	g.notifier.Notify(notice.New(kind, g.nowFunc()))
	http.Redirect(w, r, g.landing, http.StatusSeeOther)
}

func (g *Gate) writePlaceholder(w http.ResponseWriter) {
	text := html.EscapeString(message.NewPrinter(g.lang).Sprintf(placeholderKey))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<!doctype html><html><head><meta http-equiv="refresh" content="1"><title>%s</title></head>`+
		`<body><p class="gate-loading">%s</p></body></html>`, text, text)
}

type userContextKey struct{}

// ContextWithUser returns ctx carrying user.
func ContextWithUser(ctx context.Context, user *session.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the user an allowing gate attached to ctx.
func UserFromContext(ctx context.Context) (*session.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(*session.User)
	return user, ok && user != nil
}
