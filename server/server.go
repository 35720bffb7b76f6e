package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/campus-portal/auth"
	"github.com/jrsteele09/campus-portal/credentials"
	"github.com/jrsteele09/campus-portal/gate"
	"github.com/jrsteele09/campus-portal/internal/config"
	"github.com/jrsteele09/campus-portal/monitor"
	"github.com/jrsteele09/campus-portal/notice"
	"github.com/jrsteele09/campus-portal/session"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"
)

// Deps holds the session layer the portal serves.
type Deps struct {
	Credentials  credentials.Repo   // Persisted credential pair
	Store        *session.Store     // Session state shared with the gates
	Bootstrapper *auth.Bootstrapper // Login check, sign-in and forced logout
	Monitor      *monitor.Monitor   // Expiry warnings and forced logout
	Notices      *notice.Queue      // Toasts shown on the landing page
	Signal       *auth.Signal       // Raised when a proxied call returns 401
}

type Server struct {
	env          string // Environment (e.g., "DEV", "PROD")
	mux          *http.ServeMux
	routes       []string
	config       config.Config
	deps         Deps
	gate         *gate.Gate
	lang         language.Tag
	apiProxy     http.Handler
	apiTransport http.RoundTripper
	loginLimiter *rate.Limiter
	nowFunc      func() time.Time
}

type ServerOption func(*Server)

func WithNowFunc(now func() time.Time) ServerOption {
	return func(s *Server) {
		s.nowFunc = now
	}
}

// WithAPITransport replaces the transport under the API proxy's 401 detection.
func WithAPITransport(rt http.RoundTripper) ServerOption {
	return func(s *Server) {
		s.apiTransport = rt
	}
}

func New(config config.Config, deps Deps, options ...ServerOption) (*Server, error) {
	s := &Server{
		env:          config.GetEnv(),
		mux:          http.NewServeMux(),
		config:       config,
		deps:         deps,
		lang:         config.GetLanguage(),
		loginLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.nowFunc == nil {
		s.nowFunc = time.Now
	}
	if s.deps.Signal == nil {
		s.deps.Signal = auth.NewSignal()
	}

	s.gate = gate.New(deps.Store, deps.Notices, gate.WithLanguage(s.lang), gate.WithNowFunc(s.nowFunc))

	proxy, err := s.newAPIProxy(config.GetAPIBaseURL())
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create api proxy: %w", err)
	}
	s.apiProxy = proxy

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

// Start wires the session lifecycle: forced logouts from the API proxy, the
// initial login check, and re-arming the monitor whenever the session changes.
// It returns once the initial check has finished; the watchers run until ctx is done.
func (s *Server) Start(ctx context.Context) {
	s.deps.Bootstrapper.Listen(ctx, s.deps.Signal)

	if err := s.deps.Bootstrapper.CheckLoginStatus(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial login check did not establish a session")
	}
	if err := s.deps.Monitor.Start(ctx); err != nil {
		log.Err(err).Msg("Unable to start expiration monitor")
	}

	changes := s.deps.Store.Watch(ctx)
	go func() {
		for st := range changes {
			if st.Loading {
				continue
			}
			if err := s.deps.Monitor.Sync(ctx); err != nil {
				log.Err(err).Msg("Unable to sync expiration monitor")
			}
		}
		s.deps.Monitor.Stop()
	}()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func (s *Server) newAPIProxy(baseURL string) (http.Handler, error) {
	target, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if !target.IsAbs() {
		return nil, fmt.Errorf("api base url %q is not absolute", baseURL)
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			s.attachBearer(pr.Out)
		},
		Transport: &auth.SignalTransport{Base: s.apiTransport, Signal: s.deps.Signal},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Err(err).Str("path", r.URL.Path).Msg("API proxy request failed")
			writeJSONError(w, "bad_gateway", "campus api unavailable", http.StatusBadGateway)
		},
	}
	return proxy, nil
}
