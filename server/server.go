package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"filippo.io/csrf"
	"github.com/jrsteele09/go-feed-server/bridge"
	"github.com/jrsteele09/go-feed-server/gateway"
	"github.com/jrsteele09/go-feed-server/identity"
	"github.com/jrsteele09/go-feed-server/identity/cookies"
	"github.com/jrsteele09/go-feed-server/internal/config"
	"github.com/jrsteele09/go-feed-server/internal/metrics"
	"github.com/jrsteele09/go-feed-server/provisioning"
	"github.com/jrsteele09/go-feed-server/verification"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server is built from.
type Deps struct {
	Clients     identity.ClientFactory
	Provisioner provisioning.Provisioner
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Store       Pinger
}

type Server struct {
	env      string
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	handler  http.Handler
	clients  identity.ClientFactory
	gateway  *gateway.Gateway
	verifier *verification.Machine
	bridge   *bridge.Bridge
	views    *ViewRevalidator
	limiter  *rateLimiter
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	store    Pinger
	pages    map[string]*template.Template
}

func New(c config.Config, deps Deps) (*Server, error) {
	if deps.Clients == nil {
		return nil, fmt.Errorf("[Server New] identity client factory is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Discard()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.NewRegistry()
	}

	views := NewViewRevalidator()
	s := &Server{
		env:      c.GetEnv(),
		mux:      http.NewServeMux(),
		config:   c,
		clients:  deps.Clients,
		views:    views,
		metrics:  deps.Metrics,
		gatherer: deps.Gatherer,
		store:    deps.Store,
		limiter:  newRateLimiter(c.GetAuthRatePerMinute(), c.GetAuthRateBurst(), c.GetTrustForwardedFor()),
		gateway: gateway.New(deps.Clients, c.GetBaseURL(),
			gateway.WithProvisioner(deps.Provisioner),
			gateway.WithRevalidator(views),
			gateway.WithMetrics(deps.Metrics),
		),
		verifier: verification.New(deps.Provisioner),
		bridge:   bridge.New(deps.Clients, bridge.WithMetrics(deps.Metrics)),
	}

	pages, err := parsePages()
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse templates: %w", err)
	}
	s.pages = pages

	protection := csrf.New()
	for _, origin := range c.GetTrustedOrigins() {
		if err := protection.AddTrustedOrigin(origin); err != nil {
			return nil, fmt.Errorf("[Server New] invalid trusted origin %q: %w", origin, err)
		}
	}

	s.initRoutes()
	s.logRoutes()

	s.handler = protection.Handler(s.mux)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// client binds a provider client to the cookies of a server-rendered request.
func (s *Server) client(w http.ResponseWriter, r *http.Request) (identity.Provider, identity.CookieStore) {
	store := cookies.NewResponse(w, r)
	return s.clients.Client(store), store
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

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Debug().Msgf("[%-19s] %s", displayMethod, path)
}
