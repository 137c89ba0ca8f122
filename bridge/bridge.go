// Package bridge is the session interceptor that runs before every page: it refreshes
// the session from the cookies, carries any rewritten cookies onto both the response
// and the forwarded request, and decides whether the route may be served.
package bridge

import (
	"net/http"
	"time"

	"github.com/jrsteele09/go-feed-server/identity"
	"github.com/jrsteele09/go-feed-server/identity/cookies"
	"github.com/jrsteele09/go-feed-server/internal/metrics"
	"github.com/rs/zerolog"
)

type Action string

const (
	ActionAllow    Action = "allow"
	ActionRedirect Action = "redirect"
)

type Decision struct {
	Action Action
	Target string
	Class  Class
}

// Decide is the admission rule. The private check runs first, then the auth page
// check; home is never redirected.
func Decide(rt Routes, path, rawQuery string, authenticated bool) Decision {
	class := rt.Classify(path)

	if !authenticated && class == ClassPrivate {
		original := path
		if rawQuery != "" {
			original += "?" + rawQuery
		}
		return Decision{Action: ActionRedirect, Target: rt.LoginURL(original), Class: class}
	}
	if authenticated && path != rt.Home && rt.isAuthPage(path) {
		return Decision{Action: ActionRedirect, Target: rt.Landing, Class: class}
	}
	return Decision{Action: ActionAllow, Class: class}
}

type Bridge struct {
	clients identity.ClientFactory
	routes  Routes
	metrics *metrics.Metrics
	nowFunc func() time.Time
}

type Option func(*Bridge)

func WithRoutes(rt Routes) Option {
	return func(b *Bridge) {
		b.routes = rt
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(b *Bridge) {
		b.nowFunc = now
	}
}

func New(clients identity.ClientFactory, opts ...Option) *Bridge {
	b := &Bridge{
		clients: clients,
		routes:  DefaultRoutes(),
		metrics: metrics.Discard(),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridge) Routes() Routes {
	return b.routes
}

// Evaluate fetches (and if needed refreshes) the session for r. The cookie writes are
// returned unapplied in the builder. A provider failure counts as no session.
func (b *Bridge) Evaluate(r *http.Request) (Decision, *identity.Session, *cookies.Request) {
	jar := cookies.FromRequest(r)

	sess, err := b.clients.Client(jar).GetSession(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("error_code", identity.ErrorCode(err)).Msg("Session fetch failed, treating request as anonymous")
		sess = nil
	}
	if !sess.Valid(b.nowFunc()) {
		sess = nil
	}

	return Decide(b.routes, r.URL.Path, r.URL.RawQuery, sess != nil), sess, jar
}

// Middleware admits or redirects the request. Refreshed cookies reach the browser on
// either path and are visible to the handler through the forwarded request.
func (b *Bridge) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decision, sess, jar := b.Evaluate(r)
		fwd := jar.Apply(w, r)

		b.metrics.BridgeDecisions.WithLabelValues(string(decision.Class), string(decision.Action)).Inc()

		if decision.Action == ActionRedirect {
			zerolog.Ctx(r.Context()).Debug().Str("path", r.URL.Path).Str("target", decision.Target).Msg("Bridge redirect")
			w.Header().Set("Cache-Control", "no-store")
			http.Redirect(w, fwd, decision.Target, http.StatusTemporaryRedirect)
			return
		}

		if sess != nil {
			fwd = fwd.WithContext(identity.WithSession(fwd.Context(), sess))
		}
		next(w, fwd)
	}
}
