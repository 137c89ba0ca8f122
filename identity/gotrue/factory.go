// Package gotrue adapts a GoTrue-compatible auth server (Supabase Auth) to the
// identity.Provider contract. Sessions live only in the cookie store the client is
// bound to; the adapter itself keeps no per-user state.
package gotrue

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-feed-server/identity"
	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultAudience = "authenticated"
	refreshMargin   = 30 * time.Second
)

type Options struct {
	URL        string // auth base URL, e.g. https://<project>.supabase.co/auth/v1
	AnonKey    string
	JWKSURL    string // optional; when set access tokens are verified locally
	Issuer     string
	Audience   string
	Timeout    time.Duration
	Storage    identity.CookieStorage
	HTTPClient *http.Client
	Now        func() time.Time
}

type Factory struct {
	opts     Options
	http     *http.Client
	verifier *oidc.IDTokenVerifier
}

var _ identity.ClientFactory = (*Factory)(nil)

// NewFactory prepares the shared HTTP client and, when a JWKS URL is configured, the
// key set used to verify access tokens. ctx must outlive the factory; key refreshes
// are made with it.
func NewFactory(ctx context.Context, opts Options) (*Factory, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, apperrors.New("gotrue: URL is required")
	}
	opts.URL = strings.TrimRight(opts.URL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Audience == "" {
		opts.Audience = defaultAudience
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	f := &Factory{opts: opts, http: httpClient}
	if opts.JWKSURL != "" {
		keySet := oidc.NewRemoteKeySet(oidc.ClientContext(ctx, httpClient), opts.JWKSURL)
		f.verifier = oidc.NewVerifier(opts.Issuer, keySet, &oidc.Config{
			ClientID:             opts.Audience,
			SupportedSigningAlgs: []string{oidc.RS256, oidc.ES256},
			SkipIssuerCheck:      opts.Issuer == "",
			// Expiry is checked by the caller so an expiring token can be refreshed.
			SkipExpiryCheck: true,
			Now:             opts.Now,
		})
	}
	return f, nil
}

func (f *Factory) Client(cookies identity.CookieStore) identity.Provider {
	return &Client{f: f, cookies: cookies}
}
