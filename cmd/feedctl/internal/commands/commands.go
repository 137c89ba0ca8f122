// Package commands implements the feedctl subcommands. Sessions persist in a cookie
// jar file, so consecutive invocations behave like one browser.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jrsteele09/go-feed-server/gateway"
	"github.com/jrsteele09/go-feed-server/identity"
	"github.com/jrsteele09/go-feed-server/identity/cookies"
	"github.com/jrsteele09/go-feed-server/identity/gotrue"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Globals struct {
	Debug    bool          `help:"Enable debug logging."`
	URL      string        `help:"GoTrue auth URL" env:"GOTRUE_URL" default:"http://localhost:9999"`
	AnonKey  string        `help:"GoTrue anon key" env:"GOTRUE_ANON_KEY"`
	BaseURL  string        `help:"Public site origin used for email callbacks" env:"BASE_URL" default:"http://localhost:8080"`
	Jar      string        `help:"Cookie jar file" env:"FEEDCTL_JAR" default:"${jar}" type:"path"`
	Timeout  time.Duration `help:"Provider request timeout" default:"10s"`
	Out      io.Writer     `kong:"-"`
	factory  identity.ClientFactory
	jarStore *cookies.Jar
	outMu    sync.Mutex
}

// DefaultJarPath is the jar used when none is given.
func DefaultJarPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".feedctl-cookies.json"
	}
	return filepath.Join(dir, "feedctl", "cookies.json")
}

// session returns the cookie jar and the provider bound to it.
func (g *Globals) session(ctx context.Context) (context.Context, identity.CookieStore, identity.Provider, error) {
	level := zerolog.WarnLevel
	if g.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	ctx = logger.WithContext(ctx)

	if g.Out == nil {
		g.Out = os.Stdout
	}
	if g.jarStore == nil {
		path := g.Jar
		if path == "" {
			path = DefaultJarPath()
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return ctx, nil, nil, fmt.Errorf("failed to create jar directory: %w", err)
		}
		jar, err := cookies.OpenJar(path)
		if err != nil {
			return ctx, nil, nil, fmt.Errorf("failed to open cookie jar: %w", err)
		}
		g.jarStore = jar
	}
	if g.factory == nil {
		f, err := gotrue.NewFactory(ctx, gotrue.Options{URL: g.URL, AnonKey: g.AnonKey, Timeout: g.Timeout})
		if err != nil {
			return ctx, nil, nil, fmt.Errorf("failed to create provider: %w", err)
		}
		g.factory = f
	}
	return ctx, g.jarStore, g.factory.Client(g.jarStore), nil
}

func (g *Globals) gateway() *gateway.Gateway {
	return gateway.New(g.factory, g.BaseURL)
}

// UseProvider replaces the GoTrue provider, e.g. with the in-memory one in tests.
func (g *Globals) UseProvider(f identity.ClientFactory, jar *cookies.Jar, out io.Writer) {
	g.factory = f
	g.jarStore = jar
	g.Out = out
}

func (g *Globals) printf(format string, args ...any) {
	g.outMu.Lock()
	defer g.outMu.Unlock()
	fmt.Fprintf(g.Out, format, args...)
}

func printUser(g *Globals, u *identity.User) {
	if u == nil {
		g.printf("Not signed in\n")
		return
	}
	suffix := ""
	if !u.IsConfirmed() {
		suffix = " unverified"
	}
	g.printf("%s (%s)%s\n", u.Email, u.ID, suffix)
}

func actionError(res gateway.Result) error {
	if res.Success {
		return nil
	}
	return fmt.Errorf("%s", res.Error)
}
