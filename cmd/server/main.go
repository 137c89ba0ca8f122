package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-feed-server/accounts"
	"github.com/jrsteele09/go-feed-server/accounts/postgres"
	fakeaccountrepo "github.com/jrsteele09/go-feed-server/accounts/repofake"
	"github.com/jrsteele09/go-feed-server/accounts/sqlite"
	"github.com/jrsteele09/go-feed-server/identity"
	"github.com/jrsteele09/go-feed-server/identity/gotrue"
	"github.com/jrsteele09/go-feed-server/identity/memory"
	"github.com/jrsteele09/go-feed-server/internal/config"
	"github.com/jrsteele09/go-feed-server/internal/logger"
	"github.com/jrsteele09/go-feed-server/internal/metrics"
	"github.com/jrsteele09/go-feed-server/provisioning"
	"github.com/jrsteele09/go-feed-server/server"
	"github.com/jrsteele09/go-feed-server/token"
	tokenfakerepo "github.com/jrsteele09/go-feed-server/token/repofake"
	fakeuserrepo "github.com/jrsteele09/go-feed-server/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	logger.Setup(!c.IsProduction())
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	clients, err := newIdentityProvider(ctx, c)
	if err != nil {
		return fmt.Errorf("identity provider: %w", err)
	}
	repo, store, closeStore, err := newAccountStore(ctx, c)
	if err != nil {
		return fmt.Errorf("account store: %w", err)
	}
	defer closeStore()

	handler, err := server.New(c, server.Deps{
		Clients:     clients,
		Provisioner: provisioning.New(repo, m),
		Metrics:     m,
		Gatherer:    reg,
		Store:       store,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(srv) }()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

func newIdentityProvider(ctx context.Context, c config.Config) (identity.ClientFactory, error) {
	storage := identity.CookieStorage{
		Prefix:        c.GetCookiePrefix(),
		AccessMaxAge:  c.GetAccessCookieMaxAge(),
		RefreshMaxAge: c.GetRefreshCookieMaxAge(),
		Secure:        c.GetSecureCookies(),
	}

	switch c.GetProvider() {
	case config.ProviderGoTrue:
		log.Info().Str("url", c.GetGoTrueURL()).Msg("Using GoTrue identity provider")
		return gotrue.NewFactory(ctx, gotrue.Options{
			URL:      c.GetGoTrueURL(),
			AnonKey:  c.GetGoTrueAnonKey(),
			JWKSURL:  c.GetGoTrueJWKSURL(),
			Issuer:   c.GetGoTrueIssuer(),
			Audience: c.GetGoTrueAudience(),
			Timeout:  c.GetProviderTimeout(),
			Storage:  storage,
		})
	default:
		log.Warn().Msg("Using in-memory identity provider; emails are logged, not sent")
		tokens := token.New(tokenfakerepo.NewFakeTokensRepo(), token.NewHMACSigner(c.GetMemoryJWTSecret()),
			token.WithIssuer(c.GetBaseURL()),
			token.WithTokenExpiry(c.GetAccessTokenExpiry(), c.GetRefreshCookieMaxAge()),
		)
		return memory.New(fakeuserrepo.NewFakeUserRepo(), tokens,
			memory.WithCookieStorage(storage),
			memory.WithOTPValidity(c.GetOTPValidity()),
		), nil
	}
}

func newAccountStore(ctx context.Context, c config.Config) (accounts.Repo, server.Pinger, func(), error) {
	switch c.GetStore() {
	case config.StorePostgres:
		store, err := postgres.New(ctx, postgres.Config{ConnString: c.GetPostgresURL(), AutoMigrate: true})
		if err != nil {
			return nil, nil, nil, err
		}
		return store, store, store.Close, nil
	case config.StoreSQLite:
		if err := ensureDir(c.GetSQLiteDSN()); err != nil {
			return nil, nil, nil, err
		}
		store, err := sqlite.Open(c.GetSQLiteDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		return store, store, func() { _ = store.Close() }, nil
	default:
		return fakeaccountrepo.NewFakeAccountRepo(), nil, func() {}, nil
	}
}

// ensureDir creates the parent directory of a file: DSN.
func ensureDir(dsn string) error {
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if path == "" || path == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
