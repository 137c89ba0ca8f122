package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	ProviderConfig
	StoreConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
	IsProduction() bool
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type SessionConfig interface {
	GetCookiePrefix() string
	GetAccessCookieMaxAge() time.Duration
	GetRefreshCookieMaxAge() time.Duration
	GetSecureCookies() bool
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	Provider
	Store
	Security
}

// New reads the configuration from the environment. Unset values fall back to the
// envDefault tags on each concern.
func New() (Config, error) {
	var c mainConfig
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("[config New] parse env: %w", err)
	}
	c.Session.production = c.EnvVars.IsProduction()
	return c, nil
}
