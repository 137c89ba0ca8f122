package config

import "time"

const (
	ProviderMemory = "memory"
	ProviderGoTrue = "gotrue"
)

type ProviderConfig interface {
	GetProvider() string
	GetGoTrueURL() string
	GetGoTrueAnonKey() string
	GetGoTrueJWKSURL() string
	GetGoTrueIssuer() string
	GetGoTrueAudience() string
	GetProviderTimeout() time.Duration
	GetMemoryJWTSecret() string
	GetAccessTokenExpiry() time.Duration
}

type Provider struct {
	Kind            string        `env:"PROVIDER" envDefault:"memory"`
	GoTrueURL       string        `env:"GOTRUE_URL" envDefault:"http://localhost:9999"`
	GoTrueAnonKey   string        `env:"GOTRUE_ANON_KEY"`
	GoTrueJWKSURL   string        `env:"GOTRUE_JWKS_URL"`
	GoTrueIssuer    string        `env:"GOTRUE_ISSUER"`
	GoTrueAudience  string        `env:"GOTRUE_AUDIENCE" envDefault:"authenticated"`
	Timeout         time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
	MemoryJWTSecret string        `env:"MEMORY_JWT_SECRET" envDefault:"dev-only-secret-change-me-0123456789"`
	AccessExpiry    time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"1h"`
}

var _ ProviderConfig = Provider{}

func (p Provider) GetProvider() string {
	if p.Kind == "" {
		return ProviderMemory
	}
	return p.Kind
}

func (p Provider) GetGoTrueURL() string              { return p.GoTrueURL }
func (p Provider) GetGoTrueAnonKey() string          { return p.GoTrueAnonKey }
func (p Provider) GetGoTrueJWKSURL() string          { return p.GoTrueJWKSURL }
func (p Provider) GetGoTrueIssuer() string           { return p.GoTrueIssuer }
func (p Provider) GetGoTrueAudience() string         { return p.GoTrueAudience }
func (p Provider) GetProviderTimeout() time.Duration { return p.Timeout }
func (p Provider) GetMemoryJWTSecret() string        { return p.MemoryJWTSecret }

func (p Provider) GetAccessTokenExpiry() time.Duration {
	if p.AccessExpiry <= 0 {
		return time.Hour
	}
	return p.AccessExpiry
}
