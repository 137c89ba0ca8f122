package config

import "time"

type SecurityConfig interface {
	GetOTPValidity() time.Duration
	GetAuthRatePerMinute() int
	GetAuthRateBurst() int
	GetTrustedOrigins() []string
	GetTrustForwardedFor() bool
}

type Security struct {
	OTPValidity    time.Duration `env:"OTP_VALIDITY" envDefault:"10m"`
	AuthRate       int           `env:"AUTH_RATE_PER_MIN" envDefault:"10"`
	AuthBurst      int           `env:"AUTH_RATE_BURST" envDefault:"5"`
	TrustedOrigins []string      `env:"TRUSTED_ORIGINS" envSeparator:","`
	TrustForwarded bool          `env:"TRUST_FORWARDED_FOR" envDefault:"false"`
}

var _ SecurityConfig = Security{}

// GetOTPValidity is how long an emailed one-time code stays usable after it is issued or re-sent.
func (s Security) GetOTPValidity() time.Duration {
	if s.OTPValidity <= 0 {
		return 10 * time.Minute
	}
	return s.OTPValidity
}

func (s Security) GetAuthRatePerMinute() int {
	if s.AuthRate <= 0 {
		return 10
	}
	return s.AuthRate
}

func (s Security) GetAuthRateBurst() int {
	if s.AuthBurst <= 0 {
		return 5
	}
	return s.AuthBurst
}

func (s Security) GetTrustedOrigins() []string {
	return s.TrustedOrigins
}

// GetTrustForwardedFor reports whether a fronting proxy sets X-Forwarded-For,
// so the first hop there identifies the client.
func (s Security) GetTrustForwardedFor() bool {
	return s.TrustForwarded
}
