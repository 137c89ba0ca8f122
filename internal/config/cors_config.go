package config

import (
	"slices"
	"strings"
)

// Cors lists the origins allowed to call the JSON API from a browser. "*" allows any
// origin, but credentials are then never allowed.
type Cors struct {
	Origins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

var _ CorsConfig = Cors{}

// AllowedOrigins is a set of normalised origins.
type AllowedOrigins map[string]struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[normaliseOrigin(origin)]
	return ok
}

func (a AllowedOrigins) String() string {
	origins := make([]string, 0, len(a))
	for o := range a {
		origins = append(origins, o)
	}
	slices.Sort(origins)
	return strings.Join(origins, ", ")
}

func (c Cors) GetAllowedOrigins() AllowedOrigins {
	origins := make(AllowedOrigins, len(c.Origins))
	for _, o := range c.Origins {
		if o = normaliseOrigin(o); o != "" {
			origins[o] = struct{}{}
		}
	}
	return origins
}

// Only the session endpoints are exposed cross-origin.
func (Cors) GetAllowedMethods() string {
	return "GET, POST, OPTIONS"
}

func (Cors) GetAllowedHeaders() string {
	return "Content-Type, Accept, X-Request-ID"
}

func normaliseOrigin(o string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
}
