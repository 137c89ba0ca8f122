// Package cookies implements identity.CookieStore for each execution context:
// the edge interceptor (Request), server-rendered handlers (Response) and
// browser-like clients that persist cookies on disk (Jar).
package cookies

import (
	"net/http"

	"github.com/jrsteele09/go-feed-server/identity"
)

var _ identity.CookieStore = (*Request)(nil)

// Request reads cookies from an inbound request and accumulates writes instead of
// applying them. The pending writes are applied once, to both the response and a
// forwarded copy of the request, by Apply.
type Request struct {
	r       *http.Request
	pending []*http.Cookie
}

func FromRequest(r *http.Request) *Request {
	return &Request{r: r}
}

// Get sees pending writes before the request's own cookies, so a refresh followed by a
// read within the same request observes the new value.
func (c *Request) Get(name string) (string, bool) {
	if ck := c.lookup(name); ck != nil {
		if ck.MaxAge < 0 {
			return "", false
		}
		return ck.Value, true
	}
	if c.r == nil {
		return "", false
	}
	ck, err := c.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return ck.Value, true
}

func (c *Request) Set(name, value string, opts identity.CookieOptions) {
	c.put(newCookie(name, value, opts))
}

func (c *Request) Remove(name string, opts identity.CookieOptions) {
	ck := newCookie(name, "", opts)
	ck.MaxAge = -1
	c.put(ck)
}

// Writes returns the accumulated cookie writes in first-write order.
func (c *Request) Writes() []*http.Cookie {
	out := make([]*http.Cookie, len(c.pending))
	for i, ck := range c.pending {
		cp := *ck
		out[i] = &cp
	}
	return out
}

// Apply writes the pending cookies to w and returns a clone of r whose Cookie header
// reflects them.
func (c *Request) Apply(w http.ResponseWriter, r *http.Request) *http.Request {
	for _, ck := range c.pending {
		http.SetCookie(w, ck)
	}
	return c.Forward(r)
}

// Forward returns a clone of r with the pending writes merged into its Cookie header.
func (c *Request) Forward(r *http.Request) *http.Request {
	fwd := r.Clone(r.Context())
	if len(c.pending) == 0 {
		return fwd
	}

	merged := make([]*http.Cookie, 0, len(r.Cookies())+len(c.pending))
	for _, ck := range r.Cookies() {
		if c.lookup(ck.Name) == nil {
			merged = append(merged, &http.Cookie{Name: ck.Name, Value: ck.Value})
		}
	}
	for _, ck := range c.pending {
		if ck.MaxAge >= 0 {
			merged = append(merged, &http.Cookie{Name: ck.Name, Value: ck.Value})
		}
	}

	fwd.Header.Del("Cookie")
	for _, ck := range merged {
		fwd.AddCookie(ck)
	}
	return fwd
}

func (c *Request) lookup(name string) *http.Cookie {
	for _, ck := range c.pending {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

// put records a write; a later write to the same name replaces the earlier one in place.
func (c *Request) put(ck *http.Cookie) {
	for i, existing := range c.pending {
		if existing.Name == ck.Name {
			c.pending[i] = ck
			return
		}
	}
	c.pending = append(c.pending, ck)
}

func newCookie(name, value string, opts identity.CookieOptions) *http.Cookie {
	path := opts.Path
	if path == "" {
		path = "/"
	}
	sameSite := opts.SameSite
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   opts.MaxAge,
		HttpOnly: opts.HttpOnly,
		Secure:   opts.Secure,
		SameSite: sameSite,
	}
}
