package cookies

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-feed-server/identity"
)

var _ identity.CookieStore = (*Response)(nil)

// Response is the store used inside server-rendered handlers: writes go straight to the
// response headers, with at most one Set-Cookie line per cookie name.
type Response struct {
	w   http.ResponseWriter
	req *Request
}

func NewResponse(w http.ResponseWriter, r *http.Request) *Response {
	return &Response{w: w, req: FromRequest(r)}
}

func (c *Response) Get(name string) (string, bool) {
	return c.req.Get(name)
}

func (c *Response) Set(name, value string, opts identity.CookieOptions) {
	c.req.Set(name, value, opts)
	c.write(name)
}

func (c *Response) Remove(name string, opts identity.CookieOptions) {
	c.req.Remove(name, opts)
	c.write(name)
}

func (c *Response) write(name string) {
	ck := c.req.lookup(name)
	if ck == nil {
		return
	}
	header := c.w.Header()
	kept := make([]string, 0, len(header["Set-Cookie"]))
	for _, line := range header["Set-Cookie"] {
		if !strings.HasPrefix(line, name+"=") {
			kept = append(kept, line)
		}
	}
	if v := ck.String(); v != "" {
		kept = append(kept, v)
	}
	header["Set-Cookie"] = kept
}
