package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/go-feed-server/identity"
	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
)

// errorBody covers both the current ({error_code, msg}) and the legacy OAuth style
// ({error, error_description}) error payloads.
type errorBody struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
}

type tokenResponse struct {
	AccessToken  string         `json:"access_token"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int64          `json:"expires_in"`
	ExpiresAt    int64          `json:"expires_at"`
	RefreshToken string         `json:"refresh_token"`
	User         *identity.User `json:"user"`
}

func (t *tokenResponse) session(now time.Time) *identity.Session {
	exp := now.Add(time.Duration(t.ExpiresIn) * time.Second)
	if t.ExpiresAt > 0 {
		exp = time.Unix(t.ExpiresAt, 0)
	}
	return &identity.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    exp,
		User:         t.User,
	}
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	bearer string
}

// do performs one call and decodes a 2xx body into out. Transport failures and 5xx
// responses are reported as ErrProviderUnreachable.
func (c *Client) do(ctx context.Context, req request, out any) error {
	raw, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &identity.ProviderError{Op: req.op, Message: "malformed response: " + err.Error(), Kind: apperrors.ErrProviderUnreachable}
	}
	return nil
}

func (c *Client) send(ctx context.Context, req request) ([]byte, error) {
	u := c.f.opts.URL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, apperrors.Wrapf(err, "gotrue %s: encode request", req.op)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return nil, apperrors.Wrapf(err, "gotrue %s: build request", req.op)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.f.opts.AnonKey != "" {
		httpReq.Header.Set("apikey", c.f.opts.AnonKey)
	}
	bearer := req.bearer
	if bearer == "" {
		bearer = c.f.opts.AnonKey
	}
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.f.http.Do(httpReq)
	if err != nil {
		return nil, &identity.ProviderError{Op: req.op, Message: err.Error(), Kind: apperrors.ErrProviderUnreachable}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &identity.ProviderError{Op: req.op, Status: resp.StatusCode, Message: err.Error(), Kind: apperrors.ErrProviderUnreachable}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, decodeError(req.op, resp.StatusCode, raw)
	}
	return raw, nil
}

func decodeError(op string, status int, raw []byte) error {
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)

	code := eb.ErrorCode
	if code == "" {
		code = eb.Error
	}
	msg := firstNonEmpty(eb.Msg, eb.ErrorDescription, eb.Message)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &identity.ProviderError{
		Op:      op,
		Status:  status,
		Code:    code,
		Message: msg,
		Kind:    identity.KindForCode(status, code),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
