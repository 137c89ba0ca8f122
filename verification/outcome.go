// Package verification resolves what the account verification page should show.
// The three input signals (an exchange code, a provider error and the current
// session) are reduced to exactly one Outcome by Classify.
package verification

import (
	"net/url"
	"strings"

	"github.com/jrsteele09/go-feed-server/gateway"
	"github.com/jrsteele09/go-feed-server/identity"
)

type Kind string

const (
	KindPending  Kind = "pending"
	KindVerified Kind = "verified"
	KindRecovery Kind = "recovery"
	KindError    Kind = "error"
)

const (
	ResetPasswordPath = "/reset-password"
	defaultEmailHint  = "your email"
)

// Outcome is the tagged result of one page load. Which fields are set depends on Kind:
// Email for pending, User for verified and recovery, Reason for error.
type Outcome struct {
	Kind       Kind
	Email      string
	User       *identity.User
	Reason     string
	RedirectTo string
	Err        error
}

func Pending(email string) Outcome {
	if strings.TrimSpace(email) == "" {
		email = defaultEmailHint
	}
	return Outcome{Kind: KindPending, Email: email}
}

func Verified(user *identity.User, next string) Outcome {
	return Outcome{Kind: KindVerified, User: user, RedirectTo: next}
}

func Recovery(user *identity.User) Outcome {
	return Outcome{Kind: KindRecovery, User: user, RedirectTo: ResetPasswordPath}
}

func Failed(reason string, err error) Outcome {
	return Outcome{Kind: KindError, Reason: reason, Err: err}
}

// Params are the query parameters of the verification page.
type Params struct {
	Code             string
	Error            string
	ErrorDescription string
	FlowType         identity.OTPType
	EmailHint        string
}

func ParamsFromQuery(q url.Values) Params {
	return Params{
		Code:             strings.TrimSpace(q.Get("code")),
		Error:            strings.TrimSpace(q.Get("error")),
		ErrorDescription: strings.TrimSpace(q.Get("error_description")),
		FlowType:         identity.ParseOTPType(q.Get("type")),
		EmailHint:        strings.TrimSpace(q.Get("email")),
	}
}

// Signals is everything Classify looks at. ExchangeErr and Exchanged only matter
// when Params.Code is set; Session is the session after any exchange.
type Signals struct {
	Params      Params
	Exchanged   *identity.Session
	ExchangeErr error
	Session     *identity.Session
}

// Classify picks the outcome. The order of the checks is the contract: a provider
// error beats a code, a failed exchange beats any session, and a recovery exchange
// never renders the verification page.
func Classify(s Signals) Outcome {
	p := s.Params
	if p.Error != "" {
		reason := p.ErrorDescription
		if reason == "" {
			reason = p.Error
		}
		return Failed(reason, nil)
	}

	if p.Code != "" {
		if s.ExchangeErr != nil {
			return Failed(gateway.UserMessage(s.ExchangeErr), s.ExchangeErr)
		}
		if p.FlowType == identity.OTPRecovery {
			var user *identity.User
			if s.Exchanged != nil {
				user = s.Exchanged.User
			}
			return Recovery(user)
		}
	}

	switch {
	case s.Session == nil || s.Session.User == nil:
		return Pending(p.EmailHint)
	case !s.Session.User.IsConfirmed():
		return Pending(s.Session.User.Email)
	}
	return Verified(s.Session.User, gateway.FeedPath)
}

// ErrorURL is the verification page showing reason, for flows that fail elsewhere.
func ErrorURL(reason string) string {
	return gateway.VerifyAccountPath + "?" + url.Values{
		"error":             {"access_denied"},
		"error_description": {reason},
	}.Encode()
}
