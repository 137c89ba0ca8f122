package verification

import (
	"context"
	"strings"

	"github.com/jrsteele09/go-feed-server/gateway"
	"github.com/jrsteele09/go-feed-server/identity"
	"github.com/jrsteele09/go-feed-server/provisioning"
	"github.com/rs/zerolog"
)

// Machine runs the provider calls around Classify and provisions the account of a
// freshly verified user.
type Machine struct {
	provisioner provisioning.Provisioner
}

func New(provisioner provisioning.Provisioner) *Machine {
	return &Machine{provisioner: provisioner}
}

// Resolve handles one load of the verification page. It makes at most one exchange
// call and one session fetch, in that order.
func (m *Machine) Resolve(ctx context.Context, client identity.Provider, p Params) Outcome {
	signals := Signals{Params: p}
	if p.Error != "" {
		out := Classify(signals)
		zerolog.Ctx(ctx).Warn().Str("error", p.Error).Str("error_description", p.ErrorDescription).Msg("Verification link reported an error")
		return out
	}

	if p.Code != "" {
		signals.Exchanged, signals.ExchangeErr = client.ExchangeCodeForSession(ctx, p.Code)
		if signals.ExchangeErr != nil || p.FlowType == identity.OTPRecovery {
			return m.finish(ctx, Classify(signals))
		}
	}

	signals.Session = m.currentSession(ctx, client)
	return m.finish(ctx, Classify(signals))
}

// VerifyCode completes a sign-up with the 6-digit code from the email.
func (m *Machine) VerifyCode(ctx context.Context, client identity.Provider, email, code string) Outcome {
	sess, err := client.VerifyOTP(ctx, identity.VerifyOTPParams{
		Email: strings.TrimSpace(email),
		Token: strings.TrimSpace(code),
		Type:  identity.OTPSignup,
	})
	if err != nil {
		return m.finish(ctx, Failed(gateway.MsgInvalidCode, err))
	}
	return m.finish(ctx, Classify(Signals{Session: sess}))
}

// ConfirmTokenHash redeems a token hash link. next is where a verified user goes;
// recovery always goes to the password reset page.
func (m *Machine) ConfirmTokenHash(ctx context.Context, client identity.Provider, tokenHash string, typ identity.OTPType, next string) Outcome {
	if typ == "" {
		typ = identity.OTPEmail
	}
	sess, err := client.VerifyOTP(ctx, identity.VerifyOTPParams{TokenHash: tokenHash, Type: typ})
	if err != nil {
		return m.finish(ctx, Failed(gateway.MsgInvalidLink, err))
	}
	if typ == identity.OTPRecovery {
		return m.finish(ctx, Recovery(sess.User))
	}

	out := Classify(Signals{Session: sess})
	if out.Kind == KindVerified && next != "" {
		out.RedirectTo = next
	}
	return m.finish(ctx, out)
}

// currentSession returns the session with an authoritative user. Token claims do not
// carry the confirmation time, so an unconfirmed-looking user is fetched again.
func (m *Machine) currentSession(ctx context.Context, client identity.Provider) *identity.Session {
	sess, err := client.GetSession(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("error_code", identity.ErrorCode(err)).Msg("Session fetch failed during verification")
		return nil
	}
	if sess == nil || sess.User.IsConfirmed() {
		return sess
	}

	user, err := client.GetUser(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("error_code", identity.ErrorCode(err)).Msg("User fetch failed during verification")
		return sess
	}
	sess.User = user
	return sess
}

func (m *Machine) finish(ctx context.Context, out Outcome) Outcome {
	logger := zerolog.Ctx(ctx)
	switch out.Kind {
	case KindError:
		if out.Err != nil {
			logger.Warn().Err(out.Err).Str("error_code", identity.ErrorCode(out.Err)).Msg("Verification failed")
		}
	case KindVerified:
		if m.provisioner != nil {
			if _, err := m.provisioner.EnsureAccount(ctx, out.User); err != nil {
				logger.Error().Err(err).Str("user_id", out.User.ID).Msg("Account provisioning failed, continuing to feed")
			}
		}
	}
	return out
}
