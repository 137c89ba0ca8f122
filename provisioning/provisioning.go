// Package provisioning creates the local account row for a verified user.
package provisioning

import (
	"context"
	"time"

	"github.com/jrsteele09/go-feed-server/accounts"
	"github.com/jrsteele09/go-feed-server/identity"
	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
	"github.com/jrsteele09/go-feed-server/internal/metrics"
	"github.com/jrsteele09/go-feed-server/internal/utils"
	"github.com/rs/zerolog"
)

// Provisioner is what sign-in and verification need from this package.
type Provisioner interface {
	EnsureAccount(ctx context.Context, user *identity.User) (Result, error)
}

type Result struct {
	Account *accounts.Account
	Created bool
}

type Service struct {
	repo    accounts.Repo
	metrics *metrics.Metrics
	now     func() time.Time
}

var _ Provisioner = (*Service)(nil)

type Option func(*Service)

func WithNowFunc(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(repo accounts.Repo, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{repo: repo, metrics: m, now: time.Now}
	if s.metrics == nil {
		s.metrics = metrics.Discard()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureAccount returns the user's account, creating it on first call. It is safe to
// call repeatedly and concurrently for the same user: exactly one row results.
//
// user must have a confirmed email; an unconfirmed user is rejected with
// ErrEmailUnconfirmed before the store is touched.
func (s *Service) EnsureAccount(ctx context.Context, user *identity.User) (Result, error) {
	if user == nil || user.ID == "" {
		return Result{}, apperrors.Wrapf(apperrors.ErrEmailUnconfirmed, "EnsureAccount called without a user")
	}
	if !user.IsConfirmed() {
		return Result{}, apperrors.Wrapf(apperrors.ErrEmailUnconfirmed, "EnsureAccount called for unconfirmed user %s", user.ID)
	}

	existing, err := s.repo.Get(ctx, user.ID)
	if err == nil {
		return Result{Account: existing}, nil
	}
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		return Result{}, s.fail(ctx, user, err)
	}

	account := newAccount(user, s.now())
	err = s.repo.Insert(ctx, account)
	switch {
	case err == nil:
		s.metrics.ProvisioningCreated.Inc()
		zerolog.Ctx(ctx).Info().Str("user_id", user.ID).Str("username", account.Username).Msg("Account provisioned")
		return Result{Account: account, Created: true}, nil
	case apperrors.Is(err, apperrors.ErrAlreadyExists):
		// Lost a race with a concurrent call for the same user.
		if existing, gerr := s.repo.Get(ctx, user.ID); gerr == nil {
			return Result{Account: existing}, nil
		}
		return Result{Account: account}, nil
	default:
		return Result{}, s.fail(ctx, user, err)
	}
}

func (s *Service) fail(ctx context.Context, user *identity.User, err error) error {
	s.metrics.ProvisioningFailures.Inc()
	zerolog.Ctx(ctx).Error().Err(err).Str("user_id", user.ID).Msg("Account provisioning failed")
	return apperrors.Wrapf(apperrors.ErrProfileProvisioningFailed, "user %s: %v", user.ID, err)
}

func newAccount(user *identity.User, now time.Time) *accounts.Account {
	username := utils.MapString(user.UserMetadata, "username")
	if username == "" {
		username = accounts.LocalPart(user.Email)
	}
	return &accounts.Account{
		ID:        user.ID,
		Email:     user.Email,
		Username:  username,
		FullName:  utils.NonEmptyPtr(utils.MapString(user.UserMetadata, "full_name")),
		CreatedAt: now,
	}
}
