package codeentry_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/jrsteele09/go-feed-server/codeentry"
	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	calls []string
	err   error
}

func (v *fakeVerifier) verify(_ context.Context, code string) error {
	v.calls = append(v.calls, code)
	return v.err
}

func TestAutoSubmitsOnSixthDigitOnly(t *testing.T) {
	v := &fakeVerifier{}
	e := codeentry.New(v.verify)
	ctx := context.Background()

	for i, d := range "12345" {
		require.Equal(t, codeentry.StateEntering, e.Input(ctx, i, string(d)))
		require.Equal(t, i+1, e.Focus())
	}
	require.Empty(t, v.calls)

	require.Equal(t, codeentry.StateVerified, e.Input(ctx, 5, "6"))
	require.Equal(t, []string{"123456"}, v.calls)

	// Further input after success is ignored.
	e.Input(ctx, 5, "7")
	e.Paste(ctx, "654321")
	require.Len(t, v.calls, 1)
}

func TestIgnoresNonDigits(t *testing.T) {
	v := &fakeVerifier{}
	e := codeentry.New(v.verify)
	ctx := context.Background()

	e.Input(ctx, 0, "a")
	e.Input(ctx, 7, "1")
	e.Input(ctx, -1, "1")
	e.Input(ctx, 0, "٣")
	require.Equal(t, [codeentry.Length]string{}, e.Digits())
	require.Equal(t, 0, e.Focus())
}

func TestPaste(t *testing.T) {
	t.Run("full code submits once", func(t *testing.T) {
		v := &fakeVerifier{}
		e := codeentry.New(v.verify)
		require.Equal(t, codeentry.StateVerified, e.Paste(context.Background(), " 123-456 "))
		require.Equal(t, []string{"123456"}, v.calls)
	})

	t.Run("partial paste fills from the start", func(t *testing.T) {
		v := &fakeVerifier{}
		e := codeentry.New(v.verify)
		require.Equal(t, codeentry.StateEntering, e.Paste(context.Background(), "123"))
		require.Equal(t, [codeentry.Length]string{"1", "2", "3"}, e.Digits())
		require.Equal(t, 3, e.Focus())
		require.Empty(t, v.calls)
	})

	t.Run("non-ASCII digits are dropped", func(t *testing.T) {
		v := &fakeVerifier{}
		e := codeentry.New(v.verify)
		require.Equal(t, codeentry.StateEntering, e.Paste(context.Background(), "١٢٣٤٥٦"))
		require.Equal(t, [codeentry.Length]string{}, e.Digits())
		require.Empty(t, v.calls)

		require.Equal(t, codeentry.StateVerified, e.Paste(context.Background(), "1٢2٣3456"))
		require.Equal(t, []string{"123456"}, v.calls)
	})

	t.Run("multi character input is a paste", func(t *testing.T) {
		v := &fakeVerifier{}
		e := codeentry.New(v.verify)
		require.Equal(t, codeentry.StateVerified, e.Input(context.Background(), 3, "9876543"))
		require.Equal(t, []string{"987654"}, v.calls)
	})
}

func TestBackspace(t *testing.T) {
	e := codeentry.New((&fakeVerifier{}).verify)
	ctx := context.Background()
	e.Paste(ctx, "12")

	e.Backspace(2)
	require.Equal(t, [codeentry.Length]string{"1"}, e.Digits())
	require.Equal(t, 1, e.Focus())

	e.Backspace(0)
	require.Equal(t, [codeentry.Length]string{}, e.Digits())
	require.Equal(t, 0, e.Focus())
}

func TestFailureClearsAndRefocuses(t *testing.T) {
	providerErr := apperrors.Wrapf(apperrors.ErrInvalidOrExpiredLink, "otp_expired")
	v := &fakeVerifier{err: providerErr}
	e := codeentry.New(v.verify)
	ctx := context.Background()

	for i := range codeentry.Length {
		e.Input(ctx, i, strconv.Itoa(i))
	}
	require.Equal(t, codeentry.StateError, e.State())
	require.Equal(t, "Invalid or expired code", e.Message())
	require.ErrorIs(t, e.Err(), apperrors.ErrInvalidOrExpiredLink)
	require.Equal(t, [codeentry.Length]string{}, e.Digits())
	require.Equal(t, 0, e.Focus())

	// Typing again starts a new attempt.
	v.err = nil
	require.Equal(t, codeentry.StateEntering, e.Input(ctx, 0, "4"))
	require.Empty(t, e.Message())
	require.Equal(t, codeentry.StateVerified, e.Paste(ctx, "456789"))
	require.Equal(t, []string{"012345", "456789"}, v.calls)
}

func TestResendRearmsValidity(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	resends := 0
	e := codeentry.New((&fakeVerifier{}).verify,
		codeentry.WithNowFunc(func() time.Time { return now }),
		codeentry.WithResend(func(context.Context) error {
			resends++
			return nil
		}),
	)
	ctx := context.Background()
	require.Equal(t, now.Add(10*time.Minute), e.ExpiresAt())

	e.Paste(ctx, "123")
	now = now.Add(9 * time.Minute)
	require.Equal(t, time.Minute, e.Remaining())

	require.NoError(t, e.Resend(ctx))
	require.Equal(t, 1, resends)
	require.Equal(t, [codeentry.Length]string{}, e.Digits())
	require.Equal(t, 0, e.Focus())
	require.Equal(t, now.Add(10*time.Minute), e.ExpiresAt())

	now = now.Add(11 * time.Minute)
	require.Zero(t, e.Remaining())
}

func TestResendFailureKeepsInput(t *testing.T) {
	e := codeentry.New((&fakeVerifier{}).verify, codeentry.WithResend(func(context.Context) error {
		return apperrors.Wrapf(apperrors.ErrRateLimited, "over_email_send_rate_limit")
	}))
	ctx := context.Background()
	e.Paste(ctx, "12")

	require.ErrorIs(t, e.Resend(ctx), apperrors.ErrRateLimited)
	require.Equal(t, [codeentry.Length]string{"1", "2"}, e.Digits())
	require.Equal(t, "Too many attempts. Please wait a moment and try again.", e.Message())
}
