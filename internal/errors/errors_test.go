package errors_test

import (
	"fmt"
	"testing"

	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapf(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		require.NoError(t, apperrors.Wrapf(nil, "context %d", 1))
	})

	t.Run("keeps chain", func(t *testing.T) {
		err := apperrors.Wrapf(apperrors.ErrExchangeFailed, "[verify] code %s", "abc")
		require.True(t, apperrors.Is(err, apperrors.ErrExchangeFailed))
		require.Equal(t, "[verify] code abc: code exchange failed", err.Error())
	})

	t.Run("double wrap", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", apperrors.Wrapf(apperrors.ErrNotFound, "inner"))
		require.True(t, apperrors.Is(err, apperrors.ErrNotFound))
		require.False(t, apperrors.Is(err, apperrors.ErrAlreadyExists))
	})
}
