package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestViewRevalidator_AncestorBumpsDescendants(t *testing.T) {
	v := NewViewRevalidator()
	feed := v.ETag("/feed", "user-1")
	thread := v.ETag("/messages/42", "user-1")
	require.NotEqual(t, feed, v.ETag("/feed", "user-2"))

	v.Revalidate("/messages")
	require.Equal(t, feed, v.ETag("/feed", "user-1"))
	require.NotEqual(t, thread, v.ETag("/messages/42", "user-1"))
	require.Equal(t, uint64(0), v.Generation("/messagesx"))

	v.Revalidate("/")
	require.NotEqual(t, feed, v.ETag("/feed", "user-1"))
}

func TestViewRevalidator_NotModified(t *testing.T) {
	v := NewViewRevalidator()

	rec := httptest.NewRecorder()
	require.False(t, v.NotModified(rec, httptest.NewRequest(http.MethodGet, "/feed", nil), "u"))
	etag := rec.Header().Get("ETag")
	require.Equal(t, "private, no-cache", rec.Header().Get("Cache-Control"))

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	require.True(t, v.NotModified(rec, req, "u"))
	require.Equal(t, http.StatusNotModified, rec.Code)
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := newRateLimiter(60, 1, false)
	require.True(t, rl.getLimiter("1.1.1.1").Allow())
	require.False(t, rl.getLimiter("1.1.1.1").Allow())
	require.True(t, rl.getLimiter("2.2.2.2").Allow())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	t.Run("peer address by default", func(t *testing.T) {
		rl := newRateLimiter(60, 1, false)
		require.Equal(t, "10.0.0.1", rl.clientIP(req))
	})

	t.Run("first forwarded hop behind a proxy", func(t *testing.T) {
		rl := newRateLimiter(60, 1, true)
		require.Equal(t, "203.0.113.9", rl.clientIP(req))

		direct := httptest.NewRequest(http.MethodPost, "/login", nil)
		direct.RemoteAddr = "10.0.0.2:5555"
		require.Equal(t, "10.0.0.2", rl.clientIP(direct))
	})
}
