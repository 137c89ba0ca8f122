package accounts_test

import (
	"testing"

	"github.com/jrsteele09/go-feed-server/accounts"
	"github.com/stretchr/testify/require"
)

func TestLocalPart(t *testing.T) {
	tests := map[string]string{
		"a@x.com":            "a",
		" jane.doe@x.com ":   "jane.doe",
		"\"odd@name\"@x.com": "\"odd@name\"",
		"no-at-sign":         "no-at-sign",
	}
	for in, want := range tests {
		require.Equal(t, want, accounts.LocalPart(in), in)
	}
}
