package tokenfakerepo

import (
	"sync"

	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
	"github.com/jrsteele09/go-feed-server/token"
)

var _ token.RefreshTokenRepo = (*FakeTokenRepo)(nil)

type FakeTokenRepo struct {
	tokens map[string]*token.RefreshToken
	lock   sync.RWMutex
}

func NewFakeTokensRepo() *FakeTokenRepo {
	return &FakeTokenRepo{tokens: make(map[string]*token.RefreshToken)}
}

func (tr *FakeTokenRepo) Put(refreshToken *token.RefreshToken) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	cp := *refreshToken
	tr.tokens[refreshToken.Token] = &cp
	return nil
}

func (tr *FakeTokenRepo) Delete(token string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	if _, ok := tr.tokens[token]; !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "refresh token")
	}
	delete(tr.tokens, token)
	return nil
}

func (tr *FakeTokenRepo) Get(token string) (*token.RefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	rt, ok := tr.tokens[token]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "refresh token")
	}
	cp := *rt
	return &cp, nil
}

func (tr *FakeTokenRepo) Len() int {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	return len(tr.tokens)
}
