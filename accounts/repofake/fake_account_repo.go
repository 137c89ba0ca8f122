package fakeaccountrepo

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-feed-server/accounts"
	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
)

var _ accounts.Repo = (*FakeAccountRepo)(nil)

type FakeAccountRepo struct {
	accounts map[string]*accounts.Account
	lock     sync.RWMutex

	// InsertErr, when set, is returned by Insert without storing anything.
	InsertErr error
}

func NewFakeAccountRepo() *FakeAccountRepo {
	return &FakeAccountRepo{accounts: make(map[string]*accounts.Account)}
}

func (ar *FakeAccountRepo) Get(_ context.Context, id string) (*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	a, ok := ar.accounts[id]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "account %s", id)
	}
	cp := *a
	return &cp, nil
}

func (ar *FakeAccountRepo) Insert(_ context.Context, account *accounts.Account) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	if ar.InsertErr != nil {
		return ar.InsertErr
	}
	if _, ok := ar.accounts[account.ID]; ok {
		return apperrors.Wrapf(apperrors.ErrAlreadyExists, "account %s", account.ID)
	}
	cp := *account
	ar.accounts[account.ID] = &cp
	return nil
}

func (ar *FakeAccountRepo) Len() int {
	ar.lock.RLock()
	defer ar.lock.RUnlock()
	return len(ar.accounts)
}
