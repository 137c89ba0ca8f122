package fakeuserrepo

import (
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
	"github.com/jrsteele09/go-feed-server/internal/utils"
	"github.com/jrsteele09/go-feed-server/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users    map[string]*users.User
	emailIds map[string]string // email to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	email := users.NormalizeEmail(user.Email)
	if id, ok := ur.emailIds[email]; ok && id != user.ID {
		return apperrors.Wrapf(apperrors.ErrAlreadyExists, "email %s", email)
	}
	cp := *user
	ur.users[user.ID] = &cp
	ur.emailIds[email] = user.ID
	return nil
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[users.NormalizeEmail(email)]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "user %s", email)
	}
	cp := *ur.users[id]
	return &cp, nil
}

func (ur *FakeUserRepo) GetByID(id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	u, ok := ur.users[id]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "user %s", id)
	}
	cp := *u
	return &cp, nil
}

func (ur *FakeUserRepo) SetConfirmed(email string, at time.Time) error {
	return ur.update(email, func(u *users.User) {
		if u.EmailConfirmedAt == nil {
			u.EmailConfirmedAt = utils.Ptr(at)
		}
	})
}

func (ur *FakeUserRepo) SetLastSignIn(email string, at time.Time) error {
	return ur.update(email, func(u *users.User) {
		u.LastSignInAt = utils.Ptr(at)
	})
}

func (ur *FakeUserRepo) SetPasswordHash(id, hash string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	u, ok := ur.users[id]
	if !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "user %s", id)
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now()
	return nil
}

func (ur *FakeUserRepo) SetProfile(id, hash string, metadata map[string]any) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	u, ok := ur.users[id]
	if !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "user %s", id)
	}
	u.PasswordHash = hash
	u.UserMetadata = metadata
	u.UpdatedAt = time.Now()
	return nil
}

func (ur *FakeUserRepo) update(email string, fn func(*users.User)) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	id, ok := ur.emailIds[users.NormalizeEmail(email)]
	if !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "user %s", email)
	}
	fn(ur.users[id])
	return nil
}
