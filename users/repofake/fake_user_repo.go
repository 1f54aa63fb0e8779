package fakeuserrepo

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-blog-server/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users       map[string]*users.User
	usernameIDs map[string]string // username to user id
	providerIDs map[string]string // provider identity to user id
	lock        sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:       make(map[string]*users.User),
		usernameIDs: make(map[string]string),
		providerIDs: make(map[string]string),
	}
}

func providerKey(provider, subjectID string) string {
	return provider + "|" + subjectID
}

func (ur *FakeUserRepo) Create(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.usernameIDs[user.Username]; ok {
		return users.ErrUserExists
	}
	if user.IsSocial() {
		if _, ok := ur.providerIDs[providerKey(user.Provider, user.ProviderSubjectID)]; ok {
			return users.ErrUserExists
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	stored := *user
	ur.users[user.ID] = &stored
	ur.usernameIDs[user.Username] = user.ID
	if user.IsSocial() {
		ur.providerIDs[providerKey(user.Provider, user.ProviderSubjectID)] = user.ID
	}
	return nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	u, ok := ur.users[id]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (ur *FakeUserRepo) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	ur.lock.RLock()
	id, ok := ur.usernameIDs[username]
	ur.lock.RUnlock()
	if !ok {
		return nil, users.ErrUserNotFound
	}
	return ur.GetByID(ctx, id)
}

func (ur *FakeUserRepo) GetByProvider(ctx context.Context, provider, providerSubjectID string) (*users.User, error) {
	ur.lock.RLock()
	id, ok := ur.providerIDs[providerKey(provider, providerSubjectID)]
	ur.lock.RUnlock()
	if !ok {
		return nil, users.ErrUserNotFound
	}
	return ur.GetByID(ctx, id)
}

func (ur *FakeUserRepo) GetByNickname(_ context.Context, nickname string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	for _, u := range ur.users {
		if u.Nickname == nickname {
			copied := *u
			return &copied, nil
		}
	}
	return nil, users.ErrUserNotFound
}

func (ur *FakeUserRepo) Update(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	u, ok := ur.users[user.ID]
	if !ok {
		return users.ErrUserNotFound
	}
	u.Nickname = user.Nickname
	u.PasswordHash = user.PasswordHash
	u.Email = user.Email
	u.Role = user.Role
	return nil
}

func (ur *FakeUserRepo) Delete(_ context.Context, id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	u, ok := ur.users[id]
	if !ok {
		return users.ErrUserNotFound
	}
	delete(ur.usernameIDs, u.Username)
	if u.IsSocial() {
		delete(ur.providerIDs, providerKey(u.Provider, u.ProviderSubjectID))
	}
	delete(ur.users, id)
	return nil
}

// SetRole changes a stored user's role.
func (ur *FakeUserRepo) SetRole(id, role string) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if u, ok := ur.users[id]; ok {
		u.Role = role
	}
}
