package users_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	apperrors "github.com/jrsteele09/go-blog-server/internal/errors"
	"github.com/jrsteele09/go-blog-server/users"
	fakeuserrepo "github.com/jrsteele09/go-blog-server/users/repofake"
	"github.com/stretchr/testify/require"
)

const testPassword = "Password123"

type testFixture struct {
	repo    *fakeuserrepo.FakeUserRepo
	service *users.Service
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	repo := fakeuserrepo.NewFakeUserRepo()
	service, err := users.NewService(repo)
	require.NoError(t, err)
	return &testFixture{repo: repo, service: service}
}

func (f *testFixture) register(t *testing.T, username string) *users.User {
	t.Helper()
	user, err := f.service.Register(context.Background(), users.SignupRequest{
		Username: username,
		Password: testPassword,
		Nickname: "Nick " + username,
		Email:    username + "@example.com",
	})
	require.NoError(t, err)
	return user
}

func TestRegister(t *testing.T) {
	f := setupTestFixture(t)
	user := f.register(t, "ann")
	require.Equal(t, users.RoleUser, user.Role)
	require.NotEqual(t, testPassword, user.PasswordHash)

	t.Run("duplicate", func(t *testing.T) {
		_, err := f.service.Register(context.Background(), users.SignupRequest{Username: "ann", Password: testPassword, Nickname: "Ann2"})
		require.ErrorIs(t, err, users.ErrUserExists)
	})

	t.Run("nickname taken", func(t *testing.T) {
		_, err := f.service.Register(context.Background(), users.SignupRequest{Username: "bob", Password: testPassword, Nickname: "Nick ann"})
		require.ErrorIs(t, err, users.ErrNicknameTaken)
		require.ErrorIs(t, err, users.ErrUserExists)
	})

	t.Run("username is trimmed", func(t *testing.T) {
		user, err := f.service.Register(context.Background(), users.SignupRequest{Username: "  dan ", Password: testPassword, Nickname: "Dan"})
		require.NoError(t, err)
		require.Equal(t, "dan", user.Username)
	})

	invalid := []struct {
		name string
		req  users.SignupRequest
	}{
		{"weak password", users.SignupRequest{Username: "bob", Password: "short", Nickname: "Bob"}},
		{"missing nickname", users.SignupRequest{Username: "bob", Password: testPassword}},
		{"missing username", users.SignupRequest{Username: "  ", Password: testPassword, Nickname: "Bob"}},
		{"username too long", users.SignupRequest{Username: strings.Repeat("b", users.MaxUsernameLength+1), Password: testPassword, Nickname: "Bob"}},
		{"password too long", users.SignupRequest{Username: "bob", Password: "Aa1" + strings.Repeat("x", 80), Nickname: "Bob"}},
		{"nickname too long", users.SignupRequest{Username: "bob", Password: testPassword, Nickname: strings.Repeat("n", users.MaxNicknameLength+1)}},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.Register(context.Background(), tc.req)
			require.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}

	t.Run("longest username can log in", func(t *testing.T) {
		username := strings.Repeat("c", users.MaxUsernameLength)
		_, err := f.service.Register(context.Background(), users.SignupRequest{Username: username, Password: testPassword, Nickname: "Carol"})
		require.NoError(t, err)
		_, err = f.service.Verify(context.Background(), username, testPassword)
		require.NoError(t, err)
	})
}

func TestVerify(t *testing.T) {
	f := setupTestFixture(t)
	user := f.register(t, "ann")
	ctx := context.Background()

	p, err := f.service.Verify(ctx, "ann", testPassword)
	require.NoError(t, err)
	require.Equal(t, user.ID, p.SubjectID)
	require.Equal(t, users.RoleUser, p.Role)
	require.Equal(t, "Nick ann", p.DisplayName)

	_, err = f.service.Verify(ctx, "ann", "wrong")
	require.ErrorIs(t, err, users.ErrPasswordMismatch)

	_, err = f.service.Verify(ctx, "nobody", testPassword)
	require.ErrorIs(t, err, users.ErrUserNotFound)

	p, err = f.service.Verify(ctx, " ann\t", testPassword)
	require.NoError(t, err)
	require.Equal(t, user.ID, p.SubjectID)

	t.Run("lookup sees role changes", func(t *testing.T) {
		f.repo.SetRole(user.ID, users.RoleAdmin)
		p, err := f.service.Lookup(ctx, user.ID)
		require.NoError(t, err)
		require.Equal(t, users.RoleAdmin, p.Role)
	})
}

func TestWithdraw(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	user := f.register(t, "ann")

	require.ErrorIs(t, f.service.Withdraw(ctx, user.ID, "wrong"), users.ErrPasswordMismatch)
	require.NoError(t, f.service.Withdraw(ctx, user.ID, testPassword))
	_, err := f.repo.GetByID(ctx, user.ID)
	require.ErrorIs(t, err, users.ErrUserNotFound)

	t.Run("social users need no password", func(t *testing.T) {
		social := &users.User{Username: "google_1", PasswordHash: "x", Nickname: "G", Role: users.RoleUser, Provider: "google", ProviderSubjectID: "1"}
		require.NoError(t, f.repo.Create(ctx, social))
		require.NoError(t, f.service.Withdraw(ctx, social.ID, ""))
	})
}

func TestEnsureAdmin(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.EnsureAdmin(ctx, "", ""))
	require.NoError(t, f.service.EnsureAdmin(ctx, "root", testPassword))
	require.NoError(t, f.service.EnsureAdmin(ctx, "root", "ignored"))

	p, err := f.service.Verify(ctx, "root", testPassword)
	require.NoError(t, err)
	require.Equal(t, users.RoleAdmin, p.Role)
}

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, users.ValidatePasswordStrength("Abcdefg1"))
	require.NoError(t, users.ValidatePasswordStrength("Aa1"+strings.Repeat("x", users.MaxPasswordBytes-3)))
	for _, weak := range []string{
		"Abc1",
		"abcdefg1",
		"ABCDEFG1",
		"Abcdefgh",
		"Aa1" + strings.Repeat("x", users.MaxPasswordBytes-2),
		"Aa1" + strings.Repeat("é", 35),
	} {
		require.ErrorIs(t, users.ValidatePasswordStrength(weak), apperrors.ErrInvalidInput, weak)
	}
}

func TestValidateNickname(t *testing.T) {
	require.NoError(t, users.ValidateNickname("Jo"))
	require.NoError(t, users.ValidateNickname(strings.Repeat("é", users.MaxNicknameLength)))
	require.ErrorIs(t, users.ValidateNickname(" J "), apperrors.ErrInvalidInput)
	require.ErrorIs(t, users.ValidateNickname(strings.Repeat("n", users.MaxNicknameLength+1)), apperrors.ErrInvalidInput)
}

func TestUpdateNickname(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	ann := f.register(t, "ann")
	f.register(t, "bob")

	require.NoError(t, f.service.UpdateNickname(ctx, ann.ID, " Annie "))
	p, err := f.service.Lookup(ctx, ann.ID)
	require.NoError(t, err)
	require.Equal(t, "Annie", p.DisplayName)

	require.NoError(t, f.service.UpdateNickname(ctx, ann.ID, "Annie"), "same nickname is a no-op")
	require.ErrorIs(t, f.service.UpdateNickname(ctx, ann.ID, "Nick bob"), users.ErrNicknameTaken)
	require.ErrorIs(t, f.service.UpdateNickname(ctx, ann.ID, "A"), apperrors.ErrInvalidInput)
	require.ErrorIs(t, f.service.UpdateNickname(ctx, "missing", "Valid"), users.ErrUserNotFound)
}

func TestChangePassword(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	ann := f.register(t, "ann")
	const next = "NewPassword456"

	require.ErrorIs(t, f.service.ChangePassword(ctx, ann.ID, "wrong", next), users.ErrPasswordMismatch)
	require.ErrorIs(t, f.service.ChangePassword(ctx, ann.ID, testPassword, testPassword), apperrors.ErrInvalidInput)
	require.ErrorIs(t, f.service.ChangePassword(ctx, ann.ID, testPassword, "weak"), apperrors.ErrInvalidInput)

	require.NoError(t, f.service.ChangePassword(ctx, ann.ID, testPassword, next))
	_, err := f.service.Verify(ctx, "ann", testPassword)
	require.ErrorIs(t, err, users.ErrPasswordMismatch)
	_, err = f.service.Verify(ctx, "ann", next)
	require.NoError(t, err)

	t.Run("social users have no password", func(t *testing.T) {
		social := &users.User{Username: "google_1", PasswordHash: "x", Nickname: "G1", Role: users.RoleUser, Provider: "google", ProviderSubjectID: "1"}
		require.NoError(t, f.repo.Create(ctx, social))
		require.ErrorIs(t, f.service.ChangePassword(ctx, social.ID, "", next), apperrors.ErrInvalidInput)
	})
}

type brokenRepo struct {
	*fakeuserrepo.FakeUserRepo
}

func (brokenRepo) GetByUsername(context.Context, string) (*users.User, error) {
	return nil, errors.New("disk I/O error")
}

func TestTaken(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.register(t, "ann")

	taken, err := f.service.UsernameTaken(ctx, " ann ")
	require.NoError(t, err)
	require.True(t, taken)
	taken, err = f.service.UsernameTaken(ctx, "bob")
	require.NoError(t, err)
	require.False(t, taken)

	taken, err = f.service.NicknameTaken(ctx, "Nick ann")
	require.NoError(t, err)
	require.True(t, taken)
	taken, err = f.service.NicknameTaken(ctx, "Nick bob")
	require.NoError(t, err)
	require.False(t, taken)

	t.Run("store failure", func(t *testing.T) {
		service, err := users.NewService(brokenRepo{f.repo})
		require.NoError(t, err)
		_, err = service.UsernameTaken(ctx, "ann")
		require.ErrorIs(t, err, apperrors.ErrUnavailable)
	})
}
