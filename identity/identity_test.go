package identity_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jrsteele09/go-blog-server/identity"
	apperrors "github.com/jrsteele09/go-blog-server/internal/errors"
	"github.com/jrsteele09/go-blog-server/principal"
	"github.com/jrsteele09/go-blog-server/users"
	fakeuserrepo "github.com/jrsteele09/go-blog-server/users/repofake"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct{ name string }

func (p fakeProvider) Name() string { return p.name }
func (p fakeProvider) AuthCodeURL(state, challenge string) string {
	return "https://idp.example/auth?state=" + state + "&code_challenge=" + challenge
}
func (p fakeProvider) Exchange(context.Context, string, string) (*identity.Profile, error) {
	return &identity.Profile{Provider: p.name, ProviderSubjectID: "1"}, nil
}

type recordingIssuer struct {
	mu     sync.Mutex
	issued []principal.Principal
	err    error
}

func (r *recordingIssuer) Issue(_ context.Context, _ http.ResponseWriter, p principal.Principal) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	r.issued = append(r.issued, p)
	return "access-" + p.SubjectID, nil
}

type failingRepo struct {
	*fakeuserrepo.FakeUserRepo
}

func (failingRepo) GetByProvider(context.Context, string, string) (*users.User, error) {
	return nil, errors.New("database is locked")
}

type testFixture struct {
	repo   *fakeuserrepo.FakeUserRepo
	issuer *recordingIssuer
	bridge *identity.Bridge
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{repo: fakeuserrepo.NewFakeUserRepo(), issuer: &recordingIssuer{}}
	var err error
	f.bridge, err = identity.NewBridge(f.repo, f.issuer)
	require.NoError(t, err)
	return f
}

func TestRegistry(t *testing.T) {
	registry, err := identity.NewRegistry(fakeProvider{"google"}, fakeProvider{"github"})
	require.NoError(t, err)
	require.Equal(t, []string{"github", "google"}, registry.Names())

	p, err := registry.Get("google")
	require.NoError(t, err)
	require.Equal(t, "google", p.Name())

	_, err = registry.Get("myspace")
	require.ErrorIs(t, err, identity.ErrUnknownProvider)

	_, err = identity.NewRegistry(fakeProvider{"google"}, fakeProvider{"google"})
	require.Error(t, err)
}

func TestPKCE(t *testing.T) {
	verifier, challenge, err := identity.NewPKCE()
	require.NoError(t, err)
	require.Len(t, verifier, 43)
	require.Equal(t, identity.Challenge(verifier), challenge)

	// RFC 7636 appendix B
	require.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", identity.Challenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"))

	a, err := identity.NewState()
	require.NoError(t, err)
	b, err := identity.NewState()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestCompleteCreatesUserOnFirstLogin(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	profile := &identity.Profile{Provider: "google", ProviderSubjectID: "12345", Email: "bob@example.com", DisplayName: "Bob"}

	access, err := f.bridge.Complete(ctx, httptest.NewRecorder(), profile)
	require.NoError(t, err)

	user, err := f.repo.GetByProvider(ctx, "google", "12345")
	require.NoError(t, err)
	require.Equal(t, "google_12345", user.Username)
	require.Equal(t, "Bob", user.Nickname)
	require.Equal(t, "bob@example.com", user.Email)
	require.Equal(t, users.RoleUser, user.Role)
	require.NotEmpty(t, user.PasswordHash)
	require.Equal(t, "access-"+user.ID, access)

	require.Len(t, f.issuer.issued, 1)
	require.Equal(t, user.Principal(), f.issuer.issued[0])

	t.Run("second login reuses the user", func(t *testing.T) {
		_, err := f.bridge.Complete(ctx, httptest.NewRecorder(), profile)
		require.NoError(t, err)
		require.Len(t, f.issuer.issued, 2)
		require.Equal(t, user.ID, f.issuer.issued[1].SubjectID)
	})

	t.Run("the random secret cannot be used to log in", func(t *testing.T) {
		service, err := users.NewService(f.repo)
		require.NoError(t, err)
		_, err = service.Verify(ctx, "google_12345", "")
		require.ErrorIs(t, err, users.ErrPasswordMismatch)
	})
}

func TestCompleteDisplayNameFallbacks(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.bridge.Complete(ctx, httptest.NewRecorder(), &identity.Profile{Provider: "github", ProviderSubjectID: "7", Email: "carol@example.com"})
	require.NoError(t, err)
	user, err := f.repo.GetByProvider(ctx, "github", "7")
	require.NoError(t, err)
	require.Equal(t, "carol", user.Nickname)

	_, err = f.bridge.Complete(ctx, httptest.NewRecorder(), &identity.Profile{Provider: "github", ProviderSubjectID: "8"})
	require.NoError(t, err)
	user, err = f.repo.GetByProvider(ctx, "github", "8")
	require.NoError(t, err)
	require.Equal(t, "github_8", user.Nickname)
}

func TestCompleteFailures(t *testing.T) {
	t.Run("incomplete profile", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.bridge.Complete(context.Background(), httptest.NewRecorder(), &identity.Profile{Provider: "google"})
		require.Error(t, err)
		require.Empty(t, f.issuer.issued)
	})

	t.Run("user store failure is unavailable", func(t *testing.T) {
		issuer := &recordingIssuer{}
		bridge, err := identity.NewBridge(failingRepo{fakeuserrepo.NewFakeUserRepo()}, issuer)
		require.NoError(t, err)
		_, err = bridge.Complete(context.Background(), httptest.NewRecorder(), &identity.Profile{Provider: "google", ProviderSubjectID: "1"})
		require.ErrorIs(t, err, apperrors.ErrUnavailable)
	})

	t.Run("issuer failure propagates", func(t *testing.T) {
		f := setupTestFixture(t)
		f.issuer.err = errors.New("store down")
		_, err := f.bridge.Complete(context.Background(), httptest.NewRecorder(), &identity.Profile{Provider: "google", ProviderSubjectID: "1"})
		require.EqualError(t, err, "store down")
	})

	t.Run("username owned by a local account", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.repo.Create(context.Background(), &users.User{Username: "google_1", PasswordHash: "x", Nickname: "x", Role: users.RoleUser}))
		_, err := f.bridge.Complete(context.Background(), httptest.NewRecorder(), &identity.Profile{Provider: "google", ProviderSubjectID: "1"})
		require.ErrorIs(t, err, users.ErrUserExists)
	})
}

func TestNewBridgeValidation(t *testing.T) {
	_, err := identity.NewBridge(nil, &recordingIssuer{})
	require.Error(t, err)
	_, err = identity.NewBridge(fakeuserrepo.NewFakeUserRepo(), nil)
	require.Error(t, err)
}
