package jwt_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-blog-server/internal/errors"
	"github.com/jrsteele09/go-blog-server/token/jwt"
	"github.com/jrsteele09/go-blog-server/token/keys"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	codec *jwt.Codec
	now   time.Time
}

func setupTestFixture(t *testing.T, options ...jwt.Option) *testFixture {
	t.Helper()
	f := &testFixture{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}

	secret, err := keys.GenerateSecret()
	require.NoError(t, err)
	signer, err := keys.NewHMACSigner(secret)
	require.NoError(t, err)

	options = append([]jwt.Option{jwt.WithNowTime(func() time.Time { return f.now }), jwt.WithIssuer("blog")}, options...)
	f.codec, err = jwt.NewCodec(signer, options...)
	require.NoError(t, err)
	return f
}

func requireKind(t *testing.T, err error, kind jwt.Kind) {
	t.Helper()
	var verr *jwt.VerifyError
	require.True(t, errors.As(err, &verr), "expected *VerifyError, got %v", err)
	require.Equal(t, kind, verr.Kind, verr.Error())
}

func TestAccessRoundTrip(t *testing.T) {
	f := setupTestFixture(t)
	issuedAt := f.now

	token, err := f.codec.IssueAccess("u1", "USER", "Ann")
	require.NoError(t, err)

	for _, offset := range []time.Duration{0, time.Minute, 14*time.Minute + 59*time.Second} {
		f.now = issuedAt.Add(offset)
		claims, err := f.codec.VerifyAccess(token)
		require.NoError(t, err, "offset %s", offset)
		require.Equal(t, "u1", claims.Subject)
		require.Equal(t, "USER", claims.Role)
		require.Equal(t, "Ann", claims.Name)
		require.Equal(t, jwt.UseAccess, claims.TokenUse)
		require.Equal(t, issuedAt.Unix(), claims.IssuedAt.Unix())
		require.Equal(t, issuedAt.Add(jwt.DefaultAccessTTL).Unix(), claims.ExpiresAt.Unix())
	}
}

func TestRenewalTokenCarriesNoRole(t *testing.T) {
	f := setupTestFixture(t)

	token, err := f.codec.IssueRenewal("u1")
	require.NoError(t, err)

	claims, err := f.codec.VerifyRenewal(token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.Subject)
	require.Empty(t, claims.Role)
	require.Empty(t, claims.Name)
	require.Equal(t, f.now.Add(jwt.DefaultRenewalTTL).Unix(), claims.ExpiresAt.Unix())
}

func TestTokensMintedInTheSameSecondDiffer(t *testing.T) {
	f := setupTestFixture(t)

	first, err := f.codec.IssueRenewal("u1")
	require.NoError(t, err)
	second, err := f.codec.IssueRenewal("u1")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestExpiredTokensReportExpired(t *testing.T) {
	f := setupTestFixture(t)
	issuedAt := f.now

	access, err := f.codec.IssueAccess("u1", "USER", "Ann")
	require.NoError(t, err)
	renewal, err := f.codec.IssueRenewal("u1")
	require.NoError(t, err)

	for _, offset := range []time.Duration{jwt.DefaultAccessTTL, jwt.DefaultAccessTTL + time.Second, 24 * time.Hour} {
		f.now = issuedAt.Add(offset)
		_, err := f.codec.Verify(access)
		requireKind(t, err, jwt.Expired)
		require.True(t, jwt.IsExpired(err))
		require.ErrorIs(t, err, apperrors.ErrTokenExpired)
		require.NotErrorIs(t, err, apperrors.ErrInvalidToken)
	}

	f.now = issuedAt.Add(jwt.DefaultRenewalTTL + time.Hour)
	_, err = f.codec.VerifyRenewal(renewal)
	requireKind(t, err, jwt.Expired)
}

func TestLeeway(t *testing.T) {
	f := setupTestFixture(t, jwt.WithLeeway(30*time.Second))
	issuedAt := f.now

	token, err := f.codec.IssueAccess("u1", "USER", "Ann")
	require.NoError(t, err)

	f.now = issuedAt.Add(jwt.DefaultAccessTTL + 10*time.Second)
	_, err = f.codec.VerifyAccess(token)
	require.NoError(t, err)

	f.now = issuedAt.Add(jwt.DefaultAccessTTL + time.Minute)
	_, err = f.codec.VerifyAccess(token)
	requireKind(t, err, jwt.Expired)
}

func TestVerifyFailures(t *testing.T) {
	f := setupTestFixture(t)
	token, err := f.codec.IssueAccess("u1", "USER", "Ann")
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, err := f.codec.Verify("not-a-token")
		requireKind(t, err, jwt.Malformed)
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		require.False(t, jwt.IsExpired(err))
	})

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(token, ".")
		forged, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
			"sub": "u1", "role": "ADMIN", "token_use": "access", "iss": "blog",
			"iat": f.now.Unix(), "exp": f.now.Add(time.Hour).Unix(),
		}).SignedString([]byte(strings.Repeat("x", 32)))
		require.NoError(t, err)
		forgedParts := strings.Split(forged, ".")
		_, err = f.codec.Verify(forgedParts[0] + "." + forgedParts[1] + "." + parts[2])
		requireKind(t, err, jwt.InvalidSignature)
	})

	t.Run("signed with another key", func(t *testing.T) {
		other := setupTestFixture(t)
		foreign, err := other.codec.IssueAccess("u1", "ADMIN", "Mallory")
		require.NoError(t, err)
		_, err = f.codec.Verify(foreign)
		requireKind(t, err, jwt.InvalidSignature)
	})

	t.Run("expired and signed with another key", func(t *testing.T) {
		other := setupTestFixture(t)
		foreign, err := other.codec.IssueAccess("u1", "ADMIN", "Mallory")
		require.NoError(t, err)
		saved := f.now
		f.now = f.now.Add(time.Hour)
		defer func() { f.now = saved }()
		_, err = f.codec.Verify(foreign)
		requireKind(t, err, jwt.InvalidSignature)
	})

	t.Run("alg none", func(t *testing.T) {
		unsigned, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, jwtlib.MapClaims{
			"sub": "u1", "token_use": "access", "exp": f.now.Add(time.Hour).Unix(),
		}).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = f.codec.Verify(unsigned)
		requireKind(t, err, jwt.InvalidSignature)
	})

	t.Run("renewal token used as access token", func(t *testing.T) {
		renewal, err := f.codec.IssueRenewal("u1")
		require.NoError(t, err)
		_, err = f.codec.VerifyAccess(renewal)
		requireKind(t, err, jwt.Malformed)
	})

	t.Run("access token used as renewal token", func(t *testing.T) {
		_, err := f.codec.VerifyRenewal(token)
		requireKind(t, err, jwt.Malformed)
	})
}

func TestSubjectIgnoresExpiry(t *testing.T) {
	f := setupTestFixture(t)
	renewal, err := f.codec.IssueRenewal("u1")
	require.NoError(t, err)

	f.now = f.now.Add(30 * 24 * time.Hour)
	subject, err := f.codec.Subject(renewal)
	require.NoError(t, err)
	require.Equal(t, "u1", subject)

	t.Run("still checks the signature", func(t *testing.T) {
		other := setupTestFixture(t)
		foreign, err := other.codec.IssueRenewal("u2")
		require.NoError(t, err)
		_, err = f.codec.Subject(foreign)
		requireKind(t, err, jwt.InvalidSignature)
	})

	t.Run("rejects access tokens", func(t *testing.T) {
		access, err := f.codec.IssueAccess("u1", "USER", "Ann")
		require.NoError(t, err)
		_, err = f.codec.Subject(access)
		requireKind(t, err, jwt.Malformed)
	})
}

func TestNewCodecValidation(t *testing.T) {
	_, err := jwt.NewCodec(nil)
	require.Error(t, err)

	secret, err := keys.GenerateSecret()
	require.NoError(t, err)
	signer, err := keys.NewHMACSigner(secret)
	require.NoError(t, err)
	_, err = jwt.NewCodec(signer, jwt.WithAccessTTL(0))
	require.Error(t, err)
}
