package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-blog-server/token/keys"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRenewalTTL = 7 * 24 * time.Hour

	UseAccess  = "access"
	UseRefresh = "refresh"
)

// Claims is the claim set shared by access and renewal tokens. Role and
// Name are only populated on access tokens.
type Claims struct {
	Role     string `json:"role,omitempty"`
	Name     string `json:"name,omitempty"`
	TokenUse string `json:"token_use"`
	jwtlib.RegisteredClaims
}

// Codec issues and verifies access and renewal tokens with a single signer.
// It holds no mutable state after construction.
type Codec struct {
	signer     keys.Signer
	accessTTL  time.Duration
	renewalTTL time.Duration
	issuer     string
	leeway     time.Duration
	now        func() time.Time
}

type Option func(*Codec)

func WithAccessTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		c.accessTTL = ttl
	}
}

func WithRenewalTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		c.renewalTTL = ttl
	}
}

func WithIssuer(issuer string) Option {
	return func(c *Codec) {
		c.issuer = issuer
	}
}

// WithLeeway tolerates clock drift between hosts when checking exp.
func WithLeeway(leeway time.Duration) Option {
	return func(c *Codec) {
		c.leeway = leeway
	}
}

// WithNowTime overrides the clock used for iat, exp and verification.
func WithNowTime(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

func NewCodec(signer keys.Signer, options ...Option) (*Codec, error) {
	if signer == nil {
		return nil, errors.New("[NewCodec] missing signer")
	}
	c := &Codec{
		signer:     signer,
		accessTTL:  DefaultAccessTTL,
		renewalTTL: DefaultRenewalTTL,
		now:        time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.accessTTL <= 0 || c.renewalTTL <= 0 {
		return nil, fmt.Errorf("[NewCodec] token lifetimes must be positive (access %s, renewal %s)", c.accessTTL, c.renewalTTL)
	}
	return c, nil
}

func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

func (c *Codec) RenewalTTL() time.Duration {
	return c.renewalTTL
}

// IssueAccess mints a short lived bearer token carrying the principal's attributes.
func (c *Codec) IssueAccess(subject, role, displayName string) (string, error) {
	claims := c.registered(subject, c.accessTTL)
	return c.sign(&Claims{
		Role:             role,
		Name:             displayName,
		TokenUse:         UseAccess,
		RegisteredClaims: claims,
	})
}

// IssueRenewal mints a long lived token that only identifies the subject.
func (c *Codec) IssueRenewal(subject string) (string, error) {
	return c.sign(&Claims{
		TokenUse:         UseRefresh,
		RegisteredClaims: c.registered(subject, c.renewalTTL),
	})
}

// Verify checks the signature and then the expiry of token. Failures are
// always a *VerifyError.
func (c *Codec) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	if _, err := c.parser().ParseWithClaims(token, claims, c.signer.GetVerificationKey); err != nil {
		return nil, classify(err)
	}
	if claims.Subject == "" {
		return nil, &VerifyError{Kind: Malformed, Err: errors.New("missing subject")}
	}
	return claims, nil
}

// VerifyAccess is Verify restricted to access tokens.
func (c *Codec) VerifyAccess(token string) (*Claims, error) {
	return c.verifyUse(token, UseAccess)
}

// VerifyRenewal is Verify restricted to renewal tokens.
func (c *Codec) VerifyRenewal(token string) (*Claims, error) {
	return c.verifyUse(token, UseRefresh)
}

// Subject returns the subject of a correctly signed renewal token whether
// or not it has expired.
func (c *Codec) Subject(token string) (string, error) {
	claims := &Claims{}
	parser := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{c.signer.GetSigningMethod().Alg()}),
		jwtlib.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(token, claims, c.signer.GetVerificationKey); err != nil {
		return "", classify(err)
	}
	if claims.TokenUse != UseRefresh || claims.Subject == "" {
		return "", &VerifyError{Kind: Malformed, Err: errors.New("not a renewal token")}
	}
	return claims.Subject, nil
}

func (c *Codec) verifyUse(token, use string) (*Claims, error) {
	claims, err := c.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.TokenUse != use {
		return nil, &VerifyError{Kind: Malformed, Err: fmt.Errorf("token_use %q, want %q", claims.TokenUse, use)}
	}
	return claims, nil
}

func (c *Codec) parser() *jwtlib.Parser {
	options := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{c.signer.GetSigningMethod().Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithIssuedAt(),
		jwtlib.WithLeeway(c.leeway),
		jwtlib.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		options = append(options, jwtlib.WithIssuer(c.issuer))
	}
	return jwtlib.NewParser(options...)
}

func (c *Codec) registered(subject string, ttl time.Duration) jwtlib.RegisteredClaims {
	now := c.now().Truncate(time.Second)
	return jwtlib.RegisteredClaims{
		Issuer:    c.issuer,
		Subject:   subject,
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}

func (c *Codec) sign(claims *Claims) (string, error) {
	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signed, nil
}
