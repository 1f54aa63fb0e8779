package config

import "time"

type TokenConfig interface {
	GetSigningSecret() string
	GetIssuer() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetClockSkew() time.Duration
}

type Tokens struct{}

var _ TokenConfig = Tokens{}

// GetSigningSecret returns the base64 encoded HMAC key. There is no default.
func (Tokens) GetSigningSecret() string {
	return GetEnv("JWT_SECRET_KEY", "")
}

func (Tokens) GetIssuer() string {
	return GetEnv("JWT_ISSUER", "go-blog-server")
}

func (Tokens) GetAccessTokenExpiry() time.Duration {
	return GetEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute)
}

func (Tokens) GetRefreshTokenExpiry() time.Duration {
	return GetEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour) // 7 days
}

// GetClockSkew is the leeway applied to exp checks. Zero unless hosts are known to drift.
func (Tokens) GetClockSkew() time.Duration {
	return GetEnvDuration("JWT_CLOCK_SKEW", 0)
}
