package config

import (
	"net/http"
	"strings"
)

type SecurityConfig interface {
	GetCookieSecure() bool
	GetCookieSameSite() http.SameSite
	GetRefreshCookieName() string
	GetEnableRateLimiting() bool
	GetLoginRateLimit() int
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetCookieSecure() bool {
	return GetEnvBool("COOKIE_SECURE", true)
}

func (Security) GetCookieSameSite() http.SameSite {
	switch strings.ToLower(GetEnv("COOKIE_SAMESITE", "lax")) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (Security) GetRefreshCookieName() string {
	return GetEnv("REFRESH_COOKIE_NAME", "refreshToken")
}

func (Security) GetEnableRateLimiting() bool {
	return GetEnvBool("ENABLE_RATE_LIMITING", true)
}

// GetLoginRateLimit is the number of login attempts allowed per client per minute.
func (Security) GetLoginRateLimit() int {
	return GetEnvInt("LOGIN_RATE_LIMIT", 10)
}
