package auth

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-blog-server/users"
)

// MaxUsernameLength bounds login input before it reaches the identity store.
// It matches the limit applied at signup.
const MaxUsernameLength = users.MaxUsernameLength

// ValidateLoginCredentials rejects empty or oversized login input.
func ValidateLoginCredentials(username, password string) error {
	username = users.NormalizeUsername(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) > MaxUsernameLength {
		return fmt.Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// ValidateRedirectURI validates redirect URI format
func ValidateRedirectURI(uri string) error {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return fmt.Errorf("redirect_uri is required")
	}

	// Must start with http:// or https://
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		return fmt.Errorf("redirect_uri must use http or https scheme")
	}

	// Should not contain fragments
	if strings.Contains(uri, "#") {
		return fmt.Errorf("redirect_uri must not contain fragments")
	}

	if _, err := url.Parse(uri); err != nil {
		return fmt.Errorf("redirect_uri is not a valid URL: %w", err)
	}

	return nil
}

// ValidateState validates OAuth state parameter
func ValidateState(state string) error {
	if state == "" {
		return fmt.Errorf("state parameter is required")
	}

	// Should be reasonably long for CSRF protection
	if len(state) < 8 {
		return fmt.Errorf("state parameter should be at least 8 characters for security")
	}

	// Should not contain whitespace
	if strings.TrimSpace(state) != state {
		return fmt.Errorf("state parameter must not contain leading/trailing whitespace")
	}

	return nil
}
