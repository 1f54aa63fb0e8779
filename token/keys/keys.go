package keys

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// MinSecretLength is the smallest HS256 key accepted, in bytes.
const MinSecretLength = 32

var ErrMissingSecret = errors.New("signing secret is not set")

// DecodeSecret decodes a standard or URL-safe base64 secret and enforces MinSecretLength.
func DecodeSecret(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrMissingSecret
	}

	var (
		secret []byte
		err    error
	)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if secret, err = enc.DecodeString(encoded); err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("signing secret is not valid base64: %w", err)
	}
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	return secret, nil
}

// GenerateSecret returns a random base64 encoded secret of MinSecretLength bytes.
func GenerateSecret() (string, error) {
	secret := make([]byte, MinSecretLength)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("failed to generate HMAC secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(secret), nil
}
