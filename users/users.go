package users

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/jrsteele09/go-blog-server/internal/errors"
	"github.com/jrsteele09/go-blog-server/principal"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type User struct {
	ID           string    `json:"id,omitempty"`       // Unique identifier, the subject of every token
	Username     string    `json:"username,omitempty"` // Unique login name
	PasswordHash string    `json:"-"`                  // bcrypt hash - never serialize
	Nickname     string    `json:"nickname,omitempty"` // Display name
	Email        string    `json:"email,omitempty"`
	Role         string    `json:"role,omitempty"`
	DateJoined   time.Time `json:"date_joined,omitempty"`

	// Set only for users created through a third-party login.
	Provider          string `json:"provider,omitempty"`
	ProviderSubjectID string `json:"-"`
}

// Principal is the identity carried in this user's access tokens.
func (u *User) Principal() principal.Principal {
	return principal.Principal{
		SubjectID:   u.ID,
		Role:        u.Role,
		DisplayName: u.Nickname,
	}
}

// IsSocial reports whether the user signs in through a third-party provider.
func (u *User) IsSocial() bool {
	return u.Provider != ""
}

const (
	// MaxUsernameLength bounds usernames in bytes, at signup and at login.
	MaxUsernameLength = 64
	// MaxPasswordBytes is the longest password bcrypt can hash.
	MaxPasswordBytes  = 72
	MinNicknameLength = 2
	MaxNicknameLength = 20
)

// ErrNicknameTaken is returned when another account already uses a nickname.
var ErrNicknameTaken = fmt.Errorf("nickname already in use: %w", ErrUserExists)

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{apperrors.ErrInvalidInput}, args...)...)
}

// NormalizeUsername is applied to every username before it is stored or
// looked up.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

func ValidateUsername(username string) error {
	username = NormalizeUsername(username)
	if username == "" {
		return invalidInput("username is required")
	}
	if len(username) > MaxUsernameLength {
		return invalidInput("username must be at most %d characters", MaxUsernameLength)
	}
	return nil
}

func ValidateNickname(nickname string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(nickname))
	if n < MinNicknameLength || n > MaxNicknameLength {
		return invalidInput("nickname must be %d to %d characters", MinNicknameLength, MaxNicknameLength)
	}
	return nil
}

// ValidatePasswordStrength checks if password meets security requirements:
// - Between 8 characters and 72 bytes long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return invalidInput("password must be at least 8 characters long")
	}
	if len(password) > MaxPasswordBytes {
		return invalidInput("password must be at most %d bytes long", MaxPasswordBytes)
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return invalidInput("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return invalidInput("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return invalidInput("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
