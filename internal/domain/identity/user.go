package identity

import (
	"regexp"
	"strings"

	"github.com/subtrack/backend/internal/domain/shared"
)

const (
	maxEmailLength    = 200
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes
	maxPasswordLength = 72
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@(.+)$`)

// User represents an account that owns subscriptions.
// It is the aggregate root for identity operations.
type User struct {
	shared.BaseAggregateRoot
	Email        string
	PasswordHash string
	Active       bool
}

// NewUser creates an active user. The password must already be hashed.
func NewUser(email, passwordHash string, clock shared.Clock) (*User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(passwordHash) == "" {
		return nil, shared.NewDomainError(shared.CodeMissingField, "password hash is required")
	}

	user := &User{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(clock.Now()),
		Email:             normalized,
		PasswordHash:      passwordHash,
		Active:            true,
	}

	user.AddDomainEvent(NewUserRegisteredEvent(user, clock.Now()))

	return user, nil
}

// Deactivate disables the account. Deactivating twice is an error.
func (u *User) Deactivate(clock shared.Clock) error {
	if !u.Active {
		return shared.NewDomainError(shared.CodeInvalidState, "user is already deactivated")
	}

	u.Active = false
	u.Touch(clock.Now())
	u.IncrementVersion()

	u.AddDomainEvent(NewUserDeactivatedEvent(u, clock.Now()))

	return nil
}

// IsActive reports whether the user may log in
func (u *User) IsActive() bool {
	return u.Active
}

// NormalizeEmail trims and lower-cases an email and checks its shape
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", shared.NewDomainError(shared.CodeInvalidEmail, "Email cannot be empty")
	}
	if len(email) > maxEmailLength {
		return "", shared.NewDomainError(shared.CodeInvalidEmail, "Email cannot exceed 200 characters")
	}
	if !emailPattern.MatchString(email) {
		return "", shared.NewDomainError(shared.CodeInvalidEmail, "Invalid email format")
	}
	return email, nil
}

// ValidatePassword checks a plain-text password before it is hashed
func ValidatePassword(password string) error {
	if password == "" {
		return shared.NewDomainError(shared.CodeInvalidPassword, "Password cannot be empty")
	}
	if len(password) < minPasswordLength {
		return shared.NewDomainError(shared.CodeInvalidPassword, "Password must be at least 8 characters")
	}
	if len(password) > maxPasswordLength {
		return shared.NewDomainError(shared.CodeInvalidPassword, "Password cannot exceed 72 characters")
	}
	return nil
}
