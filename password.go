package gateway

import (
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", goerrors.New("password must not be empty", goerrors.CategoryValidation).
			WithTextCode(TextCodeWeakPassword)
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// RandomPasswordHash generates an unguessable server-side credential for
// accounts whose password is autoset (provider logins).
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}

// PasswordPolicy validates plaintext credentials before they are hashed.
// The zero value requires 8 to 100 characters.
type PasswordPolicy struct {
	MinLength int
	MaxLength int
}

// Validate checks the password against the policy, returning an
// ErrWeakPassword clone carrying the first validation message.
func (p PasswordPolicy) Validate(password string) error {
	min := p.MinLength
	if min <= 0 {
		min = 8
	}
	max := p.MaxLength
	if max <= 0 {
		max = 100
	}

	err := validation.Validate(password,
		validation.Required,
		validation.Length(min, max),
	)
	if err == nil {
		return nil
	}

	weak := ErrWeakPassword.Clone()
	weak.Message = firstValidationMessage(err)
	weak.Source = err
	return weak
}

// firstValidationMessage flattens an ozzo validation error to its first
// human-readable message. Field errors come back as a map, so the keys
// are sorted to keep the chosen message stable across runs.
func firstValidationMessage(err error) string {
	if err == nil {
		return ""
	}

	if verrs, ok := err.(validation.Errors); ok {
		fields := make([]string, 0, len(verrs))
		for field := range verrs {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		for _, field := range fields {
			if v := verrs[field]; v != nil {
				return v.Error()
			}
		}
	}

	return err.Error()
}
