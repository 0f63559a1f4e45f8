package gateway

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeMissingReferer  = "auth_missing_referer"
	TextCodeNotConfigured   = "auth_provider_not_configured"
	TextCodeProviderUnknown = "auth_provider_unknown"
	TextCodeSignupDisabled  = "auth_signup_disabled"
	TextCodeWeakPassword    = "auth_weak_password"
	TextCodeInvalidLogin    = "auth_invalid_credentials"
	TextCodeAccountExists   = "auth_account_exists"
	TextCodeInvalidState    = "auth_invalid_state"
	TextCodeTokenExpired    = "auth_token_expired"
	TextCodeTokenMalformed  = "auth_token_malformed"
	TextCodeSessionDecode   = "auth_session_decode"
	TextCodeInvalidPhone    = "auth_invalid_phone"
)

// ErrMissingReferer is returned when an initiate request carries no referer,
// so there is nowhere to send the user back after authentication.
var ErrMissingReferer = errors.New("not a valid referer", errors.CategoryBadInput).
	WithTextCode(TextCodeMissingReferer).
	WithCode(errors.CodeBadRequest)

// ErrNotConfigured is returned when a provider has no client id configured.
var ErrNotConfigured = errors.New("provider is not configured, please contact the support team", errors.CategoryBadInput).
	WithTextCode(TextCodeNotConfigured).
	WithCode(errors.CodeBadRequest)

// ErrProviderUnknown is returned when no adapter is registered for the
// requested provider name.
var ErrProviderUnknown = errors.New("unknown authentication provider", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderUnknown).
	WithCode(errors.CodeNotFound)

// ErrSignupDisabled is returned when account creation is disabled for the
// instance and the email holds no pending invite. Callers redirect without
// surfacing details so account existence does not leak.
var ErrSignupDisabled = errors.New("account creation is disabled for this instance", errors.CategoryAuth).
	WithTextCode(TextCodeSignupDisabled).
	WithCode(errors.CodeForbidden)

// ErrWeakPassword is returned when a plaintext credential fails the
// password policy; the clone carries the first validation message.
var ErrWeakPassword = errors.New("password does not meet the password policy", errors.CategoryValidation).
	WithTextCode(TextCodeWeakPassword).
	WithCode(errors.CodeBadRequest)

// ErrInvalidCredentials is returned on local sign-in when the email or
// password does not match.
var ErrInvalidCredentials = errors.New("invalid email or password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidLogin).
	WithCode(errors.CodeUnauthorized)

// ErrAccountExists is returned on explicit local sign-up for an email that
// already has an account.
var ErrAccountExists = errors.New("an account with this email already exists", errors.CategoryValidation).
	WithTextCode(TextCodeAccountExists).
	WithCode(errors.CodeConflict)

// ErrInvalidState is returned when the callback state does not match
// the one issued at initiation.
var ErrInvalidState = errors.New("invalid oauth state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeBadRequest)

// ErrTokenExpired is returned when a session token is past its expiry.
var ErrTokenExpired = errors.New("session token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when a session token cannot be parsed
// or fails signature checks.
var ErrTokenMalformed = errors.New("invalid session token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeSession is returned when token claims cannot be decoded.
var ErrUnableToDecodeSession = errors.New("unable to decode session claims", errors.CategoryAuth).
	WithTextCode(TextCodeSessionDecode).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidPhone is returned when a phone number fails normalization.
var ErrInvalidPhone = errors.New("phone number is not valid", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidPhone).
	WithCode(errors.CodeBadRequest)

// IsUniqueViolation reports whether err is a unique-constraint violation
// from the store. Two concurrent signups for the same email race through
// the not-found branch; the loser surfaces as one of these and is retried
// as a login.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "Duplicate entry")
}
