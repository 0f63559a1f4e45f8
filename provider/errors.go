package provider

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeNotConfigured      = "provider_not_configured"
	TextCodeTokenExchangeFail  = "provider_token_exchange_failed"
	TextCodeInvalidGrant       = "provider_invalid_grant"
	TextCodeUserInfoFail       = "provider_user_info_failed"
	TextCodeIdentityIncomplete = "provider_identity_incomplete"
)

// ErrNotConfigured is returned when a provider has no client credentials.
var ErrNotConfigured = goerrors.New("provider is not configured, please contact the support team", goerrors.CategoryBadInput).
	WithTextCode(TextCodeNotConfigured).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenExchangeFailed is returned when the code exchange fails upstream.
var ErrTokenExchangeFailed = goerrors.New("token exchange failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExchangeFail).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidGrant is returned when the authorization code was already
// consumed or has expired.
var ErrInvalidGrant = goerrors.New("authorization code is invalid or expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidGrant).
	WithCode(goerrors.CodeUnauthorized)

// ErrUserInfoFailed is returned when fetching the profile fails.
var ErrUserInfoFailed = goerrors.New("failed to fetch user info", goerrors.CategoryAuth).
	WithTextCode(TextCodeUserInfoFail).
	WithCode(goerrors.CodeUnauthorized)

// ErrIdentityIncomplete is returned when a provider payload is missing
// the email, which downstream reconciliation keys on.
var ErrIdentityIncomplete = goerrors.New("provider did not return an email address", goerrors.CategoryAuth).
	WithTextCode(TextCodeIdentityIncomplete).
	WithCode(goerrors.CodeUnauthorized)

// Error captures normalized provider response details.
type Error struct {
	Provider    string
	Operation   string
	Status      int
	Code        string
	Description string
	Err         error
	Raw         map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return "provider error"
	}

	scope := "provider"
	if e.Provider != "" && e.Operation != "" {
		scope = fmt.Sprintf("%s %s", e.Provider, e.Operation)
	} else if e.Provider != "" {
		scope = e.Provider
	} else if e.Operation != "" {
		scope = e.Operation
	}

	if e.Description != "" {
		return fmt.Sprintf("%s failed: %s", scope, e.Description)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s failed: %s", scope, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", scope, e.Err)
	}

	return fmt.Sprintf("%s failed", scope)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *Error) Metadata() map[string]any {
	if e == nil {
		return nil
	}

	meta := map[string]any{}
	if e.Provider != "" {
		meta["provider"] = e.Provider
	}
	if e.Operation != "" {
		meta["operation"] = e.Operation
	}
	if e.Status != 0 {
		meta["status"] = e.Status
	}
	if e.Code != "" {
		meta["code"] = e.Code
	}
	if e.Description != "" {
		meta["description"] = e.Description
	}
	if len(e.Raw) > 0 {
		meta["raw"] = e.Raw
	}

	return meta
}

// WrapError attaches provider response details to one of the sentinel
// errors above, cloning the base so callers can still match on it.
func WrapError(base *goerrors.Error, provider, operation string, err error) error {
	if base == nil {
		return err
	}

	meta := map[string]any{}
	if provider != "" {
		meta["provider"] = provider
	}
	if operation != "" {
		meta["operation"] = operation
	}

	var perr *Error
	if errors.As(err, &perr) && perr != nil {
		for k, v := range perr.Metadata() {
			meta[k] = v
		}
	} else if err != nil {
		meta["error"] = err.Error()
	}

	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if err != nil {
		clone.Source = err
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}

	return clone
}
