package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenServiceGenerateAndValidate(t *testing.T) {
	ts := NewTokenService([]byte("test-signing-key"), 24, "gateway-test", jwt.ClaimStrings{"api"}, nil)

	account := &Account{
		ID:    uuid.New(),
		Email: "ada@example.com",
	}

	token, err := ts.Generate(account, "google")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, account.ID.String(), claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "google", claims.Medium)
	assert.Equal(t, "gateway-test", claims.Issuer)
	require.NotNil(t, claims.ExpiresAt)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestTokenServiceRejectsWrongKey(t *testing.T) {
	ts := NewTokenService([]byte("key-one"), 24, "gateway-test", nil, nil)
	other := NewTokenService([]byte("key-two"), 24, "gateway-test", nil, nil)

	token, err := ts.Generate(&Account{ID: uuid.New(), Email: "a@example.com"}, "email")
	require.NoError(t, err)

	_, err = other.Validate(token)
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, errors.As(err, &richErr))
	assert.Equal(t, TextCodeTokenMalformed, richErr.TextCode)
}

func TestTokenServiceExpiredToken(t *testing.T) {
	ts := NewTokenService([]byte("test-signing-key"), -1, "gateway-test", nil, nil)

	token, err := ts.Generate(&Account{ID: uuid.New(), Email: "a@example.com"}, "email")
	require.NoError(t, err)

	_, err = ts.Validate(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenServiceGarbageToken(t *testing.T) {
	ts := NewTokenService([]byte("test-signing-key"), 24, "gateway-test", nil, nil)

	_, err := ts.Validate("not-a-token")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, errors.As(err, &richErr))
	assert.Equal(t, TextCodeTokenMalformed, richErr.TextCode)
}
