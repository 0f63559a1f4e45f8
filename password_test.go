package gateway

import (
	"errors"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("sup3r-secret")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "sup3r-secret", hash)

	require.NoError(t, ComparePasswordAndHash("sup3r-secret", hash))

	err = ComparePasswordAndHash("wrong", hash)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := HashPassword("")
	require.Error(t, err)
}

func TestRandomPasswordHashNeverMatches(t *testing.T) {
	hash := RandomPasswordHash()
	require.NotEmpty(t, hash)

	// two generated hashes are independent
	assert.NotEqual(t, hash, RandomPasswordHash())
}

func TestPasswordPolicyValidate(t *testing.T) {
	policy := PasswordPolicy{MinLength: 8}

	require.NoError(t, policy.Validate("long-enough"))

	err := policy.Validate("short")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, errors.As(err, &richErr))
	assert.Equal(t, TextCodeWeakPassword, richErr.TextCode)
	assert.NotEmpty(t, richErr.Message)

	err = policy.Validate("")
	require.Error(t, err)
	require.True(t, errors.As(err, &richErr))
	assert.Equal(t, TextCodeWeakPassword, richErr.TextCode)
}

func TestFirstValidationMessageIsStable(t *testing.T) {
	verrs := validation.Errors{
		"password": errors.New("password cannot be blank"),
		"email":    errors.New("email cannot be blank"),
	}

	// map iteration order must not pick the message
	for i := 0; i < 50; i++ {
		assert.Equal(t, "email cannot be blank", firstValidationMessage(verrs))
	}

	assert.Equal(t, "", firstValidationMessage(nil))
	assert.Equal(t, "plain failure", firstValidationMessage(errors.New("plain failure")))
}
