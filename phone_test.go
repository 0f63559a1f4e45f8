package gateway

import (
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	got, err := NormalizePhone("", "")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = NormalizePhone("415-555-2671", "")
	require.NoError(t, err)
	assert.Equal(t, "+14155552671", got)

	// already E.164, region is ignored
	got, err = NormalizePhone("+442071838750", "US")
	require.NoError(t, err)
	assert.Equal(t, "+442071838750", got)
}

func TestNormalizePhoneRejectsInvalid(t *testing.T) {
	for _, raw := range []string{"not-a-number", "123"} {
		_, err := NormalizePhone(raw, "")
		require.Error(t, err, "value %q", raw)

		var richErr *goerrors.Error
		require.True(t, errors.As(err, &richErr))
		assert.Equal(t, TextCodeInvalidPhone, richErr.TextCode)
		assert.Equal(t, raw, richErr.Metadata["phone"])
	}
}
