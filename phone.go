package gateway

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is the region used to parse numbers without a
// country prefix.
const DefaultPhoneRegion = "US"

// NormalizePhone parses raw and returns it in E.164 form. Numbers
// without a leading + are parsed against region, falling back to
// DefaultPhoneRegion. Empty input normalizes to empty output.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	if region == "" {
		region = DefaultPhoneRegion
	}

	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", ErrInvalidPhone.Clone().WithMetadata(map[string]any{
			"phone": raw,
		})
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone.Clone().WithMetadata(map[string]any{
			"phone": raw,
		})
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
