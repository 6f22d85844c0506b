package phone

import (
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when no region is configured
const DefaultRegion = "IN"

// Normalize converts a contact number to E.164 using region for numbers
// without a country code. Numbers that do not parse as valid are reduced
// to their digits so that formatting differences still collide.
func Normalize(number, region string) string {
	number = strings.TrimSpace(number)
	if number == "" {
		return ""
	}
	if region == "" {
		region = DefaultRegion
	}

	parsed, err := phonenumbers.Parse(number, strings.ToUpper(region))
	if err == nil && phonenumbers.IsValidNumber(parsed) {
		return phonenumbers.Format(parsed, phonenumbers.E164)
	}

	return digitsOnly(number)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
