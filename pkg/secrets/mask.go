// Package secrets masks credential-like values before they reach logs.
package secrets

import (
	"strings"

	masker "github.com/goliatone/go-masker"
)

const maskRule = "preserveEnds(2,2)"

var defaultSecretFields = []string{
	"token", "delivery_token", "vapid_key",
	"private_key", "client_email",
	"api_key", "credentials",
}

func init() {
	for _, field := range defaultSecretFields {
		masker.Default.RegisterMaskField(field, maskRule)
	}
}

// Mask returns value with everything but its first and last two characters hidden.
func Mask(value string) string {
	if value == "" {
		return ""
	}
	if masked, err := masker.Default.String(maskRule, value); err == nil {
		return masked
	}
	runes := []rune(value)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:2]) + strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-2:])
}

// MaskValues returns a masked copy of values for safe logging.
func MaskValues(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	masked := make(map[string]string, len(values))
	for key, val := range values {
		masked[key] = Mask(val)
	}
	return masked
}
