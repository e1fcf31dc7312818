package domain

import "strings"

// RedactedValue replaces sensitive context values before a record is stored
// or transmitted anywhere.
const RedactedValue = "[REDACTED]"

// sensitiveKeys are matched case-insensitively against AdditionalData keys.
var sensitiveKeys = []string{
	"password",
	"token",
	"apikey",
	"api_key",
	"secret",
	"authorization",
	"credential",
	"session",
}

// SanitizeContext returns a copy of ctx with sensitive AdditionalData values
// replaced by RedactedValue. The input map is never mutated.
func SanitizeContext(ctx ErrorContext) ErrorContext {
	if len(ctx.AdditionalData) == 0 {
		return ctx
	}

	clean := make(map[string]ContextValue, len(ctx.AdditionalData))
	for k, v := range ctx.AdditionalData {
		if isSensitiveKey(k) {
			clean[k] = RedactedValue
		} else {
			clean[k] = v
		}
	}
	ctx.AdditionalData = clean
	return ctx
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
