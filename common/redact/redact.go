// Package redact strips sensitive values from log output before it leaves
// the process boundary.
//
// The console handles two kinds of secrets: the oracle API key and whatever
// the oracle chooses to stash in session attributes (blueprints may embed
// credentials for the target cloud account).  Neither may appear in log
// lines or in the message snapshots served to the presentation layer's
// debug endpoints.
//
// Redaction is best-effort string replacement; it is not a substitute for
// keeping secrets out of log call-sites in the first place.
package redact

import "strings"

const placeholder = "[REDACTED]"

// String replaces every occurrence of each sensitive value in s with
// [REDACTED].  Values shorter than 4 characters are skipped to avoid
// spurious redaction of common substrings.
func String(s string, sensitiveValues ...string) string {
	for _, v := range sensitiveValues {
		if len(v) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// Attributes returns a copy of the session-attribute bag with values
// replaced by [REDACTED] for every key whose name suggests it holds a
// secret.  The original map is never modified.
func Attributes(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		if isSensitiveKey(k) && v != "" {
			out[k] = placeholder
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, word := range []string{"password", "passwd", "token", "secret", "credential", "auth", "apikey", "api_key", "access_key"} {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
