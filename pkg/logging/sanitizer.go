// Package logging holds logger construction and helpers that keep secrets and
// oversized payload values out of log output.
package logging

import (
	"regexp"
	"unicode/utf8"
)

const (
	// MaxValueLogLength bounds a fact or payload value written to a log entry.
	MaxValueLogLength = 200
	// RedactedText replaces secrets found in error messages.
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx up to the next delimiter
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// user:pass@host credentials in postgres:// and redis:// URLs
	credentialsPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@`)

	bearerPattern = regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)
)

// SanitizeError renders err with database passwords, URL credentials and
// bearer tokens redacted. Use it for errors from connection attempts, which
// echo the connection string.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	s := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	s = credentialsPattern.ReplaceAllString(s, "://"+RedactedText+"@")
	return bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
}

// TruncateValue shortens a value received from an integration to
// MaxValueLogLength bytes without splitting a UTF-8 sequence.
func TruncateValue(s string) string {
	if len(s) <= MaxValueLogLength {
		return s
	}
	cut := MaxValueLogLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
