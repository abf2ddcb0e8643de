package logger

import (
	"strings"
)

// SanitizedIdentifier masks an account identifier for logging. Email-shaped
// identifiers keep their first character and TLD (e.g. "u***@***.com");
// anything else keeps the first character only.
func SanitizedIdentifier(identifier string) string {
	if identifier == "" {
		return "[empty]"
	}

	parts := strings.Split(identifier, "@")
	if len(parts) != 2 {
		return string(identifier[0]) + strings.Repeat("*", len(identifier)-1)
	}

	username := parts[0]
	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	domain := parts[1]
	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// SanitizeQueryString checks if query string contains sensitive parameters
// and returns true if the entire query string should be redacted
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := []string{
		"password",
		"token",
		"secret",
		"salt",
		"identifier",
		"email",
		"auth",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
