package obslog

import (
	"os"
	"strconv"
)

// MaskSecret masks a credential for safe logging: first 4 and last 4 chars
// for strings over 8 bytes, "***" for shorter non-empty strings, and
// "<not set>" for empty strings. Used when logging tracker/LDAP config.
func MaskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// GetEnv retrieves an environment variable with a fallback default.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvInt retrieves an integer environment variable with a fallback default.
func GetEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}
