package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds CLI configuration.
type Config struct {
	ConfigFile    string
	ProfileFile   string
	Skip          []string
	Only          []string
	RetryAttempts int
	Timeout       int // seconds, 0 = no limit
	JSONPath      string
	NoColor       bool
	Verbose       bool
	AllowRoot     bool
}

// EnvFlagEnabled returns true when the environment variable exists and is not
// explicitly set to a falsey value ("0/false/no/off").
func EnvFlagEnabled(key string) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	val = strings.TrimSpace(strings.ToLower(val))
	switch val {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

func ParseBoolFlag(val string, defaultValue bool) bool {
	val = strings.TrimSpace(strings.ToLower(val))
	switch val {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// EnvFlagDefaultTrue returns true unless the env var is explicitly set to
// false/0/no/off.
func EnvFlagDefaultTrue(key string) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return true
	}
	return ParseBoolFlag(val, true)
}

// ValidateTaskID rejects task ids that could not have come from the profile.
// Synthesized ids use lowercase words, dashes, and a kind prefix like
// "dotfile:.zshrc".
func ValidateTaskID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("task id is empty")
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return fmt.Errorf("task id %q contains invalid character %q", id, r)
		}
	}
	return nil
}

const (
	defaultRetryAttempts = 3
	maxRetryAttempts     = 10
)

// ResolveRetryAttempts reads SETUPWIZ_RETRY_ATTEMPTS and clamps it to a sane
// range. Zero or garbage means the default.
func ResolveRetryAttempts() int {
	raw := strings.TrimSpace(os.Getenv("SETUPWIZ_RETRY_ATTEMPTS"))
	if raw == "" {
		return defaultRetryAttempts
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultRetryAttempts
	}
	return ClampRetryAttempts(value)
}

// ClampRetryAttempts bounds a caller-supplied attempt count the same way the
// environment fallback is bounded: non-positive means the default.
func ClampRetryAttempts(n int) int {
	if n < 1 {
		return defaultRetryAttempts
	}
	if n > maxRetryAttempts {
		return maxRetryAttempts
	}
	return n
}
