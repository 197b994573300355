// Package utils holds small string helpers shared by the report and log
// paths.
package utils

import "strings"

// SafeTruncate caps s at maxLen runes, appending "..." when it cuts. It never
// splits a multibyte character.
func SafeTruncate(s string, maxLen int) string {
	if maxLen <= 0 || s == "" {
		return ""
	}

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	if maxLen < 4 {
		return string(runes[:1])
	}

	cutoff := maxLen - 3
	if len(runes) <= cutoff {
		return s
	}
	return string(runes[:cutoff]) + "..."
}

// SanitizeOutput strips ANSI escape sequences and control characters from
// subprocess output, keeping newlines and tabs.
func SanitizeOutput(s string) string {
	var result strings.Builder
	inEscape := false
	for i := 0; i < len(s); i++ {
		if s[i] == '\x1b' && i+1 < len(s) && s[i+1] == '[' {
			inEscape = true
			i++ // skip '['
			continue
		}
		if inEscape {
			if (s[i] >= 'A' && s[i] <= 'Z') || (s[i] >= 'a' && s[i] <= 'z') {
				inEscape = false
			}
			continue
		}
		if s[i] >= 32 || s[i] == '\n' || s[i] == '\t' {
			result.WriteByte(s[i])
		}
	}
	return result.String()
}
