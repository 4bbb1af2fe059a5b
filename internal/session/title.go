package session

import (
	"strings"
	"time"
	"unicode"
)

const titleMaxLen = 50

// Conversational lead-ins stripped from generated titles.
var titlePrefixes = []string{
	"what is", "what are", "how do", "how to", "can you", "please", "help me",
}

// GenerateTitle derives a session title from the first user message:
// trim, truncate to a display length, strip a lead-in phrase, capitalize.
// Empty input falls back to a timestamp-based default.
func GenerateTitle(firstMessage string) string {
	clean := strings.TrimSpace(firstMessage)
	if clean == "" {
		return "Chat Session - " + time.Now().Format("2006-01-02 15:04")
	}

	if r := []rune(clean); len(r) > titleMaxLen {
		clean = string(r[:titleMaxLen-3]) + "..."
	}

	lower := strings.ToLower(clean)
	for _, prefix := range titlePrefixes {
		if strings.HasPrefix(lower, prefix) {
			clean = strings.TrimSpace(clean[len(prefix):])
			break
		}
	}

	if clean == "" {
		return "Chat - " + time.Now().Format("15:04")
	}

	r := []rune(clean)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
