package tools

import (
	"regexp"
	"strconv"
)

// Credential patterns scrubbed from tool output before it reaches the model
// or the audit log.
var credentialPatterns = []*regexp.Regexp{
	// Anthropic, checked before the generic OpenAI form
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9-]{20,}`),
	// OpenAI
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
	// GitHub tokens
	regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{36}`),
	// AWS
	regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
	// Generic key=value patterns (case-insensitive)
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|bearer|authorization)\s*[:=]\s*["']?\S{8,}["']?`),
}

const redactedPlaceholder = "[REDACTED]"

// ScrubCredentials replaces known credential patterns in text with [REDACTED].
func ScrubCredentials(text string) string {
	for _, pat := range credentialPatterns {
		text = pat.ReplaceAllString(text, redactedPlaceholder)
	}
	return text
}

// Truncate cuts text to at most limit bytes, noting how much was dropped.
// limit <= 0 disables truncation.
func Truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	return text[:limit] + "\n... [truncated " + strconv.Itoa(len(text)-limit) + " bytes]"
}
