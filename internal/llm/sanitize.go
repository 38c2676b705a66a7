package llm

import (
	"fmt"
	"strings"
)

// MaxPromptBytes bounds the prompt size sent to the model. Retrieved
// abstracts are untrusted input; the limit prevents context overflow
// from a pathological payload.
const MaxPromptBytes = 100_000

// SanitizePrompt validates and cleans a prompt before it is sent to the
// model. Null bytes are rejected outright, control characters other
// than newlines and tabs are stripped, and oversized prompts fail
// instead of being silently truncated.
func SanitizePrompt(prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt is empty")
	}
	if strings.ContainsRune(prompt, '\x00') {
		return "", fmt.Errorf("prompt contains null bytes")
	}
	if len(prompt) > MaxPromptBytes {
		return "", fmt.Errorf("prompt exceeds %d bytes", MaxPromptBytes)
	}

	var b strings.Builder
	b.Grow(len(prompt))
	for _, r := range prompt {
		if r == '\n' || r == '\t' || r >= 0x20 && r != 0x7f {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String()), nil
}
