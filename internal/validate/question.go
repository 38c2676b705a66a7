// Package validate checks and sanitizes human input before it enters
// the pipeline.
package validate

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	// MinQuestionLength is the shortest acceptable question.
	MinQuestionLength = 10
	// MaxQuestionLength is the longest acceptable question.
	MaxQuestionLength = 1000
)

// dangerousPatterns reject markup that has no place in a medical
// question and could leak into rendered output.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)data:text/html`),
}

var controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f-\x9f]`)

// Question validates and cleans a medical question, returning the
// sanitized form. Failures are validation errors surfaced immediately
// and never retried.
func Question(question string) (string, error) {
	question = strings.TrimSpace(question)

	err := validation.Validate(question,
		validation.Required.Error("question cannot be empty"),
		validation.Length(MinQuestionLength, MaxQuestionLength),
		validation.By(noDangerousContent),
	)
	if err != nil {
		return "", err
	}
	return Sanitize(question, MaxQuestionLength), nil
}

func noDangerousContent(value interface{}) error {
	s, _ := value.(string)
	for _, pat := range dangerousPatterns {
		if pat.MatchString(s) {
			return errors.New("question contains invalid content")
		}
	}
	return nil
}

// Sanitize normalizes free text: null bytes and control characters are
// removed, whitespace collapsed, and the result truncated to maxLen
// when maxLen is positive.
func Sanitize(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\x00", "")
	text = controlChars.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")
	if maxLen > 0 && len(text) > maxLen {
		text = text[:maxLen]
	}
	return text
}
