package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMinContentLength = 1
	DefaultMaxContentLength = 300
)

// ContentLimits bounds the length of message content, counted in runes after
// surrounding whitespace is trimmed.
type ContentLimits struct {
	MinLength int
	MaxLength int
}

// DefaultContentLimits returns the limits used when none are configured.
func DefaultContentLimits() ContentLimits {
	return ContentLimits{MinLength: DefaultMinContentLength, MaxLength: DefaultMaxContentLength}
}

// ValidationError reports which content rule was violated.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("domain: invalid content (%s): %s", e.Reason, e.Message)
}

// Validate checks content against the limits. Non-positive limits fall back to
// the defaults.
func (l ContentLimits) Validate(content string) error {
	minLen, maxLen := l.MinLength, l.MaxLength
	if minLen <= 0 {
		minLen = DefaultMinContentLength
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxContentLength
	}

	n := utf8.RuneCountInString(strings.TrimSpace(content))
	if n == 0 {
		return &ValidationError{Reason: "content_empty", Message: "Message content is required"}
	}
	if n < minLen {
		return &ValidationError{
			Reason:  "content_too_short",
			Message: fmt.Sprintf("Content must be at least %d characters", minLen),
		}
	}
	if n > maxLen {
		return &ValidationError{
			Reason:  "content_too_long",
			Message: fmt.Sprintf("Content must be no longer than %d characters", maxLen),
		}
	}
	return nil
}
