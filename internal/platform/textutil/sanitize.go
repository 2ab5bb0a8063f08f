package textutil

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var (
	plainPolicy = bluemonday.StrictPolicy()
	richPolicy  = newDescriptionPolicy()
)

func newDescriptionPolicy() *bluemonday.Policy {
	policy := bluemonday.NewPolicy()
	policy.AllowElements("p", "br", "strong", "em", "ul", "ol", "li")
	return policy
}

// PlainText strips all markup and control characters (newlines and tabs survive), trims, and caps
// the result at limit runes. A limit <= 0 means no cap.
func PlainText(value string, limit int) string {
	cleaned := html.UnescapeString(plainPolicy.Sanitize(value))
	cleaned = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, cleaned)
	return truncate(strings.TrimSpace(cleaned), limit)
}

// Description keeps basic paragraph and emphasis markup and drops everything else.
func Description(value string, limit int) string {
	return truncate(strings.TrimSpace(richPolicy.Sanitize(value)), limit)
}

// NormalizeList trims entries and drops blanks and duplicates, preserving order.
func NormalizeList(values []string, limit int) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = PlainText(value, limit)
		if value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// OptionalText returns nil for values that are empty after sanitising.
func OptionalText(value string, limit int) *string {
	cleaned := PlainText(value, limit)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func truncate(value string, limit int) string {
	if limit <= 0 {
		return value
	}
	if runes := []rune(value); len(runes) > limit {
		return strings.TrimSpace(string(runes[:limit]))
	}
	return value
}
