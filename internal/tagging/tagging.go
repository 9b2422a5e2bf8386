// Package tagging turns free-text tag input into tag name candidates.
package tagging

import (
	"strings"
	"unicode"
)

// Split breaks input on any run of whitespace and/or commas, trims each token and
// drops empty ones. Matching is case-sensitive; an exact repeat of an earlier
// token is dropped so that one post never references the same tag twice.
//
//	Split("a, b  c")  → ["a" "b" "c"]
//	Split(" ,, ")     → []
func Split(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})

	names := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		name := strings.TrimSpace(f)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// Join renders tag names back into the comma form used to prefill edit forms.
func Join(names []string) string {
	return strings.Join(names, ", ")
}
