package pipeline

import (
	"regexp"
	"strings"
)

var bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•+]|\d{1,2}[.)])\s+`)

// ParseBullets extracts list items from markdown text. Lines that are not list
// items (headings, preamble) are ignored. If the text has no list items at
// all, the trimmed text is returned as a single item.
func ParseBullets(text string) []string {
	var bullets []string

	for _, line := range strings.Split(text, "\n") {
		loc := bulletPrefix.FindStringIndex(line)
		if loc == nil {
			continue
		}
		if item := strings.TrimSpace(line[loc[1]:]); item != "" {
			bullets = append(bullets, item)
		}
	}

	if len(bullets) == 0 {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return []string{trimmed}
		}
	}

	return bullets
}

// FormatBullets renders items as a markdown list.
func FormatBullets(items []string) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(item)
	}
	return b.String()
}
