package snapshot

import (
	"strings"
	"unicode"
)

// FormatEntry renders one entry as "key: value (Expires in expiry)".
// Control characters are replaced so a value cannot break the line layout.
func FormatEntry(entry CacheEntry) string {
	var b strings.Builder
	b.Grow(len(entry.Key) + len(entry.Value) + len(entry.Expiry) + 16)
	b.WriteString(sanitize(entry.Key))
	b.WriteString(": ")
	b.WriteString(sanitize(entry.Value))
	b.WriteString(" (Expires in ")
	b.WriteString(sanitize(entry.Expiry))
	b.WriteString(")")
	return b.String()
}

// Lines formats every entry of s, preserving order.
func Lines(s Snapshot) []string {
	lines := make([]string, 0, len(s))
	for _, entry := range s {
		lines = append(lines, FormatEntry(entry))
	}
	return lines
}

func sanitize(value string) string {
	if strings.IndexFunc(value, unicode.IsControl) < 0 {
		return value
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return unicode.ReplacementChar
		}
		return r
	}, value)
}
