package utils

import "strings"

const ellipsis = "..."

// TruncateText は文字列を指定された最大長（ルーン数）に切り詰めます。
func TruncateText(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen > len(ellipsis) {
		return string(runes[:maxLen-len(ellipsis)]) + ellipsis
	}
	return string(runes[:maxLen])
}

// Preview collapses whitespace runs, including newlines, into single spaces
// and truncates the result to maxLen runes. Used for one-line list rows.
func Preview(s string, maxLen int) string {
	return TruncateText(strings.Join(strings.Fields(s), " "), maxLen)
}

// FirstLine returns s up to its first newline, marking the cut with an ellipsis.
func FirstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i]) + ellipsis
	}
	return s
}
