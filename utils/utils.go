package utils

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

func UrlQuery(s string) string { return strings.ReplaceAll(s, " ", "+") }

func Str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// Truncate cuts s to at most n bytes without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
