// Package trigger recognizes the trigger token inside field text and turns the
// text that follows it into a prompt intent.
package trigger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Find returns the byte index of the first word-bounded occurrence of trigger
// in text, or -1. An occurrence is word-bounded when it is followed by the end
// of the text or by a whitespace character, so "@g" does not match "@govind".
func Find(text, trigger string) int {
	if trigger == "" || len(text) < len(trigger) {
		return -1
	}
	offset := 0
	for offset <= len(text)-len(trigger) {
		idx := strings.Index(text[offset:], trigger)
		if idx < 0 {
			return -1
		}
		start := offset + idx
		end := start + len(trigger)
		if end == len(text) {
			return start
		}
		next, _ := utf8.DecodeRuneInString(text[end:])
		if unicode.IsSpace(next) {
			return start
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return -1
}

// Contains reports whether text holds a word-bounded occurrence of trigger.
func Contains(text, trigger string) bool {
	return Find(text, trigger) >= 0
}

// Suffix returns the trimmed text that follows the first word-bounded trigger.
func Suffix(text, trigger string) (string, bool) {
	idx := Find(text, trigger)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(text[idx+len(trigger):]), true
}

// splitFirstToken returns the text up to the first whitespace and the rest.
func splitFirstToken(s string) (string, string) {
	idx := strings.IndexFunc(s, unicode.IsSpace)
	if idx < 0 {
		return s, ""
	}
	return s[:idx], s[idx:]
}
