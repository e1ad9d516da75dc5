package voice

import (
	"strings"
	"unicode/utf8"
)

// resolveFinal picks the transcript for a final recognition result. A final
// result shorter than minLen loses to the last partial when that partial is at
// least as long. An empty final result behaves like a timeout.
func resolveFinal(final, partial string, minLen int) (string, error) {
	final = strings.TrimSpace(final)
	if final == "" {
		return fallbackPartial(partial, minLen)
	}
	if utf8.RuneCountInString(final) >= minLen {
		return final, nil
	}
	partial = strings.TrimSpace(partial)
	if partial != "" && utf8.RuneCountInString(partial) >= utf8.RuneCountInString(final) {
		return partial, nil
	}
	return "", ErrNoSpeechDetected
}

// fallbackPartial returns the last partial when no final result arrived.
func fallbackPartial(partial string, minLen int) (string, error) {
	partial = strings.TrimSpace(partial)
	if partial == "" || utf8.RuneCountInString(partial) < minLen {
		return "", ErrNoSpeechDetected
	}
	return partial, nil
}

func appendTranscript(existing, more string) string {
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return more
	}
	return existing + " " + more
}
