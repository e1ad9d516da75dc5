package deepgram

import (
	"strings"
	"sync"
)

// aggregator joins finalized utterances and tracks the latest interim result.
type aggregator struct {
	mu      sync.Mutex
	finals  []string
	interim string
}

func (a *aggregator) addFinal(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finals = append(a.finals, text)
	a.interim = ""
}

func (a *aggregator) setInterim(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.interim = text
}

// text is the live transcript: every final plus the pending interim.
func (a *aggregator) text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	parts := append(append([]string(nil), a.finals...), a.interim)
	return strings.TrimSpace(strings.Join(parts, " "))
}

// final is the transcript to report at the end of the stream. A pending
// interim is kept only when nothing was finalized.
func (a *aggregator) final() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	joined := strings.TrimSpace(strings.Join(a.finals, " "))
	if joined == "" {
		return strings.TrimSpace(a.interim)
	}
	return joined
}
