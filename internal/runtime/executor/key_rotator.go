package executor

import (
	"strings"
	"sync/atomic"
)

// keyRotator hands out the configured API keys round robin.
type keyRotator struct {
	keys   []string
	cursor uint32
}

func newKeyRotator(keys []string) *keyRotator {
	rot := &keyRotator{}
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		rot.keys = append(rot.keys, key)
	}
	return rot
}

func (r *keyRotator) count() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// next returns the key at the cursor and advances it.
func (r *keyRotator) next() string {
	if r.count() == 0 {
		return ""
	}
	idx := atomic.AddUint32(&r.cursor, 1) - 1
	return r.keys[int(idx%uint32(len(r.keys)))]
}
