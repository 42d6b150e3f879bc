package mpm

import (
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// cloudflareBackend wraps github.com/cloudflare/ahocorasick, whose Match
// already has the set semantics this package needs: it returns the index
// of every dictionary entry contained in the input, each once. The
// underlying Match writes per-matcher dedup state on every call, so
// searches serialize on a mutex; concurrent use stays correct at the
// cost of contention. It has no case-folding support, which
// NewBackendFactory enforces.
type cloudflareBackend struct {
	mu      sync.Mutex
	matcher *ahocorasick.Matcher
	count   int
}

func newCloudflareBackend() *cloudflareBackend {
	return &cloudflareBackend{}
}

func (b *cloudflareBackend) Build(patterns [][]byte) error {
	b.count = len(patterns)
	if b.count == 0 {
		return nil
	}
	b.matcher = ahocorasick.NewMatcher(patterns)
	return nil
}

func (b *cloudflareBackend) Match(input []byte) []int {
	if b.matcher == nil || len(input) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.matcher.Match(input)
}

func (b *cloudflareBackend) PatternCount() int {
	return b.count
}
