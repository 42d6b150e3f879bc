package mpm

import (
	ac "github.com/petar-dambovaliev/aho-corasick"
)

// ahoBackend wraps github.com/petar-dambovaliev/aho-corasick. It is built
// with standard match semantics and searched with overlapping iteration,
// so a pattern contained inside another pattern's occurrence is still
// reported. That property is what makes the search free of false
// negatives.
type ahoBackend struct {
	automaton *ac.AhoCorasick
	count     int
	opts      Options
}

func newAhoBackend(opts Options) *ahoBackend {
	return &ahoBackend{opts: opts}
}

func (b *ahoBackend) Build(patterns [][]byte) error {
	b.count = len(patterns)
	if b.count == 0 {
		return nil
	}

	needles := make([]string, len(patterns))
	for i, p := range patterns {
		needles[i] = string(p)
	}

	builder := ac.NewAhoCorasickBuilder(ac.Opts{
		AsciiCaseInsensitive: b.opts.CaseInsensitive,
		MatchKind:            ac.StandardMatch,
	})
	automaton := builder.Build(needles)
	b.automaton = &automaton
	return nil
}

func (b *ahoBackend) Match(input []byte) []int {
	if b.automaton == nil || len(input) == 0 {
		return nil
	}

	seen := make([]bool, b.count)
	var hits []int

	iter := b.automaton.IterOverlappingByte(input)
	for m := iter.Next(); m != nil; m = iter.Next() {
		idx := m.Pattern()
		if idx < 0 || idx >= b.count || seen[idx] {
			continue
		}
		seen[idx] = true
		hits = append(hits, idx)
		if len(hits) == b.count {
			break
		}
	}
	return hits
}

func (b *ahoBackend) PatternCount() int {
	return b.count
}
