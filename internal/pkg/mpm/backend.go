// Package mpm compiles the selected fast patterns of a signature group
// into one multi-pattern matcher per buffer context and runs the per-packet
// search that produces candidate signature ids.
//
// The matching automaton itself is a replaceable backend behind the
// Backend interface; two real implementations are provided.
package mpm

import (
	"fmt"
	"sort"
)

// Backend is a replaceable multi-pattern matching automaton. Implementations
// must be safe for concurrent Match calls after Build returns.
type Backend interface {
	// Build compiles the automaton from the pattern byte strings. It is
	// called exactly once per backend instance.
	Build(patterns [][]byte) error

	// Match reports the indices of all patterns that occur somewhere in
	// input, each index at most once. A pattern index must be reported
	// whenever its bytes literally occur in input; missing an occurrence
	// is a correctness bug.
	Match(input []byte) []int

	// PatternCount returns the number of compiled patterns.
	PatternCount() int
}

// Backend names accepted by NewBackendFactory. BackendAho is the default.
const (
	BackendAho        = "aho"
	BackendCloudflare = "cloudflare"
)

// Options configures backend construction.
type Options struct {
	// CaseInsensitive enables ASCII case folding. Only the aho backend
	// supports it.
	CaseInsensitive bool
}

// BackendFactory constructs a fresh, unbuilt backend. Each matcher
// instance gets its own backend, so the factory is called once per
// buffer context per signature group.
type BackendFactory func() Backend

// NewBackendFactory resolves a backend name from configuration. Unknown
// names and unsupported option combinations are build-time errors.
func NewBackendFactory(name string, opts Options) (BackendFactory, error) {
	switch name {
	case "", BackendAho:
		return func() Backend { return newAhoBackend(opts) }, nil
	case BackendCloudflare:
		if opts.CaseInsensitive {
			return nil, fmt.Errorf("mpm backend %q does not support case-insensitive matching", name)
		}
		return func() Backend { return newCloudflareBackend() }, nil
	default:
		return nil, fmt.Errorf("unknown mpm backend %q (have %q, %q)", name, BackendAho, BackendCloudflare)
	}
}

// BackendNames returns the registered backend names, sorted.
func BackendNames() []string {
	names := []string{BackendAho, BackendCloudflare}
	sort.Strings(names)
	return names
}
