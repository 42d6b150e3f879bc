package mpm

import (
	"fmt"

	"github.com/endorses/prowl/internal/pkg/sigs"
)

// Owner ties a compiled needle back to one owning signature.
type Owner struct {
	// SID is the owning signature's rule id.
	SID uint32
	// GroupIndex is the signature's position within its group.
	GroupIndex int
}

// Needle is one search pattern inserted into a matcher instance, after
// chop arithmetic. Signatures sharing identical needle bytes share one
// Needle with multiple owners.
type Needle struct {
	Bytes  []byte
	Owners []Owner
}

// Instance is one compiled multi-pattern matcher for a single buffer
// context of a signature group. It is immutable after BuildGroup returns
// and safe for lock-free concurrent Search.
type Instance struct {
	context sigs.BufferContext
	backend Backend
	needles []Needle
}

// Context returns the buffer context this instance scans.
func (m *Instance) Context() sigs.BufferContext {
	return m.context
}

// NeedleCount returns the number of distinct needles compiled in.
func (m *Instance) NeedleCount() int {
	return len(m.needles)
}

// Needles returns the compiled needles in insertion order.
func (m *Instance) Needles() []Needle {
	return m.needles
}

// Search scans buf and returns the sids of every signature whose needle
// occurs in it, each sid at most once. The scan is read-only; false
// positives are resolved by the full evaluator downstream, false
// negatives do not happen.
func (m *Instance) Search(buf []byte) []uint32 {
	if m == nil || len(m.needles) == 0 || len(buf) == 0 {
		return nil
	}

	hits := m.backend.Match(buf)
	if len(hits) == 0 {
		return nil
	}

	seen := make(map[uint32]struct{}, len(hits))
	out := make([]uint32, 0, len(hits))
	for _, idx := range hits {
		if idx < 0 || idx >= len(m.needles) {
			continue
		}
		for _, owner := range m.needles[idx].Owners {
			if _, dup := seen[owner.SID]; dup {
				continue
			}
			seen[owner.SID] = struct{}{}
			out = append(out, owner.SID)
		}
	}
	return out
}

// GroupMatchers is the compiled matcher set of one signature group: one
// Instance per buffer context that received at least one needle, plus the
// sids that cannot be pre-filtered at all and are always candidates.
type GroupMatchers struct {
	instances [sigs.NumBufferContexts]*Instance
	always    []uint32
}

// Instance returns the matcher for ctx, or nil when the group registered
// no needle there.
func (g *GroupMatchers) Instance(ctx sigs.BufferContext) *Instance {
	if g == nil || !ctx.Valid() {
		return nil
	}
	return g.instances[ctx]
}

// AlwaysCandidates returns the sids that bypass pre-filtering: signatures
// with no positive fast pattern in any context (every selected pattern
// negated, or nothing selected). Their absence semantics are resolved by
// the full evaluator.
func (g *GroupMatchers) AlwaysCandidates() []uint32 {
	if g == nil {
		return nil
	}
	return g.always
}

// BuildGroup compiles one matcher per buffer context for the signatures
// of one group. Selection must have run first: each signature contributes
// the needle bytes of its selected fast pattern per context, with chopped
// patterns contributing only their sub-range. Identical needles are
// deduplicated and mapped to every owning signature.
//
// The build is deterministic for identical input order: needles are
// inserted in signature order, contexts in registry order. A failure
// leaves no partial result; callers keep serving the previous matcher set.
func BuildGroup(reg sigs.ContextRegistry, signatures []*sigs.Signature, factory BackendFactory) (*GroupMatchers, error) {
	type contextBuild struct {
		index   map[string]int
		needles []Needle
	}
	builds := make(map[sigs.BufferContext]*contextBuild)

	group := &GroupMatchers{}

	for gi, sig := range signatures {
		positive := false
		for _, entry := range reg.Entries() {
			cp := sig.FastPattern(entry.Context)
			if cp == nil || cp.Negated {
				continue
			}
			needle := cp.NeedleBytes()
			if len(needle) == 0 {
				continue
			}
			positive = true

			cb := builds[entry.Context]
			if cb == nil {
				cb = &contextBuild{index: make(map[string]int)}
				builds[entry.Context] = cb
			}
			key := string(needle)
			idx, ok := cb.index[key]
			if !ok {
				idx = len(cb.needles)
				cb.index[key] = idx
				cb.needles = append(cb.needles, Needle{Bytes: needle})
			}
			cb.needles[idx].Owners = append(cb.needles[idx].Owners, Owner{SID: sig.SID, GroupIndex: gi})
		}
		if !positive {
			group.always = append(group.always, sig.SID)
		}
	}

	for _, entry := range reg.Entries() {
		cb := builds[entry.Context]
		if cb == nil {
			continue
		}

		patterns := make([][]byte, len(cb.needles))
		for i, n := range cb.needles {
			patterns[i] = n.Bytes
		}

		backend := factory()
		if err := backend.Build(patterns); err != nil {
			return nil, fmt.Errorf("building %s matcher: %w", entry.Name, err)
		}
		group.instances[entry.Context] = &Instance{
			context: entry.Context,
			backend: backend,
			needles: cb.needles,
		}
	}
	return group, nil
}
