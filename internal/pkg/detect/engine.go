// Package detect glues selection and matcher compilation into a
// reloadable engine: it compiles signature groups into per-context
// matcher sets, swaps them atomically on reload, and answers per-packet
// candidate scans.
package detect

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/endorses/prowl/internal/pkg/fastpattern"
	"github.com/endorses/prowl/internal/pkg/logger"
	"github.com/endorses/prowl/internal/pkg/mpm"
	"github.com/endorses/prowl/internal/pkg/sigs"
)

var (
	// ErrNotLoaded is returned by Scan before the first successful Reload.
	ErrNotLoaded = errors.New("detect: no ruleset loaded")
	// ErrUnknownGroup is returned when Scan names a group the current
	// ruleset never compiled. Correct build/scan sequencing never hits it.
	ErrUnknownGroup = errors.New("detect: unknown signature group")
)

// Options configures engine compilation.
type Options struct {
	// Backend names the mpm backend; empty selects the default.
	Backend string
	// CaseInsensitive enables ASCII case folding in the matchers.
	CaseInsensitive bool
}

// Engine owns the compiled matcher sets. Scans are lock-free: the current
// set is immutable and published through an atomic pointer, reloads build
// a complete replacement off to the side and swap it in only on success.
type Engine struct {
	reg     sigs.ContextRegistry
	opts    Options
	current atomic.Pointer[matcherSet]
}

// matcherSet is one immutable compilation result.
type matcherSet struct {
	buildID string
	groups  map[string]*mpm.GroupMatchers
	bySID   map[uint32]*sigs.Signature
}

// NewEngine returns an engine with no ruleset loaded.
func NewEngine(reg sigs.ContextRegistry, opts Options) *Engine {
	return &Engine{reg: reg, opts: opts}
}

// Rejection records one signature dropped during reload.
type Rejection struct {
	SID    uint32
	Reason error
}

// ReloadReport summarizes one successful reload.
type ReloadReport struct {
	BuildID    string
	Loaded     int
	Groups     int
	Rejections []Rejection
}

// Reload validates and selects fast patterns for the given signatures,
// compiles their groups, and atomically swaps the result in. Invalid
// signatures are dropped individually with one diagnostic line each;
// a build failure aborts the reload and the previous matcher set stays
// authoritative.
func (e *Engine) Reload(signatures []*sigs.Signature) (*ReloadReport, error) {
	factory, err := mpm.NewBackendFactory(e.opts.Backend, mpm.Options{
		CaseInsensitive: e.opts.CaseInsensitive,
	})
	if err != nil {
		return nil, err
	}

	var accepted []*sigs.Signature
	var rejections []Rejection
	for _, sig := range signatures {
		if err := sigs.Validate(sig); err != nil {
			rejections = append(rejections, Rejection{SID: sig.SID, Reason: err})
			logger.Warn("signature rejected", "sid", sig.SID, "reason", err.Error())
			continue
		}
		if err := fastpattern.Select(e.reg, sig); err != nil {
			rejections = append(rejections, Rejection{SID: sig.SID, Reason: err})
			logger.Warn("signature rejected", "sid", sig.SID, "reason", err.Error())
			continue
		}
		accepted = append(accepted, sig)
	}

	grouped := make(map[string][]*sigs.Signature)
	for _, sig := range accepted {
		grouped[sig.Group] = append(grouped[sig.Group], sig)
	}

	set := &matcherSet{
		buildID: uuid.NewString(),
		groups:  make(map[string]*mpm.GroupMatchers, len(grouped)),
		bySID:   make(map[uint32]*sigs.Signature, len(accepted)),
	}
	// The default group always exists, so scanning a loaded-but-empty
	// ruleset yields an empty candidate set instead of a sequencing error.
	if _, ok := grouped[""]; !ok {
		grouped[""] = nil
	}
	for name, members := range grouped {
		gm, err := mpm.BuildGroup(e.reg, members, factory)
		if err != nil {
			return nil, fmt.Errorf("reload aborted, previous ruleset stays active: %w", err)
		}
		set.groups[name] = gm
	}
	for _, sig := range accepted {
		set.bySID[sig.SID] = sig
	}

	e.current.Store(set)
	logger.Info("ruleset reloaded",
		"build_id", set.buildID,
		"loaded", len(accepted),
		"rejected", len(rejections),
		"groups", len(set.groups))

	return &ReloadReport{
		BuildID:    set.buildID,
		Loaded:     len(accepted),
		Groups:     len(set.groups),
		Rejections: rejections,
	}, nil
}

// Buffers holds the per-context byte slices extracted for one packet.
// A nil slice means the context is absent from this packet.
type Buffers [sigs.NumBufferContexts][]byte

// Set stores buf as the bytes for ctx.
func (b *Buffers) Set(ctx sigs.BufferContext, buf []byte) {
	if ctx.Valid() {
		b[ctx] = buf
	}
}

// Get returns the bytes for ctx, nil when absent.
func (b Buffers) Get(ctx sigs.BufferContext) []byte {
	if !ctx.Valid() {
		return nil
	}
	return b[ctx]
}

// Scan runs the compiled matchers of one group over the packet buffers
// and returns the candidate sids, sorted and deduplicated: every
// signature whose fast pattern occurs in the matching context's buffer,
// plus the signatures that cannot be pre-filtered. The result is the
// worklist for the full evaluator; false positives are expected there.
func (e *Engine) Scan(group string, bufs Buffers) ([]uint32, error) {
	set := e.current.Load()
	if set == nil {
		return nil, ErrNotLoaded
	}
	gm, ok := set.groups[group]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}

	seen := make(map[uint32]struct{})
	var out []uint32
	add := func(sid uint32) {
		if _, dup := seen[sid]; dup {
			return
		}
		seen[sid] = struct{}{}
		out = append(out, sid)
	}

	for _, sid := range gm.AlwaysCandidates() {
		add(sid)
	}
	for ctx := 0; ctx < sigs.NumBufferContexts; ctx++ {
		buf := bufs[ctx]
		if len(buf) == 0 {
			continue
		}
		inst := gm.Instance(sigs.BufferContext(ctx))
		if inst == nil {
			continue
		}
		for _, sid := range inst.Search(buf) {
			add(sid)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Groups returns the compiled group names of the current ruleset, sorted.
func (e *Engine) Groups() []string {
	set := e.current.Load()
	if set == nil {
		return nil
	}
	names := make([]string, 0, len(set.groups))
	for name := range set.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Signature returns the loaded signature with the given sid.
func (e *Engine) Signature(sid uint32) (*sigs.Signature, bool) {
	set := e.current.Load()
	if set == nil {
		return nil, false
	}
	sig, ok := set.bySID[sid]
	return sig, ok
}

// FastPatternOnly reports whether sid's fast pattern in ctx was declared
// fast_pattern:only, meaning a matcher hit is sufficient evidence for
// that one content keyword and the full evaluator may skip its literal
// comparison.
func (e *Engine) FastPatternOnly(sid uint32, ctx sigs.BufferContext) bool {
	sig, ok := e.Signature(sid)
	if !ok {
		return false
	}
	cp := sig.FastPattern(ctx)
	return cp != nil && cp.Fast.Only
}

// BuildID returns the id of the currently active matcher set, empty
// before the first reload.
func (e *Engine) BuildID() string {
	set := e.current.Load()
	if set == nil {
		return ""
	}
	return set.buildID
}
