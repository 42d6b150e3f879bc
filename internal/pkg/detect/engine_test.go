package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/endorses/prowl/internal/pkg/mpm"
	"github.com/endorses/prowl/internal/pkg/sigs"
)

func payloadContent(pattern string) *sigs.ContentPattern {
	return &sigs.ContentPattern{Bytes: []byte(pattern), Context: sigs.BufferPayload}
}

func sigWith(sid uint32, patterns ...*sigs.ContentPattern) *sigs.Signature {
	sig := &sigs.Signature{SID: sid}
	for _, cp := range patterns {
		sig.AddContent(cp)
	}
	return sig
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(sigs.NewContextRegistry(), Options{})
}

func payloadBuffers(payload string) Buffers {
	var bufs Buffers
	bufs.Set(sigs.BufferPayload, []byte(payload))
	return bufs
}

func TestScanBeforeReload(t *testing.T) {
	engine := newTestEngine(t)
	_, err := engine.Scan("", payloadBuffers("anything"))
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestReloadUnknownBackend(t *testing.T) {
	engine := NewEngine(sigs.NewContextRegistry(), Options{Backend: "no-such-backend"})
	_, err := engine.Reload([]*sigs.Signature{sigWith(1, payloadContent("abc"))})
	assert.Error(t, err)
}

func TestAutoSelectionEndToEnd(t *testing.T) {
	// Two content keywords, no explicit fast_pattern: the stronger
	// strings4_imp is auto-selected, so only payloads containing it
	// produce a candidate.
	engine := newTestEngine(t)
	report, err := engine.Reload([]*sigs.Signature{
		sigWith(42, payloadContent("strings4_imp"), payloadContent("strings_string5")),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Loaded)
	assert.Empty(t, report.Rejections)
	assert.NotEmpty(t, report.BuildID)

	hits, err := engine.Scan("", payloadBuffers("prefix strings4_imp suffix"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{42}, hits)

	hits, err = engine.Scan("", payloadBuffers("contains strings_string5 only"))
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = engine.Scan("", payloadBuffers("contains neither"))
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRejectedSignatureNotLoaded(t *testing.T) {
	// fast_pattern:only combined with distance fails to load; the rest
	// of the ruleset stays usable.
	var distance int32 = 10
	bad := payloadContent("two")
	bad.Directive = sigs.Directive{Kind: sigs.DirectiveOnly}
	bad.Distance = &distance

	engine := newTestEngine(t)
	report, err := engine.Reload([]*sigs.Signature{
		sigWith(1, payloadContent("one"), bad),
		sigWith(2, payloadContent("healthy_pattern")),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Loaded)
	require.Len(t, report.Rejections, 1)
	assert.Equal(t, uint32(1), report.Rejections[0].SID)

	_, ok := engine.Signature(1)
	assert.False(t, ok)
	_, ok = engine.Signature(2)
	assert.True(t, ok)

	hits, err := engine.Scan("", payloadBuffers("one two healthy_pattern"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{2}, hits)
}

func TestChopSubRangeSemantics(t *testing.T) {
	// fast_pattern:3,4 on "oneoneone": the needle is "oneo", so a buffer
	// containing just the sub-range is already a candidate.
	cp := payloadContent("oneoneone")
	cp.Directive = sigs.Directive{Kind: sigs.DirectiveChop, Chop: sigs.ChopRange{Offset: 3, Length: 4}}

	engine := newTestEngine(t)
	_, err := engine.Reload([]*sigs.Signature{sigWith(7, cp)})
	require.NoError(t, err)

	hits, err := engine.Scan("", payloadBuffers("xx oneo xx"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{7}, hits)

	hits, err = engine.Scan("", payloadBuffers("one two three"))
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestScanUnionAcrossContexts(t *testing.T) {
	uriCP := &sigs.ContentPattern{Bytes: []byte("/admin/login"), Context: sigs.BufferURI}
	headerCP := &sigs.ContentPattern{Bytes: []byte("curl-agent"), Context: sigs.BufferHTTPHeader}

	engine := newTestEngine(t)
	_, err := engine.Reload([]*sigs.Signature{
		sigWith(10, payloadContent("payload_marker")),
		sigWith(20, uriCP),
		sigWith(30, headerCP),
	})
	require.NoError(t, err)

	var bufs Buffers
	bufs.Set(sigs.BufferPayload, []byte("has payload_marker inside"))
	bufs.Set(sigs.BufferURI, []byte("/admin/login?next=/"))

	hits, err := engine.Scan("", bufs)
	require.NoError(t, err)
	assert.Equal(t, []uint32{10, 20}, hits)
}

func TestScanGroups(t *testing.T) {
	httpSig := sigWith(1, payloadContent("http_only_pattern"))
	httpSig.Group = "http"
	dnsSig := sigWith(2, payloadContent("dns_only_pattern"))
	dnsSig.Group = "dns"

	engine := newTestEngine(t)
	_, err := engine.Reload([]*sigs.Signature{httpSig, dnsSig})
	require.NoError(t, err)
	assert.Equal(t, []string{"", "dns", "http"}, engine.Groups())

	hits, err := engine.Scan("http", payloadBuffers("http_only_pattern dns_only_pattern"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, hits)

	_, err = engine.Scan("smtp", payloadBuffers("anything"))
	assert.ErrorIs(t, err, ErrUnknownGroup)
}

func TestScanEmptyRuleset(t *testing.T) {
	// Reloading with no signatures still compiles the default group, so
	// scanning afterwards yields an empty worklist, not an error.
	engine := newTestEngine(t)
	report, err := engine.Reload(nil)
	require.NoError(t, err)
	assert.Zero(t, report.Loaded)
	assert.Equal(t, []string{""}, engine.Groups())

	hits, err := engine.Scan("", payloadBuffers("anything"))
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = engine.Scan("http", payloadBuffers("anything"))
	assert.ErrorIs(t, err, ErrUnknownGroup)
}

func TestNegatedFastPatternAlwaysCandidate(t *testing.T) {
	cp := payloadContent("forbidden_token")
	cp.Negated = true
	cp.Directive = sigs.Directive{Kind: sigs.DirectiveBare}

	engine := newTestEngine(t)
	_, err := engine.Reload([]*sigs.Signature{sigWith(5, cp)})
	require.NoError(t, err)

	// Absence semantics are the evaluator's job; the scan must surface
	// the signature regardless of buffer contents.
	hits, err := engine.Scan("", payloadBuffers("clean traffic"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{5}, hits)

	hits, err = engine.Scan("", payloadBuffers("contains forbidden_token"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{5}, hits)
}

func TestFastPatternOnlyQuery(t *testing.T) {
	only := payloadContent("exact_literal")
	only.Directive = sigs.Directive{Kind: sigs.DirectiveOnly}

	engine := newTestEngine(t)
	_, err := engine.Reload([]*sigs.Signature{
		sigWith(1, only),
		sigWith(2, payloadContent("plain_literal")),
	})
	require.NoError(t, err)

	assert.True(t, engine.FastPatternOnly(1, sigs.BufferPayload))
	assert.False(t, engine.FastPatternOnly(1, sigs.BufferURI))
	assert.False(t, engine.FastPatternOnly(2, sigs.BufferPayload))
	assert.False(t, engine.FastPatternOnly(999, sigs.BufferPayload))
}

func TestReloadFailureKeepsPreviousSet(t *testing.T) {
	reg := sigs.NewContextRegistry()
	engine := NewEngine(reg, Options{Backend: mpm.BackendAho})

	first, err := engine.Reload([]*sigs.Signature{sigWith(1, payloadContent("stable_pattern"))})
	require.NoError(t, err)

	// Swap in options that cannot build and attempt a reload.
	engine.opts = Options{Backend: mpm.BackendCloudflare, CaseInsensitive: true}
	_, err = engine.Reload([]*sigs.Signature{sigWith(2, payloadContent("new_pattern"))})
	require.Error(t, err)

	// The previous matcher set stays authoritative.
	assert.Equal(t, first.BuildID, engine.BuildID())
	hits, scanErr := engine.Scan("", payloadBuffers("stable_pattern here"))
	require.NoError(t, scanErr)
	assert.Equal(t, []uint32{1}, hits)
}

func TestReloadSwapsAtomically(t *testing.T) {
	engine := newTestEngine(t)

	first, err := engine.Reload([]*sigs.Signature{sigWith(1, payloadContent("old_pattern"))})
	require.NoError(t, err)

	second, err := engine.Reload([]*sigs.Signature{sigWith(2, payloadContent("new_pattern"))})
	require.NoError(t, err)
	assert.NotEqual(t, first.BuildID, second.BuildID)
	assert.Equal(t, second.BuildID, engine.BuildID())

	hits, err := engine.Scan("", payloadBuffers("old_pattern new_pattern"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{2}, hits)
}

func TestBuffersAccessors(t *testing.T) {
	var bufs Buffers
	bufs.Set(sigs.BufferURI, []byte("/x"))
	bufs.Set(sigs.BufferContext(99), []byte("ignored"))

	assert.Equal(t, []byte("/x"), bufs.Get(sigs.BufferURI))
	assert.Nil(t, bufs.Get(sigs.BufferPayload))
	assert.Nil(t, bufs.Get(sigs.BufferContext(99)))
}
