package sigs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferContextString(t *testing.T) {
	tests := []struct {
		name     string
		ctx      BufferContext
		expected string
	}{
		{"payload", BufferPayload, "payload"},
		{"uri", BufferURI, "uri"},
		{"client body", BufferHTTPClientBody, "http_client_body"},
		{"header", BufferHTTPHeader, "http_header"},
		{"raw header", BufferHTTPRawHeader, "http_raw_header"},
		{"method", BufferHTTPMethod, "http_method"},
		{"cookie", BufferHTTPCookie, "http_cookie"},
		{"out of range", BufferContext(42), "unknown"},
		{"negative", BufferContext(-1), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.ctx.String())
		})
	}
}

func TestNeedleBytes(t *testing.T) {
	cp := &ContentPattern{Bytes: []byte("oneoneone")}
	assert.Equal(t, []byte("oneoneone"), cp.NeedleBytes())

	cp.Fast.Chop = &ChopRange{Offset: 3, Length: 4}
	assert.Equal(t, []byte("oneo"), cp.NeedleBytes())
}

func TestHasRelativeModifier(t *testing.T) {
	var d int32 = 10
	tests := []struct {
		name     string
		cp       ContentPattern
		expected bool
	}{
		{"none", ContentPattern{}, false},
		{"distance", ContentPattern{Distance: &d}, true},
		{"within", ContentPattern{Within: &d}, true},
		{"offset", ContentPattern{Offset: &d}, true},
		{"depth", ContentPattern{Depth: &d}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cp.HasRelativeModifier())
		})
	}
}

func TestSignatureLists(t *testing.T) {
	sig := &Signature{SID: 1}
	payload := &ContentPattern{Bytes: []byte("aaa"), Context: BufferPayload}
	uri := &ContentPattern{Bytes: []byte("/x"), Context: BufferURI}
	sig.AddContent(payload)
	sig.AddContent(uri)

	require.Len(t, sig.List(BufferPayload), 1)
	require.Len(t, sig.List(BufferURI), 1)
	assert.Empty(t, sig.List(BufferHTTPCookie))
	assert.Nil(t, sig.List(BufferContext(99)))

	assert.Nil(t, sig.FastPattern(BufferPayload))
	assert.False(t, sig.HasFastPattern())

	uri.Fast.Selected = true
	assert.Same(t, uri, sig.FastPattern(BufferURI))
	assert.True(t, sig.HasFastPattern())
}

func TestContextRegistry(t *testing.T) {
	reg := NewContextRegistry()

	entries := reg.Entries()
	require.Len(t, entries, NumBufferContexts)

	for _, e := range entries {
		assert.True(t, reg.Eligible(e.Context), "context %s", e.Name)
		resolved, ok := reg.ByName(e.Name)
		require.True(t, ok)
		assert.Equal(t, e.Context, resolved)
	}

	_, ok := reg.ByName("http_stat_code")
	assert.False(t, ok)
	assert.False(t, reg.Eligible(BufferContext(-1)))
}

func TestValidate(t *testing.T) {
	good := &Signature{SID: 1}
	good.AddContent(&ContentPattern{Bytes: []byte("abc"), Context: BufferPayload})
	assert.NoError(t, Validate(good))

	missing := &Signature{}
	err := Validate(missing)
	require.Error(t, err)

	long := &Signature{SID: 2}
	long.AddContent(&ContentPattern{Bytes: make([]byte, MaxPatternLen+1), Context: BufferPayload})
	err = Validate(long)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, uint32(2), verr.SID)
	assert.Equal(t, "content", verr.Field)
}
