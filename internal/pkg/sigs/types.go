// Package sigs defines the signature data model consumed by fast-pattern
// selection and multi-pattern-matcher compilation: content patterns, their
// per-buffer-context match lists, and the registry of buffer contexts
// eligible for fast-pattern registration.
package sigs

// BufferContext identifies the logical byte stream a content keyword
// inspects. Each context gets its own compiled matcher instance.
type BufferContext int

const (
	// BufferPayload is the raw application-layer payload.
	BufferPayload BufferContext = iota
	// BufferURI is the normalized request URI.
	BufferURI
	// BufferHTTPClientBody is the HTTP request body.
	BufferHTTPClientBody
	// BufferHTTPHeader is the normalized HTTP header block.
	BufferHTTPHeader
	// BufferHTTPRawHeader is the HTTP header block as seen on the wire.
	BufferHTTPRawHeader
	// BufferHTTPMethod is the HTTP request method token.
	BufferHTTPMethod
	// BufferHTTPCookie is the value of the Cookie header.
	BufferHTTPCookie

	// NumBufferContexts is the number of defined buffer contexts.
	NumBufferContexts = int(BufferHTTPCookie) + 1
)

var contextNames = [NumBufferContexts]string{
	BufferPayload:        "payload",
	BufferURI:            "uri",
	BufferHTTPClientBody: "http_client_body",
	BufferHTTPHeader:     "http_header",
	BufferHTTPRawHeader:  "http_raw_header",
	BufferHTTPMethod:     "http_method",
	BufferHTTPCookie:     "http_cookie",
}

func (b BufferContext) String() string {
	if b < 0 || int(b) >= NumBufferContexts {
		return "unknown"
	}
	return contextNames[b]
}

// Valid reports whether b names a defined buffer context.
func (b BufferContext) Valid() bool {
	return b >= 0 && int(b) < NumBufferContexts
}

// MaxPatternLen is the maximum content pattern length and the upper bound
// for chop offset/length arithmetic.
const MaxPatternLen = 65535

// ChopRange restricts the fast-pattern search needle to the byte sub-range
// [Offset, Offset+Length) of the content pattern.
type ChopRange struct {
	Offset uint16
	Length uint16
}

// DirectiveKind is the parsed form of a fast_pattern rule option.
type DirectiveKind int

const (
	// DirectiveNone means the content keyword carries no fast_pattern option.
	DirectiveNone DirectiveKind = iota
	// DirectiveBare is `fast_pattern;`.
	DirectiveBare
	// DirectiveOnly is `fast_pattern:only;`.
	DirectiveOnly
	// DirectiveChop is `fast_pattern:<offset>,<length>;`.
	DirectiveChop
)

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveNone:
		return "none"
	case DirectiveBare:
		return "bare"
	case DirectiveOnly:
		return "only"
	case DirectiveChop:
		return "chop"
	default:
		return "unknown"
	}
}

// Directive is the typed result of parsing a fast_pattern option.
// Chop is meaningful only when Kind is DirectiveChop, so the illegal
// only-with-chop-range combination cannot be expressed.
type Directive struct {
	Kind DirectiveKind
	Chop ChopRange
}

// FastPattern records the selection outcome stamped on a content pattern
// by the selector. Only and Chop are mutually exclusive because the
// selector copies a single Directive verbatim.
type FastPattern struct {
	// Selected marks this pattern as the one registered into the MPM
	// matcher for its buffer context.
	Selected bool
	// Only means an MPM hit is sufficient evidence for this keyword;
	// the full evaluator may skip the literal re-check.
	Only bool
	// Chop, when non-nil, restricts the search needle to a sub-range.
	Chop *ChopRange
}

// ContentPattern is a literal byte-string match criterion attached to a
// signature. Relative modifiers are optional and nil when absent.
type ContentPattern struct {
	// Bytes is the literal pattern, arbitrary binary, length 0..MaxPatternLen.
	Bytes []byte
	// Negated means the pattern must be absent for the keyword to match.
	Negated bool

	// Relative-match modifiers. Distance/Within are relative to the
	// previous match; Offset/Depth are absolute in the buffer.
	Distance *int32
	Within   *int32
	Offset   *int32
	Depth    *int32

	// Context is the buffer this pattern inspects.
	Context BufferContext

	// Directive is the explicit fast_pattern option from the rule text,
	// DirectiveNone when the rule carried none.
	Directive Directive

	// Fast is the selection outcome, zero until the selector runs.
	Fast FastPattern
}

// HasRelativeModifier reports whether any positional modifier is set.
func (c *ContentPattern) HasRelativeModifier() bool {
	return c.Distance != nil || c.Within != nil || c.Offset != nil || c.Depth != nil
}

// NeedleBytes returns the byte range that is registered as the MPM search
// needle: the chop sub-range when chopped, the full pattern otherwise.
// Valid only after selection; callers must have validated chop bounds.
func (c *ContentPattern) NeedleBytes() []byte {
	if c.Fast.Chop != nil {
		off := int(c.Fast.Chop.Offset)
		end := off + int(c.Fast.Chop.Length)
		return c.Bytes[off:end]
	}
	return c.Bytes
}

// SigMatchList is the ordered sequence of content keywords a signature
// attaches to one buffer context. Indexable by declaration order; prior
// keyword lookups are index arithmetic, not pointer chasing.
type SigMatchList []*ContentPattern

// Signature is a detection rule reduced to the parts this subsystem needs:
// an id, a traffic-classification group, and per-context keyword lists.
type Signature struct {
	// SID is the rule id, unique within a loaded ruleset.
	SID uint32
	// Msg is the human-readable rule message, used in diagnostics.
	Msg string
	// Group names the signature group this rule is compiled into.
	// Empty means the default group.
	Group string

	lists [NumBufferContexts]SigMatchList
}

// AddContent appends p to the match list of its buffer context.
func (s *Signature) AddContent(p *ContentPattern) {
	s.lists[p.Context] = append(s.lists[p.Context], p)
}

// List returns the match list for the given buffer context.
func (s *Signature) List(ctx BufferContext) SigMatchList {
	if !ctx.Valid() {
		return nil
	}
	return s.lists[ctx]
}

// FastPattern returns the selected fast pattern for the given buffer
// context, or nil if the context has no selection.
func (s *Signature) FastPattern(ctx BufferContext) *ContentPattern {
	for _, cp := range s.List(ctx) {
		if cp.Fast.Selected {
			return cp
		}
	}
	return nil
}

// HasFastPattern reports whether any buffer context of s carries a
// selected fast pattern.
func (s *Signature) HasFastPattern() bool {
	for ctx := 0; ctx < NumBufferContexts; ctx++ {
		if s.FastPattern(BufferContext(ctx)) != nil {
			return true
		}
	}
	return false
}
