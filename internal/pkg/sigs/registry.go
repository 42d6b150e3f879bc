package sigs

// ContextEntry declares one buffer context as eligible for fast-pattern
// registration. ListID is the sigmatch-list slot the context's keywords
// are stored in; today contexts and list slots are one-to-one.
type ContextEntry struct {
	Context BufferContext
	Name    string
	ListID  int
}

// ContextRegistry is the immutable table of buffer contexts eligible for
// fast-pattern registration. It is constructed once at process init and
// passed by value into the selector and the build stage; there is no
// ambient global registry. Adding a new buffer context means adding one
// entry here.
type ContextRegistry struct {
	entries  []ContextEntry
	eligible [NumBufferContexts]bool
	byName   map[string]BufferContext
}

// NewContextRegistry returns the registry covering all supported contexts:
// payload, uri, http_client_body, http_header, http_raw_header,
// http_method and http_cookie.
func NewContextRegistry() ContextRegistry {
	entries := []ContextEntry{
		{Context: BufferPayload, Name: "payload", ListID: int(BufferPayload)},
		{Context: BufferURI, Name: "uri", ListID: int(BufferURI)},
		{Context: BufferHTTPClientBody, Name: "http_client_body", ListID: int(BufferHTTPClientBody)},
		{Context: BufferHTTPHeader, Name: "http_header", ListID: int(BufferHTTPHeader)},
		{Context: BufferHTTPRawHeader, Name: "http_raw_header", ListID: int(BufferHTTPRawHeader)},
		{Context: BufferHTTPMethod, Name: "http_method", ListID: int(BufferHTTPMethod)},
		{Context: BufferHTTPCookie, Name: "http_cookie", ListID: int(BufferHTTPCookie)},
	}

	reg := ContextRegistry{
		entries: entries,
		byName:  make(map[string]BufferContext, len(entries)),
	}
	for _, e := range entries {
		reg.eligible[e.Context] = true
		reg.byName[e.Name] = e.Context
	}
	return reg
}

// Entries returns the registered contexts in declaration order.
func (r ContextRegistry) Entries() []ContextEntry {
	out := make([]ContextEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Eligible reports whether ctx accepts fast-pattern registration.
func (r ContextRegistry) Eligible(ctx BufferContext) bool {
	if !ctx.Valid() {
		return false
	}
	return r.eligible[ctx]
}

// ByName resolves a context name as used in ruleset documents.
func (r ContextRegistry) ByName(name string) (BufferContext, bool) {
	ctx, ok := r.byName[name]
	return ctx, ok
}
