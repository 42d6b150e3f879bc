// Package httpbuf splits an HTTP request payload into the per-context
// buffers the matchers scan: method, URI, normalized and raw header
// blocks, cookie value and client body. Payloads that do not look like
// an HTTP request yield only the payload buffer.
package httpbuf

import (
	"bytes"

	"github.com/endorses/prowl/internal/pkg/detect"
	"github.com/endorses/prowl/internal/pkg/sigs"
)

var (
	crlf      = []byte("\r\n")
	headerEnd = []byte("\r\n\r\n")

	requestMethods = [][]byte{
		[]byte("GET "), []byte("POST "), []byte("PUT "), []byte("DELETE "),
		[]byte("HEAD "), []byte("OPTIONS "), []byte("PATCH "),
		[]byte("TRACE "), []byte("CONNECT "),
	}
)

// Extract builds the per-context buffers for one packet payload. Apart
// from the normalized header block, the returned slices alias payload;
// callers must not retain them past the packet's lifetime.
func Extract(payload []byte) detect.Buffers {
	var bufs detect.Buffers
	bufs.Set(sigs.BufferPayload, payload)

	if !looksLikeRequest(payload) {
		return bufs
	}

	head := payload
	var body []byte
	if i := bytes.Index(payload, headerEnd); i >= 0 {
		head = payload[:i]
		body = payload[i+len(headerEnd):]
	}

	lineEnd := bytes.Index(head, crlf)
	if lineEnd < 0 {
		lineEnd = len(head)
	}
	requestLine := head[:lineEnd]

	method, uri, ok := splitRequestLine(requestLine)
	if !ok {
		return bufs
	}
	bufs.Set(sigs.BufferHTTPMethod, method)
	bufs.Set(sigs.BufferURI, uri)

	if lineEnd+len(crlf) <= len(head) {
		rawHeader := head[lineEnd+len(crlf):]
		if len(rawHeader) > 0 {
			bufs.Set(sigs.BufferHTTPRawHeader, rawHeader)
			normalized, cookie := normalizeHeaders(rawHeader)
			if len(normalized) > 0 {
				bufs.Set(sigs.BufferHTTPHeader, normalized)
			}
			if len(cookie) > 0 {
				bufs.Set(sigs.BufferHTTPCookie, cookie)
			}
		}
	}

	if len(body) > 0 {
		bufs.Set(sigs.BufferHTTPClientBody, body)
	}
	return bufs
}

func looksLikeRequest(payload []byte) bool {
	for _, m := range requestMethods {
		if bytes.HasPrefix(payload, m) {
			return true
		}
	}
	return false
}

// splitRequestLine parses "METHOD target HTTP/version".
func splitRequestLine(line []byte) (method, uri []byte, ok bool) {
	first := bytes.IndexByte(line, ' ')
	if first < 0 {
		return nil, nil, false
	}
	rest := line[first+1:]
	second := bytes.IndexByte(rest, ' ')
	if second < 0 {
		return nil, nil, false
	}
	version := rest[second+1:]
	if !bytes.HasPrefix(version, []byte("HTTP/")) {
		return nil, nil, false
	}
	return line[:first], rest[:second], true
}

// normalizeHeaders rebuilds the header block as "Name: value" lines with
// surrounding whitespace trimmed, and pulls out the Cookie value.
func normalizeHeaders(raw []byte) (normalized, cookie []byte) {
	var out []byte
	for _, line := range bytes.Split(raw, crlf) {
		if len(line) == 0 {
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		name := bytes.TrimSpace(line[:colon])
		value := bytes.TrimSpace(line[colon+1:])
		if len(name) == 0 {
			continue
		}
		out = append(out, name...)
		out = append(out, ':', ' ')
		out = append(out, value...)
		out = append(out, crlf...)
		if cookie == nil && bytes.EqualFold(name, []byte("Cookie")) {
			cookie = value
		}
	}
	return out, cookie
}
