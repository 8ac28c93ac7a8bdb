/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package rx implements the receiver side of the connection: parsing a
// request (or, in client mode, a response) line and headers off the raw
// input bytes, and holding every piece of per-request state the route
// matcher, auth flow, and handlers read from afterward.
package rx

import (
	"bytes"
	"fmt"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/sabouaram/httpcore/byterange"
	"github.com/sabouaram/httpcore/chunked"
	libctx "github.com/sabouaram/httpcore/context"
	liberr "github.com/sabouaram/httpcore/errors"
	"github.com/sabouaram/httpcore/route"
	"github.com/sabouaram/httpcore/uri"
)

// disallowedKeyChars are the bytes the parser rejects inside a header
// key, per the wire-format grammar.
const disallowedKeyChars = "%<>/\\"

// Rx holds one request's (or, client-side, one response's) parsed wire
// state: method/URI/protocol, headers, body framing, and everything the
// route matcher and handlers consult afterward.
type Rx struct {
	Method string
	RawURI string
	URI    *uri.URI
	Proto  string

	// StatusCode/StatusText are populated instead of Method/RawURI when
	// Rx is parsing a response (client mode).
	StatusCode int
	StatusText string

	Header textproto.MIMEHeader

	Length           int64 // Content-Length; -1 if absent
	Chunked          bool
	RemainingContent int64 // bytes still expected; -1 means unbounded until chunk EOF
	BytesRead        int64

	MustClose    bool
	KeepAliveMax int // -1 if the peer did not send Keep-Alive: max=N

	Expect100 bool

	HostHeader string
	Cookies    map[string]string

	Ranges       []byterange.Range
	ContentRange *byterange.Range

	IsMultipartForm  bool
	MultipartBoundary string
	IsFormURLEncoded bool

	IfModifiedSince   time.Time
	IfUnmodifiedSince time.Time
	IfMatch           string
	IfNoneMatch       string

	AuthType    string
	AuthDetails string

	UpgradeWebSocket bool
	MethodOverride   string

	PathInfo string

	Route *route.MatchResult
	Match route.MatchContext

	Files   []UploadFile
	Query   map[string][]string
	Session libctx.Config[string]

	// Body accumulates decoded body bytes as FeedBody is called, unless
	// BodySink is set. The file handler's PUT path reads Body; no code in
	// this module assigns BodySink, so bodies are buffered in memory.
	Body []byte

	// BodySink, when non-nil, receives every FeedBody call's decoded
	// bytes instead of them accumulating onto Body.
	BodySink func(data []byte) error

	decoder *chunked.Decoder
}

// UploadFile is one multipart/form-data part that carried a filename,
// exposed on rx.Files and mirrored into request params per §4.12.
type UploadFile struct {
	FieldName   string
	FileName    string
	ContentType string
	Size        int64
	TempPath    string
}

// New builds an empty Rx ready to parse a request line.
func New() *Rx {
	return &Rx{
		Header:       make(textproto.MIMEHeader),
		Length:       -1,
		KeepAliveMax: -1,
		Cookies:      make(map[string]string),
		Query:        make(map[string][]string),
	}
}

// Reset clears rx for reuse on the next keep-alive request, without
// reallocating the header map.
func (rx *Rx) Reset() {
	for k := range rx.Header {
		delete(rx.Header, k)
	}
	for k := range rx.Cookies {
		delete(rx.Cookies, k)
	}
	for k := range rx.Query {
		delete(rx.Query, k)
	}

	*rx = Rx{
		Header:       rx.Header,
		Length:       -1,
		KeepAliveMax: -1,
		Cookies:      rx.Cookies,
		Query:        rx.Query,
	}
}

// ParseRequestLine parses "METHOD SP URI SP PROTOCOL" (without the
// trailing CRLF). maxURILen bounds the URI token; 0 means unbounded.
func ParseRequestLine(line []byte, maxURILen int) (method, rawURI, proto string, err error) {
	s := string(line)

	sp1 := strings.IndexByte(s, ' ')
	if sp1 <= 0 {
		return "", "", "", liberr.CodeParseRequestLine.Error(fmt.Errorf("missing method"))
	}

	rest := s[sp1+1:]
	sp2 := strings.IndexByte(rest, ' ')
	if sp2 <= 0 {
		return "", "", "", liberr.CodeParseRequestLine.Error(fmt.Errorf("missing protocol"))
	}

	method = s[:sp1]
	rawURI = rest[:sp2]
	proto = rest[sp2+1:]

	if maxURILen > 0 && len(rawURI) > maxURILen {
		return "", "", "", liberr.CodeLimitURI.Error(fmt.Errorf("uri exceeds %d bytes", maxURILen))
	}

	if proto != "HTTP/1.0" && proto != "HTTP/1.1" {
		return "", "", "", liberr.CodeParseRequestLine.Error(fmt.Errorf("unsupported protocol %q", proto))
	}

	return method, rawURI, proto, nil
}

// SplitHeaders locates the blank-line terminator ("\r\n\r\n" or "\n\n")
// in buf, returning the header block (terminator excluded) and the
// remaining bytes that belong to the body. found is false when the
// terminator has not arrived yet and the caller should wait for more data.
func SplitHeaders(buf []byte) (headerBlock []byte, rest []byte, found bool) {
	if idx := bytes.Index(buf, []byte("\r\n\r\n")); idx >= 0 {
		return buf[:idx], buf[idx+4:], true
	}

	if idx := bytes.Index(buf, []byte("\n\n")); idx >= 0 {
		return buf[:idx], buf[idx+2:], true
	}

	return nil, nil, false
}

// ParseHeaders parses a CRLF- (or LF-) separated header block into rx's
// fields, applying the recognized-header effects table as each line is
// read. maxHeaders bounds the header count; 0 means unbounded.
func (rx *Rx) ParseHeaders(block []byte, maxHeaders int) error {
	lines := splitLines(block)

	if maxHeaders > 0 && len(lines) > maxHeaders {
		return liberr.CodeLimitHeader.Error(fmt.Errorf("%d headers exceeds limit %d", len(lines), maxHeaders))
	}

	for _, line := range lines {
		if len(line) == 0 {
			continue
		}

		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return liberr.CodeParseHeader.Error(fmt.Errorf("malformed header line %q", line))
		}

		key := line[:colon]
		for _, c := range key {
			if strings.IndexByte(disallowedKeyChars, byte(c)) >= 0 {
				return liberr.CodeParseHeader.Error(fmt.Errorf("disallowed character in header key %q", key))
			}
		}

		value := strings.TrimLeft(line[colon+1:], " \t")

		if err := rx.ApplyHeader(key, value); err != nil {
			return err
		}
	}

	return nil
}

func splitLines(block []byte) []string {
	s := strings.ReplaceAll(string(block), "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// ApplyHeader stores key/value in rx.Header (merging duplicates with
// ", " except Set-Cookie, which keeps multiple entries but replaces an
// existing entry of the same cookie name) and runs the recognized-header
// effects table from §4.2.
func (rx *Rx) ApplyHeader(key, value string) error {
	canon := textproto.CanonicalMIMEHeaderKey(key)

	if canon == "Set-Cookie" {
		rx.Header[canon] = replaceCookieOfSameName(rx.Header[canon], value)
	} else if existing, ok := rx.Header[canon]; ok {
		rx.Header[canon] = []string{strings.Join(existing, ", ") + ", " + value}
	} else {
		rx.Header[canon] = []string{value}
	}

	return rx.applyEffect(canon, value)
}

func replaceCookieOfSameName(existing []string, newCookie string) []string {
	name := newCookie
	if eq := strings.IndexByte(newCookie, '='); eq >= 0 {
		name = newCookie[:eq]
	}

	out := make([]string, 0, len(existing)+1)
	for _, c := range existing {
		cn := c
		if eq := strings.IndexByte(c, '='); eq >= 0 {
			cn = c[:eq]
		}
		if cn != name {
			out = append(out, c)
		}
	}

	return append(out, newCookie)
}

func (rx *Rx) applyEffect(canon, value string) error {
	switch canon {
	case "Content-Length":
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || n < 0 {
			return liberr.CodeParseHeader.Error(fmt.Errorf("malformed Content-Length %q", value))
		}
		rx.Length = n
		if !rx.Chunked {
			rx.RemainingContent = n
		}

	case "Transfer-Encoding":
		if strings.EqualFold(strings.TrimSpace(value), "chunked") {
			rx.Chunked = true
			rx.RemainingContent = -1
			rx.decoder = chunked.NewDecoder()
		}

	case "Expect":
		if strings.EqualFold(strings.TrimSpace(value), "100-continue") {
			if rx.Proto != "HTTP/1.1" {
				return liberr.CodeParseHeader.Error(fmt.Errorf("Expect: 100-continue requires HTTP/1.1"))
			}
			rx.Expect100 = true
		}

	case "Connection":
		for _, tok := range strings.Split(value, ",") {
			switch strings.ToLower(strings.TrimSpace(tok)) {
			case "close":
				rx.MustClose = true
			case "keep-alive":
				rx.MustClose = false
			}
		}

	case "Keep-Alive":
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(strings.ToLower(part), "max=") {
				n, err := strconv.Atoi(strings.TrimSpace(part[4:]))
				if err == nil {
					rx.KeepAliveMax = n
				}
			}
		}

	case "Host":
		rx.HostHeader = value

	case "Cookie":
		for _, c := range strings.Split(value, ";") {
			c = strings.TrimSpace(c)
			if eq := strings.IndexByte(c, '='); eq > 0 {
				rx.Cookies[c[:eq]] = c[eq+1:]
			}
		}

	case "Range":
		// deferred: length is not known until the route/handler resolves
		// the target entity, so the raw header is kept and Ranges is
		// populated by ResolveRanges once length is known.
		rx.Header["X-Internal-Range-Raw"] = []string{value}

	case "Content-Range":
		r, err := parseContentRange(value)
		if err != nil {
			return liberr.CodeParseHeader.Error(err)
		}
		rx.ContentRange = r

	case "Content-Type":
		lower := strings.ToLower(value)
		switch {
		case strings.HasPrefix(lower, "multipart/form-data"):
			rx.IsMultipartForm = true
			if idx := strings.Index(lower, "boundary="); idx >= 0 {
				b := value[idx+len("boundary="):]
				b = strings.Trim(b, `"`)
				rx.MultipartBoundary = b
			}
		case strings.HasPrefix(lower, "application/x-www-form-urlencoded"):
			rx.IsFormURLEncoded = true
		}

	case "If-Modified-Since":
		if t, err := time.Parse(time.RFC1123, value); err == nil {
			rx.IfModifiedSince = t
		}

	case "If-Unmodified-Since":
		if t, err := time.Parse(time.RFC1123, value); err == nil {
			rx.IfUnmodifiedSince = t
		}

	case "If-Match":
		rx.IfMatch = value

	case "If-None-Match":
		rx.IfNoneMatch = value

	case "Authorization":
		sp := strings.IndexByte(value, ' ')
		if sp <= 0 {
			return liberr.CodeParseHeader.Error(fmt.Errorf("malformed Authorization header"))
		}
		rx.AuthType = value[:sp]
		rx.AuthDetails = strings.TrimSpace(value[sp+1:])

	case "Upgrade":
		if strings.EqualFold(strings.TrimSpace(value), "websocket") {
			rx.UpgradeWebSocket = true
		}

	case "X-Http-Method-Override":
		rx.MethodOverride = value
	}

	return nil
}

func parseContentRange(value string) (*byterange.Range, error) {
	const prefix = "bytes "
	if !strings.HasPrefix(value, prefix) {
		return nil, fmt.Errorf("malformed Content-Range %q", value)
	}

	spec := value[len(prefix):]
	slash := strings.IndexByte(spec, '/')
	if slash < 0 {
		return nil, fmt.Errorf("malformed Content-Range %q", value)
	}

	rangePart := spec[:slash]
	dash := strings.IndexByte(rangePart, '-')
	if dash < 0 {
		return nil, fmt.Errorf("malformed Content-Range %q", value)
	}

	start, err := strconv.ParseInt(rangePart[:dash], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed Content-Range %q", value)
	}

	end, err := strconv.ParseInt(rangePart[dash+1:], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed Content-Range %q", value)
	}

	return &byterange.Range{Start: start, End: end}, nil
}

// ResolveRanges parses the raw Range header (deferred by ApplyHeader
// until the target entity's length is known) against length.
func (rx *Rx) ResolveRanges(length int64) error {
	raw, ok := rx.Header["X-Internal-Range-Raw"]
	if !ok || len(raw) == 0 {
		return nil
	}

	ranges, err := byterange.Parse(raw[0], length)
	if err != nil {
		return err
	}

	rx.Ranges = ranges
	return nil
}

// EffectiveMethod returns MethodOverride when set, else Method; route
// matching compares this against route.methods.
func (rx *Rx) EffectiveMethod() string {
	if rx.MethodOverride != "" {
		return rx.MethodOverride
	}
	return rx.Method
}

// FeedBody decodes in as body bytes, applying the chunked decoder when
// Transfer-Encoding: chunked was seen; otherwise in, cut to at most
// RemainingContent bytes when that is not -1, is returned and
// RemainingContent decremented. eof reports whether the body is
// now fully received.
func (rx *Rx) FeedBody(in []byte) (data []byte, eof bool, err error) {
	if rx.Chunked {
		if rx.decoder == nil {
			rx.decoder = chunked.NewDecoder()
		}

		out, _, ferr := rx.decoder.Feed(in)
		if ferr != nil {
			return nil, false, liberr.CodeParseChunk.Error(ferr)
		}

		rx.BytesRead += int64(len(out))
		eof = rx.decoder.Done()
		return out, eof, rx.sink(out)
	}

	n := int64(len(in))
	if rx.RemainingContent >= 0 && n > rx.RemainingContent {
		n = rx.RemainingContent
	}

	data = in[:n]
	rx.BytesRead += n

	if rx.RemainingContent >= 0 {
		rx.RemainingContent -= n
		eof = rx.RemainingContent == 0
	}

	return data, eof, rx.sink(data)
}

// sink forwards data to BodySink when the caller registered one, else
// appends it onto Body for a handler to read once BodyComplete fires.
func (rx *Rx) sink(data []byte) error {
	if rx.BodySink != nil {
		return rx.BodySink(data)
	}
	if len(data) > 0 {
		rx.Body = append(rx.Body, data...)
	}
	return nil
}
