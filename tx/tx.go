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

// Package tx implements the transmitter side of a request: response
// status, headers, cookies, the chosen handler/connector names, the
// outbound pipeline, and the finalization flags that drive §4.1's
// Finalized/Complete transitions.
package tx

import (
	"fmt"
	"net/http"
	"net/textproto"
	"os"
	"strconv"
	"time"

	"github.com/sabouaram/httpcore/byterange"
	"github.com/sabouaram/httpcore/packet"
	"github.com/sabouaram/httpcore/pipeline"
	"github.com/sabouaram/httpcore/trace"
)

// Tx holds one response's outbound state: status, headers, cookies,
// the stage names chosen for this request, the assembled output
// pipeline, range/file metadata, and the finalization flags spec §3
// describes.
type Tx struct {
	Proto      string
	Status     int
	StatusText string

	Header  textproto.MIMEHeader
	Cookies []*http.Cookie

	// Handler/Connector record the stage names resolved for this
	// request (§4.3 step 1-2), for diagnostics and the access log.
	Handler   string
	Connector string

	// Pipeline is the assembled outbound queue chain; nil until the
	// pipeline is built (§4.3).
	Pipeline *pipeline.Pipeline

	// OutputRanges is non-nil when the range filter (§4.8) should
	// activate: a byte-range request matched against a 200 response.
	OutputRanges []byterange.Range
	RangeBoundary string

	// Length is the declared entity length; -1 means unknown/streamed
	// (chunked transfer is used for an outgoing response when Length
	// is negative and ChunkSize is positive, per §4.9).
	Length    int64
	ChunkSize int

	FileInfo os.FileInfo
	Filename string
	ETag     string

	// BodyBudget bounds how many more body bytes may be enqueued before
	// WriteBody refuses further writes (0 means unbounded).
	BodyBudget int64
	bodySent   int64

	Finalized          bool
	FinalizedOutput    bool
	FinalizedConnector bool

	headersSent bool
}

// New builds an empty Tx for a fresh request/response cycle.
func New() *Tx {
	return &Tx{
		Proto:  "HTTP/1.1",
		Status: http.StatusOK,
		Header: make(textproto.MIMEHeader),
		Length: -1,
	}
}

// Reset clears tx for reuse on the next keep-alive request, without
// reallocating the header map.
func (tx *Tx) Reset() {
	for k := range tx.Header {
		delete(tx.Header, k)
	}

	*tx = Tx{
		Proto:  "HTTP/1.1",
		Status: http.StatusOK,
		Header: tx.Header,
		Length: -1,
	}
}

// SetStatus sets the response status line. An empty text derives the
// standard reason phrase from code.
func (tx *Tx) SetStatus(code int, text string) {
	tx.Status = code
	if text == "" {
		text = http.StatusText(code)
	}
	tx.StatusText = text
}

// SetHeader replaces any existing values for key.
func (tx *Tx) SetHeader(key, value string) {
	tx.Header.Set(key, value)
}

// AddHeader appends value to key's existing values.
func (tx *Tx) AddHeader(key, value string) {
	tx.Header.Add(key, value)
}

// DelHeader removes key entirely.
func (tx *Tx) DelHeader(key string) {
	tx.Header.Del(key)
}

// SetCookie queues c to be emitted as a Set-Cookie header when the
// response head is built.
func (tx *Tx) SetCookie(c *http.Cookie) {
	tx.Cookies = append(tx.Cookies, c)
}

// SetOutputRanges activates the range filter (§4.8) for a 200 response,
// generating a multipart boundary when more than one range is present.
func (tx *Tx) SetOutputRanges(ranges []byterange.Range) {
	tx.OutputRanges = ranges

	if len(ranges) > 1 {
		tx.RangeBoundary = byterange.NewBoundary()
	} else {
		tx.RangeBoundary = ""
	}
}

// HeadBytes renders the status line, every header (including queued
// Set-Cookie entries), and the terminating blank line, in wire order.
// This is the payload of the header packet spec §4.3 step 7 injects
// onto the head of the TX pipeline.
func (tx *Tx) HeadBytes() []byte {
	var b []byte

	b = append(b, fmt.Sprintf("%s %d %s\r\n", tx.Proto, tx.Status, tx.StatusText)...)

	for key, values := range tx.Header {
		for _, v := range values {
			b = append(b, key...)
			b = append(b, ':', ' ')
			b = append(b, v...)
			b = append(b, '\r', '\n')
		}
	}

	for _, c := range tx.Cookies {
		b = append(b, "Set-Cookie: "...)
		b = append(b, c.String()...)
		b = append(b, '\r', '\n')
	}

	b = append(b, '\r', '\n')

	return b
}

// HeaderPacket builds the TagHeader packet carrying HeadBytes and marks
// headersSent, so HeadersSent reports true afterwards. WriteBody does
// not consult the flag.
func (tx *Tx) HeaderPacket() *packet.Packet {
	tx.headersSent = true
	return packet.NewHeader(tx.HeadBytes())
}

// HeadersSent reports whether HeaderPacket has already been called for
// this response.
func (tx *Tx) HeadersSent() bool { return tx.headersSent }

// WriteBody enqueues data as a TagData packet onto tx.Pipeline's head
// queue, honoring BodyBudget. It returns the number of bytes actually
// accepted; fewer than len(data) means BodyBudget was exhausted.
func (tx *Tx) WriteBody(data []byte) (n int, err error) {
	if tx.Pipeline == nil {
		return 0, fmt.Errorf("tx: no output pipeline assembled")
	}

	if tx.BodyBudget > 0 {
		remaining := tx.BodyBudget - tx.bodySent
		if remaining <= 0 {
			return 0, nil
		}
		if int64(len(data)) > remaining {
			data = data[:remaining]
		}
	}

	head := tx.Pipeline.Head().Next()
	if head == nil {
		return 0, fmt.Errorf("tx: output pipeline has no stages")
	}

	head.Queue.Append(packet.NewData(data))

	tx.bodySent += int64(len(data))
	return len(data), nil
}

// WriteFileRange enqueues a packet backed directly by f (no buffering
// through Content), the send connector's zero-copy fast path activated
// when the handler sets HTTP_TX_SENDFILE per §4.10. Callers still drive
// SetContentLength/SetOutputRanges themselves; this only queues the
// entity bytes.
func (tx *Tx) WriteFileRange(f *os.File, offset, size int64) error {
	if tx.Pipeline == nil {
		return fmt.Errorf("tx: no output pipeline assembled")
	}

	head := tx.Pipeline.Head().Next()
	if head == nil {
		return fmt.Errorf("tx: output pipeline has no stages")
	}

	head.Queue.Append(packet.NewFileRange(f, offset, size))
	tx.bodySent += size
	return nil
}

// WriteRangePart enqueues one multipart/byteranges part (or, for a
// single range, just the raw data — the caller has already set
// Content-Range/status via SetOutputRanges's caller) per §4.8.
func (tx *Tx) WriteRangePart(contentType string, r byterange.Range, length int64, data []byte) (int, error) {
	if tx.RangeBoundary == "" {
		return tx.WriteBody(data)
	}

	part := byterange.Part(tx.RangeBoundary, contentType, r, length, data)
	return tx.WriteBody(part)
}

// WriteRangeTrailer enqueues the closing multipart boundary, when one
// or more parts have already been written via WriteRangePart.
func (tx *Tx) WriteRangeTrailer() (int, error) {
	if tx.RangeBoundary == "" {
		return 0, nil
	}
	return tx.WriteBody(byterange.Trailer(tx.RangeBoundary))
}

// FinishOutput enqueues the terminal TagEnd packet and marks
// FinalizedOutput; the connector marks FinalizedConnector once every
// byte has actually been written to the socket, and Finalized is then
// true once both flags hold (§3's Tx invariant).
func (tx *Tx) FinishOutput() error {
	if tx.Pipeline == nil {
		return fmt.Errorf("tx: no output pipeline assembled")
	}

	head := tx.Pipeline.Head().Next()
	if head == nil {
		return fmt.Errorf("tx: output pipeline has no stages")
	}

	head.Queue.Append(packet.NewEnd())
	tx.FinalizedOutput = true
	tx.recomputeFinalized()

	return nil
}

// MarkConnectorDone is called by the connector once every queued byte
// has been written to the socket.
func (tx *Tx) MarkConnectorDone() {
	tx.FinalizedConnector = true
	tx.recomputeFinalized()
}

func (tx *Tx) recomputeFinalized() {
	tx.Finalized = tx.FinalizedOutput && tx.FinalizedConnector
}

// BuildETag derives the "inode-size-mtime" etag format §4.11 specifies
// from a file's stat info. The inode component is platform-specific
// (populated by fileInode, a build-tagged helper) and falls back to 0
// on platforms with no stable inode number.
func BuildETag(info os.FileInfo) string {
	return fmt.Sprintf("%x-%x-%x", fileInode(info), info.Size(), info.ModTime().UnixNano())
}

// SetLastModified sets the Last-Modified header from t in RFC1123 GMT
// form, the format HTTP requires.
func (tx *Tx) SetLastModified(t time.Time) {
	tx.SetHeader("Last-Modified", t.UTC().Format(http.TimeFormat))
}

// NotModified rewrites the response as a bodyless 304, per the
// conditional-GET half of §4.7's cache semantics.
func (tx *Tx) NotModified() {
	tx.SetStatus(http.StatusNotModified, "")
	tx.Header.Del("Content-Type")
	tx.Header.Del("Content-Length")
	tx.Length = 0
}

// SetContentLength sets both tx.Length and the Content-Length header
// (mutually exclusive with chunked transfer, per §4.9).
func (tx *Tx) SetContentLength(n int64) {
	tx.Length = n
	tx.SetHeader("Content-Length", strconv.FormatInt(n, 10))
}

// Fields returns the access-log field set for this response, joined
// with the request's own fields by the caller (conn's processCompletion
// adds method/path/request id from Rx).
func (tx *Tx) Fields() trace.Fields {
	return trace.Fields{
		"status":     tx.Status,
		"body_bytes": tx.bodySent,
	}
}
