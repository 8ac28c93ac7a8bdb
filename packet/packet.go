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

// Package packet implements the pipeline's unit of data: an
// immutable-ish byte buffer that may carry a lazy fill callback instead
// of (or in addition to) real bytes, plus the bi-directional Queue that
// chains packets between pipeline stages.
package packet

import "os"

// Tag classifies what a Packet represents on the pipeline.
type Tag uint8

const (
	TagHeader Tag = iota
	TagData
	TagEnd
	TagRange
	TagSolo
)

func (t Tag) String() string {
	switch t {
	case TagHeader:
		return "header"
	case TagData:
		return "data"
	case TagEnd:
		return "end"
	case TagRange:
		return "range"
	case TagSolo:
		return "solo"
	}
	return "unknown"
}

// FillFunc lazily produces entity bytes for a packet whose payload is not
// buffered in memory (e.g. a sendfile range): pos is the offset already
// delivered, size is the total entity length the fill covers.
type FillFunc func(pos int64, size int64) ([]byte, error)

// Packet is one link in a Queue's singly-linked chain. The bytes of
// Content and Prefix are never overwritten: Resize returns new *Packets
// sharing the backing array, while Consume and ConsumePrefix reslice
// this packet's own fields in place.
type Packet struct {
	// Content is the ordered byte payload of this packet.
	Content []byte

	// Prefix is an optional framing header prepended at send time (e.g.
	// the "\r\nSIZE\r\n" chunk-size line). It is never counted by Len().
	Prefix []byte

	// Tag classifies the packet for stage-specific handling.
	Tag Tag

	// Fill lazily produces entity bytes instead of buffering them in
	// Content; FillSize is the size this fill covers ("esize" in spec
	// terms — entity size contributed to payload length without a
	// backing buffer).
	Fill     FillFunc
	FillSize int64

	// File and Offset back the sendfile fast path: when File is non-nil
	// the connector transfers FillSize bytes starting at Offset directly
	// from this descriptor instead of calling Fill, so the range never
	// passes through an intermediate buffer.
	File   *os.File
	Offset int64

	// Last marks the final packet of a message/response.
	Last bool

	next *Packet
}

// Len returns content.length + esize, the packet's payload length as
// defined by the Queue-count invariant. Prefix bytes are never counted.
func (p *Packet) Len() int64 {
	if p == nil {
		return 0
	}
	return int64(len(p.Content)) + p.FillSize
}

// Next returns the next packet in the chain this packet is linked into.
func (p *Packet) Next() *Packet { return p.next }

// SetNext links the next packet in the chain. Only a Queue should call this.
func (p *Packet) SetNext(n *Packet) { p.next = n }

// NewData builds a plain data packet copying the given bytes.
func NewData(b []byte) *Packet {
	c := make([]byte, len(b))
	copy(c, b)
	return &Packet{Content: c, Tag: TagData}
}

// NewHeader builds a header packet; headers sit at the head of a TX
// pipeline until the connector writes them ahead of any data packet.
func NewHeader(b []byte) *Packet {
	return &Packet{Content: b, Tag: TagHeader}
}

// NewEnd builds a zero-length terminal packet with Last set.
func NewEnd() *Packet {
	return &Packet{Tag: TagEnd, Last: true}
}

// NewFill builds a packet whose payload is produced lazily by fn,
// covering size bytes of entity data (e.g. a sendfile range).
func NewFill(fn FillFunc, size int64) *Packet {
	return &Packet{Fill: fn, FillSize: size, Tag: TagData}
}

// NewFileRange builds a packet whose payload is size bytes of f read
// from offset, transferred by the send connector's sendfile fast path
// without buffering through Fill.
func NewFileRange(f *os.File, offset, size int64) *Packet {
	return &Packet{File: f, Offset: offset, FillSize: size, Tag: TagData}
}

// Resize splits p so the first returned packet carries at most n bytes
// of Content, and the remainder (if any) is returned as a second
// packet inheriting p's Tag and Last marker (cleared on the head part
// unless the whole packet fit). Fill-backed packets are not split;
// Resize returns p unchanged paired with nil remainder in that case,
// since the connector streams fill-backed payload directly.
func (p *Packet) Resize(n int64) (head *Packet, rest *Packet) {
	if p == nil || n <= 0 || int64(len(p.Content)) <= n || p.Fill != nil {
		return p, nil
	}

	head = &Packet{
		Content: p.Content[:n],
		Prefix:  p.Prefix,
		Tag:     p.Tag,
	}

	rest = &Packet{
		Content: p.Content[n:],
		Tag:     p.Tag,
		Last:    p.Last,
	}

	return head, rest
}

// Consume removes n bytes from the front of p's Content (used after a
// partial vectored write); Prefix is consumed first by the caller via
// ConsumePrefix. Returns true if the packet is now fully drained.
func (p *Packet) Consume(n int64) (drained bool) {
	if p == nil {
		return true
	}

	if n >= int64(len(p.Content)) {
		p.Content = nil
		return true
	}

	p.Content = p.Content[n:]
	return false
}

// ConsumePrefix removes n bytes from the front of p's Prefix, returning
// how many bytes of n were absorbed by the prefix (the rest should be
// applied to Content via Consume).
func (p *Packet) ConsumePrefix(n int64) (remaining int64) {
	if p == nil || len(p.Prefix) == 0 {
		return n
	}

	pl := int64(len(p.Prefix))

	if n >= pl {
		p.Prefix = nil
		return n - pl
	}

	p.Prefix = p.Prefix[n:]
	return 0
}
