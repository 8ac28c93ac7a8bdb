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

// Package chunked implements the HTTP/1.1 chunked transfer-coding
// filter: a Decoder state machine that strips chunk framing from
// inbound bytes, and an Encoder that wraps outbound packets with it.
package chunked

import (
	"bytes"
	"fmt"
)

// State is the chunk-decoder state machine's current position.
type State uint8

const (
	Unchunked State = iota
	Start
	Data
	Eof
)

// maxChunkSpecLen bounds a single "SIZE [;ext...]" line; a chunk-size
// line longer than this is treated as malformed framing.
const maxChunkSpecLen = 80

// Decoder strips chunk framing from a byte stream, one Feed call at a
// time, as bytes arrive on the connection's input queue.
type Decoder struct {
	state     State
	remaining int64 // bytes left in the current chunk's data
	buf       []byte
	done      bool
}

// NewDecoder builds a Decoder starting in Start state (chunked mode
// armed, expecting a chunk-size line first).
func NewDecoder() *Decoder {
	return &Decoder{state: Start}
}

// State reports the decoder's current state.
func (d *Decoder) State() State { return d.state }

// Done reports whether the terminal (zero-size) chunk has been seen and
// any trailer consumed.
func (d *Decoder) Done() bool { return d.done }

// Feed appends in to the decoder's internal buffer and extracts as much
// decoded data as is currently available, along with the number of
// input bytes consumed. Call Feed repeatedly as more bytes arrive;
// pass nil after the final call once len(in)==0 bytes remain to drain
// any buffered-but-incomplete chunk header.
func (d *Decoder) Feed(in []byte) (data []byte, consumed int, err error) {
	d.buf = append(d.buf, in...)
	consumed = len(in)

	var out []byte

	for {
		switch d.state {
		case Data:
			if d.remaining == 0 {
				// consume the trailing CRLF after chunk data
				if len(d.buf) < 2 {
					return out, consumed, nil
				}

				if d.buf[0] != '\r' || d.buf[1] != '\n' {
					return out, consumed, fmt.Errorf("chunked: missing CRLF after chunk data")
				}

				d.buf = d.buf[2:]
				d.state = Start
				continue
			}

			n := d.remaining
			if int64(len(d.buf)) < n {
				n = int64(len(d.buf))
			}

			if n > 0 {
				out = append(out, d.buf[:n]...)
				d.buf = d.buf[n:]
				d.remaining -= n
			}

			if n == 0 {
				return out, consumed, nil
			}

		case Start:
			idx := bytes.Index(d.buf, []byte("\r\n"))
			if idx < 0 {
				if len(d.buf) > maxChunkSpecLen {
					return out, consumed, fmt.Errorf("chunked: chunk-size line exceeds %d bytes", maxChunkSpecLen)
				}
				return out, consumed, nil
			}

			if idx > maxChunkSpecLen {
				return out, consumed, fmt.Errorf("chunked: chunk-size line exceeds %d bytes", maxChunkSpecLen)
			}

			line := d.buf[:idx]
			d.buf = d.buf[idx+2:]

			// strip chunk-extensions after ';'
			if semi := bytes.IndexByte(line, ';'); semi >= 0 {
				line = line[:semi]
			}

			size, err := parseHexSize(line)
			if err != nil {
				return out, consumed, err
			}

			if size == 0 {
				d.state = Eof
				continue
			}

			d.remaining = size
			d.state = Data

		case Eof:
			// trailer headers (possibly empty) terminated by a blank line
			idx := bytes.Index(d.buf, []byte("\r\n\r\n"))
			if idx < 0 {
				if bytes.Equal(d.buf, []byte("\r\n")) {
					d.buf = nil
					d.done = true
					return out, consumed, nil
				}
				return out, consumed, nil
			}

			d.buf = d.buf[idx+4:]
			d.done = true
			return out, consumed, nil

		case Unchunked:
			out = append(out, d.buf...)
			d.buf = nil
			return out, consumed, nil
		}
	}
}

func parseHexSize(line []byte) (int64, error) {
	if len(line) == 0 {
		return 0, fmt.Errorf("chunked: empty chunk-size")
	}

	var v int64
	for _, c := range line {
		var digit int64
		switch {
		case c >= '0' && c <= '9':
			digit = int64(c - '0')
		case c >= 'a' && c <= 'f':
			digit = int64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			digit = int64(c-'A') + 10
		default:
			return 0, fmt.Errorf("chunked: non-hex chunk-size byte %q", c)
		}

		v = v*16 + digit
	}

	return v, nil
}

// Encoder wraps outbound content in chunk framing.
type Encoder struct{}

// NewEncoder builds a chunk Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Chunk wraps content in a single chunk's framing: size line, CRLF,
// data, CRLF. An empty content produces the terminal zero-size chunk
// plus the empty trailer.
func (e *Encoder) Chunk(content []byte) []byte {
	if len(content) == 0 {
		return []byte("0\r\n\r\n")
	}

	out := make([]byte, 0, len(content)+16)
	out = append(out, []byte(fmt.Sprintf("%x\r\n", len(content)))...)
	out = append(out, content...)
	out = append(out, '\r', '\n')
	return out
}

// Final returns the terminal zero-size chunk and empty trailer.
func (e *Encoder) Final() []byte {
	return []byte("0\r\n\r\n")
}
