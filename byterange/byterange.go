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

// Package byterange parses Range request headers and renders
// single-range (206 + Content-Range) or multi-range
// (multipart/byteranges) responses.
package byterange

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Range is one validated, resolved byte range against a known entity
// length: Start and End are both inclusive, 0-based.
type Range struct {
	Start int64
	End   int64
}

// Len returns the number of bytes this range covers.
func (r Range) Len() int64 { return r.End - r.Start + 1 }

// ErrMalformed is returned for a Range header that cannot be parsed.
var ErrMalformed = fmt.Errorf("byterange: malformed Range header")

// ErrUnsatisfiable is returned for a range that fails validation against
// the entity length (start past the inclusive end, start at or past the
// length, ...); the caller
// must respond 416 with Content-Range: bytes */length.
var ErrUnsatisfiable = fmt.Errorf("byterange: unsatisfiable range")

// Parse parses a "Range: bytes=..." header value against an entity of
// the given length, returning the resolved, validated ranges in
// request order.
func Parse(header string, length int64) ([]Range, error) {
	const prefix = "bytes="

	if !strings.HasPrefix(header, prefix) {
		return nil, ErrMalformed
	}

	spec := strings.TrimPrefix(header, prefix)
	parts := strings.Split(spec, ",")

	out := make([]Range, 0, len(parts))

	for _, raw := range parts {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil, ErrMalformed
		}

		dash := strings.IndexByte(raw, '-')
		if dash < 0 {
			return nil, ErrMalformed
		}

		startStr, endStr := raw[:dash], raw[dash+1:]

		var r Range

		switch {
		case startStr == "" && endStr == "":
			return nil, ErrMalformed

		case startStr == "":
			// suffix range: "-N" means the last N bytes
			n, err := strconv.ParseInt(endStr, 10, 64)
			if err != nil || n < 0 {
				return nil, ErrMalformed
			}

			if n == 0 {
				return nil, ErrUnsatisfiable
			}

			if n > length {
				n = length
			}

			r = Range{Start: length - n, End: length - 1}

		case endStr == "":
			s, err := strconv.ParseInt(startStr, 10, 64)
			if err != nil || s < 0 {
				return nil, ErrMalformed
			}

			r = Range{Start: s, End: length - 1}

		default:
			s, err1 := strconv.ParseInt(startStr, 10, 64)
			e, err2 := strconv.ParseInt(endStr, 10, 64)
			if err1 != nil || err2 != nil || s < 0 || e < 0 {
				return nil, ErrMalformed
			}

			r = Range{Start: s, End: e}
		}

		if r.End >= length {
			r.End = length - 1
		}

		if r.Start > r.End || r.Start >= length {
			return nil, ErrUnsatisfiable
		}

		out = append(out, r)
	}

	return out, nil
}

// ContentRange renders the "bytes S-E/L" value for a single range.
func ContentRange(r Range, length int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, length)
}

// UnsatisfiableContentRange renders the "bytes */L" value for a 416 response.
func UnsatisfiableContentRange(length int64) string {
	return fmt.Sprintf("bytes */%d", length)
}

// NewBoundary generates a fresh multipart/byteranges boundary token.
func NewBoundary() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Part renders one multipart/byteranges body part: the boundary line,
// the Content-Type and Content-Range headers, a blank line, then the
// data itself. The caller appends these in sequence and a closing
// Trailer at the end.
func Part(boundary, contentType string, r Range, length int64, data []byte) []byte {
	var b strings.Builder

	b.WriteString("--")
	b.WriteString(boundary)
	b.WriteString("\r\n")

	if contentType != "" {
		b.WriteString("Content-Type: ")
		b.WriteString(contentType)
		b.WriteString("\r\n")
	}

	b.WriteString("Content-Range: ")
	b.WriteString(ContentRange(r, length))
	b.WriteString("\r\n\r\n")

	out := make([]byte, 0, b.Len()+len(data)+2)
	out = append(out, []byte(b.String())...)
	out = append(out, data...)
	out = append(out, '\r', '\n')

	return out
}

// Trailer renders the closing boundary for a multipart/byteranges body.
func Trailer(boundary string) []byte {
	return []byte("--" + boundary + "--\r\n")
}

// MultipartContentType renders the Content-Type header value for a
// multi-range response.
func MultipartContentType(boundary string) string {
	return "multipart/byteranges; boundary=" + boundary
}
