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

package websocket

import (
	"bytes"
	"errors"
	"io"
)

// errIncompleteFrame signals tryParseFrame found fewer bytes than a
// full frame needs; the caller should wait for more input rather than
// treating it as a protocol violation.
var errIncompleteFrame = errors.New("websocket: incomplete frame")

// tryParseFrame attempts to decode one frame from the front of buf
// without consuming buf itself, returning how many bytes the frame
// occupied so the caller can advance its own buffer.
func tryParseFrame(buf []byte, maxPayload int64) (Frame, int, error) {
	r := bytes.NewReader(buf)

	f, err := ParseFrame(r, maxPayload)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, 0, errIncompleteFrame
		}
		return Frame{}, 0, err
	}

	consumed := len(buf) - r.Len()
	return f, consumed, nil
}
