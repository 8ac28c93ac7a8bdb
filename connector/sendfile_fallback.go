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

package connector

import (
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// sendfileFallback reads up to count bytes of f from *offset and
// writes them to conn directly, for platforms (or connection types)
// sendfileTransfer doesn't have a zero-copy path for. It is still a
// single read+write per service pass rather than a full io.Copy loop,
// keeping the non-blocking contract: a write timeout is reported as
// blocked rather than looped on.
func sendfileFallback(conn net.Conn, f *os.File, offset *int64, count int64) (n int64, blocked bool, err error) {
	const chunk = 64 * 1024

	size := count
	if size > chunk {
		size = chunk
	}

	buf := make([]byte, size)
	rn, rerr := f.ReadAt(buf, *offset)
	if rn == 0 && rerr != nil && rerr != io.EOF {
		return 0, false, rerr
	}

	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Millisecond))

	wn, werr := conn.Write(buf[:rn])
	*offset += int64(wn)

	if werr != nil {
		var ne net.Error
		if errors.As(werr, &ne) && ne.Timeout() {
			return int64(wn), true, nil
		}
		return int64(wn), false, werr
	}

	return int64(wn), false, nil
}
