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

//go:build linux

package connector

import (
	"errors"
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// sendfileTransfer issues one Linux sendfile(2) call copying up to
// count bytes from f (starting at *offset, which sendfile advances)
// directly into conn's socket fd, never buffering the range in user
// space. EAGAIN is reported as blocked=true rather than an error, per
// §4.10's "on EAGAIN, mark tx.writeBlocked and request writable
// events".
func sendfileTransfer(conn net.Conn, f *os.File, offset *int64, count int64) (n int64, blocked bool, err error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return sendfileFallback(conn, f, offset, count)
	}

	raw, rerr := sc.SyscallConn()
	if rerr != nil {
		return 0, false, rerr
	}

	var written int
	var werr error

	ctrlErr := raw.Control(func(fd uintptr) {
		written, werr = unix.Sendfile(int(fd), int(f.Fd()), offset, int(count))
	})
	if ctrlErr != nil {
		return 0, false, ctrlErr
	}

	if werr != nil {
		if errors.Is(werr, unix.EAGAIN) {
			return int64(written), true, nil
		}
		return int64(written), false, werr
	}

	return int64(written), false, nil
}
