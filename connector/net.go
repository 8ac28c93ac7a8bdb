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
	"net"
	"time"

	"github.com/sabouaram/httpcore/stage"
)

// NetConnector is the default TX-side socket writer: on each service
// pass it gathers up to MaxIOVec queued fragments and issues one
// vectored write. net.Buffers already performs writev on *net.TCPConn
// (and the platform equivalent elsewhere), so the iovec assembly lives
// in collectBuffers/consume while this type only owns the
// deadline-based non-blocking emulation §4.10 calls for: a short write
// deadline stands in for O_NONBLOCK, and a deadline timeout is treated
// exactly like EAGAIN — tx.writeBlocked is set and the stage waits for
// the next writable event instead of the connection aborting.
type NetConnector struct {
	Conn net.Conn

	// PollTimeout bounds how long a single vectored write may block
	// before being treated as EAGAIN. Defaults to 5ms if zero.
	PollTimeout time.Duration
}

// NewNetConnector builds the stage.Descriptor for the default net
// connector, named name in the stage registry.
func NewNetConnector(name string, c net.Conn) *stage.Descriptor {
	nc := &NetConnector{Conn: c}

	return &stage.Descriptor{
		Name:            name,
		Kind:            stage.KindConnector,
		OutgoingService: nc.service,
		Close:           nc.close,
	}
}

func (nc *NetConnector) pollTimeout() time.Duration {
	if nc.PollTimeout > 0 {
		return nc.PollTimeout
	}
	return 5 * time.Millisecond
}

func (nc *NetConnector) service(ctx stage.Context) error {
	q := ctx.Queue(stage.TX)
	if q == nil {
		return nil
	}

	dropLeadingEmpty(q)

	bufs := collectBuffers(q, MaxIOVec)
	if len(bufs) == 0 {
		return nil
	}

	if nc.Conn != nil {
		_ = nc.Conn.SetWriteDeadline(time.Now().Add(nc.pollTimeout()))
	}

	n, err := bufs.WriteTo(nc.Conn)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			markBlocked(ctx, true)
			consume(q, n)
			return nil
		}
		return err
	}

	markBlocked(ctx, false)
	consume(q, n)
	return nil
}

func (nc *NetConnector) close(ctx stage.Context, dir stage.Direction) {
	if dir != stage.TX || nc.Conn == nil {
		return
	}
	_ = nc.Conn.SetWriteDeadline(time.Time{})
}
