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

	"github.com/sabouaram/httpcore/packet"
	"github.com/sabouaram/httpcore/stage"
)

// SendConnector is the file fast path (§4.10): activated when the
// handler appends a packet.NewFileRange packet instead of buffering
// the entity into Content. Header packets (and anything else still
// carrying real Content) go through the same vectored write as
// NetConnector; only File-backed packets take the sendfileTransfer
// path, which is zero-copy on Linux and falls back to a bounded
// read+write elsewhere.
type SendConnector struct {
	Conn net.Conn

	PollTimeout time.Duration

	// inFlight is the File-backed packet currently being drained, so a
	// partially-transferred range survives across service passes
	// without re-reading its already-sent prefix.
	inFlight *packet.Packet
	pos      int64
}

// NewSendConnector builds the stage.Descriptor for the send connector.
func NewSendConnector(name string, c net.Conn) *stage.Descriptor {
	sc := &SendConnector{Conn: c}

	return &stage.Descriptor{
		Name:            name,
		Kind:            stage.KindConnector,
		OutgoingService: sc.service,
		Close:           sc.close,
	}
}

func (sc *SendConnector) pollTimeout() time.Duration {
	if sc.PollTimeout > 0 {
		return sc.PollTimeout
	}
	return 5 * time.Millisecond
}

func (sc *SendConnector) service(ctx stage.Context) error {
	q := ctx.Queue(stage.TX)
	if q == nil {
		return nil
	}

	dropLeadingEmpty(q)

	head := q.Peek()
	if head == nil {
		return nil
	}

	if head.File == nil {
		return sc.writeBuffered(ctx, q)
	}

	return sc.writeFill(ctx, q, head)
}

// writeBuffered handles header/trailer packets the same way
// NetConnector does.
func (sc *SendConnector) writeBuffered(ctx stage.Context, q *packet.Queue) error {
	bufs := collectBuffers(q, MaxIOVec)
	if len(bufs) == 0 {
		return nil
	}

	if sc.Conn != nil {
		_ = sc.Conn.SetWriteDeadline(time.Now().Add(sc.pollTimeout()))
	}

	n, err := bufs.WriteTo(sc.Conn)
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

// writeFill transfers one File-backed packet's range via the platform
// sendfileTransfer implementation. The packet owns its *os.File; this
// connector only reads from it, it never opens or closes it.
func (sc *SendConnector) writeFill(ctx stage.Context, q *packet.Queue, p *packet.Packet) error {
	if sc.inFlight != p {
		sc.inFlight = p
		sc.pos = p.Offset
	}

	sent := sc.pos - p.Offset
	remaining := p.FillSize - sent
	if remaining <= 0 {
		sc.inFlight = nil
		q.Pop()
		return nil
	}

	n, blocked, err := sendfileTransfer(sc.Conn, p.File, &sc.pos, remaining)
	if err != nil {
		return err
	}

	if blocked {
		markBlocked(ctx, true)
		return nil
	}

	markBlocked(ctx, false)

	if n >= remaining {
		sc.inFlight = nil
		q.Pop()
	}

	return nil
}

func (sc *SendConnector) close(ctx stage.Context, dir stage.Direction) {
	sc.inFlight = nil
	if dir == stage.TX && sc.Conn != nil {
		_ = sc.Conn.SetWriteDeadline(time.Time{})
	}
}
