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

// Package connector implements the two TX-side socket-writing stages
// (§4.10): the net connector's vectored writes and the send connector's
// sendfile fast path. Both drain a stage.Context's TX queue and report
// EAGAIN-equivalent backpressure through the optional writeBlocker
// interface a *conn.Conn satisfies.
package connector

import (
	"net"

	"github.com/sabouaram/httpcore/packet"
)

// MaxIOVec bounds how many packet fragments a single vectored write
// gathers, per §4.10's "iovec of <= 16 entries".
const MaxIOVec = 16

// writeBlocker is implemented by *conn.Conn; connector does not import
// conn (conn already imports nothing from here, but keeping the
// dependency one-directional avoids a cycle and lets this package be
// driven by any caller that tracks write-blocked state the same way).
type writeBlocker interface {
	SetWriteBlocked(bool)
}

func markBlocked(ctx interface{}, blocked bool) {
	if wb, ok := ctx.(writeBlocker); ok {
		wb.SetWriteBlocked(blocked)
	}
}

// collectBuffers walks q from its head, gathering up to maxEntries
// net.Buffers entries (a packet's Prefix and Content count separately)
// without popping anything off the queue.
func collectBuffers(q *packet.Queue, maxEntries int) net.Buffers {
	var bufs net.Buffers

	p := q.Peek()
	for p != nil && len(bufs) < maxEntries {
		if len(p.Prefix) > 0 {
			bufs = append(bufs, p.Prefix)
			if len(bufs) >= maxEntries {
				break
			}
		}
		if len(p.Content) > 0 {
			bufs = append(bufs, p.Content)
		}
		p = p.Next()
	}

	return bufs
}

// consume removes n bytes' worth of already-written payload from the
// front of q: packets fully covered by n are popped outright, and the
// first packet only partially covered is trimmed in place (Prefix
// first, then Content) and left at the head for the next service pass.
func consume(q *packet.Queue, n int64) {
	for n > 0 {
		p := q.Peek()
		if p == nil {
			return
		}

		total := int64(len(p.Prefix)) + int64(len(p.Content))
		if n >= total {
			q.Pop()
			n -= total
			continue
		}

		remaining := p.ConsumePrefix(n)
		if remaining > 0 {
			p.Consume(remaining)
		}
		return
	}
}

// dropLeadingEmpty pops packets at the head of q that carry no payload
// (TagEnd markers, typically) so they don't stall a service pass that
// found nothing to write.
func dropLeadingEmpty(q *packet.Queue) (popped bool) {
	for {
		p := q.Peek()
		if p == nil || p.Len() > 0 {
			return popped
		}
		q.Pop()
		popped = true
	}
}
