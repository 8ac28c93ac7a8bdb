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

package httpcore

import (
	"net"

	"github.com/sabouaram/httpcore/conn"
	"github.com/sabouaram/httpcore/connector"
	"github.com/sabouaram/httpcore/packet"
	"github.com/sabouaram/httpcore/pipeline"
	"github.com/sabouaram/httpcore/rx"
	"github.com/sabouaram/httpcore/stage"
	"github.com/sabouaram/httpcore/tx"
)

// nodeContext is the stage.Context a pipeline.Node's callbacks see: its
// own queue, plus (when the owning Conn is known) the write-blocked
// signal the net connector raises on EAGAIN (§4.10).
type nodeContext struct {
	node *pipeline.Node
	c    *conn.Conn
}

func (n *nodeContext) Queue(stage.Direction) *packet.Queue { return n.node.Queue }

// SetWriteBlocked implements the optional interface connector.markBlocked
// type-asserts for; conn.Conn itself satisfies it.
func (n *nodeContext) SetWriteBlocked(v bool) {
	if n.c != nil {
		n.c.SetWriteBlocked(v)
	}
}

// buildOutputPipeline assembles a request's TX pipeline per §4.3: the
// route's named filters (bidirectional transforms registered ahead of
// time, if any) in order, terminated by the net connector. httpcore's
// own routes rarely configure filters since chunked/range encoding are
// applied inline by tx.Tx itself; the filter chain exists for
// applications that register their own (compression, request logging
// snapshot, ...).
func buildOutputPipeline(filters []*stage.Descriptor, netConn net.Conn) *pipeline.Pipeline {
	p := pipeline.New(stage.TX)

	for _, d := range filters {
		p.Append(d, 0, 0, 0)
	}

	p.Append(connector.NewNetConnector("net", netConn), 0, 0, 0)

	return p
}

// pumpOutput drives one service pass of c.Tx.Pipeline: it forwards
// queued packets from each node to the next (respecting the next
// queue's watermark), then lets every node's OutgoingService act on
// what arrived, in order from the handler's queue down to the
// connector. It returns true once the connector has drained its queue
// and the handler has finished producing output (tx.FinishOutput was
// called), at which point the caller marks the connector done.
func pumpOutput(c *conn.Conn) (done bool, err error) {
	p := c.Tx.Pipeline
	if p == nil {
		return true, nil
	}

	for n := p.Head().Next(); n != nil; n = n.Next() {
		if prev := n.Prev(); prev != nil && prev != p.Head() {
			forward(prev.Queue, n.Queue)
		}

		if n.Stage.OutgoingService != nil {
			if serr := n.Stage.OutgoingService(&nodeContext{node: n, c: c}); serr != nil {
				return false, serr
			}
		}
	}

	tail := p.Tail()
	if tail == p.Head() {
		return c.Tx.FinalizedOutput, nil
	}

	return c.Tx.FinalizedOutput && tail.Queue.Empty(), nil
}

// serveRoute runs h.Serve against the first stage's queue, then splices
// txResp's rendered response header ahead of whatever Serve queued.
//
// Serve finalizes Status/Header and queues the body in one opaque call
// (no handler calls tx.Tx.HeaderPacket itself), but the header packet
// can only be rendered correctly once Serve has returned. Since
// packet.Queue has no push-front and a queued Packet must not be
// mutated in place, the first stage's real Queue is swapped out for an
// empty scratch queue before calling Serve, so every WriteBody/
// WriteFileRange/FinishOutput call lands there instead of on the real
// queue. Once Serve returns, the header packet is appended to the real
// queue first, then the scratch queue is drained onto it in order.
func serveRoute(h Handler, rxReq *rx.Rx, txResp *tx.Tx) error {
	first := txResp.Pipeline.Head().Next()
	real := first.Queue

	scratch := packet.New(real.Max, real.Low)
	scratch.PacketSize = real.PacketSize
	first.Queue = scratch

	err := h.Serve(rxReq, txResp)

	first.Queue = real
	real.Append(txResp.HeaderPacket())
	for p := scratch.Pop(); p != nil; p = scratch.Pop() {
		real.Append(p)
	}

	return err
}

// forward moves as many packets as fit from src to dst, in order,
// without splitting a packet (dst's PacketSize hint is 0 for every
// queue this package builds, so pipeline.WillAccept never needs to
// resize a packet here).
func forward(src, dst *packet.Queue) {
	for {
		p := src.Peek()
		if p == nil {
			return
		}

		accept, head, _ := pipeline.WillAccept(dst, p)
		if !accept {
			return
		}

		src.Pop()
		dst.Append(head)
	}
}
