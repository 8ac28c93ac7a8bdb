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

// Package pipeline assembles, per request, the doubly-linked chain of
// queues a Conn drives packets through: one queue per participating
// stage, in each direction, with backpressure between adjacent queues.
package pipeline

import (
	"fmt"

	"github.com/sabouaram/httpcore/packet"
	"github.com/sabouaram/httpcore/stage"
)

// defaultNetConnectorMax is the baseline high watermark assigned to the
// net connector's queue before it gets doubled per step 6 of the
// assembly algorithm.
const defaultNetConnectorMax = 64 * 1024

// Node is one stage's position in an assembled pipeline: its queue,
// its descriptor, and the doubly-linked neighbors.
type Node struct {
	Stage *stage.Descriptor
	Queue *packet.Queue
	Dir   stage.Direction

	prev *Node
	next *Node
}

// Prev returns the previous node, or nil at the head sentinel.
func (n *Node) Prev() *Node { return n.prev }

// Next returns the next node, or nil at the tail.
func (n *Node) Next() *Node { return n.next }

// Pipeline is one direction's (RX or TX) assembled queue chain for a
// single request, headed by a sentinel node carrying no stage.
type Pipeline struct {
	Dir  stage.Direction
	head *Node
	tail *Node
	n    int
}

// New builds an empty pipeline with just its head sentinel.
func New(dir stage.Direction) *Pipeline {
	sentinel := &Node{Dir: dir}
	return &Pipeline{Dir: dir, head: sentinel, tail: sentinel}
}

// Head returns the sentinel node; the first real stage is Head().Next().
func (p *Pipeline) Head() *Node { return p.head }

// Tail returns the last node in the chain.
func (p *Pipeline) Tail() *Node { return p.tail }

// Len reports how many real (non-sentinel) stages are linked in.
func (p *Pipeline) Len() int { return p.n }

// Append links a new node for d onto the tail of the pipeline, using
// the given watermarks for its queue. A connector stage (d.Kind ==
// stage.KindConnector, whatever its name) gets its Max doubled
// per the assembly algorithm's step 6, to smooth write bursts.
func (p *Pipeline) Append(d *stage.Descriptor, max, low int64, packetSize int) *Node {
	if d.Kind == stage.KindConnector {
		if max == 0 {
			max = defaultNetConnectorMax
		}
		max *= 2
	}

	q := packet.New(max, low)
	q.PacketSize = packetSize
	q.SetPos(p.n)

	node := &Node{Stage: d, Queue: q, Dir: p.Dir, prev: p.tail}

	p.tail.next = node
	p.tail = node
	p.n++

	return node
}

// Walk invokes fn for each real stage node in order. fn returning
// false stops the walk.
func (p *Pipeline) Walk(fn func(n *Node) bool) {
	for n := p.head.next; n != nil; n = n.next {
		if !fn(n) {
			return
		}
	}
}

// Open invokes every node's stage Open callback once, in order. If any
// fails, the remaining nodes are not opened and the error is returned;
// the caller is expected to Close what was opened so far.
func (p *Pipeline) Open(ctx stage.Context) error {
	for n := p.head.next; n != nil; n = n.next {
		if n.Stage.Open == nil {
			continue
		}

		if err := n.Stage.Open(ctx, n.Dir); err != nil {
			return fmt.Errorf("pipeline: open %q: %w", n.Stage.Name, err)
		}
	}

	return nil
}

// Close invokes every node's stage Close callback, in reverse order,
// best-effort (a stage's Close cannot itself fail the teardown).
func (p *Pipeline) Close(ctx stage.Context) {
	nodes := make([]*Node, 0, p.n)
	for n := p.head.next; n != nil; n = n.next {
		nodes = append(nodes, n)
	}

	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		if n.Stage.Close != nil {
			n.Stage.Close(ctx, n.Dir)
		}
	}
}

// Pair links a TX node and an RX node that both belong to the same
// named stage, so code looking up "the input queue for this output
// stage" (and vice versa) can cross over directions; used by filters
// that need to observe both sides (e.g. a cache filter snapshotting the
// response while it also watches the matching request).
type Pair struct {
	TX *Node
	RX *Node
}

// PairStages finds, for every node in tx that shares a stage name with
// a node in rx, the corresponding Pair.
func PairStages(tx, rx *Pipeline) []Pair {
	var out []Pair

	rxByName := make(map[string]*Node, rx.Len())
	rx.Walk(func(n *Node) bool {
		rxByName[n.Stage.Name] = n
		return true
	})

	tx.Walk(func(n *Node) bool {
		if r, ok := rxByName[n.Stage.Name]; ok {
			out = append(out, Pair{TX: n, RX: r})
		}
		return true
	})

	return out
}

// WillAccept implements httpWillNextQueueAcceptPacket: it first tries
// to resize p to next's PacketSize hint, then reports whether next has
// headroom for the (possibly resized) head packet, returning the head
// packet to actually enqueue and any remainder still pending on the
// current queue.
func WillAccept(next *packet.Queue, p *packet.Packet) (accept bool, head *packet.Packet, rest *packet.Packet) {
	head = p
	rest = nil

	if next.PacketSize > 0 {
		if h, r := p.Resize(int64(next.PacketSize)); h != p || r != nil {
			head, rest = h, r
		}
	}

	return next.WillAccept(head.Len()), head, rest
}

// Scheduler runs the suspended-then-resumed queue service in FIFO
// order for one connection, as required by the backpressure algorithm:
// when a full queue's downstream drains below Low, the queue is
// reinserted at the tail of the run list rather than serviced
// immediately in place, so older stalls are cleared first.
type Scheduler struct {
	pending []*packet.Queue
	queued  map[*packet.Queue]bool
}

// NewScheduler builds an empty per-connection scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{queued: make(map[*packet.Queue]bool)}
}

// Suspend marks q as blocked; Resume schedules it for another service
// attempt. A queue already pending is not queued twice.
func (s *Scheduler) Suspend(q *packet.Queue) {
	q.Suspended = true
}

// Resume clears q's suspended flag and schedules it for the next
// service pass.
func (s *Scheduler) Resume(q *packet.Queue) {
	q.Suspended = false

	if s.queued[q] {
		return
	}

	s.queued[q] = true
	s.pending = append(s.pending, q)
}

// Run drains the pending list in FIFO order, invoking svc for each
// queue that is still not suspended by the time its turn comes.
func (s *Scheduler) Run(svc func(q *packet.Queue)) {
	for len(s.pending) > 0 {
		q := s.pending[0]
		s.pending = s.pending[1:]
		delete(s.queued, q)

		if !q.Suspended {
			svc(q)
		}
	}
}

// Pending reports how many queues are currently scheduled.
func (s *Scheduler) Pending() int { return len(s.pending) }
