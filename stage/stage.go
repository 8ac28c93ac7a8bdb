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

// Package stage implements the named processing-unit registry that the
// pipeline is assembled from: handlers (terminal producers), filters
// (bidirectional transformers) and connectors (socket writers), each a
// descriptor of optional capability callbacks rather than a fixed
// interface, mirroring the capability-set the connection protocol
// dispatches against.
package stage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sabouaram/httpcore/packet"
)

// Kind distinguishes the three stage roles the pipeline assembler uses
// when laying out a request's queue chain.
type Kind uint8

const (
	KindHandler Kind = iota
	KindFilter
	KindConnector
)

func (k Kind) String() string {
	switch k {
	case KindHandler:
		return "handler"
	case KindFilter:
		return "filter"
	case KindConnector:
		return "connector"
	}
	return "unknown"
}

// Direction is which side of the connection a stage instance is
// operating on: RX (inbound, request/response body being received) or
// TX (outbound, being produced).
type Direction uint8

const (
	RX Direction = iota
	TX
)

// Context is the minimal per-request surface a stage callback needs;
// conn/rx/tx/pipeline define the concrete type satisfying this and
// pass it down without this package importing any of them back
// (stage sits below conn/rx/tx/pipeline in the dependency order).
type Context interface {
	// Queue returns the queue this stage instance is attached to, for
	// the given direction.
	Queue(dir Direction) *packet.Queue
}

// MatchFunc reports whether this stage instance should participate in
// the pipeline for the given direction; it is called once per
// direction while the pipeline is assembled. Filters/connectors that
// always participate simply return true unconditionally.
type MatchFunc func(ctx Context, dir Direction) bool

// OpenFunc is called once per direction when the pipeline is wired up,
// before any packet flows.
type OpenFunc func(ctx Context, dir Direction) error

// StartFunc is called when the connection transitions a stage's
// direction into active flow (entering Content/Running).
type StartFunc func(ctx Context, dir Direction) error

// ReadyFunc is called on the handler once the request body is fully
// received (conn.Ready state).
type ReadyFunc func(ctx Context) error

// WritableFunc is called on a stage when its downstream queue has
// headroom and wants more output.
type WritableFunc func(ctx Context) error

// IncomingFunc processes a packet arriving on a stage's RX-side queue,
// producing zero or more packets onto the next queue.
type IncomingFunc func(ctx Context, p *packet.Packet) error

// OutgoingServiceFunc drains a stage's TX-side queue, producing packets
// for the next stage (or the connector).
type OutgoingServiceFunc func(ctx Context) error

// CloseFunc is called once per direction when the pipeline is torn
// down, regardless of whether Open succeeded.
type CloseFunc func(ctx Context, dir Direction)

// RewriteFunc lets a stage rewrite the request target/headers before
// routing finalizes (used by language-selection and cache-key filters).
type RewriteFunc func(ctx Context) error

// Descriptor is a named stage definition. Every capability field is
// optional; a nil field means this stage does not participate in that
// part of the connection's dispatch.
type Descriptor struct {
	Name string
	Kind Kind

	Match           MatchFunc
	Open            OpenFunc
	Start           StartFunc
	Ready           ReadyFunc
	Writable        WritableFunc
	Incoming        IncomingFunc
	OutgoingService OutgoingServiceFunc
	Close           CloseFunc
	Rewrite         RewriteFunc
}

// Registry is the named stage lookup the pipeline assembler consults to
// resolve a route's configured handler/filter/connector names into
// Descriptors. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	stage map[string]*Descriptor
}

// NewRegistry builds an empty stage registry.
func NewRegistry() *Registry {
	return &Registry{stage: make(map[string]*Descriptor)}
}

// Register adds or replaces a stage descriptor under d.Name.
func (r *Registry) Register(d *Descriptor) error {
	if d == nil || d.Name == "" {
		return fmt.Errorf("stage: descriptor requires a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.stage[d.Name] = d
	return nil
}

// Get looks up a stage by name.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.stage[name]
	return d, ok
}

// Names returns every registered stage name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.stage))
	for n := range r.stage {
		out = append(out, n)
	}

	sort.Strings(out)
	return out
}

// Resolve looks up every name in names, in order, returning an error
// naming the first one not found.
func (r *Registry) Resolve(names []string) ([]*Descriptor, error) {
	out := make([]*Descriptor, 0, len(names))

	for _, n := range names {
		d, ok := r.Get(n)
		if !ok {
			return nil, fmt.Errorf("stage: %q is not registered", n)
		}

		out = append(out, d)
	}

	return out, nil
}
