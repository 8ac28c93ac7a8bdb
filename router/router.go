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

// Package router selects the Host a connection's request is served by
// (virtual-host dispatch on the Host header / SNI name), then defers
// to that Host's route.Router for the pattern-match/condition/target
// pipeline. This is the layer above route: route matches within one
// Host's route table, router picks which Host's table to use.
package router

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sabouaram/httpcore/cache"
	"github.com/sabouaram/httpcore/route"
)

// Host is a collection of routes (ordered, default last per the Host
// data model), a MIME-type table, a response cache, and a
// streaming-policy map (content-type -> stream-through vs buffer).
type Host struct {
	Name string

	Routes *route.Router
	Mime   map[string]string
	Cache  *cache.ResponseStore

	// StreamThrough maps a content-type to true when it should bypass
	// buffering and stream straight to the connector (e.g. video),
	// false when it should be buffered (e.g. to compute Content-Length
	// or to populate the response cache).
	StreamThrough map[string]bool
}

// NewHost builds an empty Host named name. Its response cache starts
// nil; call EnableCache to turn capture/replay on.
func NewHost(name string) *Host {
	return &Host{
		Name:          name,
		Routes:        route.NewRouter(),
		Mime:          make(map[string]string),
		StreamThrough: make(map[string]bool),
	}
}

// EnableCache attaches a response cache to h whose entries expire
// after ttl (0 means they live until explicitly replaced or deleted).
func (h *Host) EnableCache(ctx context.Context, ttl time.Duration) {
	h.Cache = cache.NewResponseStore(ctx, ttl)
}

// Router dispatches an inbound request to the Host whose name matches
// the request's Host header (or SNI name on a TLS connection), falling
// back to a configured default Host when no exact name matches (mirrors
// the "default route last" convention one level up, for name-based
// virtual hosting).
type Router struct {
	mu      sync.RWMutex
	byName  map[string]*Host
	ordered []*Host
	def     *Host
}

// New builds an empty Router.
func New() *Router {
	return &Router{byName: make(map[string]*Host)}
}

// AddHost registers h under its own Name, plus any additional aliases.
// The most recent Host added with makeDefault=true (or the very first
// Host added, absent any explicit default) is used when no name matches.
func (r *Router) AddHost(h *Host, makeDefault bool, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalizeName(h.Name)
	r.byName[key] = h

	for _, a := range aliases {
		r.byName[normalizeName(a)] = h
	}

	r.ordered = append(r.ordered, h)

	if makeDefault || r.def == nil {
		r.def = h
	}
}

// Lookup resolves the Host for the given request Host header value
// (which may carry a ":port" suffix, stripped before comparison).
func (r *Router) Lookup(hostHeader string) *Host {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name := hostHeader
	if i := strings.LastIndexByte(name, ':'); i >= 0 && !strings.Contains(name[i:], "]") {
		name = name[:i]
	}

	if h, ok := r.byName[normalizeName(name)]; ok {
		return h
	}

	return r.def
}

// Hosts returns every registered Host, in registration order.
func (r *Router) Hosts() []*Host {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Host, len(r.ordered))
	copy(out, r.ordered)
	return out
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
