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

// Package conn implements the per-socket connection state machine
// (httpProtocol, §4.1): a non-blocking loop that drives one request at
// a time through Begin→Connected→First→Parsed→Content→Ready→Running→
// Finalized→Complete, rearming for another request while keepAliveCount
// permits it.
package conn

import (
	"strings"
	"sync"
	"time"

	libatm "github.com/sabouaram/httpcore/atomic"
	"github.com/sabouaram/httpcore/route"
	"github.com/sabouaram/httpcore/rx"
	"github.com/sabouaram/httpcore/trace"
	"github.com/sabouaram/httpcore/tx"
)

// State is one of the nine connection states spec §4.1 defines.
type State uint8

const (
	Begin State = iota
	Connected
	First
	Parsed
	Content
	Ready
	Running
	Finalized
	Complete
)

func (s State) String() string {
	switch s {
	case Begin:
		return "begin"
	case Connected:
		return "connected"
	case First:
		return "first"
	case Parsed:
		return "parsed"
	case Content:
		return "content"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Finalized:
		return "finalized"
	case Complete:
		return "complete"
	}
	return "unknown"
}

// Hooks are the handler/router/auth callbacks the state machine invokes
// at each processor contract point; conn sits below route/handler/auth
// in the dependency order, so it depends only on these function types
// rather than importing those packages back.
type Hooks struct {
	// Router resolves the matched route for the current request. nil is
	// permitted for a client-mode Conn, which never routes.
	Router func(ctx route.MatchContext) (*route.MatchResult, error)

	// Ready is the handler's "body fully received" callback (processReady).
	Ready func(c *Conn) error

	// Writable is the handler's "produce more output" callback
	// (processRunning); it returns done=true once the handler has no
	// more output to produce.
	Writable func(c *Conn) (done bool, err error)

	// OnComplete fires once per request, after Finalized→Complete,
	// before the connection rearms for the next keep-alive request or
	// is torn down (processCompletion's monitor/trace hook point).
	OnComplete func(c *Conn)

	// IsAuthenticated/Ability back the route.MatchContext auth surface
	// until the auth package is wired; a nil hook means "always false"
	// (no authenticated session).
	IsAuthenticated func(c *Conn) bool
	Ability         func(c *Conn, name string) bool

	// FileExists/IsDirectory back the route.MatchContext filesystem
	// surface the `exists`/`directory` conditions need.
	FileExists  func(path string) bool
	IsDirectory func(path string) bool
}

// Conn owns one socket: its current Rx/Tx, state, and the bookkeeping
// fields spec §3 lists (keepAliveCount, lastActivity, started, seqno,
// secure, upgraded, error, connError).
type Conn struct {
	mu sync.Mutex

	state State

	Rx *rx.Rx
	Tx *tx.Tx

	Seqno   uint64
	Started time.Time

	Secure   bool
	Upgraded bool

	KeepAliveCount int
	LastActivity   time.Time

	Error     error
	ConnError error

	Log trace.Logger

	Hooks Hooks

	formParams map[string]string
	reroute    string

	// writeBlocked is set by the net connector on EAGAIN (§4.10) and
	// cleared once the socket becomes writable again.
	writeBlocked libatm.Value[bool]
}

// New builds a fresh Conn in the Begin state, ready to have Accept (or
// Connect, client-side) called on it.
func New(seqno uint64, log trace.Logger, hooks Hooks) *Conn {
	c := &Conn{
		state:          Begin,
		Seqno:          seqno,
		Started:        now(),
		KeepAliveCount: 0,
		Log:            log,
		Hooks:          hooks,
		formParams:     make(map[string]string),
		writeBlocked:   libatm.NewValue[bool](),
	}
	return c
}

// now is split out so tests can't accidentally depend on wall-clock
// jitter across assertions; production code always calls time.Now.
var now = time.Now

// State returns the connection's current state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Accept transitions Begin→Connected, the state entered once the
// socket is accepted (server) or connected (client) and a fresh Rx/Tx
// pair is attached.
func (c *Conn) Accept() {
	c.Rx = rx.New()
	c.Tx = tx.New()
	c.LastActivity = now()
	c.setState(Connected)
}

// FeedRequestLine advances Connected→First once the request line has
// parsed, per parseIncoming's contract.
func (c *Conn) FeedRequestLine(method, rawURI, proto string, err error) {
	if err != nil {
		c.fail(err)
		return
	}

	c.Rx.Method = method
	c.Rx.RawURI = rawURI
	c.Rx.Proto = proto
	c.Rx.PathInfo = pathOnly(rawURI)

	if proto == "HTTP/1.0" {
		c.Rx.MustClose = true
	}

	c.LastActivity = now()
	c.setState(First)
}

func pathOnly(rawURI string) string {
	if q := strings.IndexByte(rawURI, '?'); q >= 0 {
		return rawURI[:q]
	}
	return rawURI
}

// FeedHeaders advances First→Parsed once every header line has parsed,
// then, on the server side, runs route matching (processParsed's
// server-mode contract).
func (c *Conn) FeedHeaders(err error) {
	if err != nil {
		c.fail(err)
		return
	}

	c.LastActivity = now()
	c.setState(Parsed)

	if c.Hooks.Router == nil {
		return
	}

	res, rerr := c.Hooks.Router(c)
	if rerr != nil {
		c.fail(rerr)
		return
	}

	c.Rx.Route = res
}

// AdvanceContent moves Parsed→Content on the first body byte (or
// immediately, for a bodyless request) and stays there while more body
// bytes are still expected; the caller calls BodyComplete once
// rx.FeedBody reports eof.
func (c *Conn) AdvanceContent() {
	if c.state == Parsed {
		c.setState(Content)
	}
	c.LastActivity = now()
}

// BodyComplete advances Content→Ready once the full body has arrived
// (processContent's EOF detection), then invokes the handler's Ready
// callback and advances Ready→Running (processReady's contract).
func (c *Conn) BodyComplete() error {
	c.setState(Ready)

	if c.Hooks.Ready != nil {
		if err := c.Hooks.Ready(c); err != nil {
			c.fail(err)
			return err
		}
	}

	c.setState(Running)
	return nil
}

// Service drives processRunning: while Tx is not finalized, invokes the
// handler's Writable callback. It returns true if it made progress (the
// caller should call Service again if there is more I/O available) and
// false once genuinely no further progress is possible without more
// I/O — the non-blocking-loop contract of §4.1's httpProtocol().
func (c *Conn) Service() (progressed bool, err error) {
	if c.state != Running {
		return false, nil
	}

	if c.Tx.Finalized {
		c.setState(Finalized)
		return true, nil
	}

	if c.Hooks.Writable == nil {
		return false, nil
	}

	done, werr := c.Hooks.Writable(c)
	if werr != nil {
		c.fail(werr)
		return false, werr
	}

	if done {
		c.setState(Finalized)
		return true, nil
	}

	return false, nil
}

// Complete advances Finalized→Complete (once both tx.finalized and
// tx.finalizedConnector hold, per the §3 invariant), fires OnComplete,
// decrements KeepAliveCount, and reports whether the connection should
// rearm for another request.
func (c *Conn) Complete() (rearm bool) {
	if c.state != Finalized || !c.Tx.Finalized {
		return false
	}

	c.setState(Complete)

	if c.Hooks.OnComplete != nil {
		c.Hooks.OnComplete(c)
	}

	if c.Rx.MustClose || c.KeepAliveCount <= 0 {
		return false
	}

	c.KeepAliveCount--
	return true
}

// Rearm resets Rx/Tx for the next keep-alive request and returns to
// Connected, ready for the next request line.
func (c *Conn) Rearm() {
	c.Rx.Reset()
	c.Tx.Reset()
	for k := range c.formParams {
		delete(c.formParams, k)
	}
	c.reroute = ""
	c.setState(Connected)
}

func (c *Conn) fail(err error) {
	c.Error = err
	c.ConnError = err
	c.setState(Finalized)
}

// WriteBlocked reports whether the net connector is currently waiting
// for a writable event after an EAGAIN (§4.10).
func (c *Conn) WriteBlocked() bool { return c.writeBlocked.Load() }

// SetWriteBlocked is called by the net/send connector.
func (c *Conn) SetWriteBlocked(v bool) { c.writeBlocked.Store(v) }

// --- route.MatchContext ---

// Method implements route.MatchContext.
func (c *Conn) Method() string { return c.Rx.EffectiveMethod() }

// PathInfo implements route.MatchContext.
func (c *Conn) PathInfo() string { return c.Rx.PathInfo }

// Header implements route.MatchContext.
func (c *Conn) Header(name string) string { return c.Rx.Header.Get(name) }

// QueryParam implements route.MatchContext.
func (c *Conn) QueryParam(name string) string {
	if vals, ok := c.Rx.Query[name]; ok && len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// FormParam implements route.MatchContext.
func (c *Conn) FormParam(name string) string { return c.formParams[name] }

// SetFormParam implements route.MatchContext.
func (c *Conn) SetFormParam(name, value string) { c.formParams[name] = value }

// IsSecure implements route.MatchContext.
func (c *Conn) IsSecure() bool { return c.Secure }

// IsAuthenticated implements route.MatchContext.
func (c *Conn) IsAuthenticated() bool {
	if c.Hooks.IsAuthenticated == nil {
		return false
	}
	return c.Hooks.IsAuthenticated(c)
}

// Ability implements route.MatchContext.
func (c *Conn) Ability(name string) bool {
	if c.Hooks.Ability == nil {
		return false
	}
	return c.Hooks.Ability(c, name)
}

// FileExists implements route.MatchContext.
func (c *Conn) FileExists(path string) bool {
	if c.Hooks.FileExists == nil {
		return false
	}
	return c.Hooks.FileExists(path)
}

// IsDirectory implements route.MatchContext.
func (c *Conn) IsDirectory(path string) bool {
	if c.Hooks.IsDirectory == nil {
		return false
	}
	return c.Hooks.IsDirectory(path)
}

// Reroute implements route.MatchContext: it rewrites PathInfo for the
// Router's next matching attempt (§4.4 step 7's REROUTE verdict,
// bounded by route.MAX_REWRITE at the Router.Match call site).
func (c *Conn) Reroute(target string) {
	c.reroute = target
	c.Rx.PathInfo = target
}

var _ route.MatchContext = (*Conn)(nil)
