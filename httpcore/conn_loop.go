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
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sabouaram/httpcore/auth"
	"github.com/sabouaram/httpcore/cache"
	"github.com/sabouaram/httpcore/conn"
	liberr "github.com/sabouaram/httpcore/errors"
	"github.com/sabouaram/httpcore/monitor"
	"github.com/sabouaram/httpcore/packet"
	"github.com/sabouaram/httpcore/route"
	"github.com/sabouaram/httpcore/rx"
	"github.com/sabouaram/httpcore/session"
	"github.com/sabouaram/httpcore/tx"
	"github.com/sabouaram/httpcore/uri"
)

const defaultReadBufferSize = 8 << 10

// connState is the per-connection data conn.Hooks's closures see: the
// resolved virtual host/handler/session for the in-flight request, and
// the raw socket the request line/headers/body are read off directly
// (no RX pipeline: httpcore feeds rx.Rx straight from the wire, since
// chunked/content-length framing is already rx's own job).
type connState struct {
	srv     *Server
	ep      *Endpoint
	netConn net.Conn
	reader  *bufio.Reader

	remoteAddr string

	host     *hostRuntime
	route    *route.Route
	identity auth.Identity
	sess     *session.Session

	cachePending string
}

func (s *Server) serveConn(ctx context.Context, ep *Endpoint, netConn net.Conn) {
	defer netConn.Close()

	addr := hostOnly(netConn.RemoteAddr().String())

	if banned, status, msg := s.monitor.Addresses().IsBanned(addr, time.Now()); banned {
		writeRawStatus(netConn, status, msg)
		return
	}

	s.monitor.IncrGlobal(monitor.ActiveConnections, 1)
	s.monitor.Incr(addr, monitor.ActiveConnections, 1)
	defer func() {
		s.monitor.IncrGlobal(monitor.ActiveConnections, -1)
		s.monitor.Incr(addr, monitor.ActiveConnections, -1)
	}()

	cs := &connState{
		srv:        s,
		ep:         ep,
		netConn:    netConn,
		reader:     bufio.NewReaderSize(netConn, readBufferSize(ep.cfg)),
		remoteAddr: addr,
	}

	c := conn.New(s.nextSeqno(), s.log, conn.Hooks{
		Router:          cs.matchRoute,
		Ready:           cs.ready,
		Writable:        cs.writable,
		OnComplete:      cs.onComplete,
		IsAuthenticated: cs.isAuthenticated,
		Ability:         cs.ability,
		FileExists:      func(p string) bool { return fileExists(p) },
		IsDirectory:     func(p string) bool { return isDirectory(p) },
	})
	c.Secure = ep.secure
	c.KeepAliveCount = keepAliveRequests(ep.cfg)

	c.Accept()

	for {
		cs.route = nil
		cs.cachePending = ""

		if err := cs.readRequestLine(c); err != nil {
			cs.writeErrorResponse(err)
			return
		}

		if err := cs.readHeaders(c); err != nil {
			cs.writeErrorResponse(c.Error)
			return
		}

		if err := cs.readBody(c); err != nil {
			cs.writeErrorResponse(err)
			return
		}

		if err := c.BodyComplete(); err != nil {
			cs.writeErrorResponse(c.Error)
			return
		}

		for c.State() == conn.Running {
			if _, err := c.Service(); err != nil {
				cs.writeErrorResponse(err)
				return
			}
		}

		if c.Upgraded {
			return
		}

		if c.State() != conn.Finalized {
			cs.writeErrorResponse(c.Error)
			return
		}

		if !c.Complete() {
			return
		}

		c.Rearm()
	}
}

func (cs *connState) readRequestLine(c *conn.Conn) error {
	var line string
	for {
		l, err := cs.readLine()
		if err != nil {
			return err
		}
		if l != "" {
			line = l
			break
		}
	}

	method, rawURI, proto, err := rx.ParseRequestLine([]byte(line), cs.ep.cfg.MaxURILen)
	c.FeedRequestLine(method, rawURI, proto, err)
	return err
}

func (cs *connState) readHeaders(c *conn.Conn) error {
	var block []byte
	for {
		l, err := cs.readLine()
		if err != nil {
			c.FeedHeaders(err)
			return err
		}
		if l == "" {
			break
		}
		block = append(block, l...)
		block = append(block, '\r', '\n')
	}

	if err := c.Rx.ParseHeaders(block, cs.ep.cfg.MaxHeaders); err != nil {
		c.FeedHeaders(err)
		return err
	}

	parsed, err := uri.Parse(c.Rx.RawURI)
	if err != nil {
		perr := liberr.CodeParseURI.Error(err)
		c.FeedHeaders(perr)
		return perr
	}
	c.Rx.URI = parsed
	c.Rx.Query = parsed.Query()

	if cs.ep.cfg.MaxBodyBytes > 0 && c.Rx.Length > cs.ep.cfg.MaxBodyBytes {
		lerr := liberr.CodeLimitBody.Error()
		c.FeedHeaders(lerr)
		return lerr
	}

	c.FeedHeaders(nil)
	return c.Error
}

func (cs *connState) readBody(c *conn.Conn) error {
	if c.Rx.Expect100 {
		_ = cs.netConn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		_, _ = cs.netConn.Write([]byte(c.Rx.Proto + " 100 Continue\r\n\r\n"))
	}

	c.AdvanceContent()

	if c.Rx.Length <= 0 && !c.Rx.Chunked {
		return nil
	}

	buf := make([]byte, readBufferSize(cs.ep.cfg))
	for {
		if cs.ep.cfg.MaxBodyBytes > 0 && c.Rx.BytesRead > cs.ep.cfg.MaxBodyBytes {
			return liberr.CodeLimitBody.Error()
		}

		if cs.ep.cfg.InactivityTimeout > 0 {
			_ = cs.netConn.SetReadDeadline(time.Now().Add(cs.ep.cfg.InactivityTimeout))
		}

		n, rerr := cs.reader.Read(buf)
		if n > 0 {
			_, eof, ferr := c.Rx.FeedBody(buf[:n])
			if ferr != nil {
				return ferr
			}
			if eof {
				return nil
			}
		}
		if rerr != nil {
			return liberr.CodeCommsRead.Error(rerr)
		}
	}
}

func (cs *connState) readLine() (string, error) {
	if cs.ep.cfg.InactivityTimeout > 0 {
		_ = cs.netConn.SetReadDeadline(time.Now().Add(cs.ep.cfg.InactivityTimeout))
	}

	line, err := cs.reader.ReadString('\n')
	if err != nil {
		return "", liberr.CodeCommsRead.Error(err)
	}

	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, nil
}

// matchRoute is conn.Hooks.Router: it resolves the virtual host from
// the request's Host header, then defers to that host's route.Router.
func (cs *connState) matchRoute(ctx route.MatchContext) (*route.MatchResult, error) {
	c, ok := ctx.(*conn.Conn)
	if !ok {
		return nil, liberr.CodeInternalState.Error(fmt.Errorf("router hook called with a non-conn context"))
	}

	hr := cs.srv.hostRuntimeFor(c.Rx.HostHeader)
	if hr == nil {
		return nil, liberr.CodeNotFoundRoute.Error(fmt.Errorf("no virtual host for %q", c.Rx.HostHeader))
	}
	cs.host = hr

	res, err := hr.Routes.Match(ctx)
	if err != nil {
		return nil, liberr.CodeNotFoundRoute.Error(err)
	}
	return res, nil
}

// ready is conn.Hooks.Ready: it runs once the full request body has
// arrived, resolving the matched route to its Handler (or, for a
// websocket route, switching the connection over) and driving it to
// completion before returning.
func (cs *connState) ready(c *conn.Conn) error {
	if c.Rx.Route == nil || c.Rx.Route.Route == nil {
		return liberr.CodeNotFoundRoute.Error()
	}
	rt := c.Rx.Route.Route
	cs.route = rt

	if ws, ok := cs.host.wsRoutes[rt.Name]; ok {
		return cs.acceptUpgrade(c, ws)
	}

	h, ok := cs.host.handlers[rt.Name]
	if !ok {
		return liberr.CodeInternalHandler.Error(fmt.Errorf("route %q: no handler resolved", rt.Name))
	}

	c.Tx.Proto = c.Rx.Proto
	c.Tx.Pipeline = buildOutputPipeline(nil, cs.netConn)

	cs.attachSessionCookie(c, rt)

	method := c.Rx.EffectiveMethod()
	if cs.host.Cache != nil && (method == "GET" || method == "HEAD") {
		key := cacheKey(rt.Name, c.Rx.PathInfo, c.Rx.URI.RawQuery)
		if item, found := cs.host.Cache.Get(key); found {
			replayCachedResponse(c.Rx, c.Tx, item)
			return nil
		}
		cs.cachePending = key
	}

	if err := serveRoute(h, c.Rx, c.Tx); err != nil {
		return err
	}

	if cs.cachePending != "" && cs.host.isCacheable(rt, method, c.Tx.Header.Get("Content-Type")) {
		captureResponse(cs.host.Cache, cs.cachePending, c.Tx, cs.host.cfg.CacheMaxItemBytes)
	}

	cs.srv.monitor.IncrGlobal(monitor.Requests, 1)
	cs.srv.monitor.Incr(cs.remoteAddr, monitor.Requests, 1)

	return nil
}

// attachSessionCookie loads/creates the request's session and queues
// its cookie onto the response, before the handler runs (tx.Cookies is
// read only once HeaderPacket renders HeadBytes, well after this call,
// so ordering is unaffected by how early this happens).
func (cs *connState) attachSessionCookie(c *conn.Conn, rt *route.Route) {
	sess := cs.sessionFor(c)

	cookieName := rt.SessionCookie
	if cookieName == "" {
		cookieName = cs.srv.sessions.CookieName()
	}

	c.Tx.SetCookie(&http.Cookie{Name: cookieName, Value: sess.ID, Path: "/", HttpOnly: true})
}

func (cs *connState) sessionFor(c *conn.Conn) *session.Session {
	if cs.sess != nil {
		return cs.sess
	}

	cookieName := cs.srv.sessions.CookieName()
	var sess *session.Session
	if id, ok := c.Rx.Cookies[cookieName]; ok {
		sess, _ = cs.srv.sessions.Load(id)
	}
	if sess == nil {
		sess = cs.srv.sessions.New()
	}

	cs.sess = sess
	c.Rx.Session = sess.Data
	return sess
}

// isAuthenticated is conn.Hooks.IsAuthenticated, backing the route
// auth condition (§4.4 step 7's "unauthorized" category). Per-route
// AutoLogin is not reachable from the generic condition path (the
// candidate route being matched is not visible to route.Condition.Eval);
// it is exercised instead by a dedicated login action calling
// auth.Authenticator.Login directly.
func (cs *connState) isAuthenticated(c *conn.Conn) bool {
	if cs.srv.authn == nil {
		return false
	}

	sess := cs.sessionFor(c)
	id, ok := cs.srv.authn.Authenticate(context.Background(), sess.Data, cs.remoteAddr, "")
	if ok {
		cs.identity = id
	}
	return ok
}

// ability is conn.Hooks.Ability, backing route.MatchContext.Ability for
// RequiredAbilities enforcement inside route.Router.matchOnce.
func (cs *connState) ability(c *conn.Conn, name string) bool {
	if cs.srv.authn == nil {
		return false
	}
	return cs.srv.authn.CanUser(cs.identity, []string{name})
}

// writable is conn.Hooks.Writable: it drains c.Tx.Pipeline to the
// socket, retrying while the connector reports a write-would-block
// condition, until every queued byte (including the terminal packet
// FinishOutput queued) has actually gone out.
func (cs *connState) writable(c *conn.Conn) (bool, error) {
	for {
		done, err := pumpOutput(c)
		if err != nil {
			return false, liberr.CodeCommsWrite.Error(err)
		}
		if done {
			c.Tx.MarkConnectorDone()
			return true, nil
		}
		if c.WriteBlocked() {
			time.Sleep(2 * time.Millisecond)
			continue
		}
		return false, nil
	}
}

// onComplete is conn.Hooks.OnComplete: it emits the access-log line,
// persists a dirtied session, and folds request-level outcomes into
// the monitor's counters (§4.14's processCompletion contract).
func (cs *connState) onComplete(c *conn.Conn) {
	latency := time.Since(c.Started)
	cs.srv.log.Access(cs.remoteAddr, c.Rx.EffectiveMethod(), c.Rx.PathInfo, c.Tx.Status, latency)

	if cs.sess != nil {
		cs.sess.Renew(cs.srv.cfg.SessionTTL)
		if cs.sess.Dirty() {
			cs.srv.sessions.Save(cs.sess)
			cs.sess.ClearDirty()
		}
	}

	if c.Error != nil {
		cs.srv.monitor.IncrGlobal(monitor.Errors, 1)
		cs.srv.monitor.Incr(cs.remoteAddr, monitor.Errors, 1)
	}
	if c.Tx.Status == http.StatusNotFound {
		cs.srv.monitor.IncrGlobal(monitor.NotFoundErrors, 1)
	}
	if c.Tx.Status >= 400 && c.Tx.Status < 500 {
		cs.srv.monitor.IncrGlobal(monitor.BadRequestErrors, 1)
	}
}

// writeErrorResponse renders a minimal raw HTTP response for an error
// that occurred before (or instead of) a normal handler dispatch —
// parse failures, limit violations, routing/auth failures surfaced as
// conn.Conn.fail. A comms-level error (no registered status) means the
// socket is simply closed without a response, per errors.StatusOf's
// contract.
func (cs *connState) writeErrorResponse(err error) {
	if err == nil {
		return
	}

	status, message := statusAndMessage(err)
	if status == 0 {
		return
	}

	writeRawStatus(cs.netConn, status, message)
}

func statusAndMessage(err error) (int, string) {
	var cerr liberr.Error
	if stderrors.As(err, &cerr) {
		if status := liberr.StatusOf(cerr.Code()); status != 0 {
			return status, cerr.Error()
		}
		if code := cerr.Code(); code >= liberr.CodeCommsRead && code <= liberr.CodeCommsClosed {
			return 0, cerr.Error()
		}
	}
	return http.StatusInternalServerError, "internal error"
}

func writeRawStatus(netConn net.Conn, status int, message string) {
	body := []byte(message)
	head := fmt.Sprintf("HTTP/1.1 %d %s\r\nContent-Type: text/plain; charset=utf-8\r\nContent-Length: %d\r\nConnection: close\r\n\r\n",
		status, http.StatusText(status), len(body))

	_ = netConn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_, _ = netConn.Write([]byte(head))
	_, _ = netConn.Write(body)
}

func replayCachedResponse(rxReq *rx.Rx, txResp *tx.Tx, item *cache.Item) {
	if cache.NotModified(item, rxReq.IfNoneMatch, rxReq.IfModifiedSince) {
		txResp.NotModified()
		_ = txResp.FinishOutput()
		return
	}

	txResp.SetStatus(item.Status, "")
	for k, vs := range item.Headers {
		for _, v := range vs {
			txResp.AddHeader(k, v)
		}
	}
	txResp.SetContentLength(int64(len(item.Body)))
	if rxReq.EffectiveMethod() != http.MethodHead {
		_, _ = txResp.WriteBody(item.Body)
	}
	_ = txResp.FinishOutput()
}

func captureResponse(store *cache.ResponseStore, key string, txResp *tx.Tx, maxSize int64) {
	body, ok := collectBody(txResp)
	if !ok {
		return
	}

	store.Put(key, &cache.Item{
		Status:      txResp.Status,
		Headers:     map[string][]string(txResp.Header),
		Body:        body,
		ETag:        txResp.ETag,
		ContentType: txResp.Header.Get("Content-Type"),
	}, maxSize)
}

// collectBody walks the not-yet-drained output queue built by
// serveRoute, concatenating every in-memory TagData packet. A
// Fill/File-backed packet (a streamed or sendfile response) aborts the
// capture — only fully-buffered bodies are worth caching.
func collectBody(txResp *tx.Tx) ([]byte, bool) {
	first := txResp.Pipeline.Head().Next()
	if first == nil {
		return nil, false
	}

	var body []byte
	ok := true
	first.Queue.Walk(func(p *packet.Packet) bool {
		switch p.Tag {
		case packet.TagData:
			if p.Fill != nil || p.File != nil {
				ok = false
				return false
			}
			body = append(body, p.Content...)
		case packet.TagHeader, packet.TagEnd:
		}
		return true
	})

	if !ok {
		return nil, false
	}
	return body, true
}

func readBufferSize(cfg EndpointConfig) int {
	if cfg.ReadBufferSize > 0 {
		return cfg.ReadBufferSize
	}
	return defaultReadBufferSize
}

func keepAliveRequests(cfg EndpointConfig) int {
	if cfg.KeepAliveRequests > 0 {
		return cfg.KeepAliveRequests
	}
	return 100
}

func hostOnly(addr string) string {
	if h, _, err := net.SplitHostPort(addr); err == nil {
		return h
	}
	return addr
}
