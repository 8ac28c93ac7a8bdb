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
	"fmt"
	"strings"

	"github.com/sabouaram/httpcore/conn"
	liberr "github.com/sabouaram/httpcore/errors"
	"github.com/sabouaram/httpcore/packet"
	"github.com/sabouaram/httpcore/stage"
	"github.com/sabouaram/httpcore/websocket"
)

const (
	defaultWSFrameSize      = 4 << 10
	defaultWSMaxMessageSize = 1 << 20
)

// SocketHandler is the application callback a "websocket:NAME" route
// dispatches to once the upgrade handshake completes: it is invoked
// once per assembled Message (OpPing/OpClose are handled by the filter
// itself before a handler ever sees them), and send frames a message
// back to the peer.
type SocketHandler func(msg websocket.Message, send func(opcode websocket.Opcode, payload []byte) error) error

// wsRoute bundles the resolved framing settings and application
// handler a websocket route upgrades into, built once at buildHost
// time from a RouteConfig's WebSocketConfig.
type wsRoute struct {
	frameSize      int
	maxMessageSize int64
	preserveFrames bool
	protocols      []string
	handler        SocketHandler
}

func newWSRoute(cfg WebSocketConfig, fn SocketHandler) *wsRoute {
	frameSize := cfg.FrameSize
	if frameSize <= 0 {
		frameSize = defaultWSFrameSize
	}
	maxMessageSize := cfg.MaxMessageSize
	if maxMessageSize <= 0 {
		maxMessageSize = defaultWSMaxMessageSize
	}
	return &wsRoute{
		frameSize:      frameSize,
		maxMessageSize: maxMessageSize,
		preserveFrames: cfg.PreserveFrames,
		protocols:      cfg.Protocols,
		handler:        fn,
	}
}

// wsStageContext is the stage.Context a Filter's Incoming callback
// needs; Filter.incoming never calls Queue, so a value with no usable
// queue is sufficient here (no RX pipeline is built for a websocket
// connection, since the filter is driven directly from raw reads).
type wsStageContext struct{}

func (wsStageContext) Queue(stage.Direction) *packet.Queue { return nil }

// acceptUpgrade answers the handshake for a "websocket:NAME" route and,
// once switched, takes over the connection: frames read off cs.reader
// are fed straight into a per-connection websocket.Filter, bypassing
// the ordinary RX/TX pipeline entirely (the filter's Incoming callback
// never inspects its stage.Context). It returns once the peer closes
// or a protocol error ends the exchange; c.Upgraded is left set so the
// caller's request loop does not try to serve another request on this
// connection.
func (cs *connState) acceptUpgrade(c *conn.Conn, ws *wsRoute) error {
	rxReq := c.Rx

	acceptKey, subprotocol, ok, reason := websocket.Accept(websocket.HandshakeRequest{
		Method:     rxReq.Method,
		Upgrade:    rxReq.Header.Get("Upgrade"),
		Connection: rxReq.Header.Get("Connection"),
		Version:    rxReq.Header.Get("Sec-WebSocket-Version"),
		Key:        rxReq.Header.Get("Sec-WebSocket-Key"),
		Protocols:  splitProtocols(rxReq.Header.Get("Sec-WebSocket-Protocol")),
	}, ws.protocols)
	if !ok {
		cs.writeErrorResponse(liberr.New(liberr.CodeParseWebSocketFrame, reason))
		return nil
	}

	if err := cs.writeHandshakeResponse(acceptKey, subprotocol); err != nil {
		return err
	}

	c.Upgraded = true
	rxReq.MustClose = true

	filter := websocket.NewServerFilter(ws.frameSize, ws.maxMessageSize, ws.preserveFrames)

	writeErr := error(nil)
	send := func(opcode websocket.Opcode, payload []byte) error {
		if writeErr != nil {
			return writeErr
		}
		_, err := cs.netConn.Write(filter.EncodeMessage(opcode, payload))
		if err != nil {
			writeErr = err
		}
		return err
	}

	filter.OnMessage = func(m websocket.Message) error {
		if m.Opcode == websocket.OpPong {
			_, err := cs.netConn.Write(filter.EncodeMessage(websocket.OpPong, m.Payload))
			return err
		}
		if ws.handler == nil {
			return nil
		}
		return ws.handler(m, send)
	}

	closeCode, closeReason := websocket.CloseNormal, ""
	peerClosed := false
	filter.OnClose = func(code int, reason string) {
		closeCode, closeReason = code, reason
		peerClosed = true
	}

	desc := filter.Descriptor("websocket")

	buf := make([]byte, defaultReadBufferSize)
	for !peerClosed {
		n, err := cs.reader.Read(buf)
		if n > 0 {
			if ferr := desc.Incoming(wsStageContext{}, packet.NewData(append([]byte(nil), buf[:n]...))); ferr != nil {
				break
			}
		}
		if err != nil {
			break
		}
	}

	if writeErr == nil {
		_, _ = cs.netConn.Write(filter.EncodeClose(closeCode, closeReason))
	}

	return nil
}

func splitProtocols(header string) []string {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// writeHandshakeResponse writes the raw 101 Switching Protocols
// response line and headers directly to the connection; this bypasses
// tx.Tx entirely since no further request/response framing applies
// once the protocol switches.
func (cs *connState) writeHandshakeResponse(acceptKey, subprotocol string) error {
	var b strings.Builder
	b.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	for k, vs := range websocket.ResponseHeaders(acceptKey, subprotocol) {
		for _, v := range vs {
			fmt.Fprintf(&b, "%s: %s\r\n", k, v)
		}
	}
	b.WriteString("\r\n")

	_, err := cs.netConn.Write([]byte(b.String()))
	return err
}
