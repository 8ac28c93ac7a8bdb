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

package websocket

import (
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
)

// magicGUID is RFC 6455's fixed accept-key salt.
const magicGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// AcceptKey derives Sec-WebSocket-Accept from the client's
// Sec-WebSocket-Key, per §4.13: base64(SHA1(key + magicGUID)).
func AcceptKey(clientKey string) string {
	sum := sha1.Sum([]byte(clientKey + magicGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// HandshakeRequest is the inbound request fields a handshake check
// needs; conn/rx already hold these, kept here as a small struct so
// this package doesn't need to depend on rx.
type HandshakeRequest struct {
	Method     string
	Upgrade    string
	Connection string
	Version    string
	Key        string
	Protocols  []string // parsed Sec-WebSocket-Protocol, comma-split
}

// Accept validates method/headers per §4.13 ("upgrade accepted iff
// Upgrade: websocket, method GET, Sec-WebSocket-Version >= 13,
// Sec-WebSocket-Key present"), and picks the first route-configured
// subprotocol also offered by the client.
func Accept(req HandshakeRequest, supportedProtocols []string) (acceptKey, subprotocol string, ok bool, reason string) {
	if req.Method != http.MethodGet {
		return "", "", false, "method must be GET"
	}
	if !strings.EqualFold(strings.TrimSpace(req.Upgrade), "websocket") {
		return "", "", false, "missing Upgrade: websocket"
	}
	if !containsToken(req.Connection, "upgrade") {
		return "", "", false, "missing Connection: Upgrade"
	}
	if req.Key == "" {
		return "", "", false, "missing Sec-WebSocket-Key"
	}

	version, err := strconv.Atoi(strings.TrimSpace(req.Version))
	if err != nil || version < 13 {
		return "", "", false, "Sec-WebSocket-Version must be >= 13"
	}

	sub := selectSubprotocol(req.Protocols, supportedProtocols)

	return AcceptKey(req.Key), sub, true, ""
}

func selectSubprotocol(offered, supported []string) string {
	for _, s := range supported {
		for _, o := range offered {
			if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(o)) {
				return s
			}
		}
	}
	return ""
}

func containsToken(header, token string) bool {
	for _, part := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}

// ResponseHeaders builds the 101 Switching Protocols response headers
// a handshake Accept produces.
func ResponseHeaders(acceptKey, subprotocol string) http.Header {
	h := http.Header{}
	h.Set("Upgrade", "websocket")
	h.Set("Connection", "Upgrade")
	h.Set("Sec-WebSocket-Accept", acceptKey)
	if subprotocol != "" {
		h.Set("Sec-WebSocket-Protocol", subprotocol)
	}
	return h
}
