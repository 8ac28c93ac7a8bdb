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

import "encoding/binary"

// Standard close codes spec §4.13 names explicitly.
const (
	CloseNormal           = 1000
	CloseGoingAway        = 1001
	CloseProtocolError    = 1002
	CloseUnsupportedData  = 1003
	CloseNoStatus         = 1005
	CloseAbnormal         = 1006
	CloseInvalidPayload   = 1007
	ClosePolicyViolation  = 1008
	CloseMessageTooBig    = 1009
	CloseMandatoryExt     = 1010
	CloseInternalErr      = 1011
	CloseTLSHandshakeFail = 1015
)

// ValidCloseCode reports whether code falls in the RFC 6455 valid
// range 1000-4999, excluding the reserved bands spec §4.13 names:
// 1004-1006, 1012-1016, 1100-2999.
func ValidCloseCode(code int) bool {
	if code < 1000 || code > 4999 {
		return false
	}
	if code >= 1004 && code <= 1006 {
		return false
	}
	if code >= 1012 && code <= 1016 {
		return false
	}
	if code >= 1100 && code <= 2999 {
		return false
	}
	return true
}

// ParseClose decodes a close frame's payload into its status code and
// UTF-8 reason text, per §4.13 ("2-byte status code + optional UTF-8
// reason"). An empty payload means no status was supplied (treated as
// CloseNoStatus by callers, never echoed back on the wire per RFC
// 6455 §7.4).
func ParseClose(payload []byte) (code int, reason string, ok bool) {
	if len(payload) == 0 {
		return CloseNoStatus, "", true
	}
	if len(payload) < 2 {
		return 0, "", false
	}

	code = int(binary.BigEndian.Uint16(payload[:2]))
	reason = string(payload[2:])

	if !ValidCloseCode(code) {
		return code, reason, false
	}
	if !ValidUTF8(payload[2:], true) {
		return code, reason, false
	}

	return code, reason, true
}

// EncodeClose renders a close frame payload from a status code and
// reason string.
func EncodeClose(code int, reason string) []byte {
	out := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(out[:2], uint16(code))
	copy(out[2:], reason)
	return out
}
