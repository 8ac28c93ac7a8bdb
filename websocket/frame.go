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

// Package websocket implements the RFC 6455 handshake and frame codec
// of spec §4.13: handshake accept-key derivation, the FIN/RSV/OPCODE/
// MASK/LEN frame layout (with 16/64-bit extended length and masking),
// message assembly across continuation frames, UTF-8 validation for
// text frames, and close-code range checks. No external WebSocket
// library is used — spec.md §4.13 spells out the exact wire framing
// the core itself must produce, which is the one piece of this module
// no library in the pack implements byte-for-byte (see DESIGN.md for
// why `gorilla/websocket` is not pulled in).
package websocket

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	coreerrors "github.com/sabouaram/httpcore/errors"
)

// Opcode is the 4-bit frame type spec §4.13 enumerates.
type Opcode uint8

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

func (op Opcode) isControl() bool { return op >= OpClose }

func (op Opcode) known() bool {
	switch op {
	case OpContinuation, OpText, OpBinary, OpClose, OpPing, OpPong:
		return true
	}
	return false
}

// Frame is one decoded (unmasked) WebSocket frame.
type Frame struct {
	Fin     bool
	Opcode  Opcode
	Payload []byte
}

var errFrameTooLarge = errors.New("websocket: frame exceeds configured size")

// ParseFrame decodes exactly one frame from r, unmasking the payload
// when the MASK bit is set (always true for client→server frames per
// RFC 6455 §5.1). maxPayload bounds the accepted LEN value (0 means
// unbounded); exceeding it is a protocol error rather than an
// allocation hazard.
func ParseFrame(r io.Reader, maxPayload int64) (Frame, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}

	fin := hdr[0]&0x80 != 0
	rsv := hdr[0] & 0x70
	opcode := Opcode(hdr[0] & 0x0F)

	if rsv != 0 {
		return Frame{}, frameErr("reserved bits set")
	}
	if !opcode.known() {
		return Frame{}, frameErr("unknown opcode")
	}

	masked := hdr[1]&0x80 != 0
	length := int64(hdr[1] & 0x7F)

	switch length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, err
		}
		length = int64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, err
		}
		length = int64(binary.BigEndian.Uint64(ext[:]))
		if length < 0 {
			return Frame{}, frameErr("negative extended length")
		}
	}

	if opcode.isControl() {
		if !fin {
			return Frame{}, frameErr("fragmented control frame")
		}
		if length > 125 {
			return Frame{}, frameErr("control frame payload too long")
		}
	}

	if maxPayload > 0 && length > maxPayload {
		return Frame{}, errFrameTooLarge
	}

	var maskKey [4]byte
	if masked {
		if _, err := io.ReadFull(r, maskKey[:]); err != nil {
			return Frame{}, err
		}
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, err
		}
	}

	if masked {
		applyMask(payload, maskKey)
	}

	return Frame{Fin: fin, Opcode: opcode, Payload: payload}, nil
}

func applyMask(data []byte, key [4]byte) {
	for i := range data {
		data[i] ^= key[i%4]
	}
}

func frameErr(detail string) error {
	return coreerrors.CodeParseWebSocketFrame.Error(fmt.Errorf("websocket: %s", detail))
}

// EncodeFrame renders fin/opcode/payload as an unmasked frame (server→
// client frames are never masked per RFC 6455 §5.1). mask, when
// non-nil, is a 4-byte masking key applied and emitted for a
// client→server encode.
func EncodeFrame(fin bool, opcode Opcode, payload []byte, mask []byte) []byte {
	var hdr byte
	if fin {
		hdr |= 0x80
	}
	hdr |= byte(opcode) & 0x0F

	maskBit := byte(0)
	if mask != nil {
		maskBit = 0x80
	}

	out := make([]byte, 0, len(payload)+14)
	out = append(out, hdr)

	n := len(payload)
	switch {
	case n < 126:
		out = append(out, maskBit|byte(n))
	case n <= 0xFFFF:
		out = append(out, maskBit|126)
		var ext [2]byte
		binary.BigEndian.PutUint16(ext[:], uint16(n))
		out = append(out, ext[:]...)
	default:
		out = append(out, maskBit|127)
		var ext [8]byte
		binary.BigEndian.PutUint64(ext[:], uint64(n))
		out = append(out, ext[:]...)
	}

	if mask != nil {
		out = append(out, mask...)
		masked := make([]byte, n)
		copy(masked, payload)
		applyMask(masked, [4]byte{mask[0], mask[1], mask[2], mask[3]})
		out = append(out, masked...)
	} else {
		out = append(out, payload...)
	}

	return out
}
