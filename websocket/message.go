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

import "fmt"

// Message is one assembled application message: its type (Text or
// Binary) and payload, built by joining a run of continuation frames.
type Message struct {
	Opcode  Opcode
	Payload []byte
}

// Assembler accumulates frames into Messages per §4.13: "consecutive
// non-final frames with the same message type accumulate into a
// message, up to webSocketsMessageSize." In PreserveFrames mode each
// frame is delivered independently instead (the assembler becomes a
// pass-through that still validates UTF-8/size per frame).
type Assembler struct {
	PreserveFrames bool
	MaxMessageSize int64

	active    bool
	opcode    Opcode
	buf       []byte
	utf8State utf8State
}

// Feed processes one parsed Frame, returning a completed Message when
// one is ready (nil otherwise) and an error on a protocol violation
// (interleaved control frame handling is the caller's responsibility —
// control frames never pass through Feed).
func (a *Assembler) Feed(f Frame) (*Message, error) {
	if f.Opcode.isControl() {
		return nil, fmt.Errorf("websocket: control frame must not be assembled")
	}

	if a.PreserveFrames {
		if a.MaxMessageSize > 0 && int64(len(f.Payload)) > a.MaxMessageSize {
			return nil, frameErr("frame exceeds configured message size")
		}
		if f.Opcode == OpText && !ValidUTF8(f.Payload, f.Fin) {
			return nil, frameErr("invalid utf-8 in text frame")
		}
		return &Message{Opcode: f.Opcode, Payload: f.Payload}, nil
	}

	if !a.active {
		if f.Opcode == OpContinuation {
			return nil, frameErr("continuation frame without a started message")
		}
		a.active = true
		a.opcode = f.Opcode
		a.buf = a.buf[:0]
		a.utf8State = CarryState()
	} else if f.Opcode != OpContinuation {
		return nil, frameErr("expected continuation frame")
	}

	if a.opcode == OpText {
		st, ok := ValidateUTF8Stream(a.utf8State, f.Payload, f.Fin)
		if !ok {
			a.active = false
			return nil, frameErr("invalid utf-8 in text message")
		}
		a.utf8State = st
	}

	a.buf = append(a.buf, f.Payload...)

	if a.MaxMessageSize > 0 && int64(len(a.buf)) > a.MaxMessageSize {
		a.active = false
		return nil, frameErr("message exceeds configured size")
	}

	if !f.Fin {
		return nil, nil
	}

	msg := &Message{Opcode: a.opcode, Payload: append([]byte(nil), a.buf...)}
	a.active = false
	a.buf = nil
	return msg, nil
}

// SplitFrames breaks payload into a sequence of frames no larger than
// frameSize bytes each, the outgoing half of §4.13's "per-frame splits
// upstream at webSocketsFrameSize." The first frame carries opcode;
// subsequent frames are OpContinuation; the last has Fin=true.
func SplitFrames(opcode Opcode, payload []byte, frameSize int) []Frame {
	if frameSize <= 0 || len(payload) <= frameSize {
		return []Frame{{Fin: true, Opcode: opcode, Payload: payload}}
	}

	var frames []Frame
	for i := 0; i < len(payload); i += frameSize {
		end := i + frameSize
		if end > len(payload) {
			end = len(payload)
		}

		op := OpContinuation
		if i == 0 {
			op = opcode
		}

		frames = append(frames, Frame{
			Fin:     end == len(payload),
			Opcode:  op,
			Payload: payload[i:end],
		})
	}

	return frames
}
