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
	"bytes"

	"github.com/sabouaram/httpcore/packet"
	"github.com/sabouaram/httpcore/stage"
)

// Filter is the pipeline stage (§4.3's filter role) that takes over a
// connection once the handshake switches protocols: on RX it parses
// incoming bytes into frames and feeds complete Messages to OnMessage;
// on TX, EncodeMessage frames an outgoing payload, splitting it per
// FrameSize.
type Filter struct {
	FrameSize      int
	MaxMessageSize int64
	PreserveFrames bool

	// OnMessage is invoked for every assembled application Message, and
	// for each received Ping with an OpPong Message carrying the ping's
	// payload, for the caller to send back as the Pong.
	OnMessage func(m Message) error
	// OnClose is invoked once a Close frame is received. The filter
	// sends no Close itself; the caller answers with one (EncodeClose).
	OnClose func(code int, reason string)

	rxBuf      bytes.Buffer
	asm        Assembler
	closed     bool
	sendMasked bool // true when this Filter frames client->server traffic (rare: client mode)
}

// NewServerFilter builds a Filter for server-side connections (frames
// sent to the peer are never masked, per RFC 6455 §5.1).
func NewServerFilter(frameSize int, maxMessageSize int64, preserveFrames bool) *Filter {
	f := &Filter{FrameSize: frameSize, MaxMessageSize: maxMessageSize, PreserveFrames: preserveFrames}
	f.asm.PreserveFrames = preserveFrames
	f.asm.MaxMessageSize = maxMessageSize
	return f
}

// Descriptor builds the stage.Descriptor wired into a request's
// upgraded pipeline; name is the stage name the route config wires in
// (conventionally "websocket").
func (f *Filter) Descriptor(name string) *stage.Descriptor {
	return &stage.Descriptor{
		Name:     name,
		Kind:     stage.KindFilter,
		Incoming: f.incoming,
	}
}

// incoming appends p's content to the frame-reassembly buffer and
// drains as many complete frames as are present.
func (f *Filter) incoming(ctx stage.Context, p *packet.Packet) error {
	if f.closed {
		return nil
	}

	f.rxBuf.Write(p.Content)

	for {
		frame, n, err := tryParseFrame(f.rxBuf.Bytes(), f.MaxMessageSize)
		if err == errIncompleteFrame {
			break
		}
		if err != nil {
			return err
		}

		f.rxBuf.Next(n)

		if err := f.handleFrame(frame); err != nil {
			return err
		}
		if f.closed {
			break
		}
	}

	return nil
}

func (f *Filter) handleFrame(frame Frame) error {
	switch frame.Opcode {
	case OpClose:
		code, reason, ok := ParseClose(frame.Payload)
		if !ok {
			code = CloseProtocolError
		}
		f.closed = true
		if f.OnClose != nil {
			f.OnClose(code, reason)
		}
		return nil
	case OpPing, OpPong:
		if frame.Opcode == OpPing && f.OnMessage != nil {
			return f.OnMessage(Message{Opcode: OpPong, Payload: frame.Payload})
		}
		return nil
	default:
		msg, err := f.asm.Feed(frame)
		if err != nil {
			return err
		}
		if msg != nil && f.OnMessage != nil {
			return f.OnMessage(*msg)
		}
		return nil
	}
}

// EncodeMessage frames payload for sending, splitting it across
// multiple frames when it exceeds FrameSize.
func (f *Filter) EncodeMessage(opcode Opcode, payload []byte) []byte {
	frames := SplitFrames(opcode, payload, f.FrameSize)

	var out []byte
	for _, fr := range frames {
		out = append(out, EncodeFrame(fr.Fin, fr.Opcode, fr.Payload, nil)...)
	}
	return out
}

// EncodeClose frames a close message with code/reason for sending.
func (f *Filter) EncodeClose(code int, reason string) []byte {
	return EncodeFrame(true, OpClose, EncodeClose(code, reason), nil)
}
