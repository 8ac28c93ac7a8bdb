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
	"sync"
	"time"
)

// Pinger schedules periodic pings on an established connection, per
// §4.13 ("server may schedule periodic pings when configured"). The
// actual frame write is the caller's send func; Pinger only owns
// timing and records the most recent ping payload in pending. Received
// pongs are not compared against it.
type Pinger struct {
	Interval time.Duration
	Send     func(payload []byte) error

	mu      sync.Mutex
	stop    chan struct{}
	pending []byte
}

// Start launches the periodic ping loop; a zero Interval disables it.
func (p *Pinger) Start() {
	if p.Interval <= 0 || p.Send == nil {
		return
	}

	p.mu.Lock()
	if p.stop != nil {
		p.mu.Unlock()
		return
	}
	p.stop = make(chan struct{})
	stop := p.stop
	p.mu.Unlock()

	go func() {
		t := time.NewTicker(p.Interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case now := <-t.C:
				payload := []byte(now.Format(time.RFC3339Nano))
				p.mu.Lock()
				p.pending = payload
				p.mu.Unlock()
				_ = p.Send(payload)
			}
		}
	}()
}

// Stop halts the ping loop; safe to call multiple times or without a
// prior Start.
func (p *Pinger) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == nil {
		return
	}
	close(p.stop)
	p.stop = nil
}

// Pong answers a received Ping frame with an identical payload, per
// §4.13 ("response is a pong with identical payload").
func Pong(payload []byte) Frame {
	return Frame{Fin: true, Opcode: OpPong, Payload: payload}
}
