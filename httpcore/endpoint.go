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
	"context"
	"crypto/tls"
	"net"

	"golang.org/x/sync/semaphore"

	"github.com/sabouaram/httpcore/trace"
)

// Endpoint owns one bound listener and the goroutine-per-connection
// accept loop serving it, bounded by a semaphore of the Server's
// MaxConcurrentConns weight. Each Endpoint gets its own semaphore, so
// the bound applies per listener, not across all of them.
type Endpoint struct {
	srv *Server
	cfg EndpointConfig

	listener net.Listener
	secure   bool

	sem *semaphore.Weighted

	cancel context.CancelFunc
	done   chan struct{}
}

func newEndpoint(srv *Server, cfg EndpointConfig) (*Endpoint, error) {
	return &Endpoint{srv: srv, cfg: cfg, sem: srv.connSemaphore(), done: make(chan struct{})}, nil
}

// connSemaphore builds a new connection-count semaphore on each call; a
// weight of 0 (Config.MaxConcurrentConns unset) returns nil, which
// disables the bound.
func (s *Server) connSemaphore() *semaphore.Weighted {
	if s.cfg.MaxConcurrentConns <= 0 {
		return nil
	}
	return semaphore.NewWeighted(s.cfg.MaxConcurrentConns)
}

func (ep *Endpoint) start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ep.cfg.Address)
	if err != nil {
		return err
	}

	if ep.cfg.TLS != nil {
		ln = tls.NewListener(ln, ep.cfg.TLS)
		ep.secure = true
	}

	ep.listener = ln

	runCtx, cancel := context.WithCancel(ctx)
	ep.cancel = cancel

	go ep.acceptLoop(runCtx)

	return nil
}

func (ep *Endpoint) acceptLoop(ctx context.Context) {
	defer close(ep.done)

	for {
		conn, err := ep.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				ep.srv.log.Error("endpoint.accept", err.Error(), trace.Fields{"endpoint": ep.cfg.Name})
				return
			}
		}

		if ep.sem != nil {
			if err := ep.sem.Acquire(ctx, 1); err != nil {
				_ = conn.Close()
				continue
			}
		}

		go func() {
			if ep.sem != nil {
				defer ep.sem.Release(1)
			}
			ep.srv.serveConn(ctx, ep, conn)
		}()
	}
}

func (ep *Endpoint) shutdown(ctx context.Context) {
	if ep.cancel != nil {
		ep.cancel()
	}
	if ep.listener != nil {
		_ = ep.listener.Close()
	}

	select {
	case <-ep.done:
	case <-ctx.Done():
	}
}
