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

// Package httpcore assembles the lower conn/rx/tx/route/router/handler/
// auth/session/monitor/websocket packages into an embeddable HTTP/1.1
// server: Config in, a running Server with one goroutine per accepted
// connection out.
package httpcore

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sabouaram/httpcore/auth"
	"github.com/sabouaram/httpcore/handler"
	"github.com/sabouaram/httpcore/monitor"
	"github.com/sabouaram/httpcore/router"
	"github.com/sabouaram/httpcore/session"
	"github.com/sabouaram/httpcore/trace"
)

// Server is the running instance of one Config: the virtual-host
// table, the shared session/auth/monitor subsystems, and the set of
// listening Endpoints serving them.
type Server struct {
	cfg Config

	log      trace.Logger
	hosts    *router.Router
	runtimes map[*router.Host]*hostRuntime
	sessions *session.Manager
	authn    *auth.Authenticator
	monitor  *monitor.Engine

	seqno uint64

	endpoints []*Endpoint
}

// New validates cfg, builds every virtual host and the shared
// subsystems it depends on, and returns a Server ready for Start.
// actions resolves the "action:NAME" handler names a RouteConfig may
// reference; sockets resolves "websocket:NAME" handler names the same
// way. authn may be nil (routes with RequireAuth then always reject,
// and AutoLogin routes are unreachable).
func New(cfg Config, actions map[string]handler.Action, sockets map[string]SocketHandler, authn *auth.Authenticator) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := cfg.Trace.Build()
	if err != nil {
		return nil, fmt.Errorf("httpcore: trace config: %w", err)
	}

	sessions, err := session.NewManager(cfg.SessionSize, cfg.SessionTTL, cfg.CSRFCookie, log)
	if err != nil {
		return nil, fmt.Errorf("httpcore: session manager: %w", err)
	}

	// A fresh Registry rather than prometheus.DefaultRegisterer: Server.New
	// may run more than once in a process (tests, config reload), and
	// DefaultRegisterer panics on the second registration of the same
	// collector names.
	mon := monitor.New(prometheus.NewRegistry())
	mon.SetLogFunc(func(name, addr, message string) {
		log.Warning("monitor.fire", message, trace.Fields{"monitor": name, "remote_addr": addr})
	})
	for _, m := range cfg.Monitors {
		m := m
		mon.AddMonitor(&m)
	}
	for _, d := range cfg.Defenses {
		d := d
		mon.AddDefense(&d)
	}

	hosts := router.New()
	runtimes := make(map[*router.Host]*hostRuntime, len(cfg.Hosts))
	for _, hc := range cfg.Hosts {
		hr, err := buildHost(context.Background(), hc, actions, sockets)
		if err != nil {
			return nil, err
		}

		hosts.AddHost(hr.Host, hc.MakeDefault, hc.Aliases...)
		runtimes[hr.Host] = hr
	}

	s := &Server{
		cfg:      cfg,
		log:      log,
		hosts:    hosts,
		runtimes: runtimes,
		sessions: sessions,
		authn:    authn,
		monitor:  mon,
	}

	for _, ec := range cfg.Endpoints {
		ep, err := newEndpoint(s, ec)
		if err != nil {
			return nil, err
		}
		s.endpoints = append(s.endpoints, ep)
	}

	return s, nil
}

// Start binds and begins accepting on every configured Endpoint. It
// returns once every listener is up; serving itself continues in
// background goroutines until ctx is done or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.monitor.Start(0)

	for _, ep := range s.endpoints {
		if err := ep.start(ctx); err != nil {
			return fmt.Errorf("httpcore: endpoint %q: %w", ep.cfg.Name, err)
		}
	}

	return nil
}

// Shutdown stops accepting new connections on every Endpoint and waits,
// bounded by ctx, for each Endpoint's accept loop to exit. Connections
// already being served are not waited for.
func (s *Server) Shutdown(ctx context.Context) error {
	s.monitor.Stop()

	for _, ep := range s.endpoints {
		ep.shutdown(ctx)
	}

	return s.log.Close()
}

// hostRuntimeFor resolves the hostRuntime serving hostHeader (the
// request's Host header), falling back to the configured default host.
func (s *Server) hostRuntimeFor(hostHeader string) *hostRuntime {
	h := s.hosts.Lookup(hostHeader)
	if h == nil {
		return nil
	}
	return s.runtimes[h]
}

func (s *Server) nextSeqno() uint64 {
	return atomic.AddUint64(&s.seqno, 1)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
