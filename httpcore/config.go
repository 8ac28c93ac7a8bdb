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
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sabouaram/httpcore/handler"
	"github.com/sabouaram/httpcore/monitor"
	"github.com/sabouaram/httpcore/trace"
)

var validate = validator.New()

// RouteConfig is the Go-struct form of one route: pattern, methods,
// the named handler/filters it dispatches to, and the filesystem
// settings the file/dir handlers need when Handler is "file".
type RouteConfig struct {
	Name    string   `validate:"required"`
	Pattern string   `validate:"required"`
	Methods []string `validate:"omitempty,dive,required"`

	// Handler names the registered stage this route's target runs:
	// "file", "dir", "pass", "action:NAME", or "websocket:NAME".
	Handler string `validate:"required"`

	RequiredAbilities []string
	RequireAuth       bool
	RequireSecure     bool
	SessionCookie     string

	// WebSocket tunes the upgrade, used when Handler == "websocket:NAME".
	WebSocket WebSocketConfig

	// Target fields, used when Handler == "pass".
	TargetStatus int
	TargetBody   []byte
	RedirectTo   string

	// File/dir handler settings, used when Handler == "file" or "dir".
	Document handler.Config

	Filters []string
}

// WebSocketConfig tunes the RFC 6455 framing of an upgrade route. A
// zero value is filled in with defaultWSFrameSize/defaultWSMaxMessageSize
// at accept time.
type WebSocketConfig struct {
	FrameSize      int
	MaxMessageSize int64
	PreserveFrames bool
	Protocols      []string
}

// HostConfig is one virtual host: its name/aliases, its routes, and
// its response-cache policy.
type HostConfig struct {
	Name        string `validate:"required"`
	Aliases     []string
	MakeDefault bool

	Routes []RouteConfig `validate:"required,min=1,dive"`

	Mime map[string]string

	// CacheTTL > 0 enables the response cache for GET/HEAD requests; a
	// non-empty CacheableContentTypes limits which responses are stored
	// to those whose Content-Type is listed.
	CacheTTL              time.Duration
	CacheableContentTypes []string
	CacheMaxItemBytes     int64
}

// EndpointConfig is one listener: its bind address, optional TLS, and
// the per-connection limits §4.1/§4.2 describe (header/URI/body
// ceilings, keep-alive budget, idle timeout). TLS/cert loading/cipher
// selection is the host runtime's job (spec.md §1 lists TLS among the
// external collaborators this core only consumes); the Endpoint just
// wraps its listener in the *tls.Config it's handed.
type EndpointConfig struct {
	Name    string `validate:"required"`
	Address string `validate:"required"`

	TLS *tls.Config `validate:"-"`

	MaxURILen         int           `validate:"gte=0"`
	MaxHeaders        int           `validate:"gte=0"`
	MaxBodyBytes      int64         `validate:"gte=0"`
	KeepAliveRequests int           `validate:"gte=0"`
	InactivityTimeout time.Duration `validate:"gte=0"`
	ReadBufferSize    int           `validate:"gte=0"`
}

// Config is the application-supplied description of a complete
// httpcore.Server: one or more listeners, the virtual hosts they share,
// and the ambient subsystems (logging, monitoring/defense, session
// store) wired across all of them.
type Config struct {
	Endpoints []EndpointConfig `validate:"required,min=1,dive"`
	Hosts     []HostConfig     `validate:"required,min=1,dive"`

	Trace trace.Config

	SessionSize int           `validate:"gte=0"`
	SessionTTL  time.Duration `validate:"gte=0"`
	CSRFCookie  string

	Monitors []monitor.Monitor
	Defenses []monitor.Defense

	// MaxConcurrentConns bounds how many connections each Endpoint
	// services at once (one semaphore.Weighted per Endpoint); 0 means
	// unbounded.
	MaxConcurrentConns int64 `validate:"gte=0"`
}

// Validate runs struct-tag validation across the whole config tree,
// then the cross-field checks tags alone cannot express (host names
// unique, route names unique within a host). Route patterns and handler
// names are checked later, when New builds each host.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("httpcore: invalid config: %w", err)
	}

	seenHost := make(map[string]bool)
	for _, h := range c.Hosts {
		key := normalizeHostKey(h.Name)
		if seenHost[key] {
			return fmt.Errorf("httpcore: duplicate host name %q", h.Name)
		}
		seenHost[key] = true

		seenRoute := make(map[string]bool)
		for _, r := range h.Routes {
			if seenRoute[r.Name] {
				return fmt.Errorf("httpcore: host %q: duplicate route name %q", h.Name, r.Name)
			}
			seenRoute[r.Name] = true
		}
	}

	return nil
}

func normalizeHostKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
