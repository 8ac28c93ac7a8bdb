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
	"fmt"

	"github.com/sabouaram/httpcore/cache"
	"github.com/sabouaram/httpcore/handler"
	"github.com/sabouaram/httpcore/route"
	"github.com/sabouaram/httpcore/router"
)

// hostRuntime pairs a router.Host with the resolved per-route handlers
// and cache policy httpcore's conn loop consults once route.Router.Match
// has picked a route; router.Host itself only knows about route.Router,
// MIME types and the raw response store.
type hostRuntime struct {
	*router.Host

	cfg      HostConfig
	handlers map[string]Handler
	wsRoutes map[string]*wsRoute // route name -> websocket upgrade settings
}

// buildHost compiles cfg into a hostRuntime: every route, its handler,
// and (if CacheTTL > 0) a response cache shared across the host's
// cacheable routes. sockets resolves the "websocket:NAME" handler
// names a RouteConfig may reference, mirroring actions for "action:NAME".
func buildHost(ctx context.Context, cfg HostConfig, actions map[string]handler.Action, sockets map[string]SocketHandler) (*hostRuntime, error) {
	h := router.NewHost(cfg.Name)
	for k, v := range cfg.Mime {
		h.Mime[k] = v
	}

	if cfg.CacheTTL > 0 {
		h.EnableCache(ctx, cfg.CacheTTL)
	}

	hr := &hostRuntime{
		Host:     h,
		cfg:      cfg,
		handlers: make(map[string]Handler, len(cfg.Routes)),
		wsRoutes: make(map[string]*wsRoute),
	}

	for _, rc := range cfg.Routes {
		r, err := buildRoute(rc)
		if err != nil {
			return nil, err
		}
		if err := h.Routes.Add(r); err != nil {
			return nil, fmt.Errorf("httpcore: host %q: %w", cfg.Name, err)
		}

		if name, ok := isWebSocketRoute(rc.Handler); ok {
			fn, ok := sockets[name]
			if !ok {
				return nil, fmt.Errorf("httpcore: host %q: route %q: websocket handler %q not registered", cfg.Name, rc.Name, name)
			}
			hr.wsRoutes[rc.Name] = newWSRoute(rc.WebSocket, fn)
			continue
		}

		hdl, err := buildHandler(rc, actions)
		if err != nil {
			return nil, err
		}
		hr.handlers[rc.Name] = hdl
	}

	return hr, nil
}

// isCacheable reports whether a GET/HEAD response to rt should be
// looked up in / captured to the host's response cache.
func (hr *hostRuntime) isCacheable(rt *route.Route, method, contentType string) bool {
	if hr.Cache == nil {
		return false
	}
	if method != "GET" && method != "HEAD" {
		return false
	}
	if len(hr.cfg.CacheableContentTypes) == 0 {
		return true
	}
	for _, ct := range hr.cfg.CacheableContentTypes {
		if ct == contentType {
			return true
		}
	}
	return false
}

// cacheKey derives the logical cache key for a request against route
// name/path, reusing cache.Entry's key derivation so the format stays
// consistent with the rest of the cache package.
func cacheKey(routeName, path, rawQuery string) string {
	e := cache.Entry{Prefix: routeName + "::"}
	return e.Key(path, rawQuery)
}
