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
	"fmt"
	"strings"

	"github.com/sabouaram/httpcore/handler"
	"github.com/sabouaram/httpcore/route"
	"github.com/sabouaram/httpcore/rx"
	"github.com/sabouaram/httpcore/tx"
)

// Handler is the terminal stage a matched route's Target resolves to,
// once routing/auth/session have already run. handler.FileHandler,
// handler.PassHandler and handler.ActionHandler all satisfy it as-is.
type Handler interface {
	Serve(rxReq *rx.Rx, txResp *tx.Tx) error
}

const websocketHandlerPrefix = "websocket:"
const actionHandlerPrefix = "action:"

// isWebSocketRoute reports whether rc names an upgrade route; these
// never resolve to a Handler — serveConn switches the connection into
// the websocket.Filter pass-through once the handshake completes.
func isWebSocketRoute(handlerName string) (name string, ok bool) {
	if strings.HasPrefix(handlerName, websocketHandlerPrefix) {
		return strings.TrimPrefix(handlerName, websocketHandlerPrefix), true
	}
	return "", false
}

// buildHandler resolves a route's Handler name into a Handler instance.
// actions is the application's registered action callbacks, keyed by
// the name following "action:".
func buildHandler(rc RouteConfig, actions map[string]handler.Action) (Handler, error) {
	switch {
	case rc.Handler == "file" || rc.Handler == "dir":
		doc := rc.Document
		dir := handler.NewDirHandler(&doc)
		return handler.NewFileHandler(&doc, dir), nil

	case rc.Handler == "pass":
		target := route.Target{Kind: route.TargetWrite, Status: rc.TargetStatus, Body: rc.TargetBody}
		return handler.NewPassHandler(target), nil

	case strings.HasPrefix(rc.Handler, actionHandlerPrefix):
		name := strings.TrimPrefix(rc.Handler, actionHandlerPrefix)
		fn, ok := actions[name]
		if !ok {
			return nil, fmt.Errorf("httpcore: route %q references unregistered action %q", rc.Name, name)
		}
		return handler.NewActionHandler(fn), nil

	default:
		if _, ok := isWebSocketRoute(rc.Handler); ok {
			return nil, nil
		}
		return nil, fmt.Errorf("httpcore: route %q has unknown handler %q", rc.Name, rc.Handler)
	}
}

// buildRoute compiles rc into a *route.Route. An empty Pattern builds
// the catch-all default route (nil Pattern, tried last by
// route.Router.matchOnce).
func buildRoute(rc RouteConfig) (*route.Route, error) {
	r := &route.Route{
		Name:              rc.Name,
		Handler:           rc.Handler,
		Filters:           rc.Filters,
		RequiredAbilities: rc.RequiredAbilities,
		SessionCookie:     rc.SessionCookie,
		Conditions:        buildConditions(rc),
	}

	if rc.Methods != nil {
		r.Methods = make(map[string]bool, len(rc.Methods))
		for _, m := range rc.Methods {
			r.Methods[strings.ToUpper(m)] = true
		}
	}

	if rc.Pattern != "" && rc.Pattern != "*" {
		p, err := route.CompilePattern(rc.Pattern)
		if err != nil {
			return nil, fmt.Errorf("httpcore: route %q: %w", rc.Name, err)
		}
		r.Pattern = p
	}

	if rc.RedirectTo != "" {
		r.Target = route.Target{Kind: route.TargetRedirect, Template: rc.RedirectTo, Status: rc.TargetStatus}
	} else if rc.Handler == "pass" {
		r.Target = route.Target{Kind: route.TargetWrite, Status: rc.TargetStatus, Body: rc.TargetBody}
	} else {
		r.Target = route.Target{Kind: route.TargetRun}
	}

	return r.Finalize(), nil
}
