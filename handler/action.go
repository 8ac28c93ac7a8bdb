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

package handler

import (
	"errors"

	"github.com/sabouaram/httpcore/rx"
	"github.com/sabouaram/httpcore/tx"
)

// errNoActionFn guards ActionHandler against being wired with a nil Fn.
var errNoActionFn = errors.New("handler: action handler has no callback registered")

// Action is a host-registered callback an ActionHandler dispatches to,
// analogous to Apache's mod_actions: the handler does no interpretation
// of the request itself, only routes it to application code that owns
// rxReq/txResp for the rest of the exchange.
type Action func(rxReq *rx.Rx, txResp *tx.Tx) error

// ActionHandler is the generic "run host app code" handler the
// out-of-scope note names alongside file/pass/dir/cache: routes whose
// behavior isn't expressible as a canned Target or a filesystem lookup
// delegate to a Fn the host registered at startup.
type ActionHandler struct {
	Fn Action
}

// NewActionHandler builds an ActionHandler around fn. fn must not be
// nil; Serve returns an internal error rather than panicking if it is,
// since a nil Fn is a wiring bug in httpcore's router setup, not a
// request-time condition.
func NewActionHandler(fn Action) *ActionHandler {
	return &ActionHandler{Fn: fn}
}

func (h *ActionHandler) Serve(rxReq *rx.Rx, txResp *tx.Tx) error {
	if h.Fn == nil {
		return internalError(txResp, errNoActionFn)
	}
	return h.Fn(rxReq, txResp)
}
