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
	"net/http"

	"github.com/sabouaram/httpcore/route"
	"github.com/sabouaram/httpcore/rx"
	"github.com/sabouaram/httpcore/tx"
)

// PassHandler renders a route's canned route.Target (TargetWrite) as
// the response body, the generic "pass" handler the out-of-scope note
// alludes to alongside file/dir/action/cache: a route that answers
// from its own static Target instead of the filesystem or a host
// callback.
type PassHandler struct {
	Target route.Target
}

// NewPassHandler builds a PassHandler against a route's resolved
// Target. Kind other than TargetWrite is a caller error (httpcore only
// wires TargetWrite routes to a PassHandler); Serve rejects it rather
// than guessing an action.
func NewPassHandler(target route.Target) *PassHandler {
	return &PassHandler{Target: target}
}

// Serve writes Target.Body with Target.Status, defaulting to 200.
func (h *PassHandler) Serve(rxReq *rx.Rx, txResp *tx.Tx) error {
	if h.Target.Kind != route.TargetWrite {
		return internalError(txResp, errNotWriteTarget)
	}

	status := h.Target.Status
	if status == 0 {
		status = http.StatusOK
	}

	txResp.SetStatus(status, "")
	txResp.SetContentLength(int64(len(h.Target.Body)))

	if rxReq.Method != http.MethodHead && len(h.Target.Body) > 0 {
		if _, err := txResp.WriteBody(h.Target.Body); err != nil {
			return err
		}
	}

	return txResp.FinishOutput()
}
