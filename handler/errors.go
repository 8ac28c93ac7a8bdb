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

	liberr "github.com/sabouaram/httpcore/errors"
	"github.com/sabouaram/httpcore/tx"
)

// errNotWriteTarget guards PassHandler against a route wired with a
// Target whose Kind isn't TargetWrite; httpcore's router is the only
// caller and should never construct one otherwise.
var errNotWriteTarget = errors.New("handler: pass target is not a TargetWrite")

// notFound/internalError/methodNotAllowed rewrite txResp as a minimal
// bodyless error response and return the registered liberr.Error so
// the caller's access log/error propagation (spec §7's httpError) sees
// the right CodeError, without this package needing to know how the
// host renders an error document.
func notFound(txResp *tx.Tx, cause error) error {
	txResp.SetStatus(404, "")
	txResp.SetContentLength(0)
	return liberr.CodeNotFoundFile.Error(cause)
}

func internalError(txResp *tx.Tx, cause error) error {
	txResp.SetStatus(500, "")
	txResp.SetContentLength(0)
	return liberr.CodeInternalHandler.Error(cause)
}

// methodNotAllowed rewrites txResp as a bodyless 405 and finalizes the
// response; unlike notFound/internalError this is not itself an error
// the caller needs to propagate, since responding 405 is a valid
// handler outcome.
func methodNotAllowed(txResp *tx.Tx, allow string) error {
	txResp.SetStatus(405, "")
	txResp.SetHeader("Allow", allow)
	txResp.SetContentLength(0)
	return txResp.FinishOutput()
}
