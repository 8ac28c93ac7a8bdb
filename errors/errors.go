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

// Package errors implements the error-kind taxonomy of the core: every
// error produced by the pipeline carries a registered CodeError so the
// status-code mapping and the human message stay attached to the value
// instead of being re-derived at the call site.
package errors

import (
	"fmt"
	"sync"
)

// CodeError is a registered numeric error kind. Kinds are grouped by the
// error-kind taxonomy: Parse=1xxx, Limit=2xxx, Auth=3xxx, NotFound=4xxx,
// Comms=5xxx, Timeout=6xxx, Internal=7xxx.
type CodeError uint16

// UNK_ERROR is the zero value of CodeError, used when a wrapped error has
// no registered kind of its own.
const UNK_ERROR CodeError = 0

const (
	CodeParseRequestLine CodeError = 1000 + iota
	CodeParseHeader
	CodeParseChunk
	CodeParseURI
	CodeParseWebSocketFrame
)

const (
	CodeLimitURI CodeError = 2000 + iota
	CodeLimitHeader
	CodeLimitBody
	CodeLimitForm
	CodeLimitUpload
	CodeLimitRequests
)

const (
	CodeAuthMissing CodeError = 3000 + iota
	CodeAuthInvalid
	CodeAuthForbidden
	CodeAuthNonceExpired
)

const (
	CodeNotFoundRoute CodeError = 4000 + iota
	CodeNotFoundFile
)

const (
	CodeCommsRead CodeError = 5000 + iota
	CodeCommsWrite
	CodeCommsClosed
)

const (
	CodeTimeoutParse CodeError = 6000 + iota
	CodeTimeoutInactivity
	CodeTimeoutRequest
)

const (
	CodeInternalState CodeError = 7000 + iota
	CodeInternalHandler
)

// FuncMessage renders a human-readable message for a registered code.
type FuncMessage func(code CodeError) string

var (
	mu       sync.RWMutex
	messages = make(map[CodeError]FuncMessage)
	statuses = make(map[CodeError]int)
)

// RegisterIdFctMessage registers (or replaces) the message function for a
// code. Packages call this from an init() so Error.Error() never returns
// a bare numeric code.
func RegisterIdFctMessage(code CodeError, fct FuncMessage) {
	mu.Lock()
	defer mu.Unlock()
	messages[code] = fct
}

// RegisterStatus attaches the HTTP status this code should map to when it
// surfaces as a response.
func RegisterStatus(code CodeError, status int) {
	mu.Lock()
	defer mu.Unlock()
	statuses[code] = status
}

// ExistInMapMessage reports whether a message function is registered for code.
func ExistInMapMessage(code CodeError) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := messages[code]
	return ok
}

// StatusOf returns the registered HTTP status for code, or 0 if none
// (comms-level errors have no status: the socket is simply closed).
func StatusOf(code CodeError) int {
	mu.RLock()
	defer mu.RUnlock()
	return statuses[code]
}

func messageOf(code CodeError) string {
	mu.RLock()
	fct, ok := messages[code]
	mu.RUnlock()

	if !ok || fct == nil {
		return fmt.Sprintf("error %d", uint16(code))
	}

	return fct(code)
}

// Error is a CodeError value plus an optional chain of parent errors. It
// implements the standard error interface and Unwrap so callers may use
// errors.Is/As from the standard library against it.
type Error interface {
	error
	Code() CodeError
	HasParent() bool
	Parent() []error
	AddParent(err ...error) Error
	Unwrap() error
}

type impl struct {
	code   CodeError
	extra  string
	parent []error
}

// New builds an Error for code, optionally appending a free-form detail
// string to the registered message (e.g. the offending header name).
func New(code CodeError, extra string) Error {
	return &impl{code: code, extra: extra}
}

// NewErrorRecovered builds an InternalError from a recovered panic value,
// keeping the panic text as the extra detail and the prior errors (if any)
// as parents.
func NewErrorRecovered(message string, recovered interface{}, parent ...error) Error {
	return &impl{
		code:   CodeInternalState,
		extra:  fmt.Sprintf("%s: %v", message, recovered),
		parent: parent,
	}
}

// Error builds an Error value for this code, attaching the given parents
// (nil entries are ignored). This mirrors the CodeError.Error(parent...)
// call convention used throughout the package-local error constants.
func (c CodeError) Error(parent ...error) Error {
	return New(c, "").AddParent(parent...)
}

func (e *impl) Code() CodeError { return e.code }

func (e *impl) Error() string {
	m := messageOf(e.code)

	if e.extra != "" {
		m = m + ": " + e.extra
	}

	for _, p := range e.parent {
		if p != nil {
			m = m + " <- " + p.Error()
		}
	}

	return m
}

func (e *impl) HasParent() bool { return len(e.parent) > 0 }

func (e *impl) Parent() []error { return e.parent }

func (e *impl) AddParent(err ...error) Error {
	for _, p := range err {
		if p != nil {
			e.parent = append(e.parent, p)
		}
	}
	return e
}

func (e *impl) Unwrap() error {
	if len(e.parent) == 0 {
		return nil
	}
	return e.parent[0]
}
