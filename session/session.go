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

// Package session implements the in-memory, cache-backed session
// store and CSRF token flow of §4.6: a bounded LRU of map-of-string
// sessions keyed by a random ID, delivered via a cookie, with no
// persistent backing (Non-goals: no database).
package session

import (
	"context"
	"sync"
	"time"

	libctx "github.com/sabouaram/httpcore/context"
)

// DefaultCookieName is the session cookie used when a route doesn't
// set route.Route.SessionCookie.
const DefaultCookieName = "-http-session-"

// Session is one map-of-string session, per §4.6: a lifespan, a dirty
// flag set by every Set, and the data itself kept in the same
// libctx.Config[string] shape rx.Rx.Session already uses so a handler
// reads both through one interface.
type Session struct {
	ID        string
	Data      libctx.Config[string]
	ExpiresAt time.Time

	mu    sync.Mutex
	dirty bool
}

func newSession(id string, ttl time.Duration) *Session {
	return &Session{
		ID:        id,
		Data:      libctx.New[string](context.Background()),
		ExpiresAt: time.Now().Add(ttl),
	}
}

// Get reads key from the session's data.
func (s *Session) Get(key string) (interface{}, bool) {
	return s.Data.Load(key)
}

// Set writes key into the session's data and marks it dirty, so the
// manager knows to write the serialized form back on finalization.
func (s *Session) Set(key string, val interface{}) {
	s.Data.Store(key, val)
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// Dirty reports whether Set has been called since the last ClearDirty.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// ClearDirty resets the dirty flag after the manager has persisted
// (written back to the shared cache) the session.
func (s *Session) ClearDirty() {
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
}

// Expired reports whether the session's lifespan has elapsed.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Renew extends ExpiresAt by ttl from now, called whenever a request
// successfully loads the session.
func (s *Session) Renew(ttl time.Duration) {
	s.ExpiresAt = time.Now().Add(ttl)
}
