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

// Package cache implements the response-caching handler/filter: a
// route's HttpCache entries decide, per request, whether to serve a
// previously captured response or capture the current one, keyed by a
// fingerprint of method, path, optional query, and content type.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Entry configures one HttpCache matcher attached to a route.
type Entry struct {
	Name string

	Methods      []string
	URIPattern   string // compiled against route.Pattern upstream; stored here as the raw source for key derivation
	Extensions   []string
	ContentTypes []string

	// Unique includes the query string in the cache key when true.
	Unique bool

	// Client, when > 0, emits Cache-Control/Expires for max-age seconds.
	Client time.Duration

	// Server enables server-side capture/replay.
	Server bool

	// ItemMaxSize aborts caching for a response whose body exceeds
	// this many bytes; 0 means unbounded.
	ItemMaxSize int64

	Prefix string
}

// Matches reports whether e applies to the given request method, path
// and content type.
func (e *Entry) Matches(method, path, contentType string) bool {
	if len(e.Methods) > 0 && !containsFold(e.Methods, method) {
		return false
	}

	if len(e.Extensions) > 0 {
		ok := false
		for _, ext := range e.Extensions {
			if strings.HasSuffix(path, ext) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}

	if len(e.ContentTypes) > 0 && contentType != "" && !containsFold(e.ContentTypes, contentType) {
		return false
	}

	return true
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// Key renders the logical cache key for a request matched by e:
// "http::response::PREFIX+PATH" or, with Unique set,
// "http::response::PREFIX+PATH?QUERY".
func (e *Entry) Key(path, rawQuery string) string {
	if e.Unique && rawQuery != "" {
		return fmt.Sprintf("http::response::%s%s?%s", e.Prefix, path, rawQuery)
	}

	return fmt.Sprintf("http::response::%s%s", e.Prefix, path)
}

// hashKey folds the human-readable logical key down to a fixed-size
// lookup key via xxhash, so the in-memory store does not retain the
// (potentially large, query-bearing) string itself as its map key.
func hashKey(key string) uint64 {
	return xxhash.Sum64String(key)
}

// Item is a captured response ready to be replayed.
type Item struct {
	Status      int
	Headers     map[string][]string
	Body        []byte
	ETag        string
	LastMod     time.Time
	ContentType string
}

// ResponseStore is the in-memory capture/replay store shared by a
// Host's routes, built atop the package's generic TTL Cache so expired
// captures are reclaimed the same way any other cached value is. Safe
// for concurrent use.
type ResponseStore struct {
	c Cache[uint64, *Item]
}

// NewResponseStore builds an empty ResponseStore whose entries expire
// after ttl (0 means entries never expire on their own and are only
// ever replaced or explicitly deleted).
func NewResponseStore(ctx context.Context, ttl time.Duration) *ResponseStore {
	return &ResponseStore{c: New[uint64, *Item](ctx, ttl)}
}

// Get looks up a previously stored Item by its logical key.
func (s *ResponseStore) Get(key string) (*Item, bool) {
	it, _, ok := s.c.Load(hashKey(key))
	return it, ok
}

// Put stores it under key, unless len(it.Body) exceeds maxSize (maxSize
// <= 0 means unbounded), in which case Put is a no-op and ok is false.
func (s *ResponseStore) Put(key string, it *Item, maxSize int64) (ok bool) {
	if maxSize > 0 && int64(len(it.Body)) > maxSize {
		return false
	}

	s.c.Store(hashKey(key), it)
	return true
}

// Delete removes any stored Item under key.
func (s *ResponseStore) Delete(key string) {
	s.c.Delete(hashKey(key))
}

// Close closes the backing cache, cancelling its context.
func (s *ResponseStore) Close() error {
	return s.c.Close()
}

// NotModified reports whether req's conditional headers (If-None-Match,
// If-Modified-Since) indicate the client already holds it, so the
// caller should respond 304 rather than replay the full body.
func NotModified(it *Item, ifNoneMatch string, ifModifiedSince time.Time) bool {
	if ifNoneMatch != "" && it.ETag != "" {
		for _, tag := range strings.Split(ifNoneMatch, ",") {
			if strings.TrimSpace(tag) == it.ETag || strings.TrimSpace(tag) == "*" {
				return true
			}
		}
	}

	if !ifModifiedSince.IsZero() && !it.LastMod.IsZero() {
		return !it.LastMod.After(ifModifiedSince)
	}

	return false
}

// CacheControlHeader renders "public, max-age=N" for client-side caching.
func CacheControlHeader(maxAge time.Duration) string {
	return fmt.Sprintf("public, max-age=%d", int64(maxAge.Seconds()))
}
