/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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
 *
 *
 */

package cache

import (
	"context"
	"time"

	libatm "github.com/sabouaram/httpcore/atomic"
	cchitm "github.com/sabouaram/httpcore/cache/item"
)

// cc is the concrete implementation behind Cache[K, V]. It embeds
// context.Context so cancelling ctx (passed to New) tears the cache
// down the same way n (its own cancel func) does on Close.
type cc[K comparable, V any] struct {
	context.Context

	n context.CancelFunc
	v libatm.MapTyped[K, cchitm.CacheItem[V]]
	e time.Duration
}

// closed reports whether the cache's context has already been
// cancelled (by Close or by the caller-supplied parent context), in
// which case every operation below treats the cache as empty.
func (o *cc[K, V]) closed() bool {
	return o.Err() != nil
}

// Clone copies every still-valid item into a new cache driven by ctx.
// It refuses to clone an already-cancelled cache.
func (o *cc[K, V]) Clone(ctx context.Context) (Cache[K, V], error) {
	if o.closed() {
		return nil, o.Err()
	}

	out := New[K, V](ctx, o.e)

	o.v.Range(func(key K, val cchitm.CacheItem[V]) bool {
		if v, ok := val.Load(); ok {
			out.Store(key, v)
		}
		return true
	})

	return out, nil
}

// Merge copies every still-valid item of src into o without
// overwriting a key o already holds.
func (o *cc[K, V]) Merge(src Cache[K, V]) {
	if o.closed() {
		return
	}

	src.Walk(func(key K, val V, _ time.Duration) bool {
		if _, _, ok := o.Load(key); !ok {
			o.Store(key, val)
		}
		return true
	})
}

// Walk calls fct for every still-valid item, stopping early if fct
// returns false. Expired items are dropped as they're encountered.
func (o *cc[K, V]) Walk(fct func(K, V, time.Duration) bool) {
	if o.closed() {
		return
	}

	o.v.Range(func(key K, val cchitm.CacheItem[V]) bool {
		v, remain, ok := val.LoadRemain()
		if !ok {
			o.v.Delete(key)
			return true
		}
		return fct(key, v, remain)
	})
}

// Load returns the value for key if present and not expired.
func (o *cc[K, V]) Load(key K) (V, time.Duration, bool) {
	if o.closed() {
		var zero V
		return zero, 0, false
	}

	itm, ok := o.v.Load(key)
	if !ok {
		var zero V
		return zero, 0, false
	}

	v, remain, ok := itm.LoadRemain()
	if !ok {
		o.v.Delete(key)
	}
	return v, remain, ok
}

// Store stores val under key with the cache's configured expiration.
func (o *cc[K, V]) Store(key K, val V) {
	if o.closed() {
		return
	}

	o.v.Store(key, cchitm.New[V](o.e, val))
}

// Delete removes any item stored for key.
func (o *cc[K, V]) Delete(key K) {
	if itm, ok := o.v.LoadAndDelete(key); ok {
		itm.Clean()
	}
}

// LoadOrStore returns the existing valid value for key. On a miss it
// stores val under key and reports the miss (zero value, false) rather
// than echoing val back, mirroring Store's own fire-and-forget shape.
func (o *cc[K, V]) LoadOrStore(key K, val V) (V, time.Duration, bool) {
	if v, remain, ok := o.Load(key); ok {
		return v, remain, true
	}

	o.Store(key, val)

	var zero V
	return zero, 0, false
}

// LoadAndDelete atomically loads then removes the item for key.
func (o *cc[K, V]) LoadAndDelete(key K) (V, bool) {
	if o.closed() {
		var zero V
		return zero, false
	}

	itm, ok := o.v.LoadAndDelete(key)
	if !ok {
		var zero V
		return zero, false
	}

	v, loaded := itm.Load()
	itm.Clean()
	return v, loaded
}

// Swap stores val under key, returning the previous valid value if
// there was one.
func (o *cc[K, V]) Swap(key K, val V) (V, time.Duration, bool) {
	if o.closed() {
		var zero V
		return zero, 0, false
	}

	prev, remain, ok := o.Load(key)
	o.Store(key, val)
	return prev, remain, ok
}
