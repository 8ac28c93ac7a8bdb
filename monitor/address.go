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

package monitor

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// addressShards is the number of lock stripes the address hash splits
// across; xxhash of the address string picks the shard, the same
// fast-hash choice spec's DOMAIN STACK wiring calls for ("xxhash for
// fast per-address hashing for the Monitor's address hash").
const addressShards = 32

// AddressRecord is one client IP's counters plus ban/delay state.
type AddressRecord struct {
	mu       sync.Mutex
	counters [counterCount]int64
	lastSeen time.Time

	bannedUntil time.Time
	banStatus   int
	banMessage  string

	delay time.Duration
}

// Incr adds delta to one of this record's counters and returns its new
// value; it also refreshes lastSeen so the pruning pass can tell idle
// addresses apart from active ones.
func (r *AddressRecord) Incr(c Counter, delta int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[c] += delta
	r.lastSeen = time.Now()
	return r.counters[c]
}

// Get reads one counter's current value.
func (r *AddressRecord) Get(c Counter) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[c]
}

// Ban marks this address banned until until, with the status/message
// the "ban" remedy should answer with while the ban is active.
func (r *AddressRecord) Ban(until time.Time, status int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bannedUntil = until
	r.banStatus = status
	r.banMessage = message
}

// Banned reports whether this address is currently banned, and if so
// the status/message the remedy configured.
func (r *AddressRecord) Banned(now time.Time) (banned bool, status int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bannedUntil.IsZero() || !now.Before(r.bannedUntil) {
		return false, 0, ""
	}
	return true, r.banStatus, r.banMessage
}

// SetDelay records a per-address delay the "delay" remedy imposes on
// subsequent events from this address.
func (r *AddressRecord) SetDelay(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delay = d
}

// Delay reads the currently configured per-address delay.
func (r *AddressRecord) Delay() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delay
}

func (r *AddressRecord) idleSince(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastSeen.IsZero() {
		return 0
	}
	return now.Sub(r.lastSeen)
}

type shard struct {
	mu   sync.RWMutex
	recs map[string]*AddressRecord
}

// AddressHash is the per-address record table: a process-global,
// sharded, lock-protected map keyed by client address, per spec §5's
// "Address hash (per-IP counters & ban state): lock on read/write
// iteration."
type AddressHash struct {
	shards [addressShards]*shard
}

// NewAddressHash builds an empty address hash.
func NewAddressHash() *AddressHash {
	h := &AddressHash{}
	for i := range h.shards {
		h.shards[i] = &shard{recs: make(map[string]*AddressRecord)}
	}
	return h
}

func (h *AddressHash) shardFor(addr string) *shard {
	sum := xxhash.Sum64String(addr)
	return h.shards[sum%uint64(addressShards)]
}

// GetOrCreate returns the record for addr, creating it on first touch.
func (h *AddressHash) GetOrCreate(addr string) *AddressRecord {
	s := h.shardFor(addr)

	s.mu.RLock()
	rec, ok := s.recs[addr]
	s.mu.RUnlock()
	if ok {
		return rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok = s.recs[addr]; ok {
		return rec
	}
	rec = &AddressRecord{lastSeen: time.Now()}
	s.recs[addr] = rec
	return rec
}

// Get looks up an existing record without creating one.
func (h *AddressHash) Get(addr string) (*AddressRecord, bool) {
	s := h.shardFor(addr)
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[addr]
	return rec, ok
}

// IsBanned is the fast path a connection's accept handler consults
// before completing a handshake (§8 scenario 6: "the 12th TCP connect
// yields a connection-refused response or immediate close").
func (h *AddressHash) IsBanned(addr string, now time.Time) (banned bool, status int, message string) {
	rec, ok := h.Get(addr)
	if !ok {
		return false, 0, ""
	}
	return rec.Banned(now)
}

// Range iterates every address record, holding each shard's read lock
// only for the duration of its own iteration.
func (h *AddressHash) Range(fn func(addr string, rec *AddressRecord) bool) {
	for _, s := range h.shards {
		s.mu.RLock()
		cont := true
		for addr, rec := range s.recs {
			if !fn(addr, rec) {
				cont = false
				break
			}
		}
		s.mu.RUnlock()
		if !cont {
			return
		}
	}
}

// Prune removes every record idle longer than maxIdle.
func (h *AddressHash) Prune(now time.Time, maxIdle time.Duration) {
	for _, s := range h.shards {
		s.mu.Lock()
		for addr, rec := range s.recs {
			if rec.idleSince(now) > maxIdle {
				delete(s.recs, addr)
			}
		}
		s.mu.Unlock()
	}
}

// Len reports the total number of tracked addresses, across shards.
func (h *AddressHash) Len() int {
	n := 0
	for _, s := range h.shards {
		s.mu.RLock()
		n += len(s.recs)
		s.mu.RUnlock()
	}
	return n
}
