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

// Package monitor implements the threshold-detection/defense chain of
// spec §4.14: per-address and global counters, periodic Monitor checks
// against a Relation/Threshold, and the named Defense/Remedy actions
// (ban/delay/cmd/http/email/log/restart) a breached Monitor fires.
package monitor

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter is one of the named counters spec §4.14 lists, tracked both
// per-address (AddressRecord) and globally (Engine.global).
type Counter uint8

const (
	ActiveClients Counter = iota
	ActiveConnections
	ActiveRequests
	ActiveProcesses
	BadRequestErrors
	Errors
	LimitErrors
	Memory
	NotFoundErrors
	NetworkIO
	Requests
	SSLErrors
	counterCount
)

func (c Counter) String() string {
	switch c {
	case ActiveClients:
		return "ActiveClients"
	case ActiveConnections:
		return "ActiveConnections"
	case ActiveRequests:
		return "ActiveRequests"
	case ActiveProcesses:
		return "ActiveProcesses"
	case BadRequestErrors:
		return "BadRequestErrors"
	case Errors:
		return "Errors"
	case LimitErrors:
		return "LimitErrors"
	case Memory:
		return "Memory"
	case NotFoundErrors:
		return "NotFoundErrors"
	case NetworkIO:
		return "NetworkIO"
	case Requests:
		return "Requests"
	case SSLErrors:
		return "SSLErrors"
	}
	return "unknown"
}

// Relation is the comparison a Monitor runs between a counter's value
// and its configured Threshold.
type Relation uint8

const (
	GreaterThan Relation = iota
	LessThan
)

func (r Relation) compare(value, threshold int64) bool {
	if r == LessThan {
		return value < threshold
	}
	return value > threshold
}

// Monitor is one threshold rule: a counter, a relation, a threshold, a
// period at which it is re-checked, and the defenses to invoke when it
// is exceeded.
type Monitor struct {
	Name      string
	Counter   Counter
	Relation  Relation
	Threshold int64
	Period    time.Duration
	Defenses  []string

	// PerAddress is true for address-scoped counters (iterate the
	// address hash); false for the global counters, compared once.
	PerAddress bool

	lastRun time.Time
}

// Engine owns the global counters, the address hash, the configured
// monitors/defenses, and the periodic ticker that evaluates them.
type Engine struct {
	mu       sync.Mutex
	global   [counterCount]int64
	monitors []*Monitor
	defenses map[string]*Defense
	remedies *RemedyRegistry

	addrs *AddressHash

	metrics *metricsSet
	logFn   func(monitorName, address, message string)

	stop chan struct{}
	wg   sync.WaitGroup
}

// SetLogFunc wires the trace hook the "log" remedy calls; typically a
// thin adapter to a trace.Logger's Warning("monitor.log", ...) call,
// kept as a plain func so this package never imports trace.
func (e *Engine) SetLogFunc(fn func(monitorName, address, message string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logFn = fn
}

// New builds an Engine with its own address hash and the built-in
// remedy registry (ban/delay/cmd/http/email/log/restart).
func New(reg prometheus.Registerer) *Engine {
	e := &Engine{
		defenses: make(map[string]*Defense),
		remedies: NewRemedyRegistry(),
		addrs:    NewAddressHash(),
		stop:     make(chan struct{}),
	}
	e.metrics = newMetricsSet(reg)
	return e
}

// AddMonitor registers a Monitor rule; validation of Defenses
// referring to registered Defense names happens lazily at fire time
// (a Monitor may be added before its defenses, matching a config
// loader that parses monitors and defenses as separate top-level
// sections, per spec §6).
func (e *Engine) AddMonitor(m *Monitor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.monitors = append(e.monitors, m)
}

// AddDefense registers a named Defense.
func (e *Engine) AddDefense(d *Defense) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defenses[d.Name] = d
}

// Remedies exposes the remedy registry so callers may register custom
// remedy functions beyond the seven built-ins.
func (e *Engine) Remedies() *RemedyRegistry { return e.remedies }

// Addresses exposes the address hash (e.g. for Conn's accept path to
// check IsBanned before completing the handshake).
func (e *Engine) Addresses() *AddressHash { return e.addrs }

// IncrGlobal adds delta to a global (non-per-address) counter.
func (e *Engine) IncrGlobal(c Counter, delta int64) {
	e.mu.Lock()
	e.global[c] += delta
	e.mu.Unlock()
	e.metrics.observeGlobal(c, e.global[c])
}

// Global reads a global counter's current value.
func (e *Engine) Global(c Counter) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.global[c]
}

// Incr adds delta to one address's counter, creating the address
// record on first touch.
func (e *Engine) Incr(addr string, c Counter, delta int64) {
	rec := e.addrs.GetOrCreate(addr)
	v := rec.Incr(c, delta)
	e.metrics.observeAddress(addr, c, v)
}

// Start launches the periodic evaluation loop; tick is the scan
// granularity (spec's "a timer fires per period" is modeled as a
// single ticker no coarser than the smallest configured Monitor
// period, scanning each Monitor against its own elapsed Period).
func (e *Engine) Start(tick time.Duration) {
	if tick <= 0 {
		tick = time.Second
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		t := time.NewTicker(tick)
		defer t.Stop()
		for {
			select {
			case <-e.stop:
				return
			case now := <-t.C:
				e.evaluate(now)
				e.prune(now)
			}
		}
	}()
}

// Stop halts the evaluation loop; safe to call even if Start was never
// called.
func (e *Engine) Stop() {
	select {
	case <-e.stop:
		return
	default:
		close(e.stop)
	}
	e.wg.Wait()
}

// evaluate runs every Monitor whose Period has elapsed since lastRun.
func (e *Engine) evaluate(now time.Time) {
	e.mu.Lock()
	monitors := make([]*Monitor, len(e.monitors))
	copy(monitors, e.monitors)
	e.mu.Unlock()

	for _, m := range monitors {
		if m.Period > 0 && now.Sub(m.lastRun) < m.Period {
			continue
		}
		m.lastRun = now

		if m.PerAddress {
			e.evaluatePerAddress(m, now)
		} else {
			v := e.Global(m.Counter)
			if m.Relation.compare(v, m.Threshold) {
				e.fire(m, "", now)
			}
		}
	}
}

func (e *Engine) evaluatePerAddress(m *Monitor, now time.Time) {
	e.addrs.Range(func(addr string, rec *AddressRecord) bool {
		v := rec.Get(m.Counter)
		if m.Relation.compare(v, m.Threshold) {
			e.fire(m, addr, now)
		}
		return true
	})
}

func (e *Engine) fire(m *Monitor, addr string, now time.Time) {
	e.mu.Lock()
	defs := make([]*Defense, 0, len(m.Defenses))
	for _, name := range m.Defenses {
		if d, ok := e.defenses[name]; ok {
			defs = append(defs, d)
		}
	}
	e.mu.Unlock()

	for _, d := range defs {
		fn, ok := e.remedies.Lookup(d.Remedy)
		if !ok {
			continue
		}
		if d.suppressed(addr, now) {
			continue
		}
		_ = fn(RemedyContext{
			Engine:    e,
			Monitor:   m,
			Defense:   d,
			Address:   addr,
			FiredAt:   now,
		})
	}
}

// prune removes address records idle longer than the longest
// configured Monitor period (§5 "Address records are pruned when
// inactive longer than the longest monitor period").
func (e *Engine) prune(now time.Time) {
	e.mu.Lock()
	var longest time.Duration
	for _, m := range e.monitors {
		if m.Period > longest {
			longest = m.Period
		}
	}
	e.mu.Unlock()

	if longest <= 0 {
		return
	}

	e.addrs.Prune(now, longest)
}
