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
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Defense is a named remedy invocation: which Remedy function to run
// and the parameter map it runs with, per spec §4.14.
type Defense struct {
	Name   string
	Remedy string
	Params map[string]string

	// Suppress bounds how often this Defense may fire for the same
	// address within a window ("Remedies may suppress repeats within a
	// configured window").
	Suppress time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func (d *Defense) suppressed(addr string, now time.Time) bool {
	if d.Suppress <= 0 {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		d.last = make(map[string]time.Time)
	}

	if t, ok := d.last[addr]; ok && now.Sub(t) < d.Suppress {
		return true
	}
	d.last[addr] = now
	return false
}

// RemedyContext is what a RemedyFunc receives when its Defense fires.
type RemedyContext struct {
	Engine  *Engine
	Monitor *Monitor
	Defense *Defense
	Address string
	FiredAt time.Time
}

// Param reads a defense parameter, expanding "{address}" and
// "{monitor}" template tokens the way route targets expand "{name}"
// tokens (§4.4), since remedy args are frequently address-specific
// (e.g. a firewall cmd's argument list).
func (c RemedyContext) Param(key string) string {
	v := c.Defense.Params[key]
	v = strings.ReplaceAll(v, "{address}", c.Address)
	v = strings.ReplaceAll(v, "{monitor}", c.Monitor.Name)
	return v
}

// RemedyFunc performs one Defense's action.
type RemedyFunc func(ctx RemedyContext) error

// RemedyRegistry is the name->RemedyFunc lookup, seeded with the seven
// built-in remedies spec §4.14 names (ban/delay/cmd/http/email/log/
// restart); callers may RegisterRemedy additional ones.
type RemedyRegistry struct {
	mu      sync.RWMutex
	remedy  map[string]RemedyFunc
	restart func() error
}

// NewRemedyRegistry builds a registry pre-populated with the built-ins.
func NewRemedyRegistry() *RemedyRegistry {
	r := &RemedyRegistry{remedy: make(map[string]RemedyFunc)}
	r.RegisterRemedy("ban", remedyBan)
	r.RegisterRemedy("delay", remedyDelay)
	r.RegisterRemedy("cmd", remedyCmd)
	r.RegisterRemedy("http", remedyHTTP)
	r.RegisterRemedy("email", remedyEmail)
	r.RegisterRemedy("log", remedyLog)
	r.RegisterRemedy("restart", r.remedyRestart)
	return r
}

// RegisterRemedy adds (or replaces) a named remedy.
func (r *RemedyRegistry) RegisterRemedy(name string, fn RemedyFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remedy[name] = fn
}

// Lookup resolves a remedy by name.
func (r *RemedyRegistry) Lookup(name string) (RemedyFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.remedy[name]
	return fn, ok
}

// SetRestartFunc wires the process-restart hook the "restart" remedy
// invokes; the core has no opinion on how a restart is performed (exec
// re-invocation, supervisor signal, …), so the embedding application
// supplies it. A nil hook makes "restart" a silent no-op instead of
// panicking on a missing callback.
func (r *RemedyRegistry) SetRestartFunc(fn func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restart = fn
}

func remedyBan(ctx RemedyContext) error {
	if ctx.Address == "" {
		return nil
	}

	duration := parseDuration(ctx.Param("duration"), time.Hour)
	status := parseInt(ctx.Param("status"), 403)
	message := ctx.Param("message")
	if message == "" {
		message = "Forbidden"
	}

	rec := ctx.Engine.addrs.GetOrCreate(ctx.Address)
	rec.Ban(ctx.FiredAt.Add(duration), status, message)

	if ctx.Engine != nil {
		ctx.Engine.metrics.observeBan(ctx.Address)
	}

	return nil
}

func remedyDelay(ctx RemedyContext) error {
	if ctx.Address == "" {
		return nil
	}

	d := parseDuration(ctx.Param("delay"), 100*time.Millisecond)
	rec := ctx.Engine.addrs.GetOrCreate(ctx.Address)
	rec.SetDelay(d)
	return nil
}

func remedyCmd(ctx RemedyContext) error {
	bin := ctx.Param("cmd")
	if bin == "" {
		return fmt.Errorf("monitor: cmd remedy missing %q param", "cmd")
	}

	var args []string
	if raw := ctx.Param("args"); raw != "" {
		args = strings.Fields(raw)
	}

	return exec.Command(bin, args...).Run()
}

func remedyHTTP(ctx RemedyContext) error {
	url := ctx.Param("url")
	if url == "" {
		return fmt.Errorf("monitor: http remedy missing %q param", "url")
	}

	method := strings.ToUpper(ctx.Param("method"))
	if method == "" {
		method = "GET"
	}

	return doRemedyRequest(method, url)
}

func remedyEmail(ctx RemedyContext) error {
	to := ctx.Param("to")
	if to == "" {
		return fmt.Errorf("monitor: email remedy missing %q param", "to")
	}

	subject := ctx.Param("subject")
	if subject == "" {
		subject = fmt.Sprintf("monitor %s fired for %s", ctx.Monitor.Name, ctx.Address)
	}
	body := ctx.Param("body")

	cmd := exec.Command("sendmail", "-t")
	cmd.Stdin = strings.NewReader(fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n", to, subject, body))
	return cmd.Run()
}

func remedyLog(ctx RemedyContext) error {
	// The actual write happens through Engine's trace hook, set via
	// SetLogFunc; a nil hook makes "log" a documented no-op rather than
	// panicking, matching "restart"'s nil-hook behavior.
	if ctx.Engine.logFn != nil {
		ctx.Engine.logFn(ctx.Monitor.Name, ctx.Address, ctx.Param("message"))
	}
	return nil
}

func (r *RemedyRegistry) remedyRestart(ctx RemedyContext) error {
	if r.restart == nil {
		return nil
	}
	return r.restart()
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	n := 0
	neg := false
	for i, r := range s {
		if i == 0 && r == '-' {
			neg = true
			continue
		}
		if r < '0' || r > '9' {
			return def
		}
		n = n*10 + int(r-'0')
	}
	if neg {
		n = -n
	}
	return n
}
