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

package trace

import (
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the structured event/access logger every component above
// packet/stage logs through (§4.14's Trace component, the http.Logger
// contract of §6). It wraps a logrus.Logger rather than defining its
// own formatter/hook machinery.
type Logger interface {
	io.Closer

	SetLevel(lvl Level)
	GetLevel() Level

	SetFields(f Fields)
	GetFields() Fields

	Debug(event, message string, f Fields)
	Info(event, message string, f Fields)
	Warning(event, message string, f Fields)
	Error(event, message string, f Fields)

	// Access emits one access-log line for a completed request, per
	// §4.1 processCompletion.
	Access(remoteAddr, method, path string, status int, latency time.Duration)

	// Entry returns a logrus.Entry carrying the logger's default fields,
	// for callers (auth/session/monitor) that want to add ad-hoc fields
	// before logging.
	Entry() *logrus.Entry
}

type logger struct {
	mu     sync.RWMutex
	l      *logrus.Logger
	fields Fields
	events map[string]Level
}

// New builds a Logger writing to out (os.Stdout/os.Stderr typically, or
// the rotated file handle Config.Build opens), at the given default level.
func New(out io.Writer, lvl Level) Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(lvl.Logrus())
	l.SetFormatter(&logrus.JSONFormatter{})

	return &logger{l: l, fields: NewFields(), events: make(map[string]Level)}
}

// SetEventLevel maps event to the level it should log at, per §6's
// "event-map" config entry (Config.Events applies this at construction).
func (g *logger) SetEventLevel(event string, lvl Level) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events[event] = lvl
}

func (g *logger) levelFor(event string, fallback Level) Level {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if lvl, ok := g.events[event]; ok {
		return lvl
	}
	return fallback
}

func (g *logger) SetLevel(lvl Level) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.l.SetLevel(lvl.Logrus())
}

func (g *logger) GetLevel() Level {
	g.mu.RLock()
	defer g.mu.RUnlock()

	switch g.l.GetLevel() {
	case logrus.PanicLevel:
		return PanicLevel
	case logrus.FatalLevel:
		return FatalLevel
	case logrus.ErrorLevel:
		return ErrorLevel
	case logrus.WarnLevel:
		return WarnLevel
	case logrus.DebugLevel, logrus.TraceLevel:
		return DebugLevel
	default:
		return InfoLevel
	}
}

func (g *logger) SetFields(f Fields) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fields = f
}

func (g *logger) GetFields() Fields {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.fields.clone()
}

func (g *logger) entry(event string, f Fields) *logrus.Entry {
	merged := g.GetFields().Merge(f)
	if event != "" {
		merged = merged.Add("event", event)
	}
	return g.l.WithFields(merged.Logrus())
}

func (g *logger) Debug(event, message string, f Fields) {
	g.entry(event, f).Log(g.levelFor(event, DebugLevel).Logrus(), message)
}

func (g *logger) Info(event, message string, f Fields) {
	g.entry(event, f).Log(g.levelFor(event, InfoLevel).Logrus(), message)
}

func (g *logger) Warning(event, message string, f Fields) {
	g.entry(event, f).Log(g.levelFor(event, WarnLevel).Logrus(), message)
}

func (g *logger) Error(event, message string, f Fields) {
	g.entry(event, f).Log(g.levelFor(event, ErrorLevel).Logrus(), message)
}

func (g *logger) Access(remoteAddr, method, path string, status int, latency time.Duration) {
	g.entry("http.access", Fields{
		"remote_addr": remoteAddr,
		"method":      method,
		"path":        path,
		"status":      status,
		"latency_ms":  latency.Milliseconds(),
	}).Info("access")
}

func (g *logger) Entry() *logrus.Entry {
	return g.entry("", nil)
}

func (g *logger) Close() error {
	if w, ok := g.l.Out.(io.Closer); ok {
		return w.Close()
	}
	return nil
}
