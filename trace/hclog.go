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
	"log"

	"github.com/hashicorp/go-hclog"
)

// hcAdapter lets auth/cache backends that expect an hclog.Logger (e.g.
// a pluggable system auth store wired to a PAM library) log through the
// same Logger every other component uses.
type hcAdapter struct {
	l    Logger
	name string
	args []interface{}
}

// HCLog wraps l as an hclog.Logger.
func HCLog(l Logger) hclog.Logger {
	return &hcAdapter{l: l}
}

func (h *hcAdapter) fields(args []interface{}) Fields {
	f := NewFields()
	for i := 0; i+1 < len(args); i += 2 {
		if k, ok := args[i].(string); ok {
			f[k] = args[i+1]
		}
	}
	for i := 0; i+1 < len(h.args); i += 2 {
		if k, ok := h.args[i].(string); ok {
			f[k] = h.args[i+1]
		}
	}
	return f
}

func (h *hcAdapter) Log(level hclog.Level, msg string, args ...interface{}) {
	switch level {
	case hclog.Off, hclog.NoLevel:
		return
	case hclog.Trace, hclog.Debug:
		h.l.Debug("hclog", msg, h.fields(args))
	case hclog.Warn:
		h.l.Warning("hclog", msg, h.fields(args))
	case hclog.Error:
		h.l.Error("hclog", msg, h.fields(args))
	default:
		h.l.Info("hclog", msg, h.fields(args))
	}
}

func (h *hcAdapter) Trace(msg string, args ...interface{}) { h.l.Debug("hclog", msg, h.fields(args)) }
func (h *hcAdapter) Debug(msg string, args ...interface{}) { h.l.Debug("hclog", msg, h.fields(args)) }
func (h *hcAdapter) Info(msg string, args ...interface{})  { h.l.Info("hclog", msg, h.fields(args)) }
func (h *hcAdapter) Warn(msg string, args ...interface{})  { h.l.Warning("hclog", msg, h.fields(args)) }
func (h *hcAdapter) Error(msg string, args ...interface{}) { h.l.Error("hclog", msg, h.fields(args)) }

func (h *hcAdapter) IsTrace() bool { return h.l.GetLevel() == DebugLevel }
func (h *hcAdapter) IsDebug() bool { return h.l.GetLevel() >= DebugLevel }
func (h *hcAdapter) IsInfo() bool  { return h.l.GetLevel() >= InfoLevel }
func (h *hcAdapter) IsWarn() bool  { return h.l.GetLevel() >= WarnLevel }
func (h *hcAdapter) IsError() bool { return h.l.GetLevel() >= ErrorLevel }

func (h *hcAdapter) ImpliedArgs() []interface{} { return h.args }

func (h *hcAdapter) With(args ...interface{}) hclog.Logger {
	return &hcAdapter{l: h.l, name: h.name, args: append(append([]interface{}{}, h.args...), args...)}
}

func (h *hcAdapter) Name() string { return h.name }

func (h *hcAdapter) Named(name string) hclog.Logger {
	n := h.name
	if n != "" {
		n += "."
	}
	n += name
	return &hcAdapter{l: h.l, name: n, args: h.args}
}

func (h *hcAdapter) ResetNamed(name string) hclog.Logger {
	return &hcAdapter{l: h.l, name: name, args: h.args}
}

func (h *hcAdapter) SetLevel(level hclog.Level) {
	switch level {
	case hclog.Trace, hclog.Debug:
		h.l.SetLevel(DebugLevel)
	case hclog.Warn:
		h.l.SetLevel(WarnLevel)
	case hclog.Error:
		h.l.SetLevel(ErrorLevel)
	default:
		h.l.SetLevel(InfoLevel)
	}
}

func (h *hcAdapter) GetLevel() hclog.Level {
	switch h.l.GetLevel() {
	case DebugLevel:
		return hclog.Debug
	case WarnLevel:
		return hclog.Warn
	case ErrorLevel, FatalLevel, PanicLevel:
		return hclog.Error
	default:
		return hclog.Info
	}
}

func (h *hcAdapter) StandardLogger(opts *hclog.StandardLoggerOptions) *log.Logger {
	return log.New(h.StandardWriter(opts), "", 0)
}

func (h *hcAdapter) StandardWriter(_ *hclog.StandardLoggerOptions) io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		h.l.Info("hclog", string(p), nil)
		return len(p), nil
	})
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

var _ hclog.Logger = (*hcAdapter)(nil)
