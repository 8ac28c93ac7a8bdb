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

	jww "github.com/spf13/jwalterweatherman"
)

// spf13Writer funnels jww's legacy io.Writer-based logging through a
// Logger, for components still wired to jww (config bootstrapping that
// runs before the main trace Logger exists).
type spf13Writer struct {
	l     Logger
	event string
	lvl   Level
}

func (w *spf13Writer) Write(p []byte) (int, error) {
	switch w.lvl {
	case DebugLevel:
		w.l.Debug(w.event, string(p), nil)
	case WarnLevel:
		w.l.Warning(w.event, string(p), nil)
	case ErrorLevel, FatalLevel, PanicLevel:
		w.l.Error(w.event, string(p), nil)
	default:
		w.l.Info(w.event, string(p), nil)
	}
	return len(p), nil
}

// SetSPF13Level points the global jwalterweatherman logger (used by
// config-loading helpers built on spf13/viper-style tooling) at l.
func SetSPF13Level(l Logger, lvl Level) {
	w := &spf13Writer{l: l, event: "jww", lvl: lvl}

	switch lvl {
	case DebugLevel:
		jww.SetLogOutput(w)
		jww.SetLogThreshold(jww.LevelTrace)
	case WarnLevel:
		jww.SetLogOutput(w)
		jww.SetLogThreshold(jww.LevelWarn)
	case ErrorLevel:
		jww.SetLogOutput(w)
		jww.SetLogThreshold(jww.LevelError)
	case FatalLevel:
		jww.SetLogOutput(w)
		jww.SetLogThreshold(jww.LevelFatal)
	case PanicLevel:
		jww.SetLogOutput(w)
		jww.SetLogThreshold(jww.LevelCritical)
	default:
		jww.SetLogOutput(w)
		jww.SetLogThreshold(jww.LevelInfo)
	}

	jww.SetStdoutOutput(io.Discard)
}
