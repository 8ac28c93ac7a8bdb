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
	"fmt"
	"io"

	"github.com/fatih/color"
)

// levelColor maps each Level to the console color a dev-mode console
// hook prints it in; nil means "no color" (plain stdlib print).
var levelColor = map[Level]*color.Color{
	PanicLevel: color.New(color.FgHiWhite, color.BgRed, color.Bold),
	FatalLevel: color.New(color.FgRed, color.Bold),
	ErrorLevel: color.New(color.FgRed),
	WarnLevel:  color.New(color.FgYellow),
	InfoLevel:  color.New(color.FgCyan),
	DebugLevel: color.New(color.FgHiBlack),
}

// ConsoleHook writes a one-line, color-coded rendering of each entry to
// out, for local/dev use alongside (not instead of) the JSON logger.
type ConsoleHook struct {
	out io.Writer
}

// NewConsoleHook builds a ConsoleHook writing to out.
func NewConsoleHook(out io.Writer) *ConsoleHook {
	return &ConsoleHook{out: out}
}

// Write renders one line: "[LEVEL] event: message".
func (h *ConsoleHook) Write(lvl Level, event, message string) {
	c := levelColor[lvl]
	line := fmt.Sprintf("[%s] %s: %s\n", lvl.String(), event, message)

	if c == nil {
		_, _ = fmt.Fprint(h.out, line)
		return
	}

	_, _ = c.Fprint(h.out, line)
}
