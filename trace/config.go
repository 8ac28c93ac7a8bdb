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
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
)

// Config is the Trace component's persisted/runtime configuration (§6
// "Trace configure"): file path with size/backup rotation, level,
// format, and the event-to-level map.
type Config struct {
	Path   string `json:"path" yaml:"path" validate:"omitempty,filepath"`
	Size   int64  `json:"size" yaml:"size" validate:"omitempty,min=1"`
	Backup int    `json:"backup" yaml:"backup" validate:"omitempty,min=0"`
	Level  string `json:"level" yaml:"level" validate:"omitempty,oneof=panic fatal error warn info debug"`
	Format string `json:"format" yaml:"format" validate:"omitempty,oneof=json text"`

	// Events maps an event name to the level it should log at,
	// overriding the default per-call level (§6's "event-map").
	Events map[string]string `json:"events" yaml:"events"`

	// Header, if set, is written once at the top of a freshly rotated
	// file (§6 persisted state: "optional header line").
	Header string `json:"header" yaml:"header"`
}

// Validate checks c against its struct tags, matching the
// validator.Struct + ValidationErrors pattern this module's other
// config types use.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if _, ok := err.(*validator.InvalidValidationError); ok {
			return err
		}

		out := fmt.Errorf("trace: config validation failed")
		for _, e := range err.(validator.ValidationErrors) {
			out = fmt.Errorf("%w; field %q fails constraint %q", out, e.Field(), e.ActualTag())
		}
		return out
	}

	return nil
}

// Build constructs a Logger from c, opening (and rotating, if already
// oversized) the configured file, or falling back to stderr when Path
// is empty.
func (c Config) Build() (Logger, error) {
	lvl := ParseLevel(c.Level)

	if c.Path == "" {
		l := New(os.Stderr, lvl)
		c.applyEvents(l)
		return l, nil
	}

	f, err := c.openRotated()
	if err != nil {
		return nil, err
	}

	l := New(f, lvl)
	c.applyEvents(l)
	return l, nil
}

func (c Config) applyEvents(l Logger) {
	gl, ok := l.(*logger)
	if !ok {
		return
	}

	for event, lvlName := range c.Events {
		gl.SetEventLevel(event, ParseLevel(lvlName))
	}
}

// openRotated opens c.Path for append, rotating numbered backups first
// when the existing file is already at or over Size.
func (c Config) openRotated() (*os.File, error) {
	if c.Size > 0 {
		if info, err := os.Stat(c.Path); err == nil && info.Size() >= c.Size {
			if err := c.rotate(); err != nil {
				return nil, err
			}
		}
	}

	f, err := os.OpenFile(c.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("trace: open %q: %w", c.Path, err)
	}

	if c.Header != "" {
		if info, err := f.Stat(); err == nil && info.Size() == 0 {
			_, _ = f.WriteString(c.Header + "\n")
		}
	}

	return f, nil
}

// rotate shifts path, path.1, ... path.(Backup-1) up by one, dropping
// whatever would fall off the end of the backup window.
func (c Config) rotate() error {
	if c.Backup <= 0 {
		return os.Remove(c.Path)
	}

	oldest := fmt.Sprintf("%s.%d", c.Path, c.Backup)
	_ = os.Remove(oldest)

	for i := c.Backup - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", c.Path, i)
		dst := fmt.Sprintf("%s.%d", c.Path, i+1)
		if _, err := os.Stat(src); err == nil {
			_ = os.Rename(src, dst)
		}
	}

	return os.Rename(c.Path, c.Path+".1")
}

// Watcher watches c.Path's directory for external rotation/rename of
// the log file (or, when set up for a certificate pair, a TLS
// cert/key), invoking onChange when the watched file is recreated.
type Watcher struct {
	mu sync.Mutex
	w  *fsnotify.Watcher
}

// Watch starts an fsnotify watch on the directory containing path,
// calling onChange whenever path itself is created, written, or
// renamed into place (log rotation by an external tool, or a
// certificate/key hot-reload per §6).
func Watch(path string, onChange func()) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("trace: fsnotify: %w", err)
	}

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("trace: watch %q: %w", dir, err)
	}

	base := filepath.Base(path)

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
					onChange()
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return &Watcher{w: w}, nil
}

// Close stops the watch.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Close()
}
