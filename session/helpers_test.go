package session

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sabouaram/httpcore/trace"
)

// recordingLogger is a minimal trace.Logger that only records the
// event names it was asked to log, enough to assert that
// session.evict/request.xsrf.error fired without driving a real
// logrus pipeline.
type recordingLogger struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingLogger) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingLogger) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func (r *recordingLogger) Close() error                  { return nil }
func (r *recordingLogger) SetLevel(trace.Level)          {}
func (r *recordingLogger) GetLevel() trace.Level         { return trace.InfoLevel }
func (r *recordingLogger) SetFields(trace.Fields)        {}
func (r *recordingLogger) GetFields() trace.Fields       { return trace.NewFields() }
func (r *recordingLogger) Debug(event, _ string, _ trace.Fields)   { r.record(event) }
func (r *recordingLogger) Info(event, _ string, _ trace.Fields)    { r.record(event) }
func (r *recordingLogger) Warning(event, _ string, _ trace.Fields) { r.record(event) }
func (r *recordingLogger) Error(event, _ string, _ trace.Fields)   { r.record(event) }
func (r *recordingLogger) Access(string, string, string, int, time.Duration) {}
func (r *recordingLogger) Entry() *logrus.Entry { return logrus.NewEntry(logrus.New()) }

var _ trace.Logger = (*recordingLogger)(nil)
