package connector

import (
	"github.com/sabouaram/httpcore/packet"
	"github.com/sabouaram/httpcore/stage"
)

// fakeCtx is the minimal stage.Context a test needs; it also satisfies
// the package's unexported writeBlocker interface so tests can observe
// SetWriteBlocked calls without depending on the conn package.
type fakeCtx struct {
	q       *packet.Queue
	blocked bool
}

func newFakeCtx(q *packet.Queue) *fakeCtx { return &fakeCtx{q: q} }

func (f *fakeCtx) Queue(dir stage.Direction) *packet.Queue { return f.q }

func (f *fakeCtx) SetWriteBlocked(v bool) { f.blocked = v }
