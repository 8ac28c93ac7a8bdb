package trace_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/httpcore/trace"
)

var _ = Describe("Fields", func() {
	It("adds a key without mutating the receiver", func() {
		base := trace.NewFields()
		out := base.Add("request_id", "abc")

		Expect(base).To(BeEmpty())
		Expect(out).To(HaveKeyWithValue("request_id", "abc"))
	})

	It("merges another set over the receiver without mutating either", func() {
		base := trace.Fields{"a": 1, "b": 1}
		other := trace.Fields{"b": 2, "c": 3}

		merged := base.Merge(other)

		Expect(merged).To(Equal(trace.Fields{"a": 1, "b": 2, "c": 3}))
		Expect(base).To(Equal(trace.Fields{"a": 1, "b": 1}))
		Expect(other).To(Equal(trace.Fields{"b": 2, "c": 3}))
	})

	It("returns the receiver unchanged when merging an empty set", func() {
		base := trace.Fields{"a": 1}
		Expect(base.Merge(nil)).To(Equal(base))
	})

	It("converts to logrus.Fields with the same key/value pairs", func() {
		f := trace.Fields{"status": 200}
		lf := f.Logrus()
		Expect(lf).To(HaveKeyWithValue("status", 200))
	})

	It("builds the access-log field set", func() {
		f := trace.RequestFields("req-1", "GET", "/a", 200, 12)

		Expect(f).To(Equal(trace.Fields{
			"request_id": "req-1",
			"method":     "GET",
			"path":       "/a",
			"status":     200,
			"latency_ms": int64(12),
		}))
	})
})
