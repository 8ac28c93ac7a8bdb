package trace_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/sabouaram/httpcore/trace"
)

var _ = Describe("Level", func() {
	It("orders panic as most severe and debug as least", func() {
		Expect(trace.PanicLevel.Int()).To(Equal(0))
		Expect(trace.FatalLevel.Int()).To(Equal(1))
		Expect(trace.ErrorLevel.Int()).To(Equal(2))
		Expect(trace.WarnLevel.Int()).To(Equal(3))
		Expect(trace.InfoLevel.Int()).To(Equal(4))
		Expect(trace.DebugLevel.Int()).To(Equal(5))
	})

	It("stringifies each level", func() {
		Expect(trace.ErrorLevel.String()).To(Equal("error"))
		Expect(trace.DebugLevel.String()).To(Equal("debug"))
		Expect(trace.Level(99).String()).To(Equal("unknown"))
	})

	It("converts to the equivalent logrus level", func() {
		Expect(trace.WarnLevel.Logrus()).To(Equal(logrus.WarnLevel))
		Expect(trace.DebugLevel.Logrus()).To(Equal(logrus.DebugLevel))
	})

	DescribeTable("ParseLevel",
		func(in string, want trace.Level) {
			Expect(trace.ParseLevel(in)).To(Equal(want))
		},
		Entry("panic", "panic", trace.PanicLevel),
		Entry("fatal", "fatal", trace.FatalLevel),
		Entry("error", "error", trace.ErrorLevel),
		Entry("warn", "warn", trace.WarnLevel),
		Entry("warning alias", "warning", trace.WarnLevel),
		Entry("debug", "debug", trace.DebugLevel),
		Entry("unknown falls back to info", "bogus", trace.InfoLevel),
		Entry("empty falls back to info", "", trace.InfoLevel),
	)
})
