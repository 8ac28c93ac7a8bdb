package trace_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/httpcore/trace"
)

var _ = Describe("ConsoleHook", func() {
	It("writes a level/event/message line", func() {
		buf := &bytes.Buffer{}
		hook := trace.NewConsoleHook(buf)

		hook.Write(trace.ErrorLevel, "startup", "bind failed")

		Expect(buf.String()).To(ContainSubstring("startup"))
		Expect(buf.String()).To(ContainSubstring("bind failed"))
	})
})
