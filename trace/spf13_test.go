package trace_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	jww "github.com/spf13/jwalterweatherman"

	"github.com/sabouaram/httpcore/trace"
)

var _ = Describe("SetSPF13Level", func() {
	It("routes jww output through the wrapped logger at the configured threshold", func() {
		buf := &bytes.Buffer{}
		log := trace.New(buf, trace.DebugLevel)

		trace.SetSPF13Level(log, trace.WarnLevel)

		jww.WARN.Println("disk almost full")
		jww.INFO.Println("should be filtered below warn threshold")

		Expect(buf.String()).To(ContainSubstring("disk almost full"))
	})
})
