package trace_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/httpcore/trace"
)

var _ = Describe("Config", func() {
	Describe("Validate", func() {
		It("accepts a zero-value config", func() {
			Expect((trace.Config{}).Validate()).To(Succeed())
		})

		It("rejects an unrecognized level name", func() {
			c := trace.Config{Level: "verbose"}
			Expect(c.Validate()).To(HaveOccurred())
		})

		It("rejects an unrecognized format", func() {
			c := trace.Config{Format: "xml"}
			Expect(c.Validate()).To(HaveOccurred())
		})

		It("accepts a fully specified config", func() {
			c := trace.Config{Level: "debug", Format: "json", Size: 1024, Backup: 3}
			Expect(c.Validate()).To(Succeed())
		})
	})

	Describe("Build", func() {
		It("falls back to stderr when Path is empty", func() {
			log, err := (trace.Config{Level: "info"}).Build()
			Expect(err).ToNot(HaveOccurred())
			Expect(log).ToNot(BeNil())
		})

		It("opens and writes a header to a fresh file", func() {
			dir, err := os.MkdirTemp("", "trace-config-*")
			Expect(err).ToNot(HaveOccurred())
			defer os.RemoveAll(dir)

			path := filepath.Join(dir, "app.log")
			c := trace.Config{Path: path, Level: "info", Header: "# httpcore log"}

			log, err := c.Build()
			Expect(err).ToNot(HaveOccurred())
			Expect(log.Close()).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(data)).To(HavePrefix("# httpcore log\n"))
		})

		It("rotates the existing file once it reaches the configured size", func() {
			dir, err := os.MkdirTemp("", "trace-config-*")
			Expect(err).ToNot(HaveOccurred())
			defer os.RemoveAll(dir)

			path := filepath.Join(dir, "app.log")
			Expect(os.WriteFile(path, []byte("0123456789"), 0644)).To(Succeed())

			c := trace.Config{Path: path, Size: 5, Backup: 2}
			log, err := c.Build()
			Expect(err).ToNot(HaveOccurred())
			Expect(log.Close()).To(Succeed())

			Expect(filepath.Join(dir, "app.log.1")).To(BeAnExistingFile())
		})
	})

	Describe("Watch", func() {
		It("notifies when the watched file is rewritten", func() {
			dir, err := os.MkdirTemp("", "trace-watch-*")
			Expect(err).ToNot(HaveOccurred())
			defer os.RemoveAll(dir)

			path := filepath.Join(dir, "app.log")
			Expect(os.WriteFile(path, []byte("first"), 0644)).To(Succeed())

			notified := make(chan struct{}, 1)
			w, err := trace.Watch(path, func() {
				select {
				case notified <- struct{}{}:
				default:
				}
			})
			Expect(err).ToNot(HaveOccurred())
			defer w.Close()

			Expect(os.WriteFile(path, []byte("second"), 0644)).To(Succeed())

			Eventually(notified, 2*time.Second).Should(Receive())
		})
	})
})
