package cliui_test

import (
	"bytes"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cometx/pkg/cliui"
)

var _ = Describe("cliui", func() {
	DescribeTable("FormatDuration",
		func(d time.Duration, want string) {
			Expect(cliui.FormatDuration(d)).To(Equal(want))
		},
		Entry("milliseconds", 12*time.Millisecond, "12ms"),
		Entry("seconds", 3200*time.Millisecond, "3.2s"),
	)

	It("marks success and failure differently", func() {
		Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
		Expect(cliui.Mark(errors.New("boom"))).To(Equal(cliui.FailMark))
	})

	Describe("Step", func() {
		It("returns the error from fn and prints the message", func() {
			var out bytes.Buffer
			err := cliui.Step(&out, "fetching page", func() error { return errors.New("offline") })
			Expect(err).To(MatchError("offline"))
			Expect(out.String()).To(ContainSubstring("fetching page"))
			Expect(strings.HasSuffix(out.String(), "\n")).To(BeTrue())
		})
	})

	Describe("Truncate", func() {
		It("leaves short strings alone", func() {
			Expect(cliui.Truncate("hello", 10)).To(Equal("hello"))
		})

		It("cuts to the display width", func() {
			out := cliui.Truncate("hello world", 6)
			Expect(cliui.Width(out)).To(BeNumerically("<=", 6))
			Expect(out).To(HaveSuffix("…"))
		})

		It("counts wide runes as two cells", func() {
			Expect(cliui.Width("مرحبا")).To(Equal(5))
			Expect(cliui.Width("日本")).To(Equal(4))
		})
	})

	It("renders markdown", func() {
		out, err := cliui.RenderMarkdown("# Title\n\nSome *text*.")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Title"))
	})
})
