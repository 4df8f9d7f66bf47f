package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xenophobed/isastream/pkg/eventstream"
	"github.com/xenophobed/isastream/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	It("creates a non-nil publisher", func() {
		p := nop.NewPublisher()
		Expect(p).NotTo(BeNil())
	})

	It("returns ErrNilMessageEvent for nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishMessage(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilMessageEvent))
	})

	It("succeeds for non-nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishMessage(context.Background(), &eventstream.MessageReceivedEvent{})
		Expect(err).NotTo(HaveOccurred())
	})

	It("closes successfully", func() {
		p := nop.NewPublisher()
		Expect(p.Close()).To(Succeed())
	})
})
