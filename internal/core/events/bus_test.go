package events_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/frahmantamala/audit-management/internal/core/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestEvents(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Events Suite")
}

var _ = Describe("EventBus", func() {
	var (
		ctx context.Context
		bus *events.EventBus
	)

	event := func() events.Event {
		return events.NewTransitionEvent("finding.committed", 1, 2, "audit", "42", "Finance", "AUD-42", nil)
	}

	BeforeEach(func() {
		ctx = context.Background()
		bus = events.NewEventBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
	})

	It("ignores events nobody subscribed to", func() {
		Expect(bus.HasHandlers("finding.committed")).To(BeFalse())
		Expect(bus.PublishSync(ctx, event())).To(Succeed())
	})

	It("runs every sync handler and joins their errors", func() {
		boom := errors.New("boom")
		var ran atomic.Int32
		bus.Subscribe("finding.committed", func(context.Context, events.Event) error {
			ran.Add(1)
			return boom
		})
		bus.Subscribe("finding.committed", func(context.Context, events.Event) error {
			ran.Add(1)
			panic("bad handler")
		})
		bus.Subscribe("finding.committed", func(context.Context, events.Event) error {
			ran.Add(1)
			return nil
		})

		err := bus.PublishSync(ctx, event())
		Expect(err).To(MatchError(boom))
		Expect(err).To(MatchError(ContainSubstring("handler panicked: bad handler")))
		Expect(ran.Load()).To(Equal(int32(3)))
	})

	It("detaches async handlers from the caller and drains them", func() {
		release := make(chan struct{})
		var done atomic.Bool
		bus.Subscribe("finding.committed", func(hctx context.Context, e events.Event) error {
			defer GinkgoRecover()
			<-release
			Expect(hctx.Err()).NotTo(HaveOccurred())
			Expect(e.EventID()).NotTo(BeEmpty())
			done.Store(true)
			return nil
		})

		pubCtx, cancel := context.WithCancel(ctx)
		bus.Publish(pubCtx, event())
		cancel()

		short, stop := context.WithTimeout(ctx, 20*time.Millisecond)
		defer stop()
		Expect(bus.Drain(short)).To(MatchError(context.DeadlineExceeded))

		close(release)
		Expect(bus.Drain(ctx)).To(Succeed())
		Expect(done.Load()).To(BeTrue())
	})
})
