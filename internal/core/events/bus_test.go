package events_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/frahmantamala/event-permission/internal/core/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestEvents(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Events Suite")
}

var _ = Describe("EventBus", func() {
	var (
		bus *events.EventBus
		ctx context.Context
	)

	BeforeEach(func() {
		bus = events.NewEventBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
		ctx = context.Background()
	})

	It("delivers to every handler of the event type", func() {
		var submitted, responded atomic.Int32
		bus.Subscribe(events.EventTypeRequestSubmitted, func(context.Context, events.Event) error {
			submitted.Add(1)
			return nil
		})
		bus.Subscribe(events.EventTypeRequestSubmitted, func(context.Context, events.Event) error {
			submitted.Add(1)
			return nil
		})
		bus.Subscribe(events.EventTypeRequestResponded, func(context.Context, events.Event) error {
			responded.Add(1)
			return nil
		})

		Expect(bus.Publish(ctx, events.NewRequestSubmittedEvent("req-1", "stu-1", "CS"))).To(Succeed())
		Expect(bus.Drain(ctx)).To(Succeed())

		Expect(submitted.Load()).To(Equal(int32(2)))
		Expect(responded.Load()).To(BeZero())
	})

	It("keeps the handler context alive after the publisher's context is cancelled", func() {
		reqCtx, cancel := context.WithCancel(ctx)
		seen := make(chan error, 1)
		bus.Subscribe(events.EventTypeRequestResponded, func(hctx context.Context, _ events.Event) error {
			time.Sleep(10 * time.Millisecond)
			seen <- hctx.Err()
			return nil
		})

		Expect(bus.Publish(reqCtx, events.NewRequestRespondedEvent("req-1", "stu-1", "CS", "approved", "hod-1"))).To(Succeed())
		cancel()

		Eventually(seen).Should(Receive(BeNil()))
	})

	It("survives a panicking handler", func() {
		var ran atomic.Bool
		bus.Subscribe(events.EventTypeRequestSubmitted, func(context.Context, events.Event) error {
			panic("boom")
		})
		bus.Subscribe(events.EventTypeRequestSubmitted, func(context.Context, events.Event) error {
			ran.Store(true)
			return nil
		})

		Expect(bus.Publish(ctx, events.NewRequestSubmittedEvent("req-1", "stu-1", "CS"))).To(Succeed())
		Expect(bus.Drain(ctx)).To(Succeed())
		Expect(ran.Load()).To(BeTrue())
	})

	It("keeps delivering when a handler fails", func() {
		var ran atomic.Bool
		bus.Subscribe(events.EventTypeRequestResponded, func(context.Context, events.Event) error {
			return errors.New("sink unavailable")
		})
		bus.Subscribe(events.EventTypeRequestResponded, func(context.Context, events.Event) error {
			ran.Store(true)
			return nil
		})

		Expect(bus.Publish(ctx, events.NewRequestRespondedEvent("req-1", "stu-1", "CS", "rejected", "hod-1"))).To(Succeed())
		Expect(bus.Drain(ctx)).To(Succeed())
		Expect(ran.Load()).To(BeTrue())
	})

	It("drops events published after Drain", func() {
		var calls atomic.Int32
		bus.Subscribe(events.EventTypeRequestSubmitted, func(context.Context, events.Event) error {
			calls.Add(1)
			return nil
		})

		Expect(bus.Drain(ctx)).To(Succeed())
		Expect(bus.Publish(ctx, events.NewRequestSubmittedEvent("req-1", "stu-1", "CS"))).To(Succeed())
		Consistently(calls.Load, 50*time.Millisecond).Should(BeZero())
	})

	It("gives up draining when the context expires", func() {
		release := make(chan struct{})
		defer close(release)
		bus.Subscribe(events.EventTypeRequestSubmitted, func(context.Context, events.Event) error {
			<-release
			return nil
		})
		Expect(bus.Publish(ctx, events.NewRequestSubmittedEvent("req-1", "stu-1", "CS"))).To(Succeed())

		short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		Expect(bus.Drain(short)).To(MatchError(context.DeadlineExceeded))
	})
})

var _ = Describe("Request events", func() {
	It("carries the decision in the payload", func() {
		ev := events.NewRequestRespondedEvent("req-1", "stu-1", "CS", "approved", "hod-1")

		Expect(ev.EventType()).To(Equal(events.EventTypeRequestResponded))
		Expect(ev.EventID()).NotTo(BeEmpty())
		Expect(ev.OccurredAt()).To(BeTemporally("~", time.Now(), time.Second))
		Expect(ev.Payload()).To(HaveKeyWithValue("status", "approved"))
		Expect(ev.Payload()).To(HaveKeyWithValue("responded_by", "hod-1"))
	})
})
