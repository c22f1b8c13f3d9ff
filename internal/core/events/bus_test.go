package events_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/frahmantamala/expense-approval/internal/core/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EventBus", func() {
	var (
		bus *events.EventBus
		ctx context.Context
	)

	BeforeEach(func() {
		bus = events.NewEventBus(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
		ctx = context.Background()
	})

	It("should stamp events with an id and type", func() {
		ev := events.NewExpenseResolvedEvent(7, 3, "APPROVED", true)

		Expect(ev.EventType()).To(Equal(events.EventTypeExpenseResolved))
		Expect(ev.EventID()).To(HaveLen(36))
		Expect(ev.OccurredAt()).NotTo(BeZero())
	})

	It("should deliver async events to every subscriber before Wait returns", func() {
		var calls atomic.Int32
		handler := func(context.Context, events.Event) error {
			calls.Add(1)
			return nil
		}
		bus.Subscribe(events.EventTypeUserCreated, handler)
		bus.Subscribe(events.EventTypeUserCreated, handler)

		Expect(bus.Publish(ctx, events.NewUserCreatedEvent(1, 1, "a@acme.test", "A", ""))).To(Succeed())
		bus.Wait()

		Expect(calls.Load()).To(Equal(int32(2)))
	})

	It("should keep handler failures and panics away from the publisher", func() {
		bus.Subscribe(events.EventTypeExpenseSubmitted, func(context.Context, events.Event) error {
			return errors.New("smtp down")
		})
		bus.Subscribe(events.EventTypeExpenseSubmitted, func(context.Context, events.Event) error {
			panic("boom")
		})

		err := bus.Publish(ctx, events.NewExpenseSubmittedEvent(1, 1, 2, []int64{3}, "10", "USD"))
		bus.Wait()

		Expect(err).NotTo(HaveOccurred())
	})

	It("should surface the first error from synchronous delivery", func() {
		var second bool
		bus.Subscribe(events.EventTypeExpenseResolved, func(context.Context, events.Event) error {
			return errors.New("first")
		})
		bus.Subscribe(events.EventTypeExpenseResolved, func(context.Context, events.Event) error {
			second = true
			return nil
		})

		err := bus.PublishSync(ctx, events.NewExpenseResolvedEvent(1, 2, "REJECTED", false))

		Expect(err).To(MatchError(ContainSubstring("first")))
		Expect(second).To(BeFalse())
	})

	It("should ignore events without subscribers", func() {
		Expect(bus.Publish(ctx, events.NewUserCreatedEvent(1, 1, "a@acme.test", "A", ""))).To(Succeed())
		Expect(bus.PublishSync(ctx, events.NewUserCreatedEvent(1, 1, "a@acme.test", "A", ""))).To(Succeed())
	})
})
