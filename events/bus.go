package events

import (
	"fmt"
	"log/slog"
	"time"
)

// subscription pairs a handle with the kinds it listens for. Timer
// subscriptions additionally carry an interval and the next fire time.
type subscription struct {
	handle   *Handle
	kinds    Kind
	interval time.Duration
	nextFire time.Time
}

// Bus dispatches events to subscriptions in subscription order. The bus is
// not internally synchronized: the supervisor serializes all access under its
// scheduler mutex.
type Bus struct {
	subs   []*subscription
	logger *slog.Logger
	now    func() time.Time
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger, now: time.Now}
}

// Subscribe appends a subscription for the handle. When kinds includes Timer,
// interval must be positive; the first fire is scheduled at now+interval.
func (b *Bus) Subscribe(h *Handle, kinds Kind, interval time.Duration) error {
	if h == nil {
		return fmt.Errorf("subscribe: nil handle")
	}
	if kinds == 0 {
		return fmt.Errorf("subscribe: no event kinds")
	}
	sub := &subscription{handle: h, kinds: kinds}
	if kinds.Has(Timer) {
		if interval <= 0 {
			return fmt.Errorf("subscribe: timer subscription requires a positive interval")
		}
		sub.interval = interval
		sub.nextFire = b.now().Add(interval)
	}
	b.subs = append(b.subs, sub)
	return nil
}

// Dispatch compacts dead subscriptions, then delivers the event sequentially
// to every live subscription whose kinds intersect. A panicking subscriber is
// recovered and logged; later subscribers still receive the event.
func (b *Bus) Dispatch(kinds Kind, data Data) {
	b.compact()
	for _, sub := range b.subs {
		if !sub.kinds.Has(kinds) {
			continue
		}
		b.deliver(sub, kinds, data)
	}
}

// FireTimers delivers a Timer event to every timer subscription due at now,
// advancing each schedule by its interval. No timer subscribers is a no-op.
func (b *Bus) FireTimers(now time.Time) {
	b.compact()
	for _, sub := range b.subs {
		if !sub.kinds.Has(Timer) {
			continue
		}
		if sub.nextFire.After(now) {
			continue
		}
		sub.nextFire = sub.nextFire.Add(sub.interval)
		// A long stall must not cause a burst of catch-up ticks.
		if !sub.nextFire.After(now) {
			sub.nextFire = now.Add(sub.interval)
		}
		b.deliver(sub, Timer, Data{})
	}
}

// Len returns the number of live subscriptions after compaction.
func (b *Bus) Len() int {
	b.compact()
	return len(b.subs)
}

// deliver invokes one subscriber, isolating panics.
func (b *Bus) deliver(sub *subscription, kinds Kind, data Data) {
	s := sub.handle.Subscriber()
	if s == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Subscriber panicked during dispatch",
				slog.String("kinds", kinds.String()),
				slog.Any("panic", r))
		}
	}()
	s.HandleEvent(kinds, data)
}

// compact drops subscriptions whose handle no longer resolves.
func (b *Bus) compact() {
	live := b.subs[:0]
	for _, sub := range b.subs {
		if sub.handle.IsAlive() {
			live = append(live, sub)
		}
	}
	// Clear the tail so released handles are not retained.
	for i := len(live); i < len(b.subs); i++ {
		b.subs[i] = nil
	}
	b.subs = live
}
