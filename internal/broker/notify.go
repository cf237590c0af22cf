package broker

import "lv-finbroker/internal/model"

// notify appends an order snapshot to the notification queue and fans it out
// to websocket subscribers. Callers must hold the engine lock.
func (b *Broker) notify(o *model.Order) {
	snap := o.Clone()
	b.notifs = append(b.notifs, &snap)
	for _, sub := range b.subscribers {
		select {
		case sub <- snap:
		default:
			// Slow subscriber: drop rather than stall the engine.
		}
	}
}

// PollNotification returns the oldest pending notification, or nil when the
// queue is empty or a cycle boundary is reached.
func (b *Broker) PollNotification() *model.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.notifs) == 0 {
		return nil
	}
	n := b.notifs[0]
	b.notifs = b.notifs[1:]
	return n
}

// NextCycle marks a cycle boundary with a nil sentinel so the consumer can
// distinguish "queue drained" from "nothing happened this cycle".
func (b *Broker) NextCycle() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifs = append(b.notifs, nil)
}

// SubscribeNotifications registers a live feed of order snapshots. The
// returned cancel func must be called to release the subscription.
func (b *Broker) SubscribeNotifications() (<-chan model.Order, func()) {
	ch := make(chan model.Order, 64)
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subscribers {
			if sub == ch {
				b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}
