package broker

import (
	"context"
	"time"

	"lv-finbroker/internal/model"
	"lv-finbroker/internal/types"
)

// reconcileBracket advances the bracket chain an order belongs to. A chain
// is keyed by its parent's ref and holds every member, the parent's own
// slot included. Callers hold the lock.
func (b *Broker) reconcileBracket(ctx context.Context, order *model.Order) {
	if order.ParentRef == 0 && !order.Transmit {
		// A chain parent terminated.
		switch order.Status {
		case types.OrderStatusCompleted:
			b.releaseChildren(ctx, order.Ref)
		case types.OrderStatusRejected:
			b.rejectChildren(order.Ref)
		}
		return
	}
	if order.ParentRef != 0 {
		// A child terminated: bracket legs are mutually exclusive once one
		// fires, so every other pending sibling is cancelled.
		for _, ref := range b.chains[order.ParentRef] {
			sibling, ok := b.orders[ref]
			if !ok || sibling.ParentRef == 0 || sibling.Ref == order.Ref {
				continue
			}
			b.cancelOrder(ctx, sibling)
		}
	}
}

// releaseChildren submits the children queued behind a completed parent, in
// enqueue order. Children already terminal (rejected at validation, or
// cancelled while buffered) are skipped.
func (b *Broker) releaseChildren(ctx context.Context, parentRef int64) {
	for _, ref := range b.chains[parentRef] {
		child, ok := b.orders[ref]
		if !ok || child.ParentRef == 0 || child.Status != types.OrderStatusCreated {
			continue
		}
		b.submitOrder(ctx, child)
	}
}

// rejectChildren marks the buffered children of a rejected parent as
// rejected without ever submitting them.
func (b *Broker) rejectChildren(parentRef int64) {
	for _, ref := range b.chains[parentRef] {
		child, ok := b.orders[ref]
		if !ok || child.ParentRef == 0 || child.Status != types.OrderStatusCreated {
			continue
		}
		child.Status = types.OrderStatusRejected
		child.RejectReason = types.RejectParentRejected
		child.UpdatedAt = time.Now().UTC()
		b.notify(child)
	}
}
