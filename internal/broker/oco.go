package broker

import (
	"context"

	"lv-finbroker/internal/model"
)

// reconcile re-checks the OCO linkage and the bracket chain of an order
// that just reached a terminal state, then drops fully terminal groups.
// Callers hold the lock.
func (b *Broker) reconcile(ctx context.Context, order *model.Order) {
	b.reconcileOCO(ctx, order)
	b.reconcileBracket(ctx, order)
	b.pruneGroups()
}

// reconcileOCO cancels the live partners of a terminated order. The linkage
// is stored one-directionally but checked in both directions. Cancelling a
// leg that is already terminal is a no-op, so a cancellation confirmation
// for the losing leg re-enters here without side effects.
func (b *Broker) reconcileOCO(ctx context.Context, order *model.Order) {
	// Cancellations mutate the linkage table; iterate over a copy.
	ocos := make(map[int64]int64, len(b.ocos))
	for ref, partner := range b.ocos {
		ocos[ref] = partner
	}
	for ref, partner := range ocos {
		if partner == order.Ref {
			if o, ok := b.orders[ref]; ok {
				b.cancelOrder(ctx, o)
			}
		}
	}
	if partner, ok := ocos[order.Ref]; ok {
		if o, ok := b.orders[partner]; ok {
			b.cancelOrder(ctx, o)
		}
	}
}

// pruneGroups discards OCO links and bracket chains whose members have all
// reached a terminal state.
func (b *Broker) pruneGroups() {
	for ref, partner := range b.ocos {
		if b.refAlive(ref) || b.refAlive(partner) {
			continue
		}
		delete(b.ocos, ref)
	}
	for parentRef, refs := range b.chains {
		drained := true
		for _, ref := range refs {
			if b.refAlive(ref) {
				drained = false
				break
			}
		}
		if drained {
			delete(b.chains, parentRef)
		}
	}
}

func (b *Broker) refAlive(ref int64) bool {
	o, ok := b.orders[ref]
	return ok && o.Alive()
}
