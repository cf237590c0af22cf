package broker

import (
	"context"
	"time"

	"lv-finbroker/internal/model"
	"lv-finbroker/internal/types"

	"go.uber.org/zap"
)

// createOrder runs the validation gate and routes the accepted intent into
// the bracket/OCO tables and, when it transmits, to the gateway. Rejection
// conditions are checked in a fixed order and the first match wins; a
// rejected order never reaches the gateway but still triggers
// reconciliation so blocked siblings are released. Callers hold the lock.
func (b *Broker) createOrder(ctx context.Context, side types.OrderSide, intent OrderIntent) *model.Order {
	b.refSeq++
	now := time.Now().UTC()
	order := &model.Order{
		Ref:           b.refSeq,
		ClientID:      b.clientID,
		Board:         intent.Board,
		Symbol:        intent.Symbol,
		Side:          side,
		Kind:          intent.Kind,
		Status:        types.OrderStatusCreated,
		Size:          intent.Size.Abs(),
		RemainingSize: intent.Size.Abs(),
		Price:         intent.Price,
		LimitPrice:    intent.LimitPrice,
		ParentRef:     intent.ParentRef,
		OCORef:        intent.OCORef,
		Transmit:      intent.Transmit,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.orders[order.Ref] = order
	b.orderRefs = append(b.orderRefs, order.Ref)

	if !order.Kind.Supported() {
		b.rejectOrder(ctx, order, types.RejectUnsupportedKind)
		return order
	}
	si, ok := b.instrument(ctx, order.Board, order.Symbol)
	if !ok {
		b.rejectOrder(ctx, order, types.RejectUnknownInstrument)
		return order
	}
	if order.Price != nil {
		p := order.Price.Round(si.Decimals)
		order.Price = &p
	}
	if order.LimitPrice != nil {
		p := order.LimitPrice.Round(si.Decimals)
		order.LimitPrice = &p
	}
	if order.Kind != types.OrderKindMarket && order.Price == nil {
		b.rejectOrder(ctx, order, types.RejectMissingPrice)
		return order
	}
	if order.Kind == types.OrderKindStopLimit && order.LimitPrice == nil {
		b.rejectOrder(ctx, order, types.RejectMissingLimitPrice)
		return order
	}
	if order.OCORef != 0 {
		b.ocos[order.Ref] = order.OCORef
	}
	if !order.Transmit || order.ParentRef != 0 {
		parentRef := order.ParentRef
		if parentRef == 0 {
			parentRef = order.Ref
		}
		if order.Ref != parentRef {
			if _, ok := b.chains[parentRef]; !ok {
				b.rejectOrder(ctx, order, types.RejectParentNotFound)
				return order
			}
		}
		b.chains[parentRef] = append(b.chains[parentRef], order.Ref)
	}
	if order.Transmit {
		if order.ParentRef == 0 {
			return b.submitOrder(ctx, order)
		}
		// Last link of a bracket chain: the chain is complete, so it is the
		// parent that goes to the gateway, not this child.
		b.notify(order)
		parent, ok := b.orders[order.ParentRef]
		if !ok {
			b.rejectOrder(ctx, order, types.RejectParentNotFound)
			return order
		}
		return b.submitOrder(ctx, parent)
	}
	// Buffered bracket member: stays in created state until the chain's
	// last link arrives and the parent completes.
	return order
}

func (b *Broker) rejectOrder(ctx context.Context, order *model.Order, reason types.RejectReason) {
	order.Status = types.OrderStatusRejected
	order.RejectReason = reason
	order.UpdatedAt = time.Now().UTC()
	b.log.Warn("order rejected",
		zap.Int64("ref", order.Ref),
		zap.String("board", order.Board),
		zap.String("symbol", order.Symbol),
		zap.String("reason", string(reason)))
	b.reconcile(ctx, order)
}
