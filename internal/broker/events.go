package broker

import (
	"context"
	"time"

	"lv-finbroker/internal/gateway"
	"lv-finbroker/internal/model"
	"lv-finbroker/internal/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OnOrderEvent applies one exchange-originated order event. It is the
// gateway stream callback and may run concurrently with the strategy path;
// both serialize on the engine lock. Events for orders this engine does not
// manage are dropped.
func (b *Broker) OnOrderEvent(ev gateway.OrderEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ref, ok := b.byTransaction[ev.TransactionID]
	if !ok {
		return
	}
	order, ok := b.orders[ref]
	if !ok {
		return
	}
	ctx := context.Background()
	switch ev.Status {
	case types.EventStatusNone, types.EventStatusActive:
		// Informational only; acceptance was signaled synchronously at
		// submission time.
	case types.EventStatusCancelled:
		if order.Status == types.OrderStatusCanceled {
			// The exchange redelivers cancellation notices.
			return
		}
		order.Status = types.OrderStatusCanceled
		order.UpdatedAt = time.Now().UTC()
		b.notify(order)
		b.reconcile(ctx, order)
	case types.EventStatusMatched:
		b.applyFill(ctx, order, ev)
	}
}

// applyFill converts the matched lots into a signed quantity, updates the
// position ledger and the order's execution state, and completes the order
// when nothing remains. Reconciliation runs on full completion only;
// partial fills leave OCO partners and bracket siblings untouched.
func (b *Broker) applyFill(ctx context.Context, order *model.Order, ev gateway.OrderEvent) {
	si, ok := b.instrument(ctx, order.Board, order.Symbol)
	if !ok {
		b.log.Error("fill for order without instrument metadata",
			zap.Int64("ref", order.Ref),
			zap.String("board", order.Board),
			zap.String("symbol", order.Symbol))
		return
	}
	size := si.LotSize.Mul(decimal.NewFromInt(ev.Lots))
	if ev.Side == types.OrderSideSell {
		size = size.Neg()
	}
	psize, pprice, opened, closed := b.ledger.Update(order.Board, order.Symbol, size, ev.Price)

	fillQty := size.Abs()
	prevExecuted := order.ExecutedSize
	order.ExecutedSize = prevExecuted.Add(fillQty)
	if order.ExecutedSize.IsPositive() {
		order.ExecutedPrice = prevExecuted.Mul(order.ExecutedPrice).
			Add(fillQty.Mul(ev.Price)).
			Div(order.ExecutedSize)
	}
	order.RemainingSize = order.RemainingSize.Sub(fillQty)
	if order.RemainingSize.IsNegative() {
		order.RemainingSize = decimal.Zero
	}
	order.FillOpened = opened
	order.FillClosed = closed
	order.PositionSize = psize
	order.PositionPrice = pprice
	order.UpdatedAt = time.Now().UTC()

	b.log.Debug("fill applied",
		zap.Int64("ref", order.Ref),
		zap.String("size", size.String()),
		zap.String("price", ev.Price.String()),
		zap.String("opened", opened.String()),
		zap.String("closed", closed.String()),
		zap.String("position", psize.String()))

	if order.RemainingSize.IsPositive() {
		if order.Status != types.OrderStatusPartiallyFilled {
			order.Status = types.OrderStatusPartiallyFilled
			b.notify(order)
		}
		return
	}
	order.Status = types.OrderStatusCompleted
	b.notify(order)
	b.reconcile(ctx, order)
}
