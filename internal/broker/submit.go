package broker

import (
	"context"
	"time"

	"lv-finbroker/internal/gateway"
	"lv-finbroker/internal/model"
	"lv-finbroker/internal/types"

	"go.uber.org/zap"
)

// submitOrder sends an order to the gateway and transitions it to accepted
// or rejected before returning. The quantity on the wire is in lots.
// Callers hold the lock.
func (b *Broker) submitOrder(ctx context.Context, order *model.Order) *model.Order {
	si, ok := b.instrument(ctx, order.Board, order.Symbol)
	if !ok {
		b.rejectOrder(ctx, order, types.RejectUnknownInstrument)
		return order
	}
	lots := order.Size.Div(si.LotSize).IntPart()

	order.Status = types.OrderStatusSubmitted
	order.UpdatedAt = time.Now().UTC()
	b.notify(order)

	var res gateway.PlaceResult
	var err error
	switch order.Kind {
	case types.OrderKindMarket:
		res, err = b.gw.SubmitOrder(ctx, gateway.OrderRequest{
			ClientID: b.clientID,
			Board:    order.Board,
			Symbol:   order.Symbol,
			Side:     order.Side,
			Lots:     lots,
		})
	case types.OrderKindLimit:
		res, err = b.gw.SubmitOrder(ctx, gateway.OrderRequest{
			ClientID: b.clientID,
			Board:    order.Board,
			Symbol:   order.Symbol,
			Side:     order.Side,
			Lots:     lots,
			Price:    order.Price,
		})
	case types.OrderKindStop:
		res, err = b.gw.SubmitStop(ctx, gateway.StopRequest{
			ClientID:        b.clientID,
			Board:           order.Board,
			Symbol:          order.Symbol,
			Side:            order.Side,
			Lots:            lots,
			ActivationPrice: *order.Price,
		})
	case types.OrderKindStopLimit:
		res, err = b.gw.SubmitStop(ctx, gateway.StopRequest{
			ClientID:        b.clientID,
			Board:           order.Board,
			Symbol:          order.Symbol,
			Side:            order.Side,
			Lots:            lots,
			ActivationPrice: *order.Price,
			LimitPrice:      order.LimitPrice,
		})
	default:
		// Unsupported kinds never pass the validation gate.
		b.rejectOrder(ctx, order, types.RejectUnsupportedKind)
		return order
	}
	if err != nil {
		b.log.Warn("gateway submit failed",
			zap.Int64("ref", order.Ref),
			zap.String("board", order.Board),
			zap.String("symbol", order.Symbol),
			zap.Error(err))
		b.rejectOrder(ctx, order, types.RejectGatewayError)
		return order
	}
	if order.Kind.IsStop() {
		order.StopID = res.StopID
	} else {
		order.TransactionID = res.TransactionID
		b.byTransaction[res.TransactionID] = order.Ref
	}
	order.Status = types.OrderStatusAccepted
	order.UpdatedAt = time.Now().UTC()
	return order
}

// cancelOrder asks the gateway to cancel an order. Nothing is marked
// cancelled here: the order keeps its state until the cancellation event
// comes back on the stream. Buffered bracket children that never reached
// the gateway are the exception and terminate locally. Callers hold the
// lock.
func (b *Broker) cancelOrder(ctx context.Context, order *model.Order) {
	if !order.Alive() {
		return
	}
	if order.Status == types.OrderStatusCreated {
		order.Status = types.OrderStatusCanceled
		order.UpdatedAt = time.Now().UTC()
		b.notify(order)
		b.reconcile(ctx, order)
		return
	}
	var err error
	if order.Kind.IsStop() {
		err = b.gw.CancelStop(ctx, b.clientID, order.StopID)
	} else {
		err = b.gw.CancelOrder(ctx, b.clientID, order.TransactionID)
	}
	if err != nil {
		b.log.Warn("gateway cancel failed", zap.Int64("ref", order.Ref), zap.Error(err))
	}
}
