package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"lv-finbroker/internal/gateway"
	"lv-finbroker/internal/model"
	"lv-finbroker/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGateway struct {
	mu          sync.Mutex
	calls       []string
	submits     []gateway.OrderRequest
	stops       []gateway.StopRequest
	cancels     []int64
	stopCancels []int64
	nextTxn     int64
	nextStop    int64
	failSubmit  bool
	instruments map[string]gateway.InstrumentInfo
	portfolio   gateway.Portfolio
	handler     gateway.EventHandler
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		instruments: map[string]gateway.InstrumentInfo{
			"TQBR.SBER": {Board: "TQBR", Symbol: "SBER", LotSize: decimal.NewFromInt(10), Decimals: 2},
			"TQBR.GAZP": {Board: "TQBR", Symbol: "GAZP", LotSize: decimal.NewFromInt(10), Decimals: 2},
		},
	}
}

func (g *fakeGateway) SubmitOrder(ctx context.Context, req gateway.OrderRequest) (gateway.PlaceResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failSubmit {
		return gateway.PlaceResult{}, errors.New("boom")
	}
	g.submits = append(g.submits, req)
	g.nextTxn++
	g.calls = append(g.calls, fmt.Sprintf("order %s.%s %s", req.Board, req.Symbol, req.Side))
	return gateway.PlaceResult{TransactionID: g.nextTxn}, nil
}

func (g *fakeGateway) SubmitStop(ctx context.Context, req gateway.StopRequest) (gateway.PlaceResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failSubmit {
		return gateway.PlaceResult{}, errors.New("boom")
	}
	g.stops = append(g.stops, req)
	g.nextStop++
	g.calls = append(g.calls, fmt.Sprintf("stop %s.%s %s", req.Board, req.Symbol, req.Side))
	return gateway.PlaceResult{StopID: g.nextStop}, nil
}

func (g *fakeGateway) CancelOrder(ctx context.Context, clientID string, transactionID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancels = append(g.cancels, transactionID)
	return nil
}

func (g *fakeGateway) CancelStop(ctx context.Context, clientID string, stopID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopCancels = append(g.stopCancels, stopID)
	return nil
}

func (g *fakeGateway) GetPortfolio(ctx context.Context, clientID string) (gateway.Portfolio, error) {
	return g.portfolio, nil
}

func (g *fakeGateway) GetInstrument(ctx context.Context, board, symbol string) (gateway.InstrumentInfo, error) {
	si, ok := g.instruments[board+"."+symbol]
	if !ok {
		return gateway.InstrumentInfo{}, errors.New("not found")
	}
	return si, nil
}

func (g *fakeGateway) SubscribeOrderEvents(ctx context.Context, clientIDs []string, fn gateway.EventHandler) (string, error) {
	g.handler = fn
	return "sub-1", nil
}

func (g *fakeGateway) Unsubscribe(subscriptionID string) error {
	return nil
}

func (g *fakeGateway) fire(ev gateway.OrderEvent) {
	g.handler(ev)
}

func newTestBroker(t *testing.T) (*Broker, *fakeGateway) {
	t.Helper()
	gw := newFakeGateway()
	b := New(gw, "D12345", false, zap.NewNop())
	require.NoError(t, b.Start(context.Background()))
	return b, gw
}

func drainStatuses(b *Broker) []types.OrderStatus {
	var out []types.OrderStatus
	for {
		n := b.PollNotification()
		if n == nil {
			return out
		}
		out = append(out, n.Status)
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func marketIntent(size string) OrderIntent {
	return OrderIntent{Board: "TQBR", Symbol: "SBER", Size: dec(size), Kind: types.OrderKindMarket, Transmit: true}
}

func limitIntent(size, price string) OrderIntent {
	return OrderIntent{Board: "TQBR", Symbol: "SBER", Size: dec(size), Kind: types.OrderKindLimit, Price: decp(price), Transmit: true}
}

func fullFill(o model.Order, price string) gateway.OrderEvent {
	return gateway.OrderEvent{
		TransactionID: o.TransactionID,
		Status:        types.EventStatusMatched,
		Side:          o.Side,
		Lots:          o.Size.Div(dec("10")).IntPart(),
		Price:         dec(price),
	}
}

func TestRejectUnsupportedKind(t *testing.T) {
	b, gw := newTestBroker(t)
	o := b.Buy(context.Background(), OrderIntent{
		Board: "TQBR", Symbol: "SBER", Size: dec("100"),
		Kind: types.OrderKindTrailingStop, Price: decp("250"), Transmit: true,
	})
	require.Equal(t, types.OrderStatusRejected, o.Status)
	require.Equal(t, types.RejectUnsupportedKind, o.RejectReason)
	require.Empty(t, gw.submits)
	require.Empty(t, gw.stops)
}

func TestRejectUnknownInstrument(t *testing.T) {
	b, gw := newTestBroker(t)
	o := b.Buy(context.Background(), OrderIntent{
		Board: "TQBR", Symbol: "NOPE", Size: dec("100"),
		Kind: types.OrderKindMarket, Transmit: true,
	})
	require.Equal(t, types.OrderStatusRejected, o.Status)
	require.Equal(t, types.RejectUnknownInstrument, o.RejectReason)
	require.Empty(t, gw.calls)
}

func TestRejectMissingPrice(t *testing.T) {
	b, gw := newTestBroker(t)
	o := b.Sell(context.Background(), OrderIntent{
		Board: "TQBR", Symbol: "SBER", Size: dec("100"),
		Kind: types.OrderKindLimit, Transmit: true,
	})
	require.Equal(t, types.OrderStatusRejected, o.Status)
	require.Equal(t, types.RejectMissingPrice, o.RejectReason)
	require.Empty(t, gw.calls)
}

func TestRejectStopLimitWithoutLimitPrice(t *testing.T) {
	b, gw := newTestBroker(t)
	o := b.Sell(context.Background(), OrderIntent{
		Board: "TQBR", Symbol: "SBER", Size: dec("100"),
		Kind: types.OrderKindStopLimit, Price: decp("240"), Transmit: true,
	})
	require.Equal(t, types.OrderStatusRejected, o.Status)
	require.Equal(t, types.RejectMissingLimitPrice, o.RejectReason)
	require.Empty(t, gw.calls)
}

func TestRejectParentNotFound(t *testing.T) {
	b, gw := newTestBroker(t)
	o := b.Sell(context.Background(), OrderIntent{
		Board: "TQBR", Symbol: "SBER", Size: dec("100"),
		Kind: types.OrderKindLimit, Price: decp("260"), ParentRef: 99, Transmit: false,
	})
	require.Equal(t, types.OrderStatusRejected, o.Status)
	require.Equal(t, types.RejectParentNotFound, o.RejectReason)
	require.Empty(t, gw.calls)
}

func TestMarketOrderAcceptedSynchronously(t *testing.T) {
	b, gw := newTestBroker(t)
	o := b.Buy(context.Background(), marketIntent("100"))
	require.Equal(t, types.OrderStatusAccepted, o.Status)
	require.Equal(t, int64(1), o.TransactionID)
	require.Len(t, gw.submits, 1)
	require.Equal(t, int64(10), gw.submits[0].Lots)
	require.Equal(t, []types.OrderStatus{
		types.OrderStatusSubmitted,
		types.OrderStatusAccepted,
	}, drainStatuses(b))
}

func TestGatewayErrorRejectsOrder(t *testing.T) {
	b, gw := newTestBroker(t)
	gw.failSubmit = true
	o := b.Buy(context.Background(), marketIntent("100"))
	require.Equal(t, types.OrderStatusRejected, o.Status)
	require.Equal(t, types.RejectGatewayError, o.RejectReason)
	require.Equal(t, []types.OrderStatus{
		types.OrderStatusSubmitted,
		types.OrderStatusRejected,
	}, drainStatuses(b))
}

func TestPriceRoundedToInstrumentDecimals(t *testing.T) {
	b, gw := newTestBroker(t)
	o := b.Buy(context.Background(), limitIntent("100", "250.12345"))
	require.Equal(t, types.OrderStatusAccepted, o.Status)
	require.Len(t, gw.submits, 1)
	require.True(t, gw.submits[0].Price.Equal(dec("250.12")), "got %s", gw.submits[0].Price)
}

func TestBracketChainSubmitsOnlyParent(t *testing.T) {
	b, gw := newTestBroker(t)
	ctx := context.Background()

	parent := b.Buy(ctx, OrderIntent{
		Board: "TQBR", Symbol: "SBER", Size: dec("100"),
		Kind: types.OrderKindMarket, Transmit: false,
	})
	require.Equal(t, types.OrderStatusCreated, parent.Status)
	require.Empty(t, gw.calls)

	takeProfit := b.Sell(ctx, OrderIntent{
		Board: "TQBR", Symbol: "SBER", Size: dec("100"),
		Kind: types.OrderKindLimit, Price: decp("260"),
		ParentRef: parent.Ref, Transmit: false,
	})
	require.Equal(t, types.OrderStatusCreated, takeProfit.Status)
	require.Empty(t, gw.calls)

	// The last link transmits, which submits the parent, not itself.
	last := b.Sell(ctx, OrderIntent{
		Board: "TQBR", Symbol: "SBER", Size: dec("100"),
		Kind: types.OrderKindStop, Price: decp("240"),
		ParentRef: parent.Ref, Transmit: true,
	})
	require.Equal(t, parent.Ref, last.Ref)
	require.Equal(t, types.OrderStatusAccepted, last.Status)
	require.Equal(t, []string{"order TQBR.SBER buy"}, gw.calls)

	// Parent completion releases both children in enqueue order.
	gw.fire(fullFill(last, "250"))
	require.Equal(t, []string{
		"order TQBR.SBER buy",
		"order TQBR.SBER sell",
		"stop TQBR.SBER sell",
	}, gw.calls)

	tp, ok := b.GetOrder(takeProfit.Ref)
	require.True(t, ok)
	require.Equal(t, types.OrderStatusAccepted, tp.Status)
}

func TestBracketSiblingCancelledWhenOneLegFires(t *testing.T) {
	b, gw := newTestBroker(t)
	ctx := context.Background()

	parent := b.Buy(ctx, OrderIntent{
		Board: "TQBR", Symbol: "SBER", Size: dec("100"),
		Kind: types.OrderKindMarket, Transmit: false,
	})
	takeProfit := b.Sell(ctx, OrderIntent{
		Board: "TQBR", Symbol: "SBER", Size: dec("100"),
		Kind: types.OrderKindLimit, Price: decp("260"),
		ParentRef: parent.Ref, Transmit: false,
	})
	// The last link places the chain and returns the submitted parent.
	submitted := b.Sell(ctx, OrderIntent{
		Board: "TQBR", Symbol: "SBER", Size: dec("100"),
		Kind: types.OrderKindStop, Price: decp("240"),
		ParentRef: parent.Ref, Transmit: true,
	})
	gw.fire(fullFill(submitted, "250"))

	tp, _ := b.GetOrder(takeProfit.Ref)
	require.Equal(t, types.OrderStatusAccepted, tp.Status)

	// Take-profit leg fills: the stop-loss sibling must be cancelled.
	gw.fire(fullFill(tp, "260"))
	require.Equal(t, []int64{1}, gw.stopCancels)
}

func TestRejectedParentRejectsQueuedChildren(t *testing.T) {
	b, gw := newTestBroker(t)
	ctx := context.Background()

	parent := b.Buy(ctx, OrderIntent{
		Board: "TQBR", Symbol: "SBER", Size: dec("100"),
		Kind: types.OrderKindMarket, Transmit: false,
	})
	child := b.Sell(ctx, OrderIntent{
		Board: "TQBR", Symbol: "SBER", Size: dec("100"),
		Kind: types.OrderKindLimit, Price: decp("260"),
		ParentRef: parent.Ref, Transmit: false,
	})
	gw.failSubmit = true
	last := b.Sell(ctx, OrderIntent{
		Board: "TQBR", Symbol: "SBER", Size: dec("100"),
		Kind: types.OrderKindStop, Price: decp("240"),
		ParentRef: parent.Ref, Transmit: true,
	})
	require.Equal(t, types.OrderStatusRejected, last.Status)

	got, _ := b.GetOrder(child.Ref)
	require.Equal(t, types.OrderStatusRejected, got.Status)
	require.Equal(t, types.RejectParentRejected, got.RejectReason)
	require.Empty(t, gw.submits)
}

func TestOCOCompletionCancelsPartner(t *testing.T) {
	b, gw := newTestBroker(t)
	ctx := context.Background()

	a := b.Buy(ctx, limitIntent("100", "250"))
	intent := limitIntent("100", "260")
	intent.OCORef = a.Ref
	partner := b.Sell(ctx, intent)
	require.Equal(t, types.OrderStatusAccepted, a.Status)
	require.Equal(t, types.OrderStatusAccepted, partner.Status)

	gw.fire(fullFill(a, "250"))
	require.Equal(t, []int64{partner.TransactionID}, gw.cancels)

	// The partner is not cancelled locally until the gateway confirms.
	got, _ := b.GetOrder(partner.Ref)
	require.Equal(t, types.OrderStatusAccepted, got.Status)

	gw.fire(gateway.OrderEvent{TransactionID: partner.TransactionID, Status: types.EventStatusCancelled})
	got, _ = b.GetOrder(partner.Ref)
	require.Equal(t, types.OrderStatusCanceled, got.Status)

	// Confirming the loser must not issue further cancels.
	require.Len(t, gw.cancels, 1)
}

func TestOCOLinkageWorksInBothDirections(t *testing.T) {
	b, gw := newTestBroker(t)
	ctx := context.Background()

	a := b.Buy(ctx, limitIntent("100", "250"))
	intent := limitIntent("100", "260")
	intent.OCORef = a.Ref
	partner := b.Sell(ctx, intent)

	// The order that completes is the one NAMED by the linkage, not the one
	// that declared it.
	gw.fire(fullFill(partner, "260"))
	require.Equal(t, []int64{a.TransactionID}, gw.cancels)
}

func TestDuplicateCancelledEventDropped(t *testing.T) {
	b, gw := newTestBroker(t)
	o := b.Buy(context.Background(), limitIntent("100", "250"))
	drainStatuses(b)

	ev := gateway.OrderEvent{TransactionID: o.TransactionID, Status: types.EventStatusCancelled}
	gw.fire(ev)
	gw.fire(ev)

	require.Equal(t, []types.OrderStatus{types.OrderStatusCanceled}, drainStatuses(b))
}

func TestUnknownOrderEventIgnored(t *testing.T) {
	b, gw := newTestBroker(t)
	gw.fire(gateway.OrderEvent{TransactionID: 777, Status: types.EventStatusMatched, Lots: 1, Price: dec("10")})
	require.Nil(t, b.PollNotification())
}

func TestInformationalEventsLeaveStateUntouched(t *testing.T) {
	b, gw := newTestBroker(t)
	o := b.Buy(context.Background(), limitIntent("100", "250"))
	drainStatuses(b)

	gw.fire(gateway.OrderEvent{TransactionID: o.TransactionID, Status: types.EventStatusNone})
	gw.fire(gateway.OrderEvent{TransactionID: o.TransactionID, Status: types.EventStatusActive})

	got, _ := b.GetOrder(o.Ref)
	require.Equal(t, types.OrderStatusAccepted, got.Status)
	require.Nil(t, b.PollNotification())
}

func TestPartialFillsNotifyOnceThenComplete(t *testing.T) {
	b, gw := newTestBroker(t)
	o := b.Buy(context.Background(), limitIntent("100", "250"))
	drainStatuses(b)

	fill := func(lots int64) gateway.OrderEvent {
		return gateway.OrderEvent{
			TransactionID: o.TransactionID,
			Status:        types.EventStatusMatched,
			Side:          types.OrderSideBuy,
			Lots:          lots,
			Price:         dec("250"),
		}
	}
	gw.fire(fill(4))
	gw.fire(fill(2))
	gw.fire(fill(4))

	require.Equal(t, []types.OrderStatus{
		types.OrderStatusPartiallyFilled,
		types.OrderStatusCompleted,
	}, drainStatuses(b))

	got, _ := b.GetOrder(o.Ref)
	require.True(t, got.RemainingSize.IsZero())
	require.True(t, got.ExecutedSize.Equal(dec("100")))
	pos := b.GetPosition("TQBR", "SBER")
	require.True(t, pos.Size.Equal(dec("100")))
	require.True(t, pos.AvgPrice.Equal(dec("250")))
}

func TestPartialFillDoesNotReconcileOCO(t *testing.T) {
	b, gw := newTestBroker(t)
	ctx := context.Background()

	a := b.Buy(ctx, limitIntent("100", "250"))
	intent := limitIntent("100", "260")
	intent.OCORef = a.Ref
	b.Sell(ctx, intent)

	gw.fire(gateway.OrderEvent{
		TransactionID: a.TransactionID,
		Status:        types.EventStatusMatched,
		Side:          types.OrderSideBuy,
		Lots:          4,
		Price:         dec("250"),
	})
	require.Empty(t, gw.cancels)
}

func TestCancelBufferedChildTerminatesLocally(t *testing.T) {
	b, gw := newTestBroker(t)
	ctx := context.Background()

	parent := b.Buy(ctx, OrderIntent{
		Board: "TQBR", Symbol: "SBER", Size: dec("100"),
		Kind: types.OrderKindMarket, Transmit: false,
	})
	child := b.Sell(ctx, OrderIntent{
		Board: "TQBR", Symbol: "SBER", Size: dec("100"),
		Kind: types.OrderKindLimit, Price: decp("260"),
		ParentRef: parent.Ref, Transmit: false,
	})
	b.Cancel(ctx, child.Ref)

	got, _ := b.GetOrder(child.Ref)
	require.Equal(t, types.OrderStatusCanceled, got.Status)
	// Never submitted, so nothing to cancel at the gateway.
	require.Empty(t, gw.cancels)
	require.Empty(t, gw.stopCancels)
}

func TestCancelTerminalOrderIsNoop(t *testing.T) {
	b, gw := newTestBroker(t)
	ctx := context.Background()
	o := b.Buy(ctx, limitIntent("100", "250"))
	gw.fire(fullFill(o, "250"))
	b.Cancel(ctx, o.Ref)
	require.Empty(t, gw.cancels)
}

func TestNextCycleSentinel(t *testing.T) {
	b, _ := newTestBroker(t)
	b.Buy(context.Background(), marketIntent("100"))
	b.NextCycle()
	require.NotNil(t, b.PollNotification())
	require.NotNil(t, b.PollNotification())
	require.Nil(t, b.PollNotification())
}
