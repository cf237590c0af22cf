// Package broker implements the order lifecycle engine: it validates and
// submits order intents to the exchange gateway, reconciles asynchronous
// order events against local state, and keeps bracket and OCO groups
// consistent. All mutable state is owned by Broker and serialized behind a
// single mutex shared by the caller path and the event-stream path.
package broker

import (
	"context"
	"sync"

	"lv-finbroker/internal/gateway"
	"lv-finbroker/internal/model"
	"lv-finbroker/internal/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Broker struct {
	gw           gateway.Gateway
	clientID     string
	usePositions bool
	log          *zap.Logger

	ledger *PositionLedger

	mu            sync.Mutex
	refSeq        int64
	orders        map[int64]*model.Order
	orderRefs     []int64
	byTransaction map[int64]int64
	ocos          map[int64]int64
	chains        map[int64][]int64
	instruments   map[string]gateway.InstrumentInfo
	notifs        []*model.Order
	subscribers   []chan model.Order
	subID         string

	cash          decimal.Decimal
	value         decimal.Decimal
	startingCash  decimal.Decimal
	startingValue decimal.Decimal
}

func New(gw gateway.Gateway, clientID string, usePositions bool, log *zap.Logger) *Broker {
	return &Broker{
		gw:            gw,
		clientID:      clientID,
		usePositions:  usePositions,
		log:           log,
		ledger:        NewPositionLedger(clientID),
		orders:        make(map[int64]*model.Order),
		byTransaction: make(map[int64]int64),
		ocos:          make(map[int64]int64),
		chains:        make(map[int64][]int64),
		instruments:   make(map[string]gateway.InstrumentInfo),
	}
}

// Start restores positions and account value from the gateway portfolio
// snapshot and subscribes to the order event stream.
func (b *Broker) Start(ctx context.Context) error {
	if b.usePositions {
		if err := b.restorePositions(ctx); err != nil {
			return err
		}
	}
	cash, err := b.GetCash(ctx)
	if err != nil {
		return err
	}
	b.startingCash = cash
	value, err := b.GetValue(ctx)
	if err != nil {
		return err
	}
	b.startingValue = value
	subID, err := b.gw.SubscribeOrderEvents(ctx, []string{b.clientID}, b.OnOrderEvent)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.subID = subID
	b.mu.Unlock()
	b.log.Info("broker started",
		zap.String("client_id", b.clientID),
		zap.String("subscription", subID),
		zap.String("cash", cash.String()),
		zap.String("value", value.String()))
	return nil
}

func (b *Broker) Stop() {
	b.mu.Lock()
	subID := b.subID
	b.subID = ""
	b.mu.Unlock()
	if subID != "" {
		if err := b.gw.Unsubscribe(subID); err != nil {
			b.log.Warn("unsubscribe failed", zap.String("subscription", subID), zap.Error(err))
		}
	}
}

// OrderIntent is a raw order request from the strategy layer. Size is the
// positive requested quantity in units, not lots.
type OrderIntent struct {
	Board      string
	Symbol     string
	Size       decimal.Decimal
	Kind       types.OrderKind
	Price      *decimal.Decimal
	LimitPrice *decimal.Decimal
	OCORef     int64
	ParentRef  int64
	Transmit   bool
}

// Buy submits a buy intent. The returned order is already accepted,
// rejected, or buffered behind its bracket parent; a notification for it is
// queued either way.
func (b *Broker) Buy(ctx context.Context, intent OrderIntent) model.Order {
	return b.place(ctx, types.OrderSideBuy, intent)
}

func (b *Broker) Sell(ctx context.Context, intent OrderIntent) model.Order {
	return b.place(ctx, types.OrderSideSell, intent)
}

func (b *Broker) place(ctx context.Context, side types.OrderSide, intent OrderIntent) model.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	order := b.createOrder(ctx, side, intent)
	b.notify(order)
	return order.Clone()
}

// Cancel requests cancellation of an order. The request is fire-and-forget:
// the order stays in its current state until the gateway confirms the
// cancellation on the event stream.
func (b *Broker) Cancel(ctx context.Context, ref int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	order, ok := b.orders[ref]
	if !ok {
		return
	}
	b.cancelOrder(ctx, order)
}

func (b *Broker) GetOrder(ref int64) (model.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	order, ok := b.orders[ref]
	if !ok {
		return model.Order{}, false
	}
	return order.Clone(), true
}

func (b *Broker) Orders() []model.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Order, 0, len(b.orderRefs))
	for _, ref := range b.orderRefs {
		out = append(out, b.orders[ref].Clone())
	}
	return out
}

func (b *Broker) GetPosition(board, symbol string) model.Position {
	return b.ledger.Get(board, symbol)
}

func (b *Broker) Positions() []model.Position {
	return b.ledger.All()
}

// GetCash returns free funds across all currencies converted to the
// settlement currency via the gateway cross rates. The last known value is
// returned when the gateway is unreachable.
func (b *Broker) GetCash(ctx context.Context) (decimal.Decimal, error) {
	portfolio, err := b.gw.GetPortfolio(ctx, b.clientID)
	if err != nil {
		b.log.Warn("portfolio unavailable, returning cached cash", zap.Error(err))
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.cash, nil
	}
	cash := decimal.Zero
	for _, money := range portfolio.Money {
		cash = cash.Add(money.Balance.Mul(crossRate(portfolio, money.Currency)))
	}
	b.mu.Lock()
	b.cash = cash
	b.mu.Unlock()
	return cash, nil
}

// GetValue returns the market value of open positions. With no arguments it
// is the whole account (equity minus cash); with symbols it sums the equity
// of the matching positions only.
func (b *Broker) GetValue(ctx context.Context, symbols ...string) (decimal.Decimal, error) {
	portfolio, err := b.gw.GetPortfolio(ctx, b.clientID)
	if err != nil {
		b.log.Warn("portfolio unavailable, returning cached value", zap.Error(err))
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.value, nil
	}
	var value decimal.Decimal
	if len(symbols) == 0 {
		cash := decimal.Zero
		for _, money := range portfolio.Money {
			cash = cash.Add(money.Balance.Mul(crossRate(portfolio, money.Currency)))
		}
		value = portfolio.Equity.Sub(cash)
	} else {
		want := make(map[string]bool, len(symbols))
		for _, s := range symbols {
			want[s] = true
		}
		for _, pos := range portfolio.Positions {
			if want[pos.Symbol] {
				value = value.Add(pos.Equity.Mul(crossRate(portfolio, pos.Currency)))
			}
		}
	}
	b.mu.Lock()
	b.value = value
	b.mu.Unlock()
	return value, nil
}

func (b *Broker) StartingCash() decimal.Decimal {
	return b.startingCash
}

func (b *Broker) StartingValue() decimal.Decimal {
	return b.startingValue
}

func (b *Broker) Account() model.AccountSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return model.AccountSummary{ClientID: b.clientID, Cash: b.cash, Value: b.value}
}

func (b *Broker) restorePositions(ctx context.Context) error {
	portfolio, err := b.gw.GetPortfolio(ctx, b.clientID)
	if err != nil {
		return err
	}
	for _, pos := range portfolio.Positions {
		if pos.Balance.IsZero() {
			continue
		}
		rate := crossRate(portfolio, pos.Currency)
		b.ledger.Set(pos.Board, pos.Symbol, pos.Balance, pos.AveragePrice.Mul(rate))
	}
	return nil
}

func crossRate(p gateway.Portfolio, currency string) decimal.Decimal {
	for _, c := range p.Currencies {
		if c.Currency == currency {
			return c.Rate
		}
	}
	return decimal.NewFromInt(1)
}

// instrument returns cached instrument metadata, falling back to the
// gateway. The cache keeps the event path free of network calls.
func (b *Broker) instrument(ctx context.Context, board, symbol string) (gateway.InstrumentInfo, bool) {
	key := board + "." + symbol
	if si, ok := b.instruments[key]; ok {
		return si, true
	}
	si, err := b.gw.GetInstrument(ctx, board, symbol)
	if err != nil || si.LotSize.IsZero() {
		return gateway.InstrumentInfo{}, false
	}
	b.instruments[key] = si
	return si, true
}
