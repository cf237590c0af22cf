// Package gateway is the boundary to the remote exchange trade API. The
// broker engine only depends on the Gateway interface; the Client in this
// package speaks the HTTP/WebSocket wire protocol.
package gateway

import (
	"context"

	"lv-finbroker/internal/types"

	"github.com/shopspring/decimal"
)

type OrderRequest struct {
	ClientID string
	Board    string
	Symbol   string
	Side     types.OrderSide
	Lots     int64
	Price    *decimal.Decimal
}

type StopRequest struct {
	ClientID        string
	Board           string
	Symbol          string
	Side            types.OrderSide
	Lots            int64
	ActivationPrice decimal.Decimal
	LimitPrice      *decimal.Decimal
}

type PlaceResult struct {
	TransactionID int64 `json:"transaction_id"`
	StopID        int64 `json:"stop_id"`
}

// OrderEvent is one entry of the order/trade event stream. Quantities come
// in lots; the engine converts them with the instrument lot size.
type OrderEvent struct {
	TransactionID int64             `json:"transaction_id"`
	Status        types.EventStatus `json:"status"`
	Side          types.OrderSide   `json:"side"`
	Lots          int64             `json:"lots"`
	Price         decimal.Decimal   `json:"price"`
}

type MoneyBalance struct {
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

type CrossRate struct {
	Currency string          `json:"currency"`
	Rate     decimal.Decimal `json:"rate"`
}

type PortfolioPosition struct {
	Board        string          `json:"board"`
	Symbol       string          `json:"symbol"`
	Balance      decimal.Decimal `json:"balance"`
	AveragePrice decimal.Decimal `json:"average_price"`
	Equity       decimal.Decimal `json:"equity"`
	Currency     string          `json:"currency"`
}

type Portfolio struct {
	Equity     decimal.Decimal     `json:"equity"`
	Money      []MoneyBalance      `json:"money"`
	Currencies []CrossRate         `json:"currencies"`
	Positions  []PortfolioPosition `json:"positions"`
}

type InstrumentInfo struct {
	Board    string          `json:"board"`
	Symbol   string          `json:"symbol"`
	LotSize  decimal.Decimal `json:"lot_size"`
	Decimals int32           `json:"decimals"`
}

// EventHandler receives order events in stream order. The subscription
// invokes it from a single goroutine per subscription.
type EventHandler func(OrderEvent)

type Gateway interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (PlaceResult, error)
	SubmitStop(ctx context.Context, req StopRequest) (PlaceResult, error)

	// CancelOrder and CancelStop are fire-and-forget: a nil error means the
	// request was delivered, not that the order is cancelled. Confirmation
	// arrives on the event stream.
	CancelOrder(ctx context.Context, clientID string, transactionID int64) error
	CancelStop(ctx context.Context, clientID string, stopID int64) error

	GetPortfolio(ctx context.Context, clientID string) (Portfolio, error)
	GetInstrument(ctx context.Context, board, symbol string) (InstrumentInfo, error)

	SubscribeOrderEvents(ctx context.Context, clientIDs []string, fn EventHandler) (string, error)
	Unsubscribe(subscriptionID string) error
}
