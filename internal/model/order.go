package model

import (
	"time"

	"lv-finbroker/internal/types"

	"github.com/shopspring/decimal"
)

type Order struct {
	Ref           int64              `json:"ref"`
	ClientID      string             `json:"client_id"`
	Board         string             `json:"board"`
	Symbol        string             `json:"symbol"`
	Side          types.OrderSide    `json:"side"`
	Kind          types.OrderKind    `json:"kind"`
	Status        types.OrderStatus  `json:"status"`
	Size          decimal.Decimal    `json:"size"`
	RemainingSize decimal.Decimal    `json:"remaining_size"`
	ExecutedSize  decimal.Decimal    `json:"executed_size"`
	ExecutedPrice decimal.Decimal    `json:"executed_price"`
	Price         *decimal.Decimal   `json:"price"`
	LimitPrice    *decimal.Decimal   `json:"limit_price"`
	TransactionID int64              `json:"transaction_id,omitempty"`
	StopID        int64              `json:"stop_id,omitempty"`
	ParentRef     int64              `json:"parent_ref,omitempty"`
	OCORef        int64              `json:"oco_ref,omitempty"`
	Transmit      bool               `json:"transmit"`
	RejectReason  types.RejectReason `json:"reject_reason,omitempty"`

	// Fill accounting, updated on every matched event. FillOpened and
	// FillClosed are the opened/closed split of the latest fill;
	// PositionSize and PositionPrice are the post-fill position.
	FillOpened    decimal.Decimal `json:"fill_opened"`
	FillClosed    decimal.Decimal `json:"fill_closed"`
	PositionSize  decimal.Decimal `json:"position_size"`
	PositionPrice decimal.Decimal `json:"position_price"`

	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Clone returns a snapshot copy safe to hand outside the engine lock.
func (o *Order) Clone() Order {
	c := *o
	if o.Price != nil {
		p := *o.Price
		c.Price = &p
	}
	if o.LimitPrice != nil {
		p := *o.LimitPrice
		c.LimitPrice = &p
	}
	return c
}

func (o *Order) Alive() bool {
	return o.Status.Alive()
}
