package types

type OrderSide string

type OrderKind string

type OrderStatus string

type EventStatus string

type RejectReason string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

const (
	OrderKindMarket    OrderKind = "market"
	OrderKindLimit     OrderKind = "limit"
	OrderKindStop      OrderKind = "stop"
	OrderKindStopLimit OrderKind = "stop_limit"

	// Known to the wire format but not supported by the gateway.
	OrderKindClose             OrderKind = "close"
	OrderKindTrailingStop      OrderKind = "trailing_stop"
	OrderKindTrailingStopLimit OrderKind = "trailing_stop_limit"
	OrderKindHistorical        OrderKind = "historical"
)

const (
	OrderStatusCreated         OrderStatus = "created"
	OrderStatusSubmitted       OrderStatus = "submitted"
	OrderStatusAccepted        OrderStatus = "accepted"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusCompleted       OrderStatus = "completed"
	OrderStatusCanceled        OrderStatus = "canceled"
	OrderStatusRejected        OrderStatus = "rejected"
)

const (
	EventStatusNone      EventStatus = "none"
	EventStatusActive    EventStatus = "active"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusMatched   EventStatus = "matched"
)

const (
	RejectUnsupportedKind   RejectReason = "unsupported order type"
	RejectUnknownInstrument RejectReason = "unknown instrument"
	RejectMissingPrice      RejectReason = "missing price"
	RejectMissingLimitPrice RejectReason = "missing limit price"
	RejectParentNotFound    RejectReason = "parent order not found"
	RejectParentRejected    RejectReason = "parent order rejected"
	RejectGatewayError      RejectReason = "gateway error"
)

func (k OrderKind) Supported() bool {
	switch k {
	case OrderKindMarket, OrderKindLimit, OrderKindStop, OrderKindStopLimit:
		return true
	}
	return false
}

// IsStop reports whether the kind is routed through the stop-order gateway
// endpoints and carries a stop id instead of a transaction id.
func (k OrderKind) IsStop() bool {
	return k == OrderKindStop || k == OrderKindStopLimit
}

func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCanceled, OrderStatusRejected:
		return true
	}
	return false
}

func (s OrderStatus) Alive() bool {
	return !s.Terminal()
}
