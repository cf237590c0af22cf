package gateway

import (
	"context"
	"errors"
)

var errNotConfigured = errors.New("gateway not configured")

type DisabledGateway struct{}

func NewDisabledGateway() *DisabledGateway {
	return &DisabledGateway{}
}

func (g *DisabledGateway) SubmitOrder(ctx context.Context, req OrderRequest) (PlaceResult, error) {
	return PlaceResult{}, errNotConfigured
}

func (g *DisabledGateway) SubmitStop(ctx context.Context, req StopRequest) (PlaceResult, error) {
	return PlaceResult{}, errNotConfigured
}

func (g *DisabledGateway) CancelOrder(ctx context.Context, clientID string, transactionID int64) error {
	return errNotConfigured
}

func (g *DisabledGateway) CancelStop(ctx context.Context, clientID string, stopID int64) error {
	return errNotConfigured
}

func (g *DisabledGateway) GetPortfolio(ctx context.Context, clientID string) (Portfolio, error) {
	return Portfolio{}, errNotConfigured
}

func (g *DisabledGateway) GetInstrument(ctx context.Context, board, symbol string) (InstrumentInfo, error) {
	return InstrumentInfo{}, errNotConfigured
}

func (g *DisabledGateway) SubscribeOrderEvents(ctx context.Context, clientIDs []string, fn EventHandler) (string, error) {
	return "", errNotConfigured
}

func (g *DisabledGateway) Unsubscribe(subscriptionID string) error {
	return errNotConfigured
}
