package model

import "github.com/shopspring/decimal"

type Position struct {
	ClientID string          `json:"client_id"`
	Board    string          `json:"board"`
	Symbol   string          `json:"symbol"`
	Size     decimal.Decimal `json:"size"`
	AvgPrice decimal.Decimal `json:"avg_price"`
}

type AccountSummary struct {
	ClientID string          `json:"client_id"`
	Cash     decimal.Decimal `json:"cash"`
	Value    decimal.Decimal `json:"value"`
}
