package broker

import (
	"sync"

	"lv-finbroker/internal/model"

	"github.com/shopspring/decimal"
)

// PositionLedger tracks per-instrument positions for one trading account.
// Update is the only mutation path and is driven exclusively by fills.
type PositionLedger struct {
	mu        sync.Mutex
	clientID  string
	positions map[string]*model.Position
}

func NewPositionLedger(clientID string) *PositionLedger {
	return &PositionLedger{clientID: clientID, positions: make(map[string]*model.Position)}
}

func positionKey(board, symbol string) string {
	return board + "." + symbol
}

// Set replaces a position outright. Used when restoring state from the
// gateway portfolio snapshot at startup.
func (l *PositionLedger) Set(board, symbol string, size, avgPrice decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.positions[positionKey(board, symbol)] = &model.Position{
		ClientID: l.clientID,
		Board:    board,
		Symbol:   symbol,
		Size:     size,
		AvgPrice: avgPrice,
	}
}

func (l *PositionLedger) Get(board, symbol string) model.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.positions[positionKey(board, symbol)]; ok {
		return *p
	}
	return model.Position{ClientID: l.clientID, Board: board, Symbol: symbol}
}

func (l *PositionLedger) All() []model.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	return out
}

// Update applies a signed fill to the position and returns the post-fill
// size and average price plus the split of the fill into opened quantity
// (exposure established or extended) and closed quantity (opposite exposure
// reduced). Both split values are absolute; opened+closed equals the fill
// magnitude. A fill that crosses zero closes the old position at its average
// price and opens the remainder at the fill price.
func (l *PositionLedger) Update(board, symbol string, size, price decimal.Decimal) (psize, pprice, opened, closed decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := positionKey(board, symbol)
	pos, ok := l.positions[key]
	if !ok {
		pos = &model.Position{ClientID: l.clientID, Board: board, Symbol: symbol}
		l.positions[key] = pos
	}

	oldSize := pos.Size
	newSize := oldSize.Add(size)
	switch {
	case oldSize.IsZero():
		opened = size.Abs()
		closed = decimal.Zero
		pos.AvgPrice = price
	case oldSize.Sign() == size.Sign():
		// Same-direction extension: weighted average entry price.
		opened = size.Abs()
		closed = decimal.Zero
		pos.AvgPrice = oldSize.Mul(pos.AvgPrice).Add(size.Mul(price)).Div(newSize)
	case newSize.Sign() == oldSize.Sign():
		// Partial close, direction kept; entry price is untouched.
		opened = decimal.Zero
		closed = size.Abs()
	case newSize.IsZero():
		opened = decimal.Zero
		closed = size.Abs()
		pos.AvgPrice = decimal.Zero
	default:
		// Fill crosses zero: the old exposure is fully closed and the
		// remainder opens a position in the opposite direction.
		closed = oldSize.Abs()
		opened = newSize.Abs()
		pos.AvgPrice = price
	}
	pos.Size = newSize
	return pos.Size, pos.AvgPrice, opened, closed
}
