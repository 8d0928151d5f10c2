package engine

import "skoll/internal/common"

// Level is a flattened view of one price level, best-first when returned
// from Levels. Display and diagnostics only; never part of the matching
// path.
type Level struct {
	Price  int64        `json:"price"`
	Volume uint64       `json:"volume"`
	Orders []LevelOrder `json:"orders"`
}

type LevelOrder struct {
	OrderID  uint64 `json:"order_id"`
	Quantity uint32 `json:"quantity"`
}

// Levels returns one side of an instrument's book in matching priority
// order. The result is a copy and stays valid after further book mutation.
func (e *Exchange) Levels(instrument string, side common.Side) []Level {
	e.mu.Lock()
	defer e.mu.Unlock()

	bk, ok := e.books[instrument]
	if !ok {
		return nil
	}
	lad := bk.side(side)
	out := make([]Level, 0, lad.levels.Len())
	lad.levels.Scan(func(level *priceLevel) bool {
		flat := Level{
			Price:  level.price,
			Volume: level.volume,
			Orders: make([]LevelOrder, 0, len(level.orders)),
		}
		for _, o := range level.orders {
			flat.Orders = append(flat.Orders, LevelOrder{OrderID: o.id, Quantity: o.quantity})
		}
		out = append(out, flat)
		return true
	})
	return out
}

// BestQuotes returns the current top of book for an instrument. A nil quote
// means that side is empty; an unknown instrument has two empty sides.
func (e *Exchange) BestQuotes(instrument string) (bid, ask *common.Quote) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bk, ok := e.books[instrument]
	if !ok {
		return nil, nil
	}
	return bk.bids.top(), bk.asks.top()
}
