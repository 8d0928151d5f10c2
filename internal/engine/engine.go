package engine

import (
	"math"
	"sync"

	"skoll/internal/common"
)

// This is the main matching engine.

// Notifier receives the engine's two event callbacks. Implementations are
// pure observers: the engine ignores anything they do and invokes them
// in-line, from within the triggering AddOrder or RemoveOrder call.
type Notifier interface {
	// OrderTraded fires once per resting order consumed, carrying the
	// resting order's id and the resting order's price.
	OrderTraded(instrument string, orderID uint64, tradedPrice int64, tradedQuantity uint32)

	// BestPriceChanged fires at most once per call, whenever the best
	// price or best aggregate quantity on either side differs from before
	// the call. A nil quote means that side has no resting orders.
	BestPriceChanged(instrument string, bid, ask *common.Quote)
}

// Exchange is a multi-instrument limit order book matching engine with
// strict price-time priority.
//
// One mutex guards all state: a single AddOrder may touch several price
// levels and must present an all-or-nothing view to the notifier, so no
// finer-grained locking is safe.
type Exchange struct {
	mu    sync.Mutex
	books map[string]*book

	// Per-side id counters. An id is reserved on every accepted order,
	// even one that trades away completely, so each side's id sequence is
	// strictly monotonic and never reused. Bid and ask ids may collide as
	// raw integers; lookups always carry the side.
	bidOrderCount uint64
	askOrderCount uint64

	notifier Notifier
}

func New() *Exchange {
	return &Exchange{books: make(map[string]*book)}
}

// SetNotifier installs the observer for trade and top-of-book events.
// A nil notifier leaves the engine silent.
func (e *Exchange) SetNotifier(n Notifier) {
	e.notifier = n
}

// AddOrder admits a limit order. Validation happens before any mutation:
// a rejected order has no side effects and fires no notifications. On
// success the assigned id is returned even if the order traded away
// completely with no residual.
func (e *Exchange) AddOrder(instrument string, side common.Side, price int64, quantity uint32) (uint64, error) {
	if price <= 0 {
		return 0, common.ErrInvalidPrice
	}
	if quantity == 0 {
		return 0, common.ErrInvalidQuantity
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := e.nextID(side)
	if err != nil {
		return 0, err
	}

	bk := e.book(instrument)
	preBid, preAsk := bk.bids.top(), bk.asks.top()

	remaining := bk.match(side, price, quantity, func(restingID uint64, tradedPrice int64, tradedQuantity uint32) {
		if e.notifier != nil {
			e.notifier.OrderTraded(instrument, restingID, tradedPrice, tradedQuantity)
		}
	})
	if remaining > 0 {
		bk.side(side).insert(id, price, remaining)
	}

	e.notifyTopOfBook(instrument, bk, preBid, preAsk)
	return id, nil
}

// RemoveOrder cancels a resting order. It returns false, mutating nothing
// and firing nothing, when the id is unknown for that instrument and side;
// callers are expected to probe for already-filled orders.
func (e *Exchange) RemoveOrder(instrument string, side common.Side, orderID uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	bk, ok := e.books[instrument]
	if !ok {
		return false
	}
	preBid, preAsk := bk.bids.top(), bk.asks.top()
	if !bk.side(side).remove(orderID) {
		return false
	}
	e.notifyTopOfBook(instrument, bk, preBid, preAsk)
	return true
}

// book returns the instrument's book, creating both ladders the first time
// the instrument is seen.
func (e *Exchange) book(instrument string) *book {
	bk, ok := e.books[instrument]
	if !ok {
		bk = newBook()
		e.books[instrument] = bk
	}
	return bk
}

func (e *Exchange) nextID(side common.Side) (uint64, error) {
	counter := &e.bidOrderCount
	if side == common.Sell {
		counter = &e.askOrderCount
	}
	if *counter == math.MaxUint64 {
		return 0, common.ErrOrderIDsExhausted
	}
	id := *counter
	*counter++
	return id, nil
}

// notifyTopOfBook compares the current best bid and ask against their
// pre-call values and fires BestPriceChanged once if either side moved.
func (e *Exchange) notifyTopOfBook(instrument string, bk *book, preBid, preAsk *common.Quote) {
	bid, ask := bk.bids.top(), bk.asks.top()
	if quoteEqual(bid, preBid) && quoteEqual(ask, preAsk) {
		return
	}
	if e.notifier != nil {
		e.notifier.BestPriceChanged(instrument, bid, ask)
	}
}

func quoteEqual(a, b *common.Quote) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
