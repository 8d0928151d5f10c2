package engine

import (
	"github.com/tidwall/btree"

	"skoll/internal/common"
)

// order is a resting order. Identity and admission price never change for
// the order's lifetime; quantity is decremented in place on partial fills
// and an order is dropped the moment it reaches zero.
type order struct {
	id       uint64
	quantity uint32
}

// priceLevel holds every resting order at one exact price on one side, in
// strict arrival order, plus the level's aggregate resting quantity. The
// aggregate is maintained incrementally so top-of-book queries never rescan
// the queue.
type priceLevel struct {
	price  int64
	volume uint64
	orders []*order
}

type priceLevels = btree.BTreeG[*priceLevel]

// ladder is one side of one instrument's book: price levels kept in
// matching priority order, plus an id index giving O(1) cancel location.
// The index is scoped to the ladder, so aggregates and lookups for the same
// price on different instruments never collide.
type ladder struct {
	levels *priceLevels
	index  map[uint64]int64 // order id -> admission price
}

func newLadder(side common.Side) *ladder {
	var less func(a, b *priceLevel) bool
	if side == common.Buy {
		// Sorted greatest first, so the best bid is the min item.
		less = func(a, b *priceLevel) bool { return a.price > b.price }
	} else {
		// Sorted least first, so the best ask is the min item.
		less = func(a, b *priceLevel) bool { return a.price < b.price }
	}
	return &ladder{
		levels: btree.NewBTreeG(less),
		index:  make(map[uint64]int64),
	}
}

// top returns the best level's price and aggregate quantity, or nil if the
// side has no resting orders.
func (l *ladder) top() *common.Quote {
	best, ok := l.levels.Min()
	if !ok {
		return nil
	}
	return &common.Quote{Price: best.price, Quantity: best.volume}
}

// insert rests an order at the tail of its price level, creating the level
// if absent.
func (l *ladder) insert(id uint64, price int64, quantity uint32) {
	o := &order{id: id, quantity: quantity}
	level, ok := l.levels.GetMut(&priceLevel{price: price})
	if ok {
		level.orders = append(level.orders, o)
		level.volume += uint64(quantity)
	} else {
		l.levels.Set(&priceLevel{
			price:  price,
			volume: uint64(quantity),
			orders: []*order{o},
		})
	}
	l.index[id] = price
}

// remove cancels a resting order by id. The relative order of the level's
// remaining orders is undisturbed, and an emptied level is dropped from the
// ladder in the same step.
func (l *ladder) remove(id uint64) bool {
	price, ok := l.index[id]
	if !ok {
		return false
	}
	level, ok := l.levels.GetMut(&priceLevel{price: price})
	if !ok {
		return false
	}
	for i, o := range level.orders {
		if o.id != id {
			continue
		}
		level.volume -= uint64(o.quantity)
		level.orders = append(level.orders[:i], level.orders[i+1:]...)
		delete(l.index, id)
		if len(level.orders) == 0 {
			l.levels.Delete(level)
		}
		return true
	}
	return false
}

// book pairs the two ladders of one instrument. Both sides exist for the
// instrument's whole lifetime, even while one has no resting interest.
type book struct {
	bids *ladder
	asks *ladder
}

func newBook() *book {
	return &book{
		bids: newLadder(common.Buy),
		asks: newLadder(common.Sell),
	}
}

func (b *book) side(s common.Side) *ladder {
	if s == common.Buy {
		return b.bids
	}
	return b.asks
}

// marketable reports whether a resting level on the opposite side crosses
// an incoming order at price. This is the single rule deciding which side
// trades: a buy lifts levels at or below its price, a sell hits levels at
// or above.
func marketable(side common.Side, incoming, level int64) bool {
	if side == common.Buy {
		return level <= incoming
	}
	return level >= incoming
}

// match walks the opposite ladder from its best level outward while the
// incoming order is still marketable against it, consuming resting orders
// in strict arrival order. fill is invoked once per resting order touched,
// always at the resting order's price. Emptied levels are removed before
// the walk advances. Returns the incoming order's unmatched remainder.
func (b *book) match(side common.Side, price int64, quantity uint32, fill func(restingID uint64, tradedPrice int64, tradedQuantity uint32)) uint32 {
	opp := b.side(side.Opposite())
	remaining := quantity
	for remaining > 0 {
		level, ok := opp.levels.MinMut()
		if !ok || !marketable(side, price, level.price) {
			break
		}
		var consumed int
		for _, resting := range level.orders {
			if remaining == 0 {
				break
			}
			if resting.quantity <= remaining {
				// The resting order trades out completely.
				fill(resting.id, level.price, resting.quantity)
				remaining -= resting.quantity
				level.volume -= uint64(resting.quantity)
				delete(opp.index, resting.id)
				consumed++
			} else {
				// The incoming order exhausts itself against part of the
				// resting order, which keeps its queue position.
				fill(resting.id, level.price, remaining)
				resting.quantity -= remaining
				level.volume -= uint64(remaining)
				remaining = 0
			}
		}
		if consumed > 0 {
			level.orders = level.orders[consumed:]
		}
		if len(level.orders) == 0 {
			opp.levels.Delete(level)
		}
	}
	return remaining
}
