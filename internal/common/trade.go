package common

import (
	"fmt"
	"time"
)

// Trade records one fill against a resting order. The id and price are
// always the resting (passive) order's; the passive side sets the execution
// price.
type Trade struct {
	Instrument string
	OrderID    uint64
	Price      int64
	Quantity   uint32
	Timestamp  time.Time
}

func (t Trade) String() string {
	return fmt.Sprintf("%s: order %d traded %d @ %d",
		t.Instrument, t.OrderID, t.Quantity, t.Price)
}
