package common

import "strings"

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return "UNKNOWN"
}

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ParseSide accepts "buy"/"sell" in any case.
func ParseSide(raw string) (Side, error) {
	switch strings.ToLower(raw) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	}
	return 0, ErrUnknownSide
}

// Quote is one side of the top of book: the best resting price and the
// aggregate quantity resting at that price. Callers represent an empty side
// as a nil *Quote, never as a zero price.
type Quote struct {
	Price    int64  `json:"price"`
	Quantity uint64 `json:"quantity"`
}
