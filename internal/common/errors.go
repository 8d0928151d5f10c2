package common

import "errors"

// All three are expected, recoverable outcomes reported to the caller as
// values. The engine itself never logs them.
var (
	ErrInvalidPrice    = errors.New("invalid price")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrOrderNotFound   = errors.New("order not found")

	// ErrOrderIDsExhausted fires if a side's id counter would wrap. Ids are
	// never reused, so after 2^64-1 orders on one side the engine refuses
	// new ones rather than silently recycling.
	ErrOrderIDsExhausted = errors.New("order ids exhausted")

	ErrUnknownSide = errors.New("unknown side")
)
