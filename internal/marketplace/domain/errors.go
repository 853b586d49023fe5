package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrVerificationFailed = errors.New("payment verification failed")
	ErrInconsistentState  = errors.New("inconsistent state")
	ErrNotOwner           = errors.New("only the seller can modify this item")
	ErrUnauthenticated    = errors.New("caller principal required")
	ErrLedgerUnavailable  = errors.New("ledger unavailable")
)

// ErrItemNotFound and ErrOrderNotFound are both of kind ErrNotFound.
var (
	ErrItemNotFound  = fmt.Errorf("item %w", ErrNotFound)
	ErrOrderNotFound = fmt.Errorf("pending order %w", ErrNotFound)
)
