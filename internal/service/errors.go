package service

import "errors"

var (
	// ErrStateConflict reports that a transaction was already settled or
	// cancelled by a concurrent actor. It is a benign outcome, not a fault.
	ErrStateConflict = errors.New("transaction state conflict")

	// ErrInvalidAmount reports a zero or negative amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrNotMerchant reports that a peer-to-peer flow named a counterparty
	// without merchant standing.
	ErrNotMerchant = errors.New("counterparty is not a merchant")

	// ErrSettleWindow reports a swap settlement time outside the allowed window.
	ErrSettleWindow = errors.New("settlement time outside allowed window")

	// ErrNotDue reports a settlement attempt before a swap's scheduled time.
	ErrNotDue = errors.New("swap not yet due for settlement")

	// ErrSelfTransfer reports an internal transfer to the sender's own account.
	ErrSelfTransfer = errors.New("cannot transfer to own account")

	// ErrForbidden reports an actor without standing for the operation.
	ErrForbidden = errors.New("actor not permitted for this operation")
)
