package service

import (
	"fmt"
	"strings"

	"github.com/montero-exchange/ledger/internal/domain"
)

var depositTransitions = map[string]map[string]struct{}{
	domain.DepositStatusPending: {
		domain.DepositStatusApproved: {},
		domain.DepositStatusRejected: {},
	},
	domain.DepositStatusApproved: {},
	domain.DepositStatusRejected: {},
}

var withdrawalTransitions = map[string]map[string]struct{}{
	domain.WithdrawalStatusPending: {
		domain.WithdrawalStatusCompleted: {},
		domain.WithdrawalStatusRejected:  {},
	},
	domain.WithdrawalStatusCompleted: {},
	domain.WithdrawalStatusRejected:  {},
}

var swapTransitions = map[string]map[string]struct{}{
	domain.SwapStatusPending: {
		domain.SwapStatusApproved:   {},
		domain.SwapStatusInProgress: {},
		domain.SwapStatusCancelled:  {},
	},
	domain.SwapStatusApproved: {
		domain.SwapStatusInProgress: {},
		domain.SwapStatusCancelled:  {},
	},
	// The IN_PROGRESS claim and the completion commit in one transaction,
	// so a persisted IN_PROGRESS means another settlement is in flight.
	domain.SwapStatusInProgress: {
		domain.SwapStatusCompleted: {},
	},
	domain.SwapStatusCompleted: {},
	domain.SwapStatusCancelled: {},
}

func normalizeState(state string) string {
	return strings.ToUpper(strings.TrimSpace(state))
}

func canTransition(transitions map[string]map[string]struct{}, current, next string) bool {
	current = normalizeState(current)
	next = normalizeState(next)
	nextStates, ok := transitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}

// guardTransition validates a settlement state change. Terminal states are
// absorbing, so a concurrent settlement surfaces here as ErrStateConflict.
func guardTransition(kind, current, next string) error {
	var transitions map[string]map[string]struct{}
	switch kind {
	case domain.TxKindDeposit:
		transitions = depositTransitions
	case domain.TxKindWithdrawal:
		transitions = withdrawalTransitions
	case domain.TxKindSwap:
		transitions = swapTransitions
	default:
		return fmt.Errorf("unknown transaction kind: %s", kind)
	}
	if !canTransition(transitions, current, next) {
		return fmt.Errorf("%w: %s %s -> %s", ErrStateConflict, strings.ToLower(kind), current, next)
	}
	return nil
}
