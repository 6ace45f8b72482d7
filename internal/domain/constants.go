package domain

// Transaction record kinds, used in admin log rows and notifications.
const (
	TxKindDeposit    = "deposit"
	TxKindWithdrawal = "withdrawal"
	TxKindSwap       = "swap"
)

// Deposit statuses.
const (
	DepositStatusPending  = "PENDING"
	DepositStatusApproved = "APPROVED"
	DepositStatusRejected = "REJECTED"
)

// Withdrawal statuses.
const (
	WithdrawalStatusPending   = "PENDING"
	WithdrawalStatusCompleted = "COMPLETED"
	WithdrawalStatusRejected  = "REJECTED"
)

// Swap statuses.
const (
	SwapStatusPending    = "PENDING"
	SwapStatusApproved   = "APPROVED"
	SwapStatusInProgress = "IN_PROGRESS"
	SwapStatusCompleted  = "COMPLETED"
	SwapStatusCancelled  = "CANCELLED"
)

// Deposit methods.
const (
	DepositMethodDirect   = "DIRECT"
	DepositMethodMerchant = "BANK_TRANSFER"
)

// Withdrawal methods.
const (
	WithdrawalMethodInternal = "INTERNAL"
	WithdrawalMethodExternal = "EXTERNAL"
	WithdrawalMethodBank     = "BANK"
)

// Trade leg sides recorded at swap settlement.
const (
	TradeSideBuy  = "BUY"
	TradeSideSell = "SELL"
)

// Admin log actions.
const (
	ActionApproved       = "APPROVED"
	ActionRejected       = "REJECTED"
	ActionCancelled      = "CANCELLED"
	ActionForceCompleted = "FORCE_COMPLETED"
	ActionSettled        = "SETTLED"
	ActionFrozen         = "FROZEN"
	ActionUnfrozen       = "UNFROZEN"
)

// Auth roles carried in JWT claims.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
