package domain

import "errors"

var (
	// ErrWalletNotConnected is returned when no signer is available to authorize a settlement
	ErrWalletNotConnected = errors.New("wallet not connected")

	// ErrInvalidAddress is returned when a recipient address does not parse as a ledger public key
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInsufficientBalance is returned when the signer's token balance cannot cover the settlement
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAccountProvisioningFailed is returned when a required token account is still absent after provisioning
	ErrAccountProvisioningFailed = errors.New("account provisioning failed")

	// ErrSimulationFailed is returned when the dry run of a transaction reports an error
	ErrSimulationFailed = errors.New("simulation failed")

	// ErrTransactionFailed is returned when the ledger reports an execution error for a submitted transaction
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrConfirmationTimeout is returned when a submitted transaction is not confirmed within the allowed time
	ErrConfirmationTimeout = errors.New("confirmation timeout")

	// ErrLedgerRecordingFailed is returned when the order ledger write fails after an on-chain success
	ErrLedgerRecordingFailed = errors.New("ledger recording failed")

	// ErrAccountNotFound is returned when a token account does not exist on the ledger
	ErrAccountNotFound = errors.New("token account not found")

	// ErrInvalidAccountOwner is returned when an account exists but is not owned by the token program
	ErrInvalidAccountOwner = errors.New("invalid account owner")

	// ErrInvalidSplitRatio is returned when a split ratio does not add up to 100%
	ErrInvalidSplitRatio = errors.New("invalid split ratio")

	// ErrInvalidAmount is returned when a payment amount is zero, negative or not representable
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrOrderNotFound is returned when an order is not found in the order ledger
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidSignature is returned when a transaction signature does not parse
	ErrInvalidSignature = errors.New("invalid transaction signature")

	// ErrInvalidStateTransition is returned when a settlement state change is not allowed
	ErrInvalidStateTransition = errors.New("invalid settlement state transition")

	// ErrTransactionNotFound is returned when the ledger has no record of a transaction
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrPaymentMismatch is returned when a confirmed transaction does not pay an order's total to its recipients
	ErrPaymentMismatch = errors.New("payment does not match order")

	// ErrSignatureAlreadyUsed is returned when a transaction signature already settles another order
	ErrSignatureAlreadyUsed = errors.New("transaction signature already used")
)
