package settlement

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/feral-file/ff-settlement/internal/domain"
)

// InsufficientBalanceError reports a signer balance below the settlement total
type InsufficientBalanceError struct {
	Available uint64
	Required  uint64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s USDC, required %s USDC",
		FormatUnits(e.Available), FormatUnits(e.Required))
}

func (e *InsufficientBalanceError) Unwrap() error {
	return domain.ErrInsufficientBalance
}

// ProvisioningError reports a provisioning transaction that did not leave the required token
// accounts in place. No settlement transfer was submitted.
// The provisioning outcome is carried as Reason and never unwraps to a payment error.
type ProvisioningError struct {
	Owner     solana.PublicKey
	Signature *solana.Signature
	Reason    string
}

func (e *ProvisioningError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("account provisioning failed for %s: %s", e.Owner, e.Reason)
	}
	return fmt.Sprintf("account provisioning failed: token account for %s is still missing", e.Owner)
}

func (e *ProvisioningError) Unwrap() error {
	return domain.ErrAccountProvisioningFailed
}

// SimulationError reports a failed dry run; nothing was submitted
type SimulationError struct {
	Payload string
	Logs    []string
	Err     error
}

func (e *SimulationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("simulation failed: %v", e.Err)
	}
	return fmt.Sprintf("simulation failed: %s", e.Payload)
}

func (e *SimulationError) Unwrap() []error {
	if e.Err != nil {
		return []error{domain.ErrSimulationFailed, e.Err}
	}
	return []error{domain.ErrSimulationFailed}
}

// TransactionFailedError reports a submission rejected by the ledger or an execution error.
// Signature is nil when the transaction never reached the ledger.
type TransactionFailedError struct {
	Signature *solana.Signature
	Payload   string
	Err       error
}

func (e *TransactionFailedError) Error() string {
	var b strings.Builder
	b.WriteString("transaction failed")
	if e.Signature != nil {
		fmt.Fprintf(&b, " (%s)", e.Signature)
	}
	if e.Payload != "" {
		fmt.Fprintf(&b, ": %s", e.Payload)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *TransactionFailedError) Unwrap() []error {
	if e.Err != nil {
		return []error{domain.ErrTransactionFailed, e.Err}
	}
	return []error{domain.ErrTransactionFailed}
}

// ConfirmationTimeoutError reports a submitted transaction whose outcome is unknown.
// The payment may still land; OrderID is set when a pending order was recorded for reconciliation.
type ConfirmationTimeoutError struct {
	Signature   solana.Signature
	ExplorerURL string
	Timeout     time.Duration
	OrderID     string
	// AttemptKey addresses the persisted settlement state, left confirming until reconciled
	AttemptKey string
	Cause      error
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("transaction %s not confirmed within %s, pending verification: %s",
		e.Signature, e.Timeout, e.ExplorerURL)
}

func (e *ConfirmationTimeoutError) Unwrap() []error {
	if e.Cause != nil {
		return []error{domain.ErrConfirmationTimeout, e.Cause}
	}
	return []error{domain.ErrConfirmationTimeout}
}

// PaymentMismatchError reports a confirmed transaction that credits the order's recipients
// less than the order total
type PaymentMismatchError struct {
	Signature solana.Signature
	OrderID   string
	Required  uint64
	Received  uint64
}

func (e *PaymentMismatchError) Error() string {
	return fmt.Sprintf("transaction %s credits %s USDC to the recipients of order %s, %s USDC required",
		e.Signature, FormatUnits(e.Received), e.OrderID, FormatUnits(e.Required))
}

func (e *PaymentMismatchError) Unwrap() error {
	return domain.ErrPaymentMismatch
}

// LedgerRecordingError reports an order ledger write that failed after an on-chain success.
// It is attached to successful results and never returned as the settlement error.
type LedgerRecordingError struct {
	Signatures []string
	Err        error
}

func (e *LedgerRecordingError) Error() string {
	return fmt.Sprintf("ledger recording failed for %s: %v", strings.Join(e.Signatures, ","), e.Err)
}

func (e *LedgerRecordingError) Unwrap() []error {
	return []error{domain.ErrLedgerRecordingFailed, e.Err}
}

// BatchSettlementError reports a batch that stopped at a failing item.
// Completed holds the settlements that landed before the failure; OrderID is their completed order.
// PendingOrderID is the separate order of a failed item whose transfer timed out.
type BatchSettlementError struct {
	Completed      []ItemSettlement
	FailedIndex    int
	FailedItem     string
	OrderID        string
	PendingOrderID string
	// AttemptKey addresses the settlement state of the failed item, empty when no attempt started
	AttemptKey string
	Err        error
}

func (e *BatchSettlementError) Error() string {
	return fmt.Sprintf("batch settlement stopped at item %d (%s) after %d completed: %v",
		e.FailedIndex, e.FailedItem, len(e.Completed), e.Err)
}

func (e *BatchSettlementError) Unwrap() error {
	return e.Err
}

// Signatures returns the signatures of the completed settlements
func (e *BatchSettlementError) Signatures() []solana.Signature {
	signatures := make([]solana.Signature, 0, len(e.Completed))
	for _, s := range e.Completed {
		signatures = append(signatures, s.Signature)
	}
	return signatures
}

// SubmittedSignature returns the signature carried by a post-submission error, nil otherwise
func SubmittedSignature(err error) *solana.Signature {
	var timeoutErr *ConfirmationTimeoutError
	if errors.As(err, &timeoutErr) {
		sig := timeoutErr.Signature
		return &sig
	}
	var failedErr *TransactionFailedError
	if errors.As(err, &failedErr) {
		return failedErr.Signature
	}
	return nil
}

// UserMessage maps a settlement error to caller-facing text.
// A timeout is never reported as a failed payment.
func UserMessage(err error) string {
	var balanceErr *InsufficientBalanceError
	var timeoutErr *ConfirmationTimeoutError

	switch {
	case err == nil:
		return "Payment completed."
	case errors.Is(err, domain.ErrWalletNotConnected):
		return "Connect a wallet to pay."
	case errors.Is(err, domain.ErrInvalidAddress):
		return "The recipient address on file is invalid. No funds were moved."
	case errors.As(err, &balanceErr):
		return fmt.Sprintf("Insufficient USDC balance: you have %s USDC but %s USDC is required.",
			FormatUnits(balanceErr.Available), FormatUnits(balanceErr.Required))
	case errors.Is(err, domain.ErrAccountProvisioningFailed):
		return "Could not prepare the recipient token account. No payment was sent."
	case errors.Is(err, domain.ErrSimulationFailed):
		return "The payment would fail on-chain and was not sent."
	case errors.As(err, &timeoutErr):
		return fmt.Sprintf("Payment submitted and pending verification. Track it at %s", timeoutErr.ExplorerURL)
	case errors.Is(err, domain.ErrTransactionFailed):
		return "The payment transaction failed on-chain."
	case errors.Is(err, domain.ErrPaymentMismatch):
		return "The transaction does not pay this order."
	case errors.Is(err, domain.ErrSignatureAlreadyUsed):
		return "This transaction was already used for another order."
	default:
		return "Payment could not be completed."
	}
}
