package shared

// TransactionKind defines the balance operations the ledger understands
type TransactionKind string

const (
	TransactionKindDeposit       TransactionKind = "deposit"
	TransactionKindWithdrawal    TransactionKind = "withdrawal"
	TransactionKindSave          TransactionKind = "save"
	TransactionKindTopup         TransactionKind = "topup"
	TransactionKindLoan          TransactionKind = "loan"
	TransactionKindLoanRepayment TransactionKind = "loan_repayment"
)

// IsValid reports whether k is one of the supported kinds
func (k TransactionKind) IsValid() bool {
	switch k {
	case TransactionKindDeposit, TransactionKindWithdrawal, TransactionKindSave,
		TransactionKindTopup, TransactionKindLoan, TransactionKindLoanRepayment:
		return true
	}
	return false
}

// IsDebit reports whether the kind reduces the balance and therefore needs a funds check
func (k TransactionKind) IsDebit() bool {
	return k == TransactionKindWithdrawal || k == TransactionKindLoanRepayment
}

// TransactionStatus defines ledger entry states
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

func (s TransactionStatus) IsValid() bool {
	return s == TransactionStatusPending || s.IsTerminal()
}

// IsTerminal reports whether the status can no longer change
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed
}

// FailureReason defines why a pending transaction settled as failed
type FailureReason string

const (
	FailureReasonGatewayDeclined FailureReason = "GATEWAY_DECLINED"
	FailureReasonAmountMismatch  FailureReason = "AMOUNT_MISMATCH"
)

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
