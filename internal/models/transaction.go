package models

import "time"

// TransactionKind is the discriminator of the Transaction union.
type TransactionKind string

const (
	TransactionDeposit          TransactionKind = "deposit"
	TransactionCharge           TransactionKind = "charge"
	TransactionTransfer         TransactionKind = "transfer"
	TransactionAllocationUpdate TransactionKind = "allocation_update"
)

// Transaction is an immutable audit record of one applied operation.
// Fields that do not apply to a kind are left at their zero value.
type Transaction struct {
	ID                 string          `json:"id"`
	Kind               TransactionKind `json:"type"`
	TransactionID      string          `json:"transactionId"`
	AffectedAllocation string          `json:"affectedAllocationId"`
	Change             int64           `json:"change"`
	ActionPerformedBy  string          `json:"actionPerformedBy"`
	Description        string          `json:"description"`
	CreatedAt          time.Time       `json:"createdAt"`

	// Charge
	Units            int64             `json:"units,omitempty"`
	NumberOfProducts int64             `json:"numberOfProducts,omitempty"`
	Product          *ProductReference `json:"product,omitempty"`

	// Deposit, transfer, charge payer
	TargetWallet *WalletOwner      `json:"targetWallet,omitempty"`
	Category     ProductCategoryID `json:"productCategory"`

	// Transfer
	TransferFromWallet *WalletOwner `json:"transferFromWallet,omitempty"`

	// Allocation update
	StartDate *int64 `json:"startDate,omitempty"`
	EndDate   *int64 `json:"endDate,omitempty"`
}
