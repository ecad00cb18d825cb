package handlers

import (
	"context"

	"github.com/jmylchreest/wallet-engine/internal/service"
)

// AccountingHandler serves the mutating accounting operations.
type AccountingHandler struct {
	svc *service.AccountingService
}

// NewAccountingHandler creates an accounting handler.
func NewAccountingHandler(svc *service.AccountingService) *AccountingHandler {
	return &AccountingHandler{svc: svc}
}

// TransactionRef echoes the idempotency key an item was applied under.
type TransactionRef struct {
	TransactionID string `json:"transactionId"`
}

// BulkOutput is the response of the non-charge bulk operations.
type BulkOutput struct {
	Body struct {
		Responses []TransactionRef `json:"responses"`
	}
}

func bulkOutput(ids []string) *BulkOutput {
	out := &BulkOutput{}
	out.Body.Responses = make([]TransactionRef, len(ids))
	for i, id := range ids {
		out.Body.Responses[i] = TransactionRef{TransactionID: id}
	}
	return out
}

// ChargeInput is the request of charge and check.
type ChargeInput struct {
	Body struct {
		Items []service.ChargeItem `json:"items" minItems:"1"`
	}
}

// ChargeOutput holds one result per item; false means insufficient funds.
type ChargeOutput struct {
	Body struct {
		Responses []bool `json:"responses"`
	}
}

// Charge handles POST /api/v1/accounting/charge.
func (h *AccountingHandler) Charge(ctx context.Context, input *ChargeInput) (*ChargeOutput, error) {
	return h.charge(ctx, input, false)
}

// Check handles POST /api/v1/accounting/check.
func (h *AccountingHandler) Check(ctx context.Context, input *ChargeInput) (*ChargeOutput, error) {
	return h.charge(ctx, input, true)
}

func (h *AccountingHandler) charge(ctx context.Context, input *ChargeInput, dryRun bool) (*ChargeOutput, error) {
	items := input.Body.Items
	subject := getSubject(ctx)
	for i := range items {
		if items[i].PerformedBy == "" {
			items[i].PerformedBy = subject
		}
	}

	var results []bool
	var err error
	if dryRun {
		results, err = h.svc.Check(ctx, items)
	} else {
		results, err = h.svc.Charge(ctx, items)
	}
	if err != nil {
		return nil, toHumaError(ctx, "charge", err)
	}

	out := &ChargeOutput{}
	out.Body.Responses = results
	return out, nil
}

// DepositInput is the request of deposit.
type DepositInput struct {
	Body struct {
		Items []service.DepositItem `json:"items" minItems:"1"`
	}
}

// Deposit handles POST /api/v1/accounting/deposit.
func (h *AccountingHandler) Deposit(ctx context.Context, input *DepositInput) (*BulkOutput, error) {
	items := input.Body.Items
	if err := h.svc.Deposit(ctx, getSubject(ctx), items); err != nil {
		return nil, toHumaError(ctx, "deposit", err)
	}
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].TransactionID
	}
	return bulkOutput(ids), nil
}

// RootDepositInput is the request of rootDeposit.
type RootDepositInput struct {
	Body struct {
		Items []service.RootDepositItem `json:"items" minItems:"1"`
	}
}

// RootDeposit handles POST /api/v1/accounting/root-deposit.
func (h *AccountingHandler) RootDeposit(ctx context.Context, input *RootDepositInput) (*BulkOutput, error) {
	items := input.Body.Items
	if err := h.svc.RootDeposit(ctx, getSubject(ctx), items); err != nil {
		return nil, toHumaError(ctx, "root deposit", err)
	}
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].TransactionID
	}
	return bulkOutput(ids), nil
}

// TransferInput is the request of transfer.
type TransferInput struct {
	Body struct {
		Items []service.TransferItem `json:"items" minItems:"1"`
	}
}

// Transfer handles POST /api/v1/accounting/transfer.
func (h *AccountingHandler) Transfer(ctx context.Context, input *TransferInput) (*BulkOutput, error) {
	items := input.Body.Items
	if err := h.svc.Transfer(ctx, getSubject(ctx), items); err != nil {
		return nil, toHumaError(ctx, "transfer", err)
	}
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].TransactionID
	}
	return bulkOutput(ids), nil
}

// UpdateAllocationInput is the request of updateAllocation.
type UpdateAllocationInput struct {
	Body struct {
		Items []service.UpdateAllocationItem `json:"items" minItems:"1"`
	}
}

// UpdateAllocation handles POST /api/v1/accounting/allocations/update.
func (h *AccountingHandler) UpdateAllocation(ctx context.Context, input *UpdateAllocationInput) (*BulkOutput, error) {
	items := input.Body.Items
	if err := h.svc.UpdateAllocation(ctx, getSubject(ctx), items); err != nil {
		return nil, toHumaError(ctx, "update allocation", err)
	}
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].TransactionID
	}
	return bulkOutput(ids), nil
}
