package routes

import (
	"context"

	"github.com/jmylchreest/wallet-engine/internal/http/handlers"
)

// StubHandlers returns a Handlers instance with stub implementations.
// All handlers return nil responses - these are only used for OpenAPI generation
// where Huma extracts type information from function signatures.
func StubHandlers() *Handlers {
	return &Handlers{
		HealthCheck: stubHealthCheck,
		Livez:       stubLivez,
		Readyz:      stubReadyz,
		Accounting:  &stubAccountingHandlers{},
		Wallets:     &stubWalletHandlers{},
	}
}

func stubHealthCheck(ctx context.Context, input *struct{}) (*handlers.HealthCheckOutput, error) {
	return nil, nil
}

func stubLivez(ctx context.Context, input *struct{}) (*handlers.LivezOutput, error) {
	return nil, nil
}

func stubReadyz(ctx context.Context, input *struct{}) (*handlers.ReadyzOutput, error) {
	return nil, nil
}

type stubAccountingHandlers struct{}

func (s *stubAccountingHandlers) Charge(ctx context.Context, input *handlers.ChargeInput) (*handlers.ChargeOutput, error) {
	return nil, nil
}

func (s *stubAccountingHandlers) Check(ctx context.Context, input *handlers.ChargeInput) (*handlers.ChargeOutput, error) {
	return nil, nil
}

func (s *stubAccountingHandlers) Deposit(ctx context.Context, input *handlers.DepositInput) (*handlers.BulkOutput, error) {
	return nil, nil
}

func (s *stubAccountingHandlers) RootDeposit(ctx context.Context, input *handlers.RootDepositInput) (*handlers.BulkOutput, error) {
	return nil, nil
}

func (s *stubAccountingHandlers) Transfer(ctx context.Context, input *handlers.TransferInput) (*handlers.BulkOutput, error) {
	return nil, nil
}

func (s *stubAccountingHandlers) UpdateAllocation(ctx context.Context, input *handlers.UpdateAllocationInput) (*handlers.BulkOutput, error) {
	return nil, nil
}

type stubWalletHandlers struct{}

func (s *stubWalletHandlers) Browse(ctx context.Context, input *handlers.BrowseWalletsInput) (*handlers.BrowseWalletsOutput, error) {
	return nil, nil
}

func (s *stubWalletHandlers) BrowseSubAllocations(ctx context.Context, input *handlers.BrowseSubAllocationsInput) (*handlers.SubAllocationsOutput, error) {
	return nil, nil
}

func (s *stubWalletHandlers) SearchSubAllocations(ctx context.Context, input *handlers.SearchSubAllocationsInput) (*handlers.SubAllocationsOutput, error) {
	return nil, nil
}

func (s *stubWalletHandlers) RetrieveWalletsInternal(ctx context.Context, input *handlers.RetrieveWalletsInput) (*handlers.RetrieveWalletsOutput, error) {
	return nil, nil
}

func (s *stubWalletHandlers) RetrieveAllocationsInternal(ctx context.Context, input *handlers.RetrieveAllocationsInput) (*handlers.RetrieveAllocationsOutput, error) {
	return nil, nil
}

func (s *stubWalletHandlers) BrowseTransactions(ctx context.Context, input *handlers.BrowseTransactionsInput) (*handlers.BrowseTransactionsOutput, error) {
	return nil, nil
}
