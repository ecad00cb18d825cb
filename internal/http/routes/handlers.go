package routes

import (
	"context"

	"github.com/jmylchreest/wallet-engine/internal/http/handlers"
)

// AccountingHandlers defines the mutating accounting operations.
type AccountingHandlers interface {
	Charge(ctx context.Context, input *handlers.ChargeInput) (*handlers.ChargeOutput, error)
	Check(ctx context.Context, input *handlers.ChargeInput) (*handlers.ChargeOutput, error)
	Deposit(ctx context.Context, input *handlers.DepositInput) (*handlers.BulkOutput, error)
	RootDeposit(ctx context.Context, input *handlers.RootDepositInput) (*handlers.BulkOutput, error)
	Transfer(ctx context.Context, input *handlers.TransferInput) (*handlers.BulkOutput, error)
	UpdateAllocation(ctx context.Context, input *handlers.UpdateAllocationInput) (*handlers.BulkOutput, error)
}

// WalletHandlers defines the read-side operations.
type WalletHandlers interface {
	Browse(ctx context.Context, input *handlers.BrowseWalletsInput) (*handlers.BrowseWalletsOutput, error)
	BrowseSubAllocations(ctx context.Context, input *handlers.BrowseSubAllocationsInput) (*handlers.SubAllocationsOutput, error)
	SearchSubAllocations(ctx context.Context, input *handlers.SearchSubAllocationsInput) (*handlers.SubAllocationsOutput, error)
	RetrieveWalletsInternal(ctx context.Context, input *handlers.RetrieveWalletsInput) (*handlers.RetrieveWalletsOutput, error)
	RetrieveAllocationsInternal(ctx context.Context, input *handlers.RetrieveAllocationsInput) (*handlers.RetrieveAllocationsOutput, error)
	BrowseTransactions(ctx context.Context, input *handlers.BrowseTransactionsInput) (*handlers.BrowseTransactionsOutput, error)
}

// Handlers aggregates all handler interfaces for route registration.
// For the main server, pass real handler implementations.
// For OpenAPI generation, pass stub implementations.
type Handlers struct {
	HealthCheck func(ctx context.Context, input *struct{}) (*handlers.HealthCheckOutput, error)

	// Kubernetes health checks (hidden from docs)
	Livez  func(ctx context.Context, input *struct{}) (*handlers.LivezOutput, error)
	Readyz func(ctx context.Context, input *struct{}) (*handlers.ReadyzOutput, error)

	Accounting AccountingHandlers
	Wallets    WalletHandlers
}
