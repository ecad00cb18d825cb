// Package repository defines repository interfaces for data access.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmylchreest/wallet-engine/internal/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx so every repository can
// run either standalone or inside a store transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WalletFilter narrows and pages wallet listings.
type WalletFilter struct {
	ProductType models.ProductType // empty = all
	AfterID     int64              // exclusive cursor, 0 = from start
	Limit       int
}

// SubAllocationFilter narrows and pages sub-allocation listings.
type SubAllocationFilter struct {
	ProductType models.ProductType
	Query       string // matches workspace id or category name
	AfterID     int64
	Limit       int
}

// NewAllocation describes an allocation to insert. ParentID is empty for roots.
type NewAllocation struct {
	WalletID       int64
	ParentID       string
	InitialBalance int64
	StartDate      int64
	EndDate        *int64
	CreatedAt      time.Time
}

// WalletRepository defines methods for wallet data access.
type WalletRepository interface {
	// GetByOwner returns the wallet with all of its allocations, or nil.
	GetByOwner(ctx context.Context, owner models.WalletOwner, category models.ProductCategoryID) (*models.Wallet, error)
	GetByID(ctx context.Context, id int64) (*models.Wallet, error)
	// GetOrCreate returns the owner's wallet for the category, creating it empty if missing.
	GetOrCreate(ctx context.Context, owner models.WalletOwner, category models.ProductCategory, policy models.AllocationSelectorPolicy) (*models.Wallet, error)
	ListByOwner(ctx context.Context, owner models.WalletOwner, filter WalletFilter) ([]*models.Wallet, error)
}

// AllocationRepository defines methods for allocation tree access.
type AllocationRepository interface {
	Get(ctx context.Context, id string) (*models.WalletAllocation, error)
	// GetAncestors returns the allocation path root->self, or nil if id is unknown.
	GetAncestors(ctx context.Context, id string) ([]*models.WalletAllocation, error)
	ListByWallet(ctx context.Context, walletID int64) ([]*models.WalletAllocation, error)
	// ListDescendants returns every allocation below id, excluding id itself.
	ListDescendants(ctx context.Context, id string) ([]*models.WalletAllocation, error)
	Insert(ctx context.Context, alloc NewAllocation) (*models.WalletAllocation, error)
	ApplyDelta(ctx context.Context, id string, balanceDelta, localBalanceDelta int64) error
	// Update resets the allocation as if it had been granted initialBalance,
	// keeping the usage already recorded against it.
	Update(ctx context.Context, id string, initialBalance, startDate int64, endDate *int64) error
	UpdateWindow(ctx context.Context, id string, startDate int64, endDate *int64) error
	ListSubAllocations(ctx context.Context, owner models.WalletOwner, filter SubAllocationFilter) ([]*models.SubAllocation, error)
}

// TransactionRepository defines methods for the append-only transaction trail.
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	// ListByAllocation pages by ULID; pass "" to start from the oldest record.
	ListByAllocation(ctx context.Context, allocationID, afterID string, limit int) ([]*models.Transaction, error)
	ListByTransactionID(ctx context.Context, transactionID string) ([]*models.Transaction, error)
}

// IdempotencyRepository records which transaction ids have been applied per operation kind.
type IdempotencyRepository interface {
	// Get returns the recorded outcome and whether a record exists.
	Get(ctx context.Context, kind, transactionID string) (outcome bool, found bool, err error)
	Record(ctx context.Context, kind, transactionID string, outcome bool, at time.Time) error
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// Repositories holds all repository instances bound to one querier.
type Repositories struct {
	Wallet      WalletRepository
	Allocation  AllocationRepository
	Transaction TransactionRepository
	Idempotency IdempotencyRepository
}

// NewRepositories creates all repository instances on the database pool.
func NewRepositories(db *sql.DB) *Repositories {
	return newRepositories(db)
}

func newRepositories(q querier) *Repositories {
	allocations := NewSQLiteAllocationRepository(q)
	return &Repositories{
		Wallet:      NewSQLiteWalletRepository(q, allocations),
		Allocation:  allocations,
		Transaction: NewSQLiteTransactionRepository(q),
		Idempotency: NewSQLiteIdempotencyRepository(q),
	}
}
