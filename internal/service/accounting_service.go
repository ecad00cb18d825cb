package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/wallet-engine/internal/catalog"
	"github.com/jmylchreest/wallet-engine/internal/config"
	"github.com/jmylchreest/wallet-engine/internal/models"
	"github.com/jmylchreest/wallet-engine/internal/repository"
)

// ChargeItem is one usage report from a provider.
type ChargeItem struct {
	Payer            models.WalletOwner      `json:"payer"`
	Units            int64                   `json:"units" doc:"Units consumed, or the usage snapshot for DIFFERENTIAL_QUOTA"`
	NumberOfProducts int64                   `json:"numberOfProducts"`
	Product          models.ProductReference `json:"product"`
	PerformedBy      string                  `json:"performedBy" required:"false"`
	Description      string                  `json:"description" required:"false"`
	TransactionID    string                  `json:"transactionId,omitempty" doc:"Idempotency key; generated when omitted"`
}

// DepositItem grants part of an existing allocation to a recipient.
type DepositItem struct {
	Recipient        models.WalletOwner `json:"recipient"`
	SourceAllocation string             `json:"sourceAllocation"`
	Amount           int64              `json:"amount"`
	Description      string             `json:"description" required:"false"`
	StartDate        *int64             `json:"startDate,omitempty" doc:"Defaults to now"`
	EndDate          *int64             `json:"endDate,omitempty" doc:"Omit for no expiry"`
	TransactionID    string             `json:"transactionId,omitempty"`
}

// RootDepositItem funds a new root allocation.
type RootDepositItem struct {
	CategoryID    models.ProductCategoryID `json:"categoryId"`
	Recipient     models.WalletOwner       `json:"recipient"`
	Amount        int64                    `json:"amount"`
	Description   string                   `json:"description" required:"false"`
	StartDate     *int64                   `json:"startDate,omitempty"`
	EndDate       *int64                   `json:"endDate,omitempty"`
	TransactionID string                   `json:"transactionId,omitempty"`
}

// TransferItem moves balance from one owner to a new root allocation of another.
type TransferItem struct {
	CategoryID    models.ProductCategoryID `json:"categoryId"`
	Target        models.WalletOwner       `json:"target"`
	Source        models.WalletOwner       `json:"source"`
	Amount        int64                    `json:"amount"`
	StartDate     *int64                   `json:"startDate,omitempty"`
	EndDate       *int64                   `json:"endDate,omitempty"`
	TransactionID string                   `json:"transactionId,omitempty"`
}

// UpdateAllocationItem replaces the grant and window of an allocation.
type UpdateAllocationItem struct {
	ID            string `json:"id"`
	Balance       int64  `json:"balance" doc:"New initial balance"`
	StartDate     int64  `json:"startDate"`
	EndDate       *int64 `json:"endDate" nullable:"true" doc:"null for no expiry"`
	Reason        string `json:"reason"`
	TransactionID string `json:"transactionId,omitempty"`
}

// AccountingService implements charge, check, deposit, rootDeposit,
// transfer and updateAllocation. Every item runs in its own database
// transaction; items of one bulk request are independent.
type AccountingService struct {
	store   *repository.Store
	catalog catalog.Catalog
	cfg     config.AccountingConfig
	now     func() time.Time
	logger  *slog.Logger
}

// NewAccountingService creates a new accounting service.
func NewAccountingService(store *repository.Store, cat catalog.Catalog, cfg config.AccountingConfig, logger *slog.Logger) *AccountingService {
	return &AccountingService{
		store:   store,
		catalog: cat,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger.With("component", "accounting"),
	}
}

func (s *AccountingService) checkBulk(n int) error {
	if n > s.cfg.MaxBulkItems {
		return newError(ErrBadRequest, "too many items: %d (max %d)", n, s.cfg.MaxBulkItems)
	}
	return nil
}

func (s *AccountingService) actor(performedBy string) string {
	if performedBy == "" {
		return s.cfg.SystemActor
	}
	return performedBy
}

// lookupCategory resolves a category from the catalog.
func (s *AccountingService) lookupCategory(ctx context.Context, id models.ProductCategoryID) (*models.ProductCategory, error) {
	if err := id.Validate(); err != nil {
		return nil, newError(ErrBadRequest, "%v", err)
	}
	c, err := s.catalog.Category(ctx, id)
	if err != nil {
		return nil, newError(ErrNotFound, "%v", err)
	}
	return c, nil
}

// applyAlongPath walks chain root to self and adds delta to every balance,
// and localDelta to the local balance of the last node only.
func applyAlongPath(ctx context.Context, repos *repository.Repositories, chain []*models.WalletAllocation, delta, localDelta int64) error {
	for i, node := range chain {
		if _, ok := addInt64(node.Balance, delta); !ok {
			return newError(ErrInternal, "balance overflow on allocation %s", node.ID)
		}
		nodeLocal := int64(0)
		if i == len(chain)-1 {
			if _, ok := addInt64(node.LocalBalance, localDelta); !ok {
				return newError(ErrInternal, "local balance overflow on allocation %s", node.ID)
			}
			nodeLocal = localDelta
		}
		if err := repos.Allocation.ApplyDelta(ctx, node.ID, delta, nodeLocal); err != nil {
			return internalError("apply delta", err)
		}
	}
	return nil
}

// hasCapacity reports whether an ABSOLUTE debit of amount fits: the leaf's
// local balance and every strict ancestor's balance must cover it.
func hasCapacity(chain []*models.WalletAllocation, amount int64) bool {
	last := len(chain) - 1
	if chain[last].LocalBalance < amount {
		return false
	}
	for _, a := range chain[:last] {
		if a.Balance < amount {
			return false
		}
	}
	return true
}

// firstWithCapacity returns the ancestor chain of the first candidate that
// can absorb an ABSOLUTE debit of amount, or nil.
func firstWithCapacity(ctx context.Context, repos *repository.Repositories, candidates []*models.WalletAllocation, amount int64) ([]*models.WalletAllocation, error) {
	for _, c := range candidates {
		chain, err := repos.Allocation.GetAncestors(ctx, c.ID)
		if err != nil {
			return nil, internalError("load ancestors", err)
		}
		if len(chain) == 0 {
			return nil, newError(ErrInternal, "allocation %s vanished", c.ID)
		}
		if hasCapacity(chain, amount) {
			return chain, nil
		}
	}
	return nil, nil
}

// candidates returns the owner's valid allocations in policy order. A missing
// wallet yields no candidates.
func (s *AccountingService) candidates(ctx context.Context, repos *repository.Repositories, owner models.WalletOwner, category models.ProductCategoryID, now time.Time) ([]*models.WalletAllocation, error) {
	wallet, err := repos.Wallet.GetByOwner(ctx, owner, category)
	if err != nil {
		return nil, internalError("load wallet", err)
	}
	if wallet == nil {
		return nil, nil
	}
	selector, err := selectorFor(wallet.ChargePolicy)
	if err != nil {
		return nil, err
	}
	return selector.Select(wallet.Allocations, now.UnixMilli()), nil
}

func (s *AccountingService) appendTransaction(ctx context.Context, repos *repository.Repositories, tx *models.Transaction) error {
	tx.ID = ulid.Make().String()
	return internalError("append transaction", repos.Transaction.Create(ctx, tx))
}

func int64Ptr(v int64) *int64 {
	return &v
}
