package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmylchreest/wallet-engine/internal/config"
	"github.com/jmylchreest/wallet-engine/internal/models"
	"github.com/jmylchreest/wallet-engine/internal/repository"
)

// BrowseOptions pages and filters wallet listings.
type BrowseOptions struct {
	ProductType             models.ProductType
	Next                    string
	ItemsPerPage            int
	FilterEmptyAllocations  bool
	IncludeMaxUsableBalance bool
}

// SubAllocationOptions pages and filters sub-allocation listings.
type SubAllocationOptions struct {
	ProductType  models.ProductType
	Query        string
	Next         string
	ItemsPerPage int
}

// Page is one page of results. Next is set when more items may follow.
type Page[T any] struct {
	Items        []T     `json:"items"`
	ItemsPerPage int     `json:"itemsPerPage"`
	Next         *string `json:"next,omitempty"`
}

// WalletService serves the read side: wallets, sub-allocations and the
// transaction trail.
type WalletService struct {
	store  *repository.Store
	cfg    config.AccountingConfig
	now    func() time.Time
	logger *slog.Logger
}

// NewWalletService creates a new wallet service.
func NewWalletService(store *repository.Store, cfg config.AccountingConfig, logger *slog.Logger) *WalletService {
	return &WalletService{
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With("component", "wallets"),
	}
}

// Browse returns a page of owner's wallets with their allocations.
func (s *WalletService) Browse(ctx context.Context, owner models.WalletOwner, opts BrowseOptions) (*Page[*models.Wallet], error) {
	if err := owner.Validate(); err != nil {
		return nil, newError(ErrBadRequest, "%v", err)
	}
	if opts.ProductType != "" && !opts.ProductType.Valid() {
		return nil, newError(ErrBadRequest, "unknown product type %q", opts.ProductType)
	}
	after, err := parseCursor(opts.Next)
	if err != nil {
		return nil, err
	}
	limit := s.cfg.PageSize(opts.ItemsPerPage)

	wallets, err := s.store.Wallet.ListByOwner(ctx, owner, repository.WalletFilter{
		ProductType: opts.ProductType,
		AfterID:     after,
		Limit:       limit,
	})
	if err != nil {
		return nil, internalError("list wallets", err)
	}

	for _, w := range wallets {
		if opts.FilterEmptyAllocations {
			kept := w.Allocations[:0]
			for _, a := range w.Allocations {
				if a.Balance > 0 {
					kept = append(kept, a)
				}
			}
			w.Allocations = kept
		}
		if opts.IncludeMaxUsableBalance {
			if err := s.fillMaxUsable(ctx, w.Allocations); err != nil {
				return nil, err
			}
		}
	}

	page := &Page[*models.Wallet]{Items: wallets, ItemsPerPage: limit}
	if len(wallets) == limit {
		page.Next = cursor(wallets[len(wallets)-1].ID)
	}
	if page.Items == nil {
		page.Items = []*models.Wallet{}
	}
	return page, nil
}

// fillMaxUsable sets MaxUsableBalance to what a single charge could consume:
// the local balance capped by every ancestor's balance.
func (s *WalletService) fillMaxUsable(ctx context.Context, allocations []*models.WalletAllocation) error {
	for _, a := range allocations {
		chain, err := s.store.Allocation.GetAncestors(ctx, a.ID)
		if err != nil {
			return internalError("load ancestors", err)
		}
		usable := a.LocalBalance
		for _, ancestor := range chain[:max(len(chain)-1, 0)] {
			usable = min(usable, ancestor.Balance)
		}
		usable = max(usable, 0)
		a.MaxUsableBalance = &usable
	}
	return nil
}

// BrowseSubAllocations returns the direct children of owner's allocations.
func (s *WalletService) BrowseSubAllocations(ctx context.Context, owner models.WalletOwner, opts SubAllocationOptions) (*Page[*models.SubAllocation], error) {
	if err := owner.Validate(); err != nil {
		return nil, newError(ErrBadRequest, "%v", err)
	}
	if opts.ProductType != "" && !opts.ProductType.Valid() {
		return nil, newError(ErrBadRequest, "unknown product type %q", opts.ProductType)
	}
	after, err := parseCursor(opts.Next)
	if err != nil {
		return nil, err
	}
	limit := s.cfg.PageSize(opts.ItemsPerPage)

	subs, err := s.store.Allocation.ListSubAllocations(ctx, owner, repository.SubAllocationFilter{
		ProductType: opts.ProductType,
		Query:       opts.Query,
		AfterID:     after,
		Limit:       limit,
	})
	if err != nil {
		return nil, internalError("list sub-allocations", err)
	}

	page := &Page[*models.SubAllocation]{Items: subs, ItemsPerPage: limit}
	if len(subs) == limit {
		id, _ := strconv.ParseInt(subs[len(subs)-1].ID, 10, 64)
		page.Next = cursor(id)
	}
	if page.Items == nil {
		page.Items = []*models.SubAllocation{}
	}
	return page, nil
}

// SearchSubAllocations is BrowseSubAllocations filtered by workspace or category.
func (s *WalletService) SearchSubAllocations(ctx context.Context, owner models.WalletOwner, query string, opts SubAllocationOptions) (*Page[*models.SubAllocation], error) {
	if query == "" {
		return nil, newError(ErrBadRequest, "query is required")
	}
	opts.Query = query
	return s.BrowseSubAllocations(ctx, owner, opts)
}

// RetrieveWalletsInternal returns every wallet of owner without paging.
func (s *WalletService) RetrieveWalletsInternal(ctx context.Context, owner models.WalletOwner) ([]*models.Wallet, error) {
	if err := owner.Validate(); err != nil {
		return nil, newError(ErrBadRequest, "%v", err)
	}
	var all []*models.Wallet
	var after int64
	for {
		wallets, err := s.store.Wallet.ListByOwner(ctx, owner, repository.WalletFilter{AfterID: after, Limit: s.cfg.BrowseMaxPageSize})
		if err != nil {
			return nil, internalError("list wallets", err)
		}
		all = append(all, wallets...)
		if len(wallets) < s.cfg.BrowseMaxPageSize {
			break
		}
		after = wallets[len(wallets)-1].ID
	}
	if all == nil {
		all = []*models.Wallet{}
	}
	return all, nil
}

// RetrieveAllocationsInternal returns owner's allocations in category that are
// valid now, in the order a charge would try them.
func (s *WalletService) RetrieveAllocationsInternal(ctx context.Context, owner models.WalletOwner, category models.ProductCategoryID) ([]*models.WalletAllocation, error) {
	if err := owner.Validate(); err != nil {
		return nil, newError(ErrBadRequest, "%v", err)
	}
	if err := category.Validate(); err != nil {
		return nil, newError(ErrBadRequest, "%v", err)
	}
	wallet, err := s.store.Wallet.GetByOwner(ctx, owner, category)
	if err != nil {
		return nil, internalError("load wallet", err)
	}
	if wallet == nil {
		return nil, newError(ErrNotFound, "no wallet for %s in %s", owner.String(), category)
	}
	selector, err := selectorFor(wallet.ChargePolicy)
	if err != nil {
		return nil, err
	}
	return selector.Select(wallet.Allocations, s.now().UnixMilli()), nil
}

// BrowseTransactions pages the audit trail of one allocation, oldest first.
func (s *WalletService) BrowseTransactions(ctx context.Context, allocationID, next string, itemsPerPage int) (*Page[*models.Transaction], error) {
	alloc, err := s.store.Allocation.Get(ctx, allocationID)
	if err != nil {
		return nil, internalError("load allocation", err)
	}
	if alloc == nil {
		return nil, newError(ErrNotFound, "allocation %s does not exist", allocationID)
	}
	limit := s.cfg.PageSize(itemsPerPage)

	txs, err := s.store.Transaction.ListByAllocation(ctx, alloc.ID, next, limit)
	if err != nil {
		return nil, internalError("list transactions", err)
	}
	page := &Page[*models.Transaction]{Items: txs, ItemsPerPage: limit}
	if len(txs) == limit {
		last := txs[len(txs)-1].ID
		page.Next = &last
	}
	if page.Items == nil {
		page.Items = []*models.Transaction{}
	}
	return page, nil
}

func parseCursor(next string) (int64, error) {
	if next == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(next, 10, 64)
	if err != nil || id < 0 {
		return 0, newError(ErrBadRequest, "invalid next token %q", next)
	}
	return id, nil
}

func cursor(id int64) *string {
	c := strconv.FormatInt(id, 10)
	return &c
}
