package handlers

import (
	"context"

	"github.com/jmylchreest/wallet-engine/internal/models"
	"github.com/jmylchreest/wallet-engine/internal/service"
)

// WalletHandler serves the read side: wallets, sub-allocations and the
// transaction trail.
type WalletHandler struct {
	svc *service.WalletService
}

// NewWalletHandler creates a wallet handler.
func NewWalletHandler(svc *service.WalletService) *WalletHandler {
	return &WalletHandler{svc: svc}
}

// BrowseWalletsInput pages the caller's wallets.
type BrowseWalletsInput struct {
	Project                 string `header:"X-Project" doc:"Act as this project instead of the token subject"`
	FilterType              string `query:"filterType" enum:"STORAGE,COMPUTE,INGRESS,LICENSE,NETWORK_IP" required:"false"`
	Next                    string `query:"next" doc:"Token from the previous page"`
	ItemsPerPage            int    `query:"itemsPerPage" minimum:"0"`
	FilterEmptyAllocations  bool   `query:"filterEmptyAllocations"`
	IncludeMaxUsableBalance bool   `query:"includeMaxUsableBalance"`
}

// BrowseWalletsOutput is one page of wallets.
type BrowseWalletsOutput struct {
	Body *service.Page[*models.Wallet]
}

// Browse handles GET /api/v1/wallets.
func (h *WalletHandler) Browse(ctx context.Context, input *BrowseWalletsInput) (*BrowseWalletsOutput, error) {
	owner, err := callerOwner(ctx, input.Project)
	if err != nil {
		return nil, err
	}
	page, err := h.svc.Browse(ctx, owner, service.BrowseOptions{
		ProductType:             models.ProductType(input.FilterType),
		Next:                    input.Next,
		ItemsPerPage:            input.ItemsPerPage,
		FilterEmptyAllocations:  input.FilterEmptyAllocations,
		IncludeMaxUsableBalance: input.IncludeMaxUsableBalance,
	})
	if err != nil {
		return nil, toHumaError(ctx, "browse wallets", err)
	}
	return &BrowseWalletsOutput{Body: page}, nil
}

// BrowseSubAllocationsInput pages allocations granted out of the caller's.
type BrowseSubAllocationsInput struct {
	Project      string `header:"X-Project"`
	FilterType   string `query:"filterType" enum:"STORAGE,COMPUTE,INGRESS,LICENSE,NETWORK_IP" required:"false"`
	Next         string `query:"next"`
	ItemsPerPage int    `query:"itemsPerPage" minimum:"0"`
}

// SearchSubAllocationsInput is BrowseSubAllocationsInput with a query.
type SearchSubAllocationsInput struct {
	BrowseSubAllocationsInput
	Query string `query:"query" required:"true" minLength:"1" doc:"Matches workspace id or category name"`
}

// SubAllocationsOutput is one page of sub-allocations.
type SubAllocationsOutput struct {
	Body *service.Page[*models.SubAllocation]
}

// BrowseSubAllocations handles GET /api/v1/wallets/sub-allocations.
func (h *WalletHandler) BrowseSubAllocations(ctx context.Context, input *BrowseSubAllocationsInput) (*SubAllocationsOutput, error) {
	owner, err := callerOwner(ctx, input.Project)
	if err != nil {
		return nil, err
	}
	page, err := h.svc.BrowseSubAllocations(ctx, owner, subAllocationOptions(input))
	if err != nil {
		return nil, toHumaError(ctx, "browse sub-allocations", err)
	}
	return &SubAllocationsOutput{Body: page}, nil
}

// SearchSubAllocations handles GET /api/v1/wallets/sub-allocations/search.
func (h *WalletHandler) SearchSubAllocations(ctx context.Context, input *SearchSubAllocationsInput) (*SubAllocationsOutput, error) {
	owner, err := callerOwner(ctx, input.Project)
	if err != nil {
		return nil, err
	}
	page, err := h.svc.SearchSubAllocations(ctx, owner, input.Query, subAllocationOptions(&input.BrowseSubAllocationsInput))
	if err != nil {
		return nil, toHumaError(ctx, "search sub-allocations", err)
	}
	return &SubAllocationsOutput{Body: page}, nil
}

func subAllocationOptions(input *BrowseSubAllocationsInput) service.SubAllocationOptions {
	return service.SubAllocationOptions{
		ProductType:  models.ProductType(input.FilterType),
		Next:         input.Next,
		ItemsPerPage: input.ItemsPerPage,
	}
}

// OwnerQuery names a wallet owner in query parameters.
type OwnerQuery struct {
	OwnerType string `query:"ownerType" enum:"user,project" required:"true"`
	Owner     string `query:"owner" required:"true" minLength:"1"`
}

func (q OwnerQuery) walletOwner() models.WalletOwner {
	if models.WalletOwnerType(q.OwnerType) == models.WalletOwnerProject {
		return models.ProjectOwner(q.Owner)
	}
	return models.UserOwner(q.Owner)
}

// RetrieveWalletsInput selects the owner whose wallets are returned.
type RetrieveWalletsInput struct {
	OwnerQuery
}

// RetrieveWalletsOutput lists every wallet of an owner.
type RetrieveWalletsOutput struct {
	Body struct {
		Wallets []*models.Wallet `json:"wallets"`
	}
}

// RetrieveWalletsInternal handles GET /api/v1/accounting/internal/wallets.
func (h *WalletHandler) RetrieveWalletsInternal(ctx context.Context, input *RetrieveWalletsInput) (*RetrieveWalletsOutput, error) {
	wallets, err := h.svc.RetrieveWalletsInternal(ctx, input.walletOwner())
	if err != nil {
		return nil, toHumaError(ctx, "retrieve wallets", err)
	}
	out := &RetrieveWalletsOutput{}
	out.Body.Wallets = wallets
	return out, nil
}

// RetrieveAllocationsInput selects an owner and category.
type RetrieveAllocationsInput struct {
	OwnerQuery
	Category string `query:"category" required:"true" minLength:"1"`
	Provider string `query:"provider" required:"true" minLength:"1"`
}

// RetrieveAllocationsOutput lists allocations in charge order.
type RetrieveAllocationsOutput struct {
	Body struct {
		Allocations []*models.WalletAllocation `json:"allocations"`
	}
}

// RetrieveAllocationsInternal handles GET /api/v1/accounting/internal/allocations.
func (h *WalletHandler) RetrieveAllocationsInternal(ctx context.Context, input *RetrieveAllocationsInput) (*RetrieveAllocationsOutput, error) {
	allocs, err := h.svc.RetrieveAllocationsInternal(ctx, input.walletOwner(),
		models.ProductCategoryID{Name: input.Category, Provider: input.Provider})
	if err != nil {
		return nil, toHumaError(ctx, "retrieve allocations", err)
	}
	out := &RetrieveAllocationsOutput{}
	out.Body.Allocations = allocs
	return out, nil
}

// BrowseTransactionsInput pages the audit trail of one allocation.
type BrowseTransactionsInput struct {
	AllocationID string `query:"allocationId" required:"true" minLength:"1"`
	Next         string `query:"next"`
	ItemsPerPage int    `query:"itemsPerPage" minimum:"0"`
}

// BrowseTransactionsOutput is one page of transactions.
type BrowseTransactionsOutput struct {
	Body *service.Page[*models.Transaction]
}

// BrowseTransactions handles GET /api/v1/accounting/transactions.
func (h *WalletHandler) BrowseTransactions(ctx context.Context, input *BrowseTransactionsInput) (*BrowseTransactionsOutput, error) {
	page, err := h.svc.BrowseTransactions(ctx, input.AllocationID, input.Next, input.ItemsPerPage)
	if err != nil {
		return nil, toHumaError(ctx, "browse transactions", err)
	}
	return &BrowseTransactionsOutput{Body: page}, nil
}
