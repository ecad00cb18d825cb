package routes

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/wallet-engine/internal/auth"
	"github.com/jmylchreest/wallet-engine/internal/http/mw"
)

// Register registers all API routes with the given Huma API instance.
// Pass real handler implementations for the main server, or stub implementations
// for OpenAPI generation.
func Register(api huma.API, h *Handlers) {
	// =========================================================================
	// Public Routes (no auth required)
	// =========================================================================

	mw.PublicGet(api, "/api/v1/health", h.HealthCheck,
		mw.WithTags(TagHealth),
		mw.WithSummary("Health check"),
		mw.WithOperationID("healthCheck"))

	// Kubernetes health checks (hidden from docs - internal use only)
	mw.HiddenGet(api, "/healthz", h.Livez)
	mw.HiddenGet(api, "/readyz", h.Readyz)

	// =========================================================================
	// Accounting
	// =========================================================================

	providers := mw.WithRoles(auth.RoleService, auth.RoleAdmin)
	privileged := mw.WithRoles(auth.RolePrivileged, auth.RoleAdmin)
	internal := mw.WithRoles(auth.RoleService, auth.RolePrivileged, auth.RoleAdmin)
	accountingErrors := mw.WithErrors(http.StatusBadRequest, http.StatusNotFound, http.StatusPaymentRequired)

	mw.ProtectedPost(api, "/api/v1/accounting/charge", h.Accounting.Charge,
		providers, accountingErrors,
		mw.WithTags(TagAccounting),
		mw.WithSummary("Charge payers"),
		mw.WithDescription("Consumes balance for each item. A false result means the payer had insufficient funds."),
		mw.WithOperationID("charge"))
	mw.ProtectedPost(api, "/api/v1/accounting/check", h.Accounting.Check,
		providers, accountingErrors,
		mw.WithTags(TagAccounting),
		mw.WithSummary("Check whether charges would succeed"),
		mw.WithOperationID("check"))
	mw.ProtectedPost(api, "/api/v1/accounting/deposit", h.Accounting.Deposit,
		privileged, accountingErrors,
		mw.WithTags(TagAccounting),
		mw.WithSummary("Grant a sub-allocation"),
		mw.WithOperationID("deposit"))
	mw.ProtectedPost(api, "/api/v1/accounting/transfer", h.Accounting.Transfer,
		privileged, accountingErrors,
		mw.WithTags(TagAccounting),
		mw.WithSummary("Transfer balance between owners"),
		mw.WithOperationID("transfer"))
	mw.ProtectedPost(api, "/api/v1/accounting/root-deposit", h.Accounting.RootDeposit,
		privileged, accountingErrors,
		mw.WithTags(TagAccounting),
		mw.WithSummary("Create root allocations"),
		mw.WithOperationID("rootDeposit"))
	mw.ProtectedPost(api, "/api/v1/accounting/allocations/update", h.Accounting.UpdateAllocation,
		privileged, accountingErrors,
		mw.WithTags(TagAccounting),
		mw.WithSummary("Update allocation balance and period"),
		mw.WithOperationID("updateAllocation"))

	// --- Internal reads ---
	mw.ProtectedGet(api, "/api/v1/accounting/internal/wallets", h.Wallets.RetrieveWalletsInternal,
		internal,
		mw.WithTags(TagAccounting),
		mw.WithSummary("Retrieve every wallet of an owner"),
		mw.WithOperationID("retrieveWalletsInternal"))
	mw.ProtectedGet(api, "/api/v1/accounting/internal/allocations", h.Wallets.RetrieveAllocationsInternal,
		internal, mw.WithErrors(http.StatusNotFound),
		mw.WithTags(TagAccounting),
		mw.WithSummary("Retrieve allocations in charge order"),
		mw.WithOperationID("retrieveAllocationsInternal"))
	mw.ProtectedGet(api, "/api/v1/accounting/transactions", h.Wallets.BrowseTransactions,
		privileged, mw.WithErrors(http.StatusNotFound),
		mw.WithTags(TagAccounting),
		mw.WithSummary("Browse the transactions of an allocation"),
		mw.WithOperationID("browseTransactions"))

	// =========================================================================
	// Wallets
	// =========================================================================

	mw.ProtectedGet(api, "/api/v1/wallets", h.Wallets.Browse,
		mw.WithTags(TagWallets),
		mw.WithSummary("Browse wallets"),
		mw.WithOperationID("browseWallets"))
	mw.ProtectedGet(api, "/api/v1/wallets/sub-allocations", h.Wallets.BrowseSubAllocations,
		mw.WithTags(TagWallets),
		mw.WithSummary("Browse sub-allocations"),
		mw.WithOperationID("browseSubAllocations"))
	mw.ProtectedGet(api, "/api/v1/wallets/sub-allocations/search", h.Wallets.SearchSubAllocations,
		mw.WithTags(TagWallets),
		mw.WithSummary("Search sub-allocations"),
		mw.WithOperationID("searchSubAllocations"))
}
