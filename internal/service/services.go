// Package service contains the accounting engines and the read-side services.
package service

import (
	"log/slog"

	"github.com/jmylchreest/wallet-engine/internal/catalog"
	"github.com/jmylchreest/wallet-engine/internal/config"
	"github.com/jmylchreest/wallet-engine/internal/repository"
)

// Services holds all service instances.
type Services struct {
	Accounting *AccountingService
	Wallets    *WalletService
	Cleanup    *CleanupService
}

// NewServices creates all service instances.
func NewServices(cfg *config.Config, store *repository.Store, cat catalog.Catalog, logger *slog.Logger) *Services {
	return &Services{
		Accounting: NewAccountingService(store, cat, cfg.Accounting, logger),
		Wallets:    NewWalletService(store, cfg.Accounting, logger),
		Cleanup:    NewCleanupService(store.Idempotency, logger),
	}
}
