package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/jmylchreest/wallet-engine/internal/catalog"
	"github.com/jmylchreest/wallet-engine/internal/config"
	"github.com/jmylchreest/wallet-engine/internal/database/migrations"
	"github.com/jmylchreest/wallet-engine/internal/models"
	"github.com/jmylchreest/wallet-engine/internal/repository"
)

// testNow is the fixed clock used by service tests.
var testNow = time.UnixMilli(1_760_000_000_000)

var (
	cpuCategory     = models.ProductCategoryID{Name: "cpu", Provider: "hpc"}
	storageCategory = models.ProductCategoryID{Name: "storage", Provider: "hpc"}

	cpuProduct     = models.ProductReference{ID: "cpu-standard", Category: "cpu", Provider: "hpc"}
	freeProduct    = models.ProductReference{ID: "cpu-free", Category: "cpu", Provider: "hpc"}
	hugeProduct    = models.ProductReference{ID: "cpu-huge", Category: "cpu", Provider: "hpc"}
	storageProduct = models.ProductReference{ID: "home", Category: "storage", Provider: "hpc"}
)

func testCatalog(t *testing.T) *catalog.Static {
	t.Helper()
	c, err := catalog.NewStatic(&catalog.Document{Categories: []catalog.CategoryEntry{
		{
			Name: "cpu", Provider: "hpc", ProductType: "COMPUTE", ChargeType: "ABSOLUTE", Unit: "CREDITS",
			Products: []catalog.ProductEntry{
				{ID: "cpu-standard", PricePerUnit: 1},
				{ID: "cpu-free", PricePerUnit: 5, FreeToUse: true},
				{ID: "cpu-huge", PricePerUnit: 1 << 62},
			},
		},
		{
			Name: "storage", Provider: "hpc", ProductType: "STORAGE", ChargeType: "DIFFERENTIAL_QUOTA", Unit: "GB",
			Products: []catalog.ProductEntry{{ID: "home", PricePerUnit: 1}},
		},
	}})
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}
	return c
}

// setupTestStore creates an in-memory, migrated database wrapped in a Store.
func setupTestStore(t *testing.T) *repository.Store {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return repository.NewStore(db)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	store    *repository.Store
	accounts *AccountingService
	wallets  *WalletService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := setupTestStore(t)
	cfg := config.DefaultAccountingConfig()

	accounts := NewAccountingService(store, testCatalog(t), cfg, testLogger())
	accounts.now = func() time.Time { return testNow }
	wallets := NewWalletService(store, cfg, testLogger())
	wallets.now = func() time.Time { return testNow }

	return &testEnv{store: store, accounts: accounts, wallets: wallets}
}

// rootAllocation funds a new root for owner and returns it.
func (e *testEnv) rootAllocation(t *testing.T, owner models.WalletOwner, category models.ProductCategoryID, amount int64, end *int64) *models.WalletAllocation {
	t.Helper()
	start := testNow.UnixMilli() - 1000
	err := e.accounts.RootDeposit(context.Background(), "admin", []RootDepositItem{{
		CategoryID: category,
		Recipient:  owner,
		Amount:     amount,
		StartDate:  &start,
		EndDate:    end,
	}})
	if err != nil {
		t.Fatalf("RootDeposit() error = %v", err)
	}
	return e.newestAllocation(t, owner, category)
}

// subAllocation deposits amount from parent to owner and returns the child.
func (e *testEnv) subAllocation(t *testing.T, parent *models.WalletAllocation, owner models.WalletOwner, category models.ProductCategoryID, amount int64) *models.WalletAllocation {
	t.Helper()
	start := parent.StartDate
	err := e.accounts.Deposit(context.Background(), "pi", []DepositItem{{
		Recipient:        owner,
		SourceAllocation: parent.ID,
		Amount:           amount,
		StartDate:        &start,
		EndDate:          parent.EndDate,
	}})
	if err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}
	return e.newestAllocation(t, owner, category)
}

func (e *testEnv) newestAllocation(t *testing.T, owner models.WalletOwner, category models.ProductCategoryID) *models.WalletAllocation {
	t.Helper()
	w, err := e.store.Wallet.GetByOwner(context.Background(), owner, category)
	if err != nil || w == nil || len(w.Allocations) == 0 {
		t.Fatalf("no allocation for %s: %v", owner, err)
	}
	return w.Allocations[len(w.Allocations)-1]
}

func (e *testEnv) reload(t *testing.T, a *models.WalletAllocation) *models.WalletAllocation {
	t.Helper()
	got, err := e.store.Allocation.Get(context.Background(), a.ID)
	if err != nil || got == nil {
		t.Fatalf("failed to reload allocation %s: %v", a.ID, err)
	}
	return got
}

func assertBalances(t *testing.T, a *models.WalletAllocation, balance, local, initial int64) {
	t.Helper()
	if a.Balance != balance || a.LocalBalance != local || a.InitialBalance != initial {
		t.Errorf("allocation %s = {balance:%d local:%d initial:%d}, want {balance:%d local:%d initial:%d}",
			a.ID, a.Balance, a.LocalBalance, a.InitialBalance, balance, local, initial)
	}
}

func chargeItem(payer models.WalletOwner, product models.ProductReference, units int64, txID string) ChargeItem {
	return ChargeItem{
		Payer:            payer,
		Units:            units,
		NumberOfProducts: 1,
		Product:          product,
		PerformedBy:      "_provider",
		Description:      "test charge",
		TransactionID:    txID,
	}
}
