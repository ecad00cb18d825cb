package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/jmylchreest/wallet-engine/internal/database/migrations"
	"github.com/jmylchreest/wallet-engine/internal/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
// It runs migrations and returns a database connection that will be cleaned up
// when the test completes.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	// Every pooled connection to :memory: is a separate database.
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
	return db
}

// setupTestStore creates a store over a fresh test database.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(setupTestDB(t))
}

var testCategory = models.ProductCategory{
	ID:          models.ProductCategoryID{Name: "cpu", Provider: "hpc"},
	ProductType: models.ProductTypeCompute,
	ChargeType:  models.ChargeAbsolute,
	Unit:        "CREDITS",
}

// createTestWallet creates a wallet for owner in testCategory.
func createTestWallet(t *testing.T, s *Store, owner models.WalletOwner) *models.Wallet {
	t.Helper()
	w, err := s.Wallet.GetOrCreate(context.Background(), owner, testCategory, models.PolicyExpireFirst)
	if err != nil {
		t.Fatalf("failed to create wallet: %v", err)
	}
	return w
}

// insertTestAllocation inserts an allocation with no expiry starting at the epoch.
func insertTestAllocation(t *testing.T, s *Store, walletID int64, parentID string, amount int64) *models.WalletAllocation {
	t.Helper()
	a, err := s.Allocation.Insert(context.Background(), NewAllocation{
		WalletID:       walletID,
		ParentID:       parentID,
		InitialBalance: amount,
		StartDate:      0,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to insert allocation: %v", err)
	}
	return a
}
