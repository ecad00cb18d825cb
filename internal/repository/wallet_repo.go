package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmylchreest/wallet-engine/internal/models"
)

// SQLiteWalletRepository implements WalletRepository for SQLite.
type SQLiteWalletRepository struct {
	db          querier
	allocations AllocationRepository
}

// NewSQLiteWalletRepository creates a new SQLite wallet repository.
func NewSQLiteWalletRepository(db querier, allocations AllocationRepository) *SQLiteWalletRepository {
	return &SQLiteWalletRepository{db: db, allocations: allocations}
}

const walletColumns = `id, owner_type, owner_id, category, provider, product_type, charge_type, unit, charge_policy`

func scanWallet(row interface{ Scan(dest ...any) error }) (*models.Wallet, error) {
	var w models.Wallet
	var ownerType, ownerID, productType, chargeType, unit, policy string
	if err := row.Scan(&w.ID, &ownerType, &ownerID, &w.PaysFor.Name, &w.PaysFor.Provider,
		&productType, &chargeType, &unit, &policy); err != nil {
		return nil, err
	}
	w.Owner = models.OwnerFromStored(ownerType, ownerID)
	w.ProductType = models.ProductType(productType)
	w.ChargeType = models.ChargeType(chargeType)
	w.Unit = models.ProductPriceUnit(unit)
	w.ChargePolicy = models.AllocationSelectorPolicy(policy)
	return &w, nil
}

func (r *SQLiteWalletRepository) withAllocations(ctx context.Context, w *models.Wallet) (*models.Wallet, error) {
	allocs, err := r.allocations.ListByWallet(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	w.Allocations = allocs
	return w, nil
}

func (r *SQLiteWalletRepository) GetByOwner(ctx context.Context, owner models.WalletOwner, category models.ProductCategoryID) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets
		WHERE owner_type = ? AND owner_id = ? AND category = ? AND provider = ?`
	w, err := scanWallet(r.db.QueryRowContext(ctx, query, string(owner.Type), owner.Reference(), category.Name, category.Provider))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.withAllocations(ctx, w)
}

func (r *SQLiteWalletRepository) GetByID(ctx context.Context, id int64) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = ?`
	w, err := scanWallet(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.withAllocations(ctx, w)
}

func (r *SQLiteWalletRepository) GetOrCreate(ctx context.Context, owner models.WalletOwner, category models.ProductCategory, policy models.AllocationSelectorPolicy) (*models.Wallet, error) {
	query := `INSERT INTO wallets (owner_type, owner_id, category, provider, product_type, charge_type, unit, charge_policy, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_type, owner_id, category, provider) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, string(owner.Type), owner.Reference(), category.ID.Name, category.ID.Provider,
		string(category.ProductType), string(category.ChargeType), string(category.Unit), string(policy), time.Now().UnixMilli()); err != nil {
		return nil, err
	}
	return r.GetByOwner(ctx, owner, category.ID)
}

func (r *SQLiteWalletRepository) ListByOwner(ctx context.Context, owner models.WalletOwner, filter WalletFilter) ([]*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets
		WHERE owner_type = ? AND owner_id = ? AND id > ? AND (? = '' OR product_type = ?)
		ORDER BY id LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, string(owner.Type), owner.Reference(), filter.AfterID,
		string(filter.ProductType), string(filter.ProductType), limitOrDefault(filter.Limit))
	if err != nil {
		return nil, err
	}

	var wallets []*models.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	// Close before issuing the allocation queries; a single-connection pool
	// would otherwise block on the open cursor.
	_ = rows.Close()

	for _, w := range wallets {
		if _, err := r.withAllocations(ctx, w); err != nil {
			return nil, err
		}
	}
	return wallets, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
