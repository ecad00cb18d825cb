package repository

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/jmylchreest/wallet-engine/internal/models"
)

// SQLiteTransactionRepository implements TransactionRepository for SQLite.
type SQLiteTransactionRepository struct {
	db querier
}

// NewSQLiteTransactionRepository creates a new SQLite transaction repository.
func NewSQLiteTransactionRepository(db querier) *SQLiteTransactionRepository {
	return &SQLiteTransactionRepository{db: db}
}

const transactionColumns = `id, kind, transaction_id, allocation_id, change, units, number_of_products, product_id,
	category, provider, target_owner_type, target_owner_id, source_owner_type, source_owner_id,
	start_date, end_date, performed_by, description, created_at`

func (r *SQLiteTransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	query := `INSERT INTO accounting_transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	allocationID, _ := parseID(tx.AffectedAllocation)

	var productID *string
	if tx.Product != nil {
		productID = &tx.Product.ID
	}
	targetType, targetID := ownerColumns(tx.TargetWallet)
	sourceType, sourceID := ownerColumns(tx.TransferFromWallet)

	_, err := r.db.ExecContext(ctx, query,
		tx.ID, string(tx.Kind), tx.TransactionID, allocationID, tx.Change, tx.Units, tx.NumberOfProducts, productID,
		tx.Category.Name, tx.Category.Provider, targetType, targetID, sourceType, sourceID,
		nullableInt(tx.StartDate), nullableInt(tx.EndDate), tx.ActionPerformedBy, tx.Description,
		tx.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (r *SQLiteTransactionRepository) ListByAllocation(ctx context.Context, allocationID, afterID string, limit int) ([]*models.Transaction, error) {
	rowID, ok := parseID(allocationID)
	if !ok {
		return nil, nil
	}
	query := `SELECT ` + transactionColumns + ` FROM accounting_transactions
		WHERE allocation_id = ? AND id > ? ORDER BY id LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, rowID, afterID, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func (r *SQLiteTransactionRepository) ListByTransactionID(ctx context.Context, transactionID string) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM accounting_transactions WHERE transaction_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]*models.Transaction, error) {
	defer func() { _ = rows.Close() }()

	var out []*models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var kind, createdAt string
		var allocationID int64
		var productID, targetType, targetID, sourceType, sourceID sql.NullString
		var startDate, endDate sql.NullInt64

		if err := rows.Scan(&tx.ID, &kind, &tx.TransactionID, &allocationID, &tx.Change, &tx.Units, &tx.NumberOfProducts, &productID,
			&tx.Category.Name, &tx.Category.Provider, &targetType, &targetID, &sourceType, &sourceID,
			&startDate, &endDate, &tx.ActionPerformedBy, &tx.Description, &createdAt); err != nil {
			return nil, err
		}

		tx.Kind = models.TransactionKind(kind)
		tx.AffectedAllocation = strconv.FormatInt(allocationID, 10)
		if productID.Valid {
			tx.Product = &models.ProductReference{ID: productID.String, Category: tx.Category.Name, Provider: tx.Category.Provider}
		}
		if targetType.Valid {
			owner := models.OwnerFromStored(targetType.String, targetID.String)
			tx.TargetWallet = &owner
		}
		if sourceType.Valid {
			owner := models.OwnerFromStored(sourceType.String, sourceID.String)
			tx.TransferFromWallet = &owner
		}
		if startDate.Valid {
			v := startDate.Int64
			tx.StartDate = &v
		}
		if endDate.Valid {
			v := endDate.Int64
			tx.EndDate = &v
		}
		tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

		out = append(out, &tx)
	}
	return out, rows.Err()
}

func ownerColumns(owner *models.WalletOwner) (any, any) {
	if owner == nil {
		return nil, nil
	}
	return string(owner.Type), owner.Reference()
}
