package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmylchreest/wallet-engine/internal/models"
)

// SQLiteAllocationRepository implements AllocationRepository for SQLite.
type SQLiteAllocationRepository struct {
	db querier
}

// NewSQLiteAllocationRepository creates a new SQLite allocation repository.
func NewSQLiteAllocationRepository(db querier) *SQLiteAllocationRepository {
	return &SQLiteAllocationRepository{db: db}
}

const allocationColumns = `id, wallet_id, allocation_path, initial_balance, balance, local_balance, start_date, end_date`

func scanAllocation(row interface{ Scan(dest ...any) error }) (*models.WalletAllocation, error) {
	var a models.WalletAllocation
	var id int64
	var path string
	var endDate sql.NullInt64
	if err := row.Scan(&id, &a.WalletID, &path, &a.InitialBalance, &a.Balance, &a.LocalBalance, &a.StartDate, &endDate); err != nil {
		return nil, err
	}
	a.ID = strconv.FormatInt(id, 10)
	a.AllocationPath = models.SplitPath(path)
	if endDate.Valid {
		end := endDate.Int64
		a.EndDate = &end
	}
	return &a, nil
}

func scanAllocations(rows *sql.Rows) ([]*models.WalletAllocation, error) {
	defer func() { _ = rows.Close() }()
	var out []*models.WalletAllocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// parseID converts a wire allocation id to its row id. Unparseable ids
// cannot exist, so callers treat ok == false as not found.
func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (r *SQLiteAllocationRepository) Get(ctx context.Context, id string) (*models.WalletAllocation, error) {
	rowID, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	query := `SELECT ` + allocationColumns + ` FROM wallet_allocations WHERE id = ?`
	a, err := scanAllocation(r.db.QueryRowContext(ctx, query, rowID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (r *SQLiteAllocationRepository) GetAncestors(ctx context.Context, id string) ([]*models.WalletAllocation, error) {
	self, err := r.Get(ctx, id)
	if err != nil || self == nil {
		return nil, err
	}
	if self.IsRoot() {
		return []*models.WalletAllocation{self}, nil
	}

	placeholders := make([]string, 0, len(self.AllocationPath))
	args := make([]any, 0, len(self.AllocationPath))
	for _, p := range self.AllocationPath {
		rowID, ok := parseID(p)
		if !ok {
			return nil, fmt.Errorf("allocation %s: malformed path %q", id, models.JoinPath(self.AllocationPath))
		}
		placeholders = append(placeholders, "?")
		args = append(args, rowID)
	}
	query := `SELECT ` + allocationColumns + ` FROM wallet_allocations WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	found, err := scanAllocations(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.WalletAllocation, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	chain := make([]*models.WalletAllocation, 0, len(self.AllocationPath))
	for _, p := range self.AllocationPath {
		a, ok := byID[p]
		if !ok {
			return nil, fmt.Errorf("allocation %s: ancestor %s missing", id, p)
		}
		chain = append(chain, a)
	}
	return chain, nil
}

func (r *SQLiteAllocationRepository) ListByWallet(ctx context.Context, walletID int64) ([]*models.WalletAllocation, error) {
	query := `SELECT ` + allocationColumns + ` FROM wallet_allocations WHERE wallet_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, walletID)
	if err != nil {
		return nil, err
	}
	return scanAllocations(rows)
}

func (r *SQLiteAllocationRepository) ListDescendants(ctx context.Context, id string) ([]*models.WalletAllocation, error) {
	self, err := r.Get(ctx, id)
	if err != nil || self == nil {
		return nil, err
	}
	query := `SELECT ` + allocationColumns + ` FROM wallet_allocations WHERE allocation_path LIKE ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, models.JoinPath(self.AllocationPath)+".%")
	if err != nil {
		return nil, err
	}
	return scanAllocations(rows)
}

func (r *SQLiteAllocationRepository) Insert(ctx context.Context, alloc NewAllocation) (*models.WalletAllocation, error) {
	var parentPath string
	var parentID any
	if alloc.ParentID != "" {
		parent, err := r.Get(ctx, alloc.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("parent allocation %s not found", alloc.ParentID)
		}
		parentPath = models.JoinPath(parent.AllocationPath)
		parentID, _ = parseID(parent.ID)
	}

	var endDate any
	if alloc.EndDate != nil {
		endDate = *alloc.EndDate
	}

	var rowID int64
	insert := `INSERT INTO wallet_allocations (wallet_id, parent_id, initial_balance, balance, local_balance, start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	if err := r.db.QueryRowContext(ctx, insert, alloc.WalletID, parentID, alloc.InitialBalance, alloc.InitialBalance,
		alloc.InitialBalance, alloc.StartDate, endDate, alloc.CreatedAt.UnixMilli()).Scan(&rowID); err != nil {
		return nil, err
	}

	path := strconv.FormatInt(rowID, 10)
	if parentPath != "" {
		path = parentPath + "." + path
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE wallet_allocations SET allocation_path = ? WHERE id = ?`, path, rowID); err != nil {
		return nil, err
	}

	return r.Get(ctx, strconv.FormatInt(rowID, 10))
}

func (r *SQLiteAllocationRepository) ApplyDelta(ctx context.Context, id string, balanceDelta, localBalanceDelta int64) error {
	rowID, ok := parseID(id)
	if !ok {
		return fmt.Errorf("allocation %s not found", id)
	}
	query := `UPDATE wallet_allocations SET balance = balance + ?, local_balance = local_balance + ? WHERE id = ?`
	return expectOneRow(r.db.ExecContext(ctx, query, balanceDelta, localBalanceDelta, rowID))
}

func (r *SQLiteAllocationRepository) Update(ctx context.Context, id string, initialBalance, startDate int64, endDate *int64) error {
	rowID, ok := parseID(id)
	if !ok {
		return fmt.Errorf("allocation %s not found", id)
	}
	// Right-hand sides read the pre-update row, so usage (initial - local)
	// is carried over and balance moves by the change in the grant.
	query := `UPDATE wallet_allocations SET
			local_balance = ? - (initial_balance - local_balance),
			balance = balance + (? - initial_balance),
			initial_balance = ?,
			start_date = ?,
			end_date = ?
		WHERE id = ?`
	return expectOneRow(r.db.ExecContext(ctx, query, initialBalance, initialBalance, initialBalance, startDate, nullableInt(endDate), rowID))
}

func (r *SQLiteAllocationRepository) UpdateWindow(ctx context.Context, id string, startDate int64, endDate *int64) error {
	rowID, ok := parseID(id)
	if !ok {
		return fmt.Errorf("allocation %s not found", id)
	}
	query := `UPDATE wallet_allocations SET start_date = ?, end_date = ? WHERE id = ?`
	return expectOneRow(r.db.ExecContext(ctx, query, startDate, nullableInt(endDate), rowID))
}

func (r *SQLiteAllocationRepository) ListSubAllocations(ctx context.Context, owner models.WalletOwner, filter SubAllocationFilter) ([]*models.SubAllocation, error) {
	query := `SELECT c.id, c.allocation_path, c.start_date, c.end_date, c.balance, c.initial_balance,
			cw.category, cw.provider, cw.product_type, cw.charge_type, cw.unit, cw.owner_type, cw.owner_id
		FROM wallet_allocations c
		JOIN wallet_allocations p ON c.parent_id = p.id
		JOIN wallets pw ON p.wallet_id = pw.id
		JOIN wallets cw ON c.wallet_id = cw.id
		WHERE pw.owner_type = ? AND pw.owner_id = ? AND c.id > ?
			AND (? = '' OR cw.product_type = ?)
			AND (? = '' OR cw.owner_id LIKE ? OR cw.category LIKE ?)
		ORDER BY c.id LIMIT ?`
	like := "%" + filter.Query + "%"
	rows, err := r.db.QueryContext(ctx, query, string(owner.Type), owner.Reference(), filter.AfterID,
		string(filter.ProductType), string(filter.ProductType),
		filter.Query, like, like,
		limitOrDefault(filter.Limit))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*models.SubAllocation
	for rows.Next() {
		var s models.SubAllocation
		var id int64
		var endDate sql.NullInt64
		var productType, chargeType, unit, ownerType string
		if err := rows.Scan(&id, &s.Path, &s.StartDate, &endDate, &s.Remaining, &s.InitialBalance,
			&s.ProductCategoryID.Name, &s.ProductCategoryID.Provider, &productType, &chargeType, &unit,
			&ownerType, &s.WorkspaceID); err != nil {
			return nil, err
		}
		s.ID = strconv.FormatInt(id, 10)
		if endDate.Valid {
			end := endDate.Int64
			s.EndDate = &end
		}
		s.ProductType = models.ProductType(productType)
		s.ChargeType = models.ChargeType(chargeType)
		s.Unit = models.ProductPriceUnit(unit)
		s.WorkspaceIsProject = models.WalletOwnerType(ownerType) == models.WalletOwnerProject
		out = append(out, &s)
	}
	return out, rows.Err()
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func expectOneRow(result sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("expected 1 row affected, got %d", n)
	}
	return nil
}
