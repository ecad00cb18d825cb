package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jmylchreest/wallet-engine/internal/catalog"
	"github.com/jmylchreest/wallet-engine/internal/models"
)

// ========================================
// Charge Scenarios
// ========================================

func TestCharge_AbsoluteRoot(t *testing.T) {
	env := setupTestEnv(t)
	alice := models.UserOwner("alice")
	root := env.rootAllocation(t, alice, cpuCategory, 1000, nil)

	for _, txID := range []string{"a-1", "a-2"} {
		results, err := env.accounts.Charge(context.Background(), []ChargeItem{chargeItem(alice, cpuProduct, 1, txID)})
		if err != nil {
			t.Fatalf("Charge() error = %v", err)
		}
		if !results[0] {
			t.Errorf("Charge(%s) = false, want true", txID)
		}
	}

	assertBalances(t, env.reload(t, root), 998, 998, 1000)
}

func TestCharge_DifferentialQuota(t *testing.T) {
	env := setupTestEnv(t)
	project := models.ProjectOwner("p-1")
	root := env.rootAllocation(t, project, storageCategory, 1000, nil)
	ctx := context.Background()

	if _, err := env.accounts.Charge(ctx, []ChargeItem{chargeItem(project, storageProduct, 100, "q-1")}); err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	assertBalances(t, env.reload(t, root), 900, 900, 1000)

	results, err := env.accounts.Charge(ctx, []ChargeItem{chargeItem(project, storageProduct, 50, "q-2")})
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if !results[0] {
		t.Error("differential charge returned false")
	}
	assertBalances(t, env.reload(t, root), 950, 950, 1000)
}

func TestCharge_LeafUnderRoot(t *testing.T) {
	env := setupTestEnv(t)
	project := models.ProjectOwner("p-1")
	bob := models.UserOwner("bob")
	root := env.rootAllocation(t, project, cpuCategory, 1000, nil)
	leaf := env.subAllocation(t, root, bob, cpuCategory, 500)

	if models.JoinPath(leaf.AllocationPath) != root.ID+"."+leaf.ID {
		t.Fatalf("leaf path = %v", leaf.AllocationPath)
	}

	results, err := env.accounts.Charge(context.Background(), []ChargeItem{chargeItem(bob, cpuProduct, 1, "c-1")})
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if !results[0] {
		t.Fatal("Charge() = false, want true")
	}

	assertBalances(t, env.reload(t, leaf), 499, 499, 500)
	assertBalances(t, env.reload(t, root), 999, 1000, 1000)
}

func TestCharge_IdempotentRetry(t *testing.T) {
	env := setupTestEnv(t)
	alice := models.UserOwner("alice")
	root := env.rootAllocation(t, alice, cpuCategory, 1000, nil)
	ctx := context.Background()

	for attempt := 0; attempt < 2; attempt++ {
		results, err := env.accounts.Charge(ctx, []ChargeItem{chargeItem(alice, cpuProduct, 10, "charge-1")})
		if err != nil {
			t.Fatalf("attempt %d: Charge() error = %v", attempt, err)
		}
		if !results[0] {
			t.Errorf("attempt %d: Charge() = false, want true", attempt)
		}
	}

	assertBalances(t, env.reload(t, root), 990, 990, 1000)

	txs, err := env.store.Transaction.ListByTransactionID(ctx, "charge-1")
	if err != nil {
		t.Fatalf("ListByTransactionID() error = %v", err)
	}
	if len(txs) != 1 {
		t.Errorf("transactions for charge-1 = %d, want 1", len(txs))
	}
}

func TestCharge_InsufficientFunds(t *testing.T) {
	env := setupTestEnv(t)
	project := models.ProjectOwner("p-1")
	bob := models.UserOwner("bob")
	root := env.rootAllocation(t, project, cpuCategory, 1000, nil)
	leaf := env.subAllocation(t, root, bob, cpuCategory, 1)
	ctx := context.Background()

	if results, _ := env.accounts.Charge(ctx, []ChargeItem{chargeItem(bob, cpuProduct, 1, "e-1")}); !results[0] {
		t.Fatal("first charge should drain the leaf")
	}
	assertBalances(t, env.reload(t, leaf), 0, 0, 1)
	rootBefore := env.reload(t, root)

	results, err := env.accounts.Charge(ctx, []ChargeItem{chargeItem(bob, cpuProduct, 1, "e-2")})
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if results[0] {
		t.Error("Charge() = true on an empty leaf")
	}
	assertBalances(t, env.reload(t, leaf), 0, 0, 1)
	assertBalances(t, env.reload(t, root), rootBefore.Balance, rootBefore.LocalBalance, rootBefore.InitialBalance)
}

// ========================================
// Charge Properties
// ========================================

func TestCharge_AncestorPropagation(t *testing.T) {
	env := setupTestEnv(t)
	root := env.rootAllocation(t, models.ProjectOwner("root"), cpuCategory, 10_000, nil)
	mid := env.subAllocation(t, root, models.ProjectOwner("mid"), cpuCategory, 1_000)
	leafOwner := models.UserOwner("leaf")
	leaf := env.subAllocation(t, mid, leafOwner, cpuCategory, 100)

	before := []*models.WalletAllocation{env.reload(t, root), env.reload(t, mid)}
	const x = 7

	item := chargeItem(leafOwner, cpuProduct, x, "p-1")
	if results, err := env.accounts.Charge(context.Background(), []ChargeItem{item}); err != nil || !results[0] {
		t.Fatalf("Charge() = %v, %v", results, err)
	}

	for _, b := range before {
		after := env.reload(t, b)
		if after.Balance != b.Balance-x {
			t.Errorf("ancestor %s balance = %d, want %d", b.ID, after.Balance, b.Balance-x)
		}
		if after.LocalBalance != b.LocalBalance {
			t.Errorf("ancestor %s local balance changed: %d -> %d", b.ID, b.LocalBalance, after.LocalBalance)
		}
	}
	assertBalances(t, env.reload(t, leaf), 100-x, 100-x, 100)
}

// A charge must not change balance - localBalance - sum(children balance)
// on any node of the path.
func TestCharge_PreservesTreeDifference(t *testing.T) {
	env := setupTestEnv(t)
	root := env.rootAllocation(t, models.ProjectOwner("root"), cpuCategory, 1000, nil)
	aOwner, bOwner := models.UserOwner("a"), models.UserOwner("b")
	a := env.subAllocation(t, root, aOwner, cpuCategory, 300)
	b := env.subAllocation(t, root, bOwner, cpuCategory, 200)

	diff := func() int64 {
		r, ca, cb := env.reload(t, root), env.reload(t, a), env.reload(t, b)
		return r.Balance - r.LocalBalance - ca.Balance - cb.Balance
	}
	start := diff()

	ctx := context.Background()
	for i, owner := range []models.WalletOwner{aOwner, bOwner, aOwner, models.ProjectOwner("root")} {
		item := chargeItem(owner, cpuProduct, int64(10*(i+1)), "")
		if results, err := env.accounts.Charge(ctx, []ChargeItem{item}); err != nil || !results[0] {
			t.Fatalf("charge %d = %v, %v", i, results, err)
		}
		if got := diff(); got != start {
			t.Errorf("after charge %d: difference = %d, want %d", i, got, start)
		}
	}
}

func TestCharge_DifferentialRoundTrip(t *testing.T) {
	env := setupTestEnv(t)
	root := env.rootAllocation(t, models.ProjectOwner("root"), storageCategory, 1000, nil)
	user := models.UserOwner("u")
	leaf := env.subAllocation(t, root, user, storageCategory, 400)
	ctx := context.Background()

	if _, err := env.accounts.Charge(ctx, []ChargeItem{chargeItem(user, storageProduct, 120, "s-1")}); err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	leafAfterFirst, rootAfterFirst := env.reload(t, leaf), env.reload(t, root)
	assertBalances(t, leafAfterFirst, 280, 280, 400)
	if rootAfterFirst.Balance != 880 || rootAfterFirst.LocalBalance != 1000 {
		t.Errorf("root after first snapshot = %+v", rootAfterFirst)
	}

	if _, err := env.accounts.Charge(ctx, []ChargeItem{chargeItem(user, storageProduct, 120, "s-2")}); err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	assertBalances(t, env.reload(t, leaf), leafAfterFirst.Balance, leafAfterFirst.LocalBalance, 400)
	assertBalances(t, env.reload(t, root), rootAfterFirst.Balance, rootAfterFirst.LocalBalance, 1000)

	// Usage dropping gives capacity back along the whole path.
	if _, err := env.accounts.Charge(ctx, []ChargeItem{chargeItem(user, storageProduct, 20, "s-3")}); err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	assertBalances(t, env.reload(t, leaf), 380, 380, 400)
	if got := env.reload(t, root).Balance; got != 980 {
		t.Errorf("root balance = %d, want 980", got)
	}
}

func TestCharge_AncestorLimitsLeaf(t *testing.T) {
	env := setupTestEnv(t)
	root := env.rootAllocation(t, models.ProjectOwner("root"), cpuCategory, 1000, nil)
	user := models.UserOwner("u")
	// Deposits do not debit the parent, so the child may exceed it.
	leaf := env.subAllocation(t, root, user, cpuCategory, 5000)

	results, err := env.accounts.Charge(context.Background(), []ChargeItem{chargeItem(user, cpuProduct, 2000, "big")})
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if results[0] {
		t.Error("Charge() = true although the root cannot cover it")
	}
	assertBalances(t, env.reload(t, leaf), 5000, 5000, 5000)
	assertBalances(t, env.reload(t, root), 1000, 1000, 1000)
}

func TestCharge_ExpireFirstOrder(t *testing.T) {
	env := setupTestEnv(t)
	alice := models.UserOwner("alice")
	soon := testNow.UnixMilli() + 60_000
	later := testNow.UnixMilli() + 3_600_000

	forever := env.rootAllocation(t, alice, cpuCategory, 100, nil)
	expiresLater := env.rootAllocation(t, alice, cpuCategory, 100, &later)
	expiresSoon := env.rootAllocation(t, alice, cpuCategory, 5, &soon)

	ctx := context.Background()
	if results, _ := env.accounts.Charge(ctx, []ChargeItem{chargeItem(alice, cpuProduct, 5, "x-1")}); !results[0] {
		t.Fatal("charge failed")
	}
	assertBalances(t, env.reload(t, expiresSoon), 0, 0, 5)

	// The soonest allocation is empty now, so the next one in order pays.
	if results, _ := env.accounts.Charge(ctx, []ChargeItem{chargeItem(alice, cpuProduct, 10, "x-2")}); !results[0] {
		t.Fatal("charge failed")
	}
	assertBalances(t, env.reload(t, expiresLater), 90, 90, 100)
	assertBalances(t, env.reload(t, forever), 100, 100, 100)
}

func TestCharge_ExpiredAllocationIgnored(t *testing.T) {
	env := setupTestEnv(t)
	alice := models.UserOwner("alice")
	past := testNow.UnixMilli() - 1
	expired := env.rootAllocation(t, alice, cpuCategory, 100, &past)

	results, err := env.accounts.Charge(context.Background(), []ChargeItem{chargeItem(alice, cpuProduct, 1, "")})
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if results[0] {
		t.Error("charge against an expired allocation succeeded")
	}
	assertBalances(t, env.reload(t, expired), 100, 100, 100)
}

func TestCharge_NoWallet(t *testing.T) {
	env := setupTestEnv(t)

	results, err := env.accounts.Charge(context.Background(), []ChargeItem{chargeItem(models.UserOwner("ghost"), cpuProduct, 1, "")})
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if results[0] {
		t.Error("Charge() = true without a wallet")
	}
}

func TestCharge_FreeToUse(t *testing.T) {
	env := setupTestEnv(t)
	alice := models.UserOwner("alice")
	root := env.rootAllocation(t, alice, cpuCategory, 10, nil)

	results, err := env.accounts.Charge(context.Background(), []ChargeItem{chargeItem(alice, freeProduct, 100, "")})
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if !results[0] {
		t.Error("free product charge returned false")
	}
	assertBalances(t, env.reload(t, root), 10, 10, 10)
}

func TestCharge_BulkResultsArePositional(t *testing.T) {
	env := setupTestEnv(t)
	alice := models.UserOwner("alice")
	root := env.rootAllocation(t, alice, cpuCategory, 10, nil)

	results, err := env.accounts.Charge(context.Background(), []ChargeItem{
		chargeItem(alice, cpuProduct, 6, ""),
		chargeItem(alice, cpuProduct, 6, ""),
		chargeItem(alice, cpuProduct, 4, ""),
	})
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	want := []bool{true, false, true}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("results[%d] = %v, want %v", i, results[i], want[i])
		}
	}
	assertBalances(t, env.reload(t, root), 0, 0, 10)
}

func TestCharge_Validation(t *testing.T) {
	env := setupTestEnv(t)
	alice := models.UserOwner("alice")
	root := env.rootAllocation(t, alice, cpuCategory, 100, nil)

	zeroProducts := chargeItem(alice, cpuProduct, 1, "")
	zeroProducts.NumberOfProducts = 0

	tests := []struct {
		name    string
		item    ChargeItem
		wantErr error
	}{
		{"zero units", chargeItem(alice, cpuProduct, 0, ""), ErrBadRequest},
		{"zero products", zeroProducts, ErrBadRequest},
		{"bad payer", chargeItem(models.WalletOwner{Type: "team"}, cpuProduct, 1, ""), ErrBadRequest},
		{"unknown product", chargeItem(alice, models.ProductReference{ID: "nope", Category: "cpu", Provider: "hpc"}, 1, ""), ErrNotFound},
		{"overflow", chargeItem(alice, hugeProduct, 4, ""), ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// A valid item first: validation must reject the whole request.
			items := []ChargeItem{chargeItem(alice, cpuProduct, 1, ""), tt.item}
			_, err := env.accounts.Charge(context.Background(), items)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Charge() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	assertBalances(t, env.reload(t, root), 100, 100, 100)
}

// ========================================
// Check (dry run)
// ========================================

func TestCheck_NoSideEffects(t *testing.T) {
	env := setupTestEnv(t)
	alice := models.UserOwner("alice")
	root := env.rootAllocation(t, alice, cpuCategory, 10, nil)
	ctx := context.Background()

	results, err := env.accounts.Check(ctx, []ChargeItem{
		chargeItem(alice, cpuProduct, 8, "dry-1"),
		chargeItem(alice, cpuProduct, 20, "dry-2"),
	})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !results[0] || results[1] {
		t.Errorf("Check() = %v, want [true false]", results)
	}
	assertBalances(t, env.reload(t, root), 10, 10, 10)

	// The dry run must not burn the idempotency key.
	if results, _ := env.accounts.Charge(ctx, []ChargeItem{chargeItem(alice, cpuProduct, 8, "dry-1")}); !results[0] {
		t.Fatal("charge after check failed")
	}
	assertBalances(t, env.reload(t, root), 2, 2, 10)
}

func TestCheck_ReplaysRecordedCharge(t *testing.T) {
	env := setupTestEnv(t)
	alice := models.UserOwner("alice")
	env.rootAllocation(t, alice, cpuCategory, 10, nil)
	ctx := context.Background()

	if results, _ := env.accounts.Charge(ctx, []ChargeItem{chargeItem(alice, cpuProduct, 10, "once")}); !results[0] {
		t.Fatal("charge failed")
	}
	results, err := env.accounts.Check(ctx, []ChargeItem{chargeItem(alice, cpuProduct, 10, "once")})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !results[0] {
		t.Error("Check() of an applied transaction id = false, want recorded true")
	}
}

func TestCharge_DifferentialSnapshotMovesBetweenAllocations(t *testing.T) {
	env := setupTestEnv(t)
	project := models.ProjectOwner("p-1")
	ctx := context.Background()

	longLived := env.rootAllocation(t, project, storageCategory, 1000, nil)
	if _, err := env.accounts.Charge(ctx, []ChargeItem{chargeItem(project, storageProduct, 100, "snap-1")}); err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	assertBalances(t, env.reload(t, longLived), 900, 900, 1000)

	// An allocation expiring sooner now comes first in charge order.
	soon := testNow.UnixMilli() + 60_000
	expiresSoon := env.rootAllocation(t, project, storageCategory, 1000, &soon)

	if _, err := env.accounts.Charge(ctx, []ChargeItem{chargeItem(project, storageProduct, 100, "snap-2")}); err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	a, b := env.reload(t, longLived), env.reload(t, expiresSoon)
	assertBalances(t, a, 1000, 1000, 1000)
	assertBalances(t, b, 900, 900, 1000)
	if total := a.Usage() + b.Usage(); total != 100 {
		t.Errorf("wallet usage = %d, want 100", total)
	}

	if _, err := env.accounts.Charge(ctx, []ChargeItem{chargeItem(project, storageProduct, 30, "snap-3")}); err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	assertBalances(t, env.reload(t, longLived), 1000, 1000, 1000)
	assertBalances(t, env.reload(t, expiresSoon), 970, 970, 1000)
}

func TestCharge_DifferentialSnapshotReleasesAncestors(t *testing.T) {
	env := setupTestEnv(t)
	root := env.rootAllocation(t, models.ProjectOwner("root"), storageCategory, 1000, nil)
	user := models.UserOwner("u")
	first := env.subAllocation(t, root, user, storageCategory, 400)
	ctx := context.Background()

	if _, err := env.accounts.Charge(ctx, []ChargeItem{chargeItem(user, storageProduct, 100, "tree-1")}); err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if got := env.reload(t, root).Balance; got != 900 {
		t.Fatalf("root balance = %d, want 900", got)
	}

	start, soon := root.StartDate, testNow.UnixMilli()+60_000
	if err := env.accounts.Deposit(ctx, "pi", []DepositItem{{
		Recipient:        user,
		SourceAllocation: root.ID,
		Amount:           400,
		StartDate:        &start,
		EndDate:          &soon,
	}}); err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}
	second := env.newestAllocation(t, user, storageCategory)
	if _, err := env.accounts.Charge(ctx, []ChargeItem{chargeItem(user, storageProduct, 100, "tree-2")}); err != nil {
		t.Fatalf("Charge() error = %v", err)
	}

	// The snapshot moved to the sooner-expiring allocation; the root sees it once.
	if got := env.reload(t, root).Balance; got != 900 {
		t.Errorf("root balance = %d, want 900", got)
	}
	assertBalances(t, env.reload(t, first), 400, 400, 400)
	assertBalances(t, env.reload(t, second), 300, 300, 400)
	if total := env.reload(t, first).Usage() + env.reload(t, second).Usage(); total != 100 {
		t.Errorf("wallet usage = %d, want 100", total)
	}
}

// ========================================
// Concurrency
// ========================================

func TestCharge_ConcurrentChargesNeverOverdraw(t *testing.T) {
	env := setupTestEnv(t)
	alice := models.UserOwner("alice")
	root := env.rootAllocation(t, alice, cpuCategory, 10, nil)

	const workers = 25
	var paid atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := range workers {
		go func() {
			defer wg.Done()
			item := chargeItem(alice, cpuProduct, 1, fmt.Sprintf("race-%d", i))
			results, err := env.accounts.Charge(context.Background(), []ChargeItem{item})
			if err != nil {
				t.Errorf("Charge(race-%d) error = %v", i, err)
				return
			}
			if results[0] {
				paid.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := paid.Load(); got != 10 {
		t.Errorf("successful charges = %d, want 10", got)
	}
	assertBalances(t, env.reload(t, root), 0, 0, 10)
}

// ========================================
// Replay Without Catalog Entry
// ========================================

func TestCharge_ReplayAfterProductRemoved(t *testing.T) {
	env := setupTestEnv(t)
	alice := models.UserOwner("alice")
	root := env.rootAllocation(t, alice, cpuCategory, 100, nil)
	ctx := context.Background()

	if _, err := env.accounts.Charge(ctx, []ChargeItem{chargeItem(alice, cpuProduct, 1, "keep-1")}); err != nil {
		t.Fatalf("Charge() error = %v", err)
	}

	empty, err := catalog.NewStatic(&catalog.Document{})
	if err != nil {
		t.Fatalf("NewStatic() error = %v", err)
	}
	env.accounts.catalog = empty

	results, err := env.accounts.Charge(ctx, []ChargeItem{chargeItem(alice, cpuProduct, 1, "keep-1")})
	if err != nil {
		t.Fatalf("retry Charge() error = %v", err)
	}
	if !results[0] {
		t.Error("retry Charge() = false, want the recorded true")
	}
	assertBalances(t, env.reload(t, root), 99, 99, 100)

	if _, err := env.accounts.Charge(ctx, []ChargeItem{chargeItem(alice, cpuProduct, 1, "fresh-1")}); !errors.Is(err, ErrNotFound) {
		t.Errorf("new Charge() error = %v, want ErrNotFound", err)
	}
}
