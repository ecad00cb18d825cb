package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/golang-jwt/jwt/v5"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/jmylchreest/wallet-engine/internal/auth"
	"github.com/jmylchreest/wallet-engine/internal/catalog"
	"github.com/jmylchreest/wallet-engine/internal/config"
	"github.com/jmylchreest/wallet-engine/internal/database/migrations"
	"github.com/jmylchreest/wallet-engine/internal/http/mw"
	"github.com/jmylchreest/wallet-engine/internal/models"
	"github.com/jmylchreest/wallet-engine/internal/repository"
	"github.com/jmylchreest/wallet-engine/internal/service"
)

var (
	testKey      = []byte("handlers-test-signing-key-0123456789")
	testCategory = models.ProductCategoryID{Name: "cpu", Provider: "hpc"}
	testProduct  = models.ProductReference{ID: "cpu-standard", Category: "cpu", Provider: "hpc"}
)

func registered(subject string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: subject}
}

func fmtErr(kind error) error {
	return fmt.Errorf("%w: test", kind)
}

type testAPI struct {
	api      humatest.TestAPI
	verifier *auth.Verifier
	store    *repository.Store
}

func setupTestAPI(t *testing.T) *testAPI {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	store := repository.NewStore(db)

	cat, err := catalog.NewStatic(&catalog.Document{Categories: []catalog.CategoryEntry{{
		Name: "cpu", Provider: "hpc", ProductType: "COMPUTE", ChargeType: "ABSOLUTE", Unit: "CREDITS",
		Products: []catalog.ProductEntry{{ID: "cpu-standard", PricePerUnit: 1}},
	}}})
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultAccountingConfig()
	accounting := NewAccountingHandler(service.NewAccountingService(store, cat, cfg, logger))
	wallets := NewWalletHandler(service.NewWalletService(store, cfg, logger))
	verifier := auth.NewVerifier(testKey, "wallet-engine-test")

	_, api := humatest.New(t)
	api.UseMiddleware(mw.HumaAuth(api, mw.HumaAuthConfig{Verifier: verifier}))

	privileged := mw.WithRoles(auth.RolePrivileged, auth.RoleAdmin)
	chargers := mw.WithRoles(auth.RoleService, auth.RoleAdmin)
	mw.ProtectedPost(api, "/charge", accounting.Charge, chargers, mw.WithOperationID("charge"))
	mw.ProtectedPost(api, "/check", accounting.Check, chargers, mw.WithOperationID("check"))
	mw.ProtectedPost(api, "/deposit", accounting.Deposit, privileged, mw.WithOperationID("deposit"))
	mw.ProtectedPost(api, "/transfer", accounting.Transfer, privileged, mw.WithOperationID("transfer"))
	mw.ProtectedPost(api, "/root-deposit", accounting.RootDeposit, privileged, mw.WithOperationID("root-deposit"))
	mw.ProtectedPost(api, "/allocations/update", accounting.UpdateAllocation, privileged, mw.WithOperationID("update-allocation"))
	mw.ProtectedGet(api, "/wallets", wallets.Browse, mw.WithOperationID("browse-wallets"))
	mw.ProtectedGet(api, "/internal/wallets", wallets.RetrieveWalletsInternal,
		mw.WithRoles(auth.RoleService, auth.RolePrivileged, auth.RoleAdmin), mw.WithOperationID("retrieve-wallets"))
	mw.ProtectedGet(api, "/transactions", wallets.BrowseTransactions, privileged, mw.WithOperationID("browse-transactions"))

	return &testAPI{api: api, verifier: verifier, store: store}
}

func (a *testAPI) bearer(t *testing.T, subject string, roles ...auth.Role) string {
	t.Helper()
	token, err := a.verifier.Mint(subject, roles, nil, time.Hour)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	return "Authorization: Bearer " + token
}

func (a *testAPI) fund(t *testing.T, owner models.WalletOwner, amount int64) {
	t.Helper()
	start := time.Now().Add(-time.Minute).UnixMilli()
	resp := a.api.Post("/root-deposit", a.bearer(t, "admin", auth.RoleAdmin), map[string]any{
		"items": []service.RootDepositItem{{
			CategoryID: testCategory,
			Recipient:  owner,
			Amount:     amount,
			StartDate:  &start,
		}},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("root-deposit status = %d, body = %s", resp.Code, resp.Body.String())
	}
}

func chargeBody(owner models.WalletOwner, units int64, txID string) map[string]any {
	return map[string]any{
		"items": []service.ChargeItem{{
			Payer:            owner,
			Units:            units,
			NumberOfProducts: 1,
			Product:          testProduct,
			TransactionID:    txID,
		}},
	}
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("failed to decode %s: %v", body, err)
	}
	return v
}

// ========================================
// Accounting Tests
// ========================================

func TestAPI_ChargeAndBrowse(t *testing.T) {
	a := setupTestAPI(t)
	alice := models.UserOwner("alice")
	a.fund(t, alice, 1000)
	provider := a.bearer(t, "_provider", auth.RoleService)

	resp := a.api.Post("/charge", provider, chargeBody(alice, 300, "tx-1"))
	if resp.Code != http.StatusOK {
		t.Fatalf("charge status = %d, body = %s", resp.Code, resp.Body.String())
	}
	charged := decode[struct{ Responses []bool }](t, resp.Body.Bytes())
	if len(charged.Responses) != 1 || !charged.Responses[0] {
		t.Errorf("charge responses = %v, want [true]", charged.Responses)
	}

	resp = a.api.Post("/check", provider, chargeBody(alice, 800, ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("check status = %d, body = %s", resp.Code, resp.Body.String())
	}
	checked := decode[struct{ Responses []bool }](t, resp.Body.Bytes())
	if len(checked.Responses) != 1 || checked.Responses[0] {
		t.Errorf("check responses = %v, want [false]", checked.Responses)
	}

	resp = a.api.Get("/wallets", a.bearer(t, "alice", auth.RoleUser))
	if resp.Code != http.StatusOK {
		t.Fatalf("browse status = %d, body = %s", resp.Code, resp.Body.String())
	}
	page := decode[service.Page[*models.Wallet]](t, resp.Body.Bytes())
	if len(page.Items) != 1 || len(page.Items[0].Allocations) != 1 {
		t.Fatalf("browse = %+v, want one wallet with one allocation", page)
	}
	if got := page.Items[0].Allocations[0].Balance; got != 700 {
		t.Errorf("balance = %d, want 700", got)
	}
}

func TestAPI_DepositReturnsTransactionIDs(t *testing.T) {
	a := setupTestAPI(t)
	pi := models.ProjectOwner("p1")
	a.fund(t, pi, 1000)

	w, err := a.store.Wallet.GetByOwner(t.Context(), pi, testCategory)
	if err != nil || w == nil {
		t.Fatalf("GetByOwner() = %v, %v", w, err)
	}

	resp := a.api.Post("/deposit", a.bearer(t, "pi", auth.RolePrivileged), map[string]any{
		"items": []service.DepositItem{{
			Recipient:        models.UserOwner("bob"),
			SourceAllocation: w.Allocations[0].ID,
			Amount:           250,
			TransactionID:    "grant-1",
		}},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("deposit status = %d, body = %s", resp.Code, resp.Body.String())
	}
	out := decode[struct{ Responses []TransactionRef }](t, resp.Body.Bytes())
	if len(out.Responses) != 1 || out.Responses[0].TransactionID != "grant-1" {
		t.Errorf("responses = %+v, want [grant-1]", out.Responses)
	}
}

func TestAPI_ErrorStatuses(t *testing.T) {
	a := setupTestAPI(t)
	alice := models.UserOwner("alice")
	a.fund(t, alice, 100)
	admin := a.bearer(t, "admin", auth.RoleAdmin)

	tests := []struct {
		name   string
		path   string
		auth   string
		body   any
		status int
	}{
		{
			name:   "anonymous charge",
			path:   "/charge",
			body:   chargeBody(alice, 1, ""),
			status: http.StatusUnauthorized,
		},
		{
			name:   "user cannot charge",
			path:   "/charge",
			auth:   a.bearer(t, "alice", auth.RoleUser),
			body:   chargeBody(alice, 1, ""),
			status: http.StatusForbidden,
		},
		{
			name: "user cannot deposit",
			path: "/deposit",
			auth: a.bearer(t, "alice", auth.RoleUser),
			body: map[string]any{"items": []service.DepositItem{{
				Recipient: models.UserOwner("bob"), SourceAllocation: "1", Amount: 1,
			}}},
			status: http.StatusForbidden,
		},
		{
			name: "unknown source allocation",
			path: "/deposit",
			auth: admin,
			body: map[string]any{"items": []service.DepositItem{{
				Recipient: models.UserOwner("bob"), SourceAllocation: "999999", Amount: 1,
			}}},
			status: http.StatusNotFound,
		},
		{
			name: "insufficient funds for transfer",
			path: "/transfer",
			auth: admin,
			body: map[string]any{"items": []service.TransferItem{{
				CategoryID: testCategory, Source: alice, Target: models.UserOwner("carol"), Amount: 500,
			}}},
			status: http.StatusPaymentRequired,
		},
		{
			name: "self transfer",
			path: "/transfer",
			auth: admin,
			body: map[string]any{"items": []service.TransferItem{{
				CategoryID: testCategory, Source: alice, Target: alice, Amount: 1,
			}}},
			status: http.StatusBadRequest,
		},
		{
			name:   "empty items",
			path:   "/charge",
			auth:   admin,
			body:   map[string]any{"items": []service.ChargeItem{}},
			status: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := []any{}
			if tt.auth != "" {
				args = append(args, tt.auth)
			}
			args = append(args, tt.body)
			resp := a.api.Post(tt.path, args...)
			if resp.Code != tt.status {
				t.Errorf("status = %d, want %d, body = %s", resp.Code, tt.status, resp.Body.String())
			}
		})
	}
}

// ========================================
// Wallet Read Tests
// ========================================

func TestAPI_RetrieveWalletsInternal(t *testing.T) {
	a := setupTestAPI(t)
	a.fund(t, models.ProjectOwner("p1"), 500)

	resp := a.api.Get("/internal/wallets?ownerType=project&owner=p1", a.bearer(t, "_provider", auth.RoleService))
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
	}
	out := decode[struct{ Wallets []*models.Wallet }](t, resp.Body.Bytes())
	if len(out.Wallets) != 1 || out.Wallets[0].PaysFor != testCategory {
		t.Errorf("wallets = %+v, want one cpu wallet", out.Wallets)
	}

	resp = a.api.Get("/internal/wallets?ownerType=project&owner=p1", a.bearer(t, "alice", auth.RoleUser))
	if resp.Code != http.StatusForbidden {
		t.Errorf("user status = %d, want %d", resp.Code, http.StatusForbidden)
	}
}

func TestAPI_BrowseTransactions(t *testing.T) {
	a := setupTestAPI(t)
	alice := models.UserOwner("alice")
	a.fund(t, alice, 1000)

	resp := a.api.Post("/charge", a.bearer(t, "_provider", auth.RoleService), chargeBody(alice, 10, ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("charge status = %d", resp.Code)
	}
	w, err := a.store.Wallet.GetByOwner(t.Context(), alice, testCategory)
	if err != nil || w == nil {
		t.Fatalf("GetByOwner() = %v, %v", w, err)
	}

	resp = a.api.Get("/transactions?allocationId="+w.Allocations[0].ID, a.bearer(t, "ops", auth.RolePrivileged))
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
	}
	page := decode[service.Page[*models.Transaction]](t, resp.Body.Bytes())
	if len(page.Items) != 2 {
		t.Errorf("transactions = %d, want 2 (deposit and charge)", len(page.Items))
	}
}

func TestAPI_BrowseForeignProject(t *testing.T) {
	a := setupTestAPI(t)

	resp := a.api.Get("/wallets", a.bearer(t, "alice", auth.RoleUser), "X-Project: p9")
	if resp.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.Code, http.StatusForbidden)
	}
}
