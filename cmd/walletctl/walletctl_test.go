package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmylchreest/wallet-engine/internal/auth"
	"github.com/jmylchreest/wallet-engine/internal/config"
	"github.com/jmylchreest/wallet-engine/internal/models"
)

const testCatalog = "../../internal/catalog/testdata/catalog.toml"

// run executes walletctl with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "file:"+filepath.Join(t.TempDir(), "wallets.db"))
	t.Setenv("CATALOG_FILE", testCatalog)
	t.Setenv("CATALOG_BUCKET", "")
	t.Setenv("BUCKET_NAME", "")
	t.Setenv("JWT_SECRET", "walletctl-test-secret")
	t.Setenv("JWT_ISSUER", "wallet-engine")
}

// ========================================
// Token Tests
// ========================================

func TestToken(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "token", "--subject", "svc-compute", "--role", "SERVICE", "--project", "p1")
	if err != nil {
		t.Fatalf("token error = %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	claims, err := auth.NewVerifier(cfg.JWTSigningKey, cfg.JWTIssuer).VerifyToken(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if claims.Subject != "svc-compute" || !claims.HasRole(auth.RoleService) || !claims.MemberOf("p1") {
		t.Errorf("claims = %+v", claims)
	}
}

func TestToken_Errors(t *testing.T) {
	setupEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown role", []string{"token", "--subject", "x", "--role", "ROOT"}},
		{"missing subject", []string{"token"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}

	t.Setenv("JWT_SECRET", "")
	if _, err := run(t, "token", "--subject", "x"); err == nil {
		t.Error("expected error without JWT_SECRET")
	}
}

// ========================================
// Accounting Tests
// ========================================

func TestRootDepositAndWallets(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "--json", "root-deposit",
		"--project", "p1",
		"--category", "cpu", "--provider", "hpc",
		"--amount", "5000",
		"--start", "2025-01-01",
		"--transaction-id", "seed-1")
	if err != nil {
		t.Fatalf("root-deposit error = %v", err)
	}
	var deposit map[string]string
	if err := json.Unmarshal([]byte(out), &deposit); err != nil {
		t.Fatalf("failed to decode %q: %v", out, err)
	}
	if deposit["transactionId"] != "seed-1" {
		t.Errorf("transactionId = %q, want seed-1", deposit["transactionId"])
	}

	out, err = run(t, "--json", "wallets", "--project", "p1")
	if err != nil {
		t.Fatalf("wallets error = %v", err)
	}
	var wallets []models.Wallet
	if err := json.Unmarshal([]byte(out), &wallets); err != nil {
		t.Fatalf("failed to decode %q: %v", out, err)
	}
	if len(wallets) != 1 || len(wallets[0].Allocations) != 1 {
		t.Fatalf("wallets = %+v, want one wallet with one allocation", wallets)
	}
	if got := wallets[0].Allocations[0].Balance; got != 5000 {
		t.Errorf("balance = %d, want 5000", got)
	}
}

func TestRootDeposit_OwnerFlags(t *testing.T) {
	setupEnv(t)

	base := []string{"root-deposit", "--category", "cpu", "--provider", "hpc", "--amount", "1"}
	if _, err := run(t, base...); err == nil {
		t.Error("expected error without an owner")
	}
	if _, err := run(t, append(base, "--user", "a", "--project", "p")...); err == nil {
		t.Error("expected error with both owners")
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantNil bool
		wantErr bool
	}{
		{in: "", wantNil: true},
		{in: "2025-01-01", want: 1735689600000},
		{in: "2025-01-01T00:00:01Z", want: 1735689601000},
		{in: "yesterday", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDate(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDate() error = %v", err)
			}
			if tt.wantNil {
				if got != nil {
					t.Errorf("parseDate() = %d, want nil", *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("parseDate() = %v, want %d", got, tt.want)
			}
		})
	}
}

// ========================================
// Catalog and OpenAPI Tests
// ========================================

func TestCatalogCheck(t *testing.T) {
	out, err := run(t, "catalog", "check", testCatalog)
	if err != nil {
		t.Fatalf("catalog check error = %v", err)
	}
	if !strings.Contains(out, "hpc/cpu") || !strings.Contains(out, "hpc/storage") {
		t.Errorf("summary = %q, want both categories", out)
	}

	if _, err := run(t, "catalog", "check", "missing.toml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestOpenAPI(t *testing.T) {
	out, err := run(t, "openapi", "--base-url", "https://wallets.example.com")
	if err != nil {
		t.Fatalf("openapi error = %v", err)
	}
	var doc struct {
		Paths   map[string]any `json:"paths"`
		Servers []struct {
			URL string `json:"url"`
		} `json:"servers"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("failed to decode document: %v", err)
	}
	if _, ok := doc.Paths["/api/v1/accounting/charge"]; !ok {
		t.Error("charge path missing from document")
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "https://wallets.example.com" {
		t.Errorf("servers = %+v", doc.Servers)
	}

	path := filepath.Join(t.TempDir(), "openapi.yaml")
	if _, err := run(t, "openapi", "--yaml", "-o", path); err != nil {
		t.Fatalf("openapi --yaml error = %v", err)
	}
}
