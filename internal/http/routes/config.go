// Package routes provides shared route registration for the wallet API.
// Both the server and the OpenAPI generator register through here so the
// published document always matches what is served.
package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/wallet-engine/internal/http/mw"
	"github.com/jmylchreest/wallet-engine/internal/version"
)

// Tag names used by Register.
const (
	TagAccounting = "Accounting"
	TagWallets    = "Wallets"
	TagHealth     = "Health"
)

// NewHumaConfig creates the shared Huma configuration for the API.
func NewHumaConfig(baseURL string) huma.Config {
	cfg := huma.DefaultConfig("Wallet Engine API", version.Get().Short())
	cfg.Info.Description = "Hierarchical allocation accounting: charges, deposits, transfers and wallet browsing."

	// Disable $schema field in responses
	cfg.CreateHooks = nil

	if baseURL != "" {
		cfg.Servers = []*huma.Server{
			{URL: baseURL, Description: "API Server"},
		}
	}

	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		mw.SecurityScheme: {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "HS256 token carrying `sub`, `roles` and `projects` claims.",
		},
	}

	cfg.Tags = []*huma.Tag{
		{Name: TagAccounting, Description: "Charges, deposits, transfers and allocation updates", Extensions: map[string]any{"x-displayName": "Accounting"}},
		{Name: TagWallets, Description: "Wallet, sub-allocation and transaction browsing", Extensions: map[string]any{"x-displayName": "Wallets"}},
		{Name: TagHealth, Description: "System health and status", Extensions: map[string]any{"x-displayName": "Health"}},
	}

	return cfg
}
