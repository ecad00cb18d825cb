package migrations

func init() {
	Register(Migration{
		Timestamp:   "20261001-093000",
		Description: "Append-only accounting transactions",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS accounting_transactions (
				id TEXT PRIMARY KEY,
				kind TEXT NOT NULL,
				transaction_id TEXT NOT NULL,
				allocation_id INTEGER NOT NULL REFERENCES wallet_allocations(id),
				change INTEGER NOT NULL,
				units INTEGER NOT NULL DEFAULT 0,
				number_of_products INTEGER NOT NULL DEFAULT 0,
				product_id TEXT,
				category TEXT NOT NULL,
				provider TEXT NOT NULL,
				target_owner_type TEXT,
				target_owner_id TEXT,
				source_owner_type TEXT,
				source_owner_id TEXT,
				start_date INTEGER,
				end_date INTEGER,
				performed_by TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_accounting_tx_allocation ON accounting_transactions(allocation_id, id)`,
			`CREATE INDEX IF NOT EXISTS idx_accounting_tx_transaction_id ON accounting_transactions(transaction_id)`,
		},
	})
}
