package migrations

func init() {
	Register(Migration{
		Timestamp:   "20261001-090000",
		Description: "Wallets and allocation tree",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS wallets (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				owner_type TEXT NOT NULL CHECK (owner_type IN ('user', 'project')),
				owner_id TEXT NOT NULL,
				category TEXT NOT NULL,
				provider TEXT NOT NULL,
				product_type TEXT NOT NULL,
				charge_type TEXT NOT NULL CHECK (charge_type IN ('ABSOLUTE', 'DIFFERENTIAL_QUOTA')),
				unit TEXT NOT NULL DEFAULT '',
				charge_policy TEXT NOT NULL DEFAULT 'EXPIRE_FIRST',
				created_at INTEGER NOT NULL,
				UNIQUE (owner_type, owner_id, category, provider)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_wallets_owner ON wallets(owner_type, owner_id)`,

			// allocation_path is the dotted chain of ids from the root to this row.
			`CREATE TABLE IF NOT EXISTS wallet_allocations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				wallet_id INTEGER NOT NULL REFERENCES wallets(id),
				parent_id INTEGER REFERENCES wallet_allocations(id),
				allocation_path TEXT NOT NULL DEFAULT '',
				initial_balance INTEGER NOT NULL,
				balance INTEGER NOT NULL,
				local_balance INTEGER NOT NULL,
				start_date INTEGER NOT NULL,
				end_date INTEGER,
				created_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_allocations_wallet ON wallet_allocations(wallet_id)`,
			`CREATE INDEX IF NOT EXISTS idx_allocations_parent ON wallet_allocations(parent_id)`,
			`CREATE INDEX IF NOT EXISTS idx_allocations_path ON wallet_allocations(allocation_path)`,
		},
	})
}
