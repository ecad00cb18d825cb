package migrations

func init() {
	Register(Migration{
		Timestamp:   "20261002-110000",
		Description: "Idempotency keys per operation kind",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS idempotency_keys (
				kind TEXT NOT NULL,
				transaction_id TEXT NOT NULL,
				outcome INTEGER NOT NULL,
				created_at TEXT NOT NULL,
				PRIMARY KEY (kind, transaction_id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_idempotency_created ON idempotency_keys(created_at)`,
		},
	})
}
