package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jmylchreest/wallet-engine/internal/repository"
)

// Operation kinds. Idempotency keys are scoped per kind, so the same
// transactionId may be used once for each.
const (
	opCharge      = "charge"
	opDeposit     = "deposit"
	opRootDeposit = "root_deposit"
	opTransfer    = "transfer"
	opUpdate      = "update_allocation"
)

// NewTransactionID returns the id assigned when a caller omits one: a random
// non-negative 63-bit number followed by the current time in milliseconds.
func NewTransactionID(now time.Time) string {
	return fmt.Sprintf("%d%d", rand.Int64(), now.UnixMilli())
}

// replayed reports whether transactionID was already applied for kind and
// the outcome recorded at the time.
func replayed(ctx context.Context, repos *repository.Repositories, kind, transactionID string) (bool, bool, error) {
	outcome, found, err := repos.Idempotency.Get(ctx, kind, transactionID)
	if err != nil {
		return false, false, internalError("idempotency lookup", err)
	}
	return outcome, found, nil
}

// markApplied records transactionID in the same database transaction as the
// mutation it guards.
func markApplied(ctx context.Context, repos *repository.Repositories, kind, transactionID string, outcome bool, now time.Time) error {
	return internalError("idempotency record", repos.Idempotency.Record(ctx, kind, transactionID, outcome, now))
}
