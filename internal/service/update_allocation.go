package service

import (
	"context"
	"strings"
	"time"

	"github.com/jmylchreest/wallet-engine/internal/logging"
	"github.com/jmylchreest/wallet-engine/internal/metrics"
	"github.com/jmylchreest/wallet-engine/internal/models"
	"github.com/jmylchreest/wallet-engine/internal/repository"
)

// UpdateAllocation replaces the initial balance and window of each item's
// allocation as if it had been created with them. Usage already recorded
// against the allocation is kept; descendants' windows are clamped into the
// new window.
func (s *AccountingService) UpdateAllocation(ctx context.Context, actor string, items []UpdateAllocationItem) error {
	if err := s.checkBulk(len(items)); err != nil {
		return err
	}
	for i := range items {
		item := &items[i]
		if item.ID == "" {
			return itemError(i, newError(ErrBadRequest, "id is required"))
		}
		if item.Balance < 0 {
			return itemError(i, newError(ErrBadRequest, "balance must not be negative, got %d", item.Balance))
		}
		if strings.TrimSpace(item.Reason) == "" {
			return itemError(i, newError(ErrBadRequest, "reason is required"))
		}
		if err := checkWindow(item.StartDate, item.EndDate); err != nil {
			return itemError(i, err)
		}
		if item.TransactionID == "" {
			item.TransactionID = NewTransactionID(s.now())
		}
	}

	for i := range items {
		started := time.Now()
		outcome := metrics.OutcomeApplied
		ctx := logging.WithTransactionID(ctx, items[i].TransactionID)
		err := s.store.RunInTx(ctx, func(repos *repository.Repositories) error {
			var err error
			outcome, err = s.updateOne(ctx, repos, s.actor(actor), &items[i])
			return err
		})
		if err != nil {
			metrics.ObserveItem("update_allocation", metrics.OutcomeError, started)
			return itemError(i, err)
		}
		metrics.ObserveItem("update_allocation", outcome, started)
	}
	return nil
}

func (s *AccountingService) updateOne(ctx context.Context, repos *repository.Repositories, actor string, item *UpdateAllocationItem) (string, error) {
	if _, found, err := replayed(ctx, repos, opUpdate, item.TransactionID); err != nil {
		return "", err
	} else if found {
		return metrics.OutcomeReplayed, nil
	}

	chain, err := repos.Allocation.GetAncestors(ctx, item.ID)
	if err != nil {
		return "", internalError("load allocation", err)
	}
	if len(chain) == 0 {
		return "", newError(ErrNotFound, "allocation %s does not exist", item.ID)
	}
	current := chain[len(chain)-1]
	if err := checkContainment(chain[:len(chain)-1], item.StartDate, item.EndDate); err != nil {
		return "", err
	}

	newLocal, ok := addInt64(item.Balance, -current.Usage())
	if !ok {
		return "", newError(ErrInternal, "local balance overflow on allocation %s", current.ID)
	}
	change := newLocal - current.LocalBalance
	if _, ok := addInt64(current.Balance, item.Balance-current.InitialBalance); !ok {
		return "", newError(ErrInternal, "balance overflow on allocation %s", current.ID)
	}
	if err := repos.Allocation.Update(ctx, current.ID, item.Balance, item.StartDate, item.EndDate); err != nil {
		return "", internalError("update allocation", err)
	}
	if err := s.clampDescendants(ctx, repos, current.ID, item.StartDate, item.EndDate); err != nil {
		return "", err
	}

	wallet, err := repos.Wallet.GetByID(ctx, current.WalletID)
	if err != nil {
		return "", internalError("load wallet", err)
	}
	if wallet == nil {
		return "", newError(ErrInternal, "allocation %s has no wallet", current.ID)
	}

	now := s.now()
	owner := wallet.Owner
	if err := s.appendTransaction(ctx, repos, &models.Transaction{
		Kind:               models.TransactionAllocationUpdate,
		TransactionID:      item.TransactionID,
		AffectedAllocation: current.ID,
		Change:             change,
		ActionPerformedBy:  actor,
		Description:        item.Reason,
		CreatedAt:          now,
		TargetWallet:       &owner,
		Category:           wallet.PaysFor,
		StartDate:          int64Ptr(item.StartDate),
		EndDate:            item.EndDate,
	}); err != nil {
		return "", err
	}
	if err := markApplied(ctx, repos, opUpdate, item.TransactionID, true, now); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "allocation updated",
		"transaction_id", item.TransactionID,
		"allocation_id", current.ID,
		"initial_balance", item.Balance,
		"reason", item.Reason,
	)
	return metrics.OutcomeApplied, nil
}

// clampDescendants narrows every descendant's window to [start, end]. Windows
// already inside it are left alone.
func (s *AccountingService) clampDescendants(ctx context.Context, repos *repository.Repositories, id string, start int64, end *int64) error {
	descendants, err := repos.Allocation.ListDescendants(ctx, id)
	if err != nil {
		return internalError("load descendants", err)
	}
	for _, d := range descendants {
		newStart := max(d.StartDate, start)
		newEnd := minEnd(d.EndDate, end)
		if newStart == d.StartDate && sameEnd(newEnd, d.EndDate) {
			continue
		}
		if err := repos.Allocation.UpdateWindow(ctx, d.ID, newStart, newEnd); err != nil {
			return internalError("clamp descendant", err)
		}
	}
	return nil
}

func minEnd(a, b *int64) *int64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *a <= *b:
		return a
	default:
		return b
	}
}

func sameEnd(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
