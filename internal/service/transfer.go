package service

import (
	"context"
	"time"

	"github.com/jmylchreest/wallet-engine/internal/logging"
	"github.com/jmylchreest/wallet-engine/internal/metrics"
	"github.com/jmylchreest/wallet-engine/internal/models"
	"github.com/jmylchreest/wallet-engine/internal/repository"
)

// Transfer debits the source owner like an ABSOLUTE charge and creates an
// independent root allocation for the target.
func (s *AccountingService) Transfer(ctx context.Context, actor string, items []TransferItem) error {
	if err := s.checkBulk(len(items)); err != nil {
		return err
	}
	categories := make([]*models.ProductCategory, len(items))
	for i := range items {
		item := &items[i]
		if err := item.Source.Validate(); err != nil {
			return itemError(i, newError(ErrBadRequest, "source: %v", err))
		}
		if err := item.Target.Validate(); err != nil {
			return itemError(i, newError(ErrBadRequest, "target: %v", err))
		}
		if item.Source == item.Target {
			return itemError(i, newError(ErrBadRequest, "cannot transfer to the source wallet"))
		}
		if item.Amount <= 0 {
			return itemError(i, newError(ErrBadRequest, "amount must be positive, got %d", item.Amount))
		}
		if item.StartDate != nil {
			if err := checkWindow(*item.StartDate, item.EndDate); err != nil {
				return itemError(i, err)
			}
		}
		category, err := s.lookupCategory(ctx, item.CategoryID)
		if err != nil {
			return itemError(i, err)
		}
		if category.ChargeType != models.ChargeAbsolute {
			return itemError(i, newError(ErrBadRequest, "transfers are not supported for %s categories", category.ChargeType))
		}
		categories[i] = category
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
			outcome, err = s.transferOne(ctx, repos, s.actor(actor), &items[i], categories[i])
			return err
		})
		if err != nil {
			metrics.ObserveItem("transfer", metrics.OutcomeError, started)
			return itemError(i, err)
		}
		metrics.ObserveItem("transfer", outcome, started)
	}
	return nil
}

func (s *AccountingService) transferOne(ctx context.Context, repos *repository.Repositories, actor string, item *TransferItem, category *models.ProductCategory) (string, error) {
	if _, found, err := replayed(ctx, repos, opTransfer, item.TransactionID); err != nil {
		return "", err
	} else if found {
		return metrics.OutcomeReplayed, nil
	}

	now := s.now()
	start := now.UnixMilli()
	if item.StartDate != nil {
		start = *item.StartDate
	}
	if err := checkWindow(start, item.EndDate); err != nil {
		return "", err
	}

	candidates, err := s.candidates(ctx, repos, item.Source, category.ID, now)
	if err != nil {
		return "", err
	}
	chain, err := firstWithCapacity(ctx, repos, candidates, item.Amount)
	if err != nil {
		return "", err
	}
	if chain == nil {
		return "", newError(ErrPaymentRequired, "insufficient funds in %s for %s", item.Source.String(), category.ID)
	}
	if err := applyAlongPath(ctx, repos, chain, -item.Amount, -item.Amount); err != nil {
		return "", err
	}
	debited := chain[len(chain)-1]

	created, err := s.grant(ctx, repos, item.Target, *category, "", item.Amount, start, item.EndDate, now)
	if err != nil {
		return "", err
	}

	source, target := item.Source, item.Target
	for _, side := range []struct {
		allocation string
		change     int64
	}{
		{debited.ID, -item.Amount},
		{created.ID, item.Amount},
	} {
		if err := s.appendTransaction(ctx, repos, &models.Transaction{
			Kind:               models.TransactionTransfer,
			TransactionID:      item.TransactionID,
			AffectedAllocation: side.allocation,
			Change:             side.change,
			ActionPerformedBy:  actor,
			Description:        "Transfer",
			CreatedAt:          now,
			Units:              item.Amount,
			NumberOfProducts:   1,
			TargetWallet:       &target,
			TransferFromWallet: &source,
			Category:           category.ID,
			StartDate:          int64Ptr(start),
			EndDate:            item.EndDate,
		}); err != nil {
			return "", err
		}
	}
	if err := markApplied(ctx, repos, opTransfer, item.TransactionID, true, now); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "transfer applied",
		"transaction_id", item.TransactionID,
		"source", source.String(),
		"target", target.String(),
		"debited_allocation", debited.ID,
		"allocation_id", created.ID,
		"amount", item.Amount,
	)
	return metrics.OutcomeApplied, nil
}
