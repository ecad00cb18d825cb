package service

import (
	"context"
	"time"

	"github.com/jmylchreest/wallet-engine/internal/logging"
	"github.com/jmylchreest/wallet-engine/internal/metrics"
	"github.com/jmylchreest/wallet-engine/internal/models"
	"github.com/jmylchreest/wallet-engine/internal/repository"
)

// Deposit creates a child allocation under each item's source allocation.
// The source is not debited.
func (s *AccountingService) Deposit(ctx context.Context, actor string, items []DepositItem) error {
	if err := s.checkBulk(len(items)); err != nil {
		return err
	}
	for i := range items {
		item := &items[i]
		if err := item.Recipient.Validate(); err != nil {
			return itemError(i, newError(ErrBadRequest, "recipient: %v", err))
		}
		if item.SourceAllocation == "" {
			return itemError(i, newError(ErrBadRequest, "sourceAllocation is required"))
		}
		if item.Amount <= 0 {
			return itemError(i, newError(ErrBadRequest, "amount must be positive, got %d", item.Amount))
		}
		if item.StartDate != nil {
			if err := checkWindow(*item.StartDate, item.EndDate); err != nil {
				return itemError(i, err)
			}
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
			outcome, err = s.depositOne(ctx, repos, s.actor(actor), &items[i])
			return err
		})
		if err != nil {
			metrics.ObserveItem("deposit", metrics.OutcomeError, started)
			return itemError(i, err)
		}
		metrics.ObserveItem("deposit", outcome, started)
	}
	return nil
}

func (s *AccountingService) depositOne(ctx context.Context, repos *repository.Repositories, actor string, item *DepositItem) (string, error) {
	if _, found, err := replayed(ctx, repos, opDeposit, item.TransactionID); err != nil {
		return "", err
	} else if found {
		return metrics.OutcomeReplayed, nil
	}

	chain, err := repos.Allocation.GetAncestors(ctx, item.SourceAllocation)
	if err != nil {
		return "", internalError("load source allocation", err)
	}
	if len(chain) == 0 {
		return "", newError(ErrNotFound, "allocation %s does not exist", item.SourceAllocation)
	}
	source := chain[len(chain)-1]

	now := s.now()
	start := now.UnixMilli()
	if item.StartDate != nil {
		start = *item.StartDate
	}
	if err := checkWindow(start, item.EndDate); err != nil {
		return "", err
	}
	if err := checkContainment(chain, start, item.EndDate); err != nil {
		return "", err
	}

	sourceWallet, err := repos.Wallet.GetByID(ctx, source.WalletID)
	if err != nil {
		return "", internalError("load source wallet", err)
	}
	if sourceWallet == nil {
		return "", newError(ErrInternal, "allocation %s has no wallet", source.ID)
	}
	category := models.ProductCategory{
		ID:          sourceWallet.PaysFor,
		ProductType: sourceWallet.ProductType,
		ChargeType:  sourceWallet.ChargeType,
		Unit:        sourceWallet.Unit,
	}

	created, err := s.grant(ctx, repos, item.Recipient, category, source.ID, item.Amount, start, item.EndDate, now)
	if err != nil {
		return "", err
	}

	recipient := item.Recipient
	if err := s.appendTransaction(ctx, repos, &models.Transaction{
		Kind:               models.TransactionDeposit,
		TransactionID:      item.TransactionID,
		AffectedAllocation: created.ID,
		Change:             item.Amount,
		ActionPerformedBy:  actor,
		Description:        item.Description,
		CreatedAt:          now,
		Units:              item.Amount,
		NumberOfProducts:   1,
		TargetWallet:       &recipient,
		Category:           category.ID,
		StartDate:          int64Ptr(start),
		EndDate:            item.EndDate,
	}); err != nil {
		return "", err
	}
	if err := markApplied(ctx, repos, opDeposit, item.TransactionID, true, now); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "deposit applied",
		"transaction_id", item.TransactionID,
		"source_allocation", source.ID,
		"allocation_id", created.ID,
		"recipient", recipient.String(),
		"amount", item.Amount,
	)
	return metrics.OutcomeApplied, nil
}

// RootDeposit creates a new root allocation per item. Only privileged callers
// reach it.
func (s *AccountingService) RootDeposit(ctx context.Context, actor string, items []RootDepositItem) error {
	if err := s.checkBulk(len(items)); err != nil {
		return err
	}
	categories := make([]*models.ProductCategory, len(items))
	for i := range items {
		item := &items[i]
		if err := item.Recipient.Validate(); err != nil {
			return itemError(i, newError(ErrBadRequest, "recipient: %v", err))
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
			outcome, err = s.rootDepositOne(ctx, repos, s.actor(actor), &items[i], categories[i])
			return err
		})
		if err != nil {
			metrics.ObserveItem("root_deposit", metrics.OutcomeError, started)
			return itemError(i, err)
		}
		metrics.ObserveItem("root_deposit", outcome, started)
	}
	return nil
}

func (s *AccountingService) rootDepositOne(ctx context.Context, repos *repository.Repositories, actor string, item *RootDepositItem, category *models.ProductCategory) (string, error) {
	if _, found, err := replayed(ctx, repos, opRootDeposit, item.TransactionID); err != nil {
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

	created, err := s.grant(ctx, repos, item.Recipient, *category, "", item.Amount, start, item.EndDate, now)
	if err != nil {
		return "", err
	}

	recipient := item.Recipient
	if err := s.appendTransaction(ctx, repos, &models.Transaction{
		Kind:               models.TransactionDeposit,
		TransactionID:      item.TransactionID,
		AffectedAllocation: created.ID,
		Change:             item.Amount,
		ActionPerformedBy:  actor,
		Description:        item.Description,
		CreatedAt:          now,
		Units:              item.Amount,
		NumberOfProducts:   1,
		TargetWallet:       &recipient,
		Category:           category.ID,
		StartDate:          int64Ptr(start),
		EndDate:            item.EndDate,
	}); err != nil {
		return "", err
	}
	if err := markApplied(ctx, repos, opRootDeposit, item.TransactionID, true, now); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "root deposit applied",
		"transaction_id", item.TransactionID,
		"allocation_id", created.ID,
		"recipient", recipient.String(),
		"category", category.ID.String(),
		"amount", item.Amount,
	)
	return metrics.OutcomeApplied, nil
}

// grant creates the owner's wallet if needed and inserts an allocation in it.
func (s *AccountingService) grant(
	ctx context.Context,
	repos *repository.Repositories,
	owner models.WalletOwner,
	category models.ProductCategory,
	parentID string,
	amount, start int64,
	end *int64,
	now time.Time,
) (*models.WalletAllocation, error) {
	wallet, err := repos.Wallet.GetOrCreate(ctx, owner, category, s.cfg.DefaultChargePolicy)
	if err != nil {
		return nil, internalError("create wallet", err)
	}
	created, err := repos.Allocation.Insert(ctx, repository.NewAllocation{
		WalletID:       wallet.ID,
		ParentID:       parentID,
		InitialBalance: amount,
		StartDate:      start,
		EndDate:        end,
		CreatedAt:      now,
	})
	if err != nil {
		return nil, internalError("insert allocation", err)
	}
	return created, nil
}
