package service

import (
	"context"
	"time"

	"github.com/jmylchreest/wallet-engine/internal/logging"
	"github.com/jmylchreest/wallet-engine/internal/metrics"
	"github.com/jmylchreest/wallet-engine/internal/models"
	"github.com/jmylchreest/wallet-engine/internal/repository"
)

// preparedCharge is a validated charge item with its catalog data resolved.
type preparedCharge struct {
	item     ChargeItem
	product  *models.Product
	category *models.ProductCategory
	amount   int64
	// recorded is the outcome of an earlier application of the same
	// transactionId, found before the catalog was consulted.
	recorded *bool
}

// Charge applies each item and reports per item whether it was paid.
// Insufficient funds is a false result, never an error.
func (s *AccountingService) Charge(ctx context.Context, items []ChargeItem) ([]bool, error) {
	return s.charge(ctx, items, false)
}

// Check runs the same logic as Charge and rolls every item back.
func (s *AccountingService) Check(ctx context.Context, items []ChargeItem) ([]bool, error) {
	return s.charge(ctx, items, true)
}

func (s *AccountingService) charge(ctx context.Context, items []ChargeItem, dryRun bool) ([]bool, error) {
	if err := s.checkBulk(len(items)); err != nil {
		return nil, err
	}

	prepared := make([]preparedCharge, len(items))
	for i, item := range items {
		p, err := s.prepareCharge(ctx, item)
		if err != nil {
			return nil, itemError(i, err)
		}
		prepared[i] = *p
	}

	op, run := "charge", s.store.RunInTx
	if dryRun {
		op, run = "check", s.store.RunRollback
	}

	results := make([]bool, len(prepared))
	for i := range prepared {
		started := time.Now()
		p := &prepared[i]
		if p.recorded != nil {
			results[i] = *p.recorded
			metrics.ObserveItem(op, metrics.OutcomeReplayed, started)
			continue
		}
		var outcome string
		ctx := logging.WithTransactionID(ctx, p.item.TransactionID)
		err := run(ctx, func(repos *repository.Repositories) error {
			var err error
			outcome, err = s.chargeOne(ctx, repos, p)
			return err
		})
		if err != nil {
			metrics.ObserveItem(op, metrics.OutcomeError, started)
			return nil, itemError(i, err)
		}
		metrics.ObserveItem(op, outcome, started)

		results[i] = outcome != metrics.OutcomeInsufficient
		if !dryRun && outcome == metrics.OutcomeApplied {
			metrics.ChargedUnits.WithLabelValues(p.category.ID.Name, p.category.ID.Provider, string(p.category.ChargeType)).
				Add(float64(p.amount))
		}
	}
	return results, nil
}

func (s *AccountingService) prepareCharge(ctx context.Context, item ChargeItem) (*preparedCharge, error) {
	if item.Units < 1 {
		return nil, newError(ErrBadRequest, "units must be at least 1, got %d", item.Units)
	}
	if item.NumberOfProducts < 1 {
		return nil, newError(ErrBadRequest, "numberOfProducts must be at least 1, got %d", item.NumberOfProducts)
	}
	if err := item.Payer.Validate(); err != nil {
		return nil, newError(ErrBadRequest, "payer: %v", err)
	}
	if err := item.Product.Validate(); err != nil {
		return nil, newError(ErrBadRequest, "%v", err)
	}

	if item.TransactionID != "" {
		outcome, found, err := replayed(ctx, s.store.Repositories, opCharge, item.TransactionID)
		if err != nil {
			return nil, err
		}
		if found {
			return &preparedCharge{item: item, recorded: &outcome}, nil
		}
	}

	product, err := s.catalog.Product(ctx, item.Product)
	if err != nil {
		return nil, newError(ErrNotFound, "%v", err)
	}
	category, err := s.lookupCategory(ctx, item.Product.CategoryID())
	if err != nil {
		return nil, err
	}

	perProduct, ok := mulInt64(product.PricePerUnit, item.Units)
	if !ok {
		return nil, newError(ErrInternal, "charge amount overflows for product %s", item.Product)
	}
	amount, ok := mulInt64(perProduct, item.NumberOfProducts)
	if !ok {
		return nil, newError(ErrInternal, "charge amount overflows for product %s", item.Product)
	}
	if amount < 0 {
		return nil, newError(ErrBadRequest, "charge amount is negative for product %s", item.Product)
	}

	if item.TransactionID == "" {
		item.TransactionID = NewTransactionID(s.now())
	}
	return &preparedCharge{item: item, product: product, category: category, amount: amount}, nil
}

// chargeOne applies one prepared item inside repos' transaction and returns
// the metrics outcome.
func (s *AccountingService) chargeOne(ctx context.Context, repos *repository.Repositories, p *preparedCharge) (string, error) {
	if outcome, found, err := replayed(ctx, repos, opCharge, p.item.TransactionID); err != nil {
		return "", err
	} else if found {
		if outcome {
			return metrics.OutcomeReplayed, nil
		}
		return metrics.OutcomeInsufficient, nil
	}

	if p.product.FreeToUse {
		return metrics.OutcomeFree, nil
	}

	now := s.now()
	candidates, err := s.candidates(ctx, repos, p.item.Payer, p.category.ID, now)
	if err != nil {
		return "", err
	}

	var chain []*models.WalletAllocation
	var change int64
	switch p.category.ChargeType {
	case models.ChargeAbsolute:
		chain, err = firstWithCapacity(ctx, repos, candidates, p.amount)
		if err != nil {
			return "", err
		}
		if chain == nil {
			return metrics.OutcomeInsufficient, nil
		}
		change = -p.amount
		if err := applyAlongPath(ctx, repos, chain, change, change); err != nil {
			return "", err
		}

	case models.ChargeDifferentialQuota:
		if len(candidates) == 0 {
			return metrics.OutcomeInsufficient, nil
		}
		// The snapshot covers the whole wallet, so usage held by the other
		// valid allocations is given back before it lands on the first.
		for _, other := range candidates[1:] {
			if err := releaseUsage(ctx, repos, other.ID); err != nil {
				return "", err
			}
		}
		chain, err = repos.Allocation.GetAncestors(ctx, candidates[0].ID)
		if err != nil {
			return "", internalError("load ancestors", err)
		}
		if len(chain) == 0 {
			return "", newError(ErrInternal, "allocation %s vanished", candidates[0].ID)
		}
		// The amount is a usage snapshot; move the path by the difference
		// from the previously recorded usage.
		var ok bool
		change, ok = addInt64(chain[len(chain)-1].Usage(), -p.amount)
		if !ok {
			return "", newError(ErrInternal, "usage delta overflows on allocation %s", candidates[0].ID)
		}
		if err := applyAlongPath(ctx, repos, chain, change, change); err != nil {
			return "", err
		}

	default:
		return "", newError(ErrInternal, "unknown charge type %q", p.category.ChargeType)
	}

	leaf := chain[len(chain)-1]
	payer := p.item.Payer
	product := p.item.Product
	if err := s.appendTransaction(ctx, repos, &models.Transaction{
		Kind:               models.TransactionCharge,
		TransactionID:      p.item.TransactionID,
		AffectedAllocation: leaf.ID,
		Change:             change,
		ActionPerformedBy:  s.actor(p.item.PerformedBy),
		Description:        p.item.Description,
		CreatedAt:          now,
		Units:              p.item.Units,
		NumberOfProducts:   p.item.NumberOfProducts,
		Product:            &product,
		TargetWallet:       &payer,
		Category:           p.category.ID,
	}); err != nil {
		return "", err
	}
	if err := markApplied(ctx, repos, opCharge, p.item.TransactionID, true, now); err != nil {
		return "", err
	}

	s.logger.DebugContext(ctx, "charge applied",
		"transaction_id", p.item.TransactionID,
		"payer", payer.String(),
		"allocation_id", leaf.ID,
		"charge_type", p.category.ChargeType,
		"change", change,
	)
	return metrics.OutcomeApplied, nil
}

// releaseUsage returns the usage recorded on allocation id to it and its
// ancestors, leaving its local balance at its initial balance.
func releaseUsage(ctx context.Context, repos *repository.Repositories, id string) error {
	chain, err := repos.Allocation.GetAncestors(ctx, id)
	if err != nil {
		return internalError("load ancestors", err)
	}
	if len(chain) == 0 {
		return newError(ErrInternal, "allocation %s vanished", id)
	}
	usage := chain[len(chain)-1].Usage()
	if usage == 0 {
		return nil
	}
	return applyAlongPath(ctx, repos, chain, usage, usage)
}
