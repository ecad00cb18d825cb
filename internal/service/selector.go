package service

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jmylchreest/wallet-engine/internal/models"
)

// AllocationSelector orders the allocations of a wallet that are valid at
// now (ms). Charges try the result front to back.
type AllocationSelector interface {
	Select(allocations []*models.WalletAllocation, now int64) []*models.WalletAllocation
}

// ExpireFirst prefers the allocation that expires soonest. Allocations
// without an end date sort last; ties are broken by id.
type ExpireFirst struct{}

func (ExpireFirst) Select(allocations []*models.WalletAllocation, now int64) []*models.WalletAllocation {
	valid := make([]*models.WalletAllocation, 0, len(allocations))
	for _, a := range allocations {
		if a.IsValidAt(now) {
			valid = append(valid, a)
		}
	}

	slices.SortStableFunc(valid, func(a, b *models.WalletAllocation) int {
		switch {
		case a.EndDate == nil && b.EndDate != nil:
			return 1
		case a.EndDate != nil && b.EndDate == nil:
			return -1
		case a.EndDate != nil && *a.EndDate != *b.EndDate:
			if *a.EndDate < *b.EndDate {
				return -1
			}
			return 1
		}
		return compareIDs(a.ID, b.ID)
	})
	return valid
}

var selectors = map[models.AllocationSelectorPolicy]AllocationSelector{
	models.PolicyExpireFirst: ExpireFirst{},
}

// selectorFor returns the strategy for policy.
func selectorFor(policy models.AllocationSelectorPolicy) (AllocationSelector, error) {
	s, ok := selectors[policy]
	if !ok {
		return nil, newError(ErrInternal, "unsupported allocation selector policy %q", policy)
	}
	return s, nil
}

// compareIDs orders numeric ids numerically without parsing them.
func compareIDs(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// containsWindow reports whether [start, end] lies inside alloc's window.
// A nil end means no expiry.
func containsWindow(alloc *models.WalletAllocation, start int64, end *int64) bool {
	if start < alloc.StartDate {
		return false
	}
	if alloc.EndDate == nil {
		return true
	}
	return end != nil && *end <= *alloc.EndDate
}

func checkWindow(start int64, end *int64) error {
	if end != nil && *end < start {
		return newError(ErrBadRequest, "endDate %d is before startDate %d", *end, start)
	}
	return nil
}

// checkContainment validates the window against every allocation in chain.
func checkContainment(chain []*models.WalletAllocation, start int64, end *int64) error {
	for _, a := range chain {
		if !containsWindow(a, start, end) {
			return newError(ErrBadRequest, "allocation period does not overlap with the source allocation %s (%s)", a.ID, windowString(a))
		}
	}
	return nil
}

func windowString(a *models.WalletAllocation) string {
	if a.EndDate == nil {
		return fmt.Sprintf("%d..", a.StartDate)
	}
	return fmt.Sprintf("%d..%d", a.StartDate, *a.EndDate)
}
