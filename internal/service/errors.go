package service

import (
	"errors"
	"fmt"
	"math"
)

// Error kinds surfaced by the accounting engines. Handlers map them onto
// HTTP statuses with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrBadRequest      = errors.New("bad request")
	ErrPaymentRequired = errors.New("payment required")
	ErrForbidden       = errors.New("forbidden")
	ErrInternal        = errors.New("internal error")
)

func newError(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// internalError tags a storage or invariant failure as ErrInternal.
func internalError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}

// itemError prefixes err with the position of the failing bulk item.
func itemError(index int, err error) error {
	return fmt.Errorf("item %d: %w", index, err)
}

func addInt64(a, b int64) (int64, bool) {
	c := a + b
	if (c > a) != (b > 0) {
		return 0, false
	}
	return c, true
}

func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	c := a * b
	if c/b != a {
		return 0, false
	}
	return c, true
}
