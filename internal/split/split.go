// Package split computes owed shares when an expense is divided among
// participants.
package split

import (
	"github.com/shopspring/decimal"

	"tripsplit-backend/internal/domain"
)

// Even divides total across n participants. Each share is the cost
// divided by n rounded down to two decimals; the leftover cents go to
// the first share, so the shares always sum to total exactly.
func Even(total decimal.Decimal, n int) ([]decimal.Decimal, error) {
	if n <= 0 {
		return nil, domain.NewValidationError("cannot split among %d participants", n)
	}
	if total.IsNegative() {
		return nil, domain.NewValidationError("cannot split negative amount %s", total.StringFixed(2))
	}

	count := decimal.NewFromInt(int64(n))
	base := total.Div(count).RoundDown(2)
	remainder := total.Sub(base.Mul(count))

	shares := make([]decimal.Decimal, n)
	for i := range shares {
		shares[i] = base
	}
	shares[0] = shares[0].Add(remainder)
	return shares, nil
}

// EvenSplits builds the split records for one expense divided evenly
// across the given users. Users must be in ascending id order; the
// first of them absorbs the rounding remainder.
func EvenSplits(expenseID int32, total decimal.Decimal, userIDs []int32) ([]domain.ExpenseSplit, error) {
	shares, err := Even(total, len(userIDs))
	if err != nil {
		return nil, err
	}

	splits := make([]domain.ExpenseSplit, len(userIDs))
	for i, userID := range userIDs {
		splits[i] = domain.ExpenseSplit{
			ExpenseID: expenseID,
			UserID:    userID,
			Amount:    shares[i],
		}
	}
	return splits, nil
}

// SumTolerance is the accepted drift between an expense amount and the
// sum of its splits: one minor currency unit per split, which covers
// rows written by the old independent-rounding division.
func SumTolerance(splitCount int) decimal.Decimal {
	return decimal.New(1, -2).Mul(decimal.NewFromInt(int64(splitCount)))
}

// CheckSum verifies the split-sum invariant for one expense.
func CheckSum(expense *domain.Expense, splits []domain.ExpenseSplit) error {
	if len(splits) == 0 {
		// An activity expense whose going set emptied keeps zero splits
		// for audit history; that is a valid state.
		return nil
	}

	sum := decimal.Zero
	for _, s := range splits {
		sum = sum.Add(s.Amount)
	}
	if sum.Sub(expense.Amount).Abs().GreaterThan(SumTolerance(len(splits))) {
		return domain.NewInconsistencyError(
			"expense %d splits sum to %s, expense amount is %s",
			expense.ID, sum.StringFixed(2), expense.Amount.StringFixed(2),
		)
	}
	return nil
}
