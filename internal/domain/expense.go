package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is one cost paid by a trip member on behalf of the group.
// ActivityID is set when the expense was generated from a prepaid
// activity rather than entered manually.
type Expense struct {
	ID         int32           `json:"id"`
	TripID     int32           `json:"trip_id"`
	Title      string          `json:"title"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"` // display label only, no conversion
	Category   string          `json:"category"`
	PaidBy     int32           `json:"paid_by"`
	ActivityID *int32          `json:"activity_id,omitempty"`
	IsSettled  bool            `json:"is_settled"`
	CreatedAt  time.Time       `json:"created_at"`
}

// IsManual reports whether the expense was entered by a member directly,
// as opposed to being derived from activity participation.
func (e *Expense) IsManual() bool {
	return e.ActivityID == nil
}

// ExpenseSplit is one participant's owed share of a single expense.
// The sum of an expense's splits equals the expense amount within one
// minor-currency-unit tolerance per split.
type ExpenseSplit struct {
	ID        int32           `json:"id"`
	ExpenseID int32           `json:"expense_id"`
	UserID    int32           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	IsPaid    bool            `json:"is_paid"`
}
