package domain

import "github.com/shopspring/decimal"

// MemberBalance is one user's net position in a trip. NetBalance is
// TotalPaid minus TotalOwed, adjusted by confirmed settlements.
// Positive means the user is owed money, negative means they owe.
type MemberBalance struct {
	UserID     int32           `json:"user_id"`
	TotalPaid  decimal.Decimal `json:"total_paid"`
	TotalOwed  decimal.Decimal `json:"total_owed"`
	NetBalance decimal.Decimal `json:"net_balance"`
}

// SettlementTransaction is one suggested payer-to-payee payment in a
// debt-simplification plan.
type SettlementTransaction struct {
	FromUserID int32           `json:"from_user_id"`
	ToUserID   int32           `json:"to_user_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// SettlementStats summarizes an optimized transaction list.
type SettlementStats struct {
	TransactionCount int             `json:"transaction_count"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	UsersInvolved    int             `json:"users_involved"`
	AverageAmount    decimal.Decimal `json:"average_amount"`
}

// SettlementPlan is the optimizer output for a trip: the minimal
// transaction list, its stats, and whether applying it actually zeroes
// every balance (checked, not assumed).
type SettlementPlan struct {
	Transactions []SettlementTransaction `json:"transactions"`
	Stats        SettlementStats         `json:"stats"`
	IsValid      bool                    `json:"is_valid"`
}

// PrepaidActivityDebt is the outstanding amount other participants
// still owe the organizer of one prepaid activity.
type PrepaidActivityDebt struct {
	ActivityID  int32           `json:"activity_id"`
	Title       string          `json:"title"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// RemovalAnalysis is the integrity guard's verdict on whether a member
// can be removed from a trip, with the numbers backing it.
type RemovalAnalysis struct {
	UserID                 int32                   `json:"user_id"`
	CanRemove              bool                    `json:"can_remove"`
	Reason                 string                  `json:"reason,omitempty"`
	Balance                decimal.Decimal         `json:"balance"`
	ManualExpenseBalance   decimal.Decimal         `json:"manual_expense_balance"`
	PrepaidActivityBalance decimal.Decimal         `json:"prepaid_activity_balance"`
	PrepaidActivitiesOwed  []PrepaidActivityDebt   `json:"prepaid_activities_owed"`
	Suggestions            []SettlementTransaction `json:"suggestions"`
}
