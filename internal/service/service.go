package service

import (
	"context"

	"github.com/shopspring/decimal"

	"tripsplit-backend/internal/domain"
)

// SplitShare is one participant's requested share when creating an
// expense.
type SplitShare struct {
	UserID int32
	Amount decimal.Decimal
}

// CreateExpenseInput carries everything needed to record an expense
// with its splits as one atomic write.
type CreateExpenseInput struct {
	TripID     int32
	Title      string
	Amount     decimal.Decimal
	Currency   string
	Category   string
	PaidBy     int32
	ActivityID *int32
	Splits     []SplitShare
}

// UpdateExpenseInput carries an expense edit; the integrity guard runs
// before anything is written.
type UpdateExpenseInput struct {
	ExpenseID int32
	Title     string
	Amount    decimal.Decimal
	Currency  string
	Category  string
	PaidBy    int32
}

type LedgerService interface {
	CreateExpense(ctx context.Context, in CreateExpenseInput) (*domain.Expense, error)
	AddExpenseSplit(ctx context.Context, expenseID, userID int32, amount decimal.Decimal) (*domain.ExpenseSplit, error)
	UpdateExpense(ctx context.Context, in UpdateExpenseInput) (*domain.Expense, error)
	DeleteExpense(ctx context.Context, expenseID int32) error
	ListExpenses(ctx context.Context, tripID int32) ([]domain.Expense, []domain.ExpenseSplit, error)
}

type BalanceService interface {
	CalculateBalances(ctx context.Context, tripID int32) ([]domain.MemberBalance, error)
}

type SettlementService interface {
	Initiate(ctx context.Context, tripID, payerID, payeeID int32, amount decimal.Decimal, paymentMethod string) (*domain.Settlement, error)
	Confirm(ctx context.Context, settlementID, confirmerID int32) (*domain.Settlement, error)
	Reject(ctx context.Context, settlementID, rejecterID int32) (*domain.Settlement, error)
	List(ctx context.Context, tripID int32) ([]domain.Settlement, error)
	Optimize(ctx context.Context, tripID int32) (*domain.SettlementPlan, error)
	RecommendationsFor(ctx context.Context, tripID, userID int32) ([]domain.SettlementTransaction, error)
}

type ParticipationService interface {
	// OnActivityRSVPChanged reacts to an RSVP transition by creating,
	// updating or removing the derived expenses. The RSVP change itself
	// has already been persisted by the caller and is never rolled back
	// here; failures are logged for reconciliation.
	OnActivityRSVPChanged(ctx context.Context, activityID, userID int32, status domain.RSVPStatus) error
}

type MembershipService interface {
	AnalyzeRemovalEligibility(ctx context.Context, tripID, userID int32) (*domain.RemovalAnalysis, error)
}

type EmailService interface {
	SendSettlementRequested(ctx context.Context, payeeEmail string, amount decimal.Decimal, paymentLink string) error
	SendSettlementResolved(ctx context.Context, payerEmail string, amount decimal.Decimal, confirmed bool) error
}
