package repository

import (
	"context"
	"time"

	"tripsplit-backend/internal/domain"
)

type TripRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Trip, error)
	List(ctx context.Context) ([]domain.Trip, error)
}

type MemberRepository interface {
	GetMember(ctx context.Context, tripID, userID int32) (*domain.Member, error)
	ListByTrip(ctx context.Context, tripID int32) ([]domain.Member, error)
}

type ActivityRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Activity, error)
	ListByTrip(ctx context.Context, tripID int32) ([]domain.Activity, error)
	ListGoingUserIDs(ctx context.Context, activityID int32) ([]int32, error)
}

// ExpenseRepository is the expense half of the ledger store. Every
// multi-row mutation (expense plus splits, split replacement) runs as
// one database transaction; readers never see an expense without its
// splits or splits without their expense.
type ExpenseRepository interface {
	CreateWithSplits(ctx context.Context, expense *domain.Expense, splits []domain.ExpenseSplit) error
	GetByID(ctx context.Context, id int32) (*domain.Expense, error)
	Update(ctx context.Context, expense *domain.Expense) error
	DeleteWithSplits(ctx context.Context, id int32) error
	ListByTrip(ctx context.Context, tripID int32) ([]domain.Expense, error)

	CreateSplit(ctx context.Context, split *domain.ExpenseSplit) error
	ListSplits(ctx context.Context, expenseID int32) ([]domain.ExpenseSplit, error)
	ListSplitsByTrip(ctx context.Context, tripID int32) ([]domain.ExpenseSplit, error)
	ReplaceSplits(ctx context.Context, expenseID int32, splits []domain.ExpenseSplit) error

	// GetActivityExpense returns the single shared expense of a prepaid
	// activity.
	GetActivityExpense(ctx context.Context, activityID int32) (*domain.Expense, error)
	// EnsureActivityExpense returns the shared expense of a prepaid
	// activity, creating it without splits when none exists yet. The
	// lookup and the insert run under a lock on the activity row, so
	// two concurrent first RSVPs cannot each create their own expense.
	// On return expense carries the stored row either way.
	EnsureActivityExpense(ctx context.Context, expense *domain.Expense) error
	// EnsureActivityExpenseForUser is the per-person variant: it
	// creates the expense together with the given split, or leaves an
	// existing one for that user untouched, under the same activity
	// lock. It reports whether a new expense was created.
	EnsureActivityExpenseForUser(ctx context.Context, expense *domain.Expense, split domain.ExpenseSplit) (bool, error)
	// GetActivityExpenseForUser returns the per-person expense whose
	// split belongs to the given user. Expenses whose split was already
	// dropped are settled history and deliberately stay unfindable here.
	GetActivityExpenseForUser(ctx context.Context, activityID, userID int32) (*domain.Expense, error)
	// RecalculateActivitySplits locks the expense row, reads the
	// activity's current going set and replaces the expense's splits
	// with the computed set, all within one transaction. compute
	// receives the going user ids in ascending order.
	RecalculateActivitySplits(ctx context.Context, expenseID int32, compute func(going []int32) ([]domain.ExpenseSplit, error)) error
}

type SettlementRepository interface {
	Create(ctx context.Context, settlement *domain.Settlement) error
	GetByID(ctx context.Context, id int32) (*domain.Settlement, error)
	ListByTrip(ctx context.Context, tripID int32, statuses []domain.SettlementStatus) ([]domain.Settlement, error)

	// Transition moves a pending settlement to a terminal status via
	// compare-and-swap. It reports false when the settlement was not
	// pending, which callers surface as a conflict.
	Transition(ctx context.Context, id int32, to domain.SettlementStatus, at time.Time) (bool, error)

	// HasTerminalCreatedAfter reports whether any confirmed or rejected
	// settlement for the trip was created after t. The integrity guard
	// uses this as the cutoff protecting historical expenses.
	HasTerminalCreatedAfter(ctx context.Context, tripID int32, t time.Time) (bool, error)
	// HasConfirmedCreatedAfter is the confirmed-only variant used when
	// deciding whether a per-person activity expense may be deleted.
	HasConfirmedCreatedAfter(ctx context.Context, tripID int32, t time.Time) (bool, error)

	// ClearExpiredPaymentLinks blanks payment links on settlements that
	// have been pending since before the cutoff.
	ClearExpiredPaymentLinks(ctx context.Context, before time.Time) (int64, error)
}
