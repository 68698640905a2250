package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"tripsplit-backend/internal/domain"
	"tripsplit-backend/internal/logger"
	"tripsplit-backend/internal/repository"
)

// IntegrityGuard gatekeeps ledger mutations. Once a settlement
// (confirmed or rejected) has been created after an expense, that
// expense may have fed the settled amounts, so editing or deleting it
// would falsify history. Expenses referencing departed members are
// frozen for the same reason.
type IntegrityGuard struct {
	settlementRepo repository.SettlementRepository
	memberRepo     repository.MemberRepository
}

func NewIntegrityGuard(settlementRepo repository.SettlementRepository, memberRepo repository.MemberRepository) *IntegrityGuard {
	return &IntegrityGuard{
		settlementRepo: settlementRepo,
		memberRepo:     memberRepo,
	}
}

// CheckExpenseMutable returns a conflict error when the expense must
// not be edited or deleted.
func (g *IntegrityGuard) CheckExpenseMutable(ctx context.Context, expense *domain.Expense, splits []domain.ExpenseSplit) error {
	logger.EnterMethod("IntegrityGuard.CheckExpenseMutable", "expenseID", expense.ID)

	settled, err := g.settlementRepo.HasTerminalCreatedAfter(ctx, expense.TripID, expense.CreatedAt)
	if err != nil {
		logger.ExitMethodWithError("IntegrityGuard.CheckExpenseMutable", err, "expenseID", expense.ID)
		return err
	}
	if settled {
		return domain.NewConflictError(
			"expense predates a settlement and may have been used to compute settled amounts",
			map[string]decimal.Decimal{"expense_amount": expense.Amount},
		)
	}

	if err := g.checkActiveMember(ctx, expense.TripID, expense.PaidBy, "payer"); err != nil {
		return err
	}
	for _, s := range splits {
		if err := g.checkActiveMember(ctx, expense.TripID, s.UserID, "split participant"); err != nil {
			return err
		}
	}

	logger.ExitMethod("IntegrityGuard.CheckExpenseMutable", "expenseID", expense.ID)
	return nil
}

func (g *IntegrityGuard) checkActiveMember(ctx context.Context, tripID, userID int32, role string) error {
	member, err := g.memberRepo.GetMember(ctx, tripID, userID)
	var notFound *domain.NotFoundError
	if errors.As(err, &notFound) {
		return domain.NewConflictError(
			role+" is no longer a trip member; the expense must be kept intact", nil,
		)
	}
	if err != nil {
		return err
	}
	if !member.IsActive() {
		return domain.NewConflictError(
			role+" is no longer a trip member; the expense must be kept intact", nil,
		)
	}
	return nil
}
