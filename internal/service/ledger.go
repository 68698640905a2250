package service

import (
	"context"

	"github.com/shopspring/decimal"

	"tripsplit-backend/internal/domain"
	"tripsplit-backend/internal/logger"
	"tripsplit-backend/internal/repository"
	"tripsplit-backend/internal/split"
)

type ledgerService struct {
	expenseRepo repository.ExpenseRepository
	memberRepo  repository.MemberRepository
	guard       *IntegrityGuard
}

func NewLedgerService(
	expenseRepo repository.ExpenseRepository,
	memberRepo repository.MemberRepository,
	guard *IntegrityGuard,
) LedgerService {
	return &ledgerService{
		expenseRepo: expenseRepo,
		memberRepo:  memberRepo,
		guard:       guard,
	}
}

func (s *ledgerService) CreateExpense(ctx context.Context, in CreateExpenseInput) (*domain.Expense, error) {
	logger.EnterMethod("ledgerService.CreateExpense", "tripID", in.TripID, "paidBy", in.PaidBy, "amount", in.Amount)

	if in.Title == "" {
		return nil, domain.NewValidationError("expense title is required")
	}
	if in.Amount.IsNegative() {
		return nil, domain.NewValidationError("expense amount must not be negative, got %s", in.Amount.StringFixed(2))
	}
	// Manual expenses need at least one split up front: an expense
	// nobody owes anything on is not observable ledger state. Activity
	// expenses may start empty; the recalculator fills them in.
	if in.ActivityID == nil && len(in.Splits) == 0 && in.Amount.IsPositive() {
		return nil, domain.NewValidationError("expense requires at least one split")
	}

	if err := s.requireActiveMember(ctx, in.TripID, in.PaidBy); err != nil {
		logger.ExitMethodWithError("ledgerService.CreateExpense", err, "tripID", in.TripID)
		return nil, err
	}

	splits := make([]domain.ExpenseSplit, 0, len(in.Splits))
	sum := decimal.Zero
	for _, share := range in.Splits {
		if share.Amount.IsNegative() {
			return nil, domain.NewValidationError("split amount for user %d must not be negative", share.UserID)
		}
		if err := s.requireActiveMember(ctx, in.TripID, share.UserID); err != nil {
			logger.ExitMethodWithError("ledgerService.CreateExpense", err, "tripID", in.TripID)
			return nil, err
		}
		sum = sum.Add(share.Amount)
		splits = append(splits, domain.ExpenseSplit{UserID: share.UserID, Amount: share.Amount})
	}
	if len(splits) > 0 && sum.Sub(in.Amount).Abs().GreaterThan(split.SumTolerance(len(splits))) {
		return nil, domain.NewValidationError(
			"splits sum to %s but expense amount is %s", sum.StringFixed(2), in.Amount.StringFixed(2))
	}

	expense := &domain.Expense{
		TripID:     in.TripID,
		Title:      in.Title,
		Amount:     in.Amount.Round(2),
		Currency:   in.Currency,
		Category:   in.Category,
		PaidBy:     in.PaidBy,
		ActivityID: in.ActivityID,
	}
	if err := s.expenseRepo.CreateWithSplits(ctx, expense, splits); err != nil {
		logger.ExitMethodWithError("ledgerService.CreateExpense", err, "tripID", in.TripID)
		return nil, err
	}

	logger.ExitMethod("ledgerService.CreateExpense", "expenseID", expense.ID)
	return expense, nil
}

func (s *ledgerService) AddExpenseSplit(ctx context.Context, expenseID, userID int32, amount decimal.Decimal) (*domain.ExpenseSplit, error) {
	logger.EnterMethod("ledgerService.AddExpenseSplit", "expenseID", expenseID, "userID", userID)

	if amount.IsNegative() {
		return nil, domain.NewValidationError("split amount must not be negative, got %s", amount.StringFixed(2))
	}

	expense, err := s.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		logger.ExitMethodWithError("ledgerService.AddExpenseSplit", err, "expenseID", expenseID)
		return nil, err
	}
	if err := s.requireActiveMember(ctx, expense.TripID, userID); err != nil {
		return nil, err
	}

	existing, err := s.expenseRepo.ListSplits(ctx, expenseID)
	if err != nil {
		logger.ExitMethodWithError("ledgerService.AddExpenseSplit", err, "expenseID", expenseID)
		return nil, err
	}
	// Growing the split set edits historical amounts, so the same
	// protection as expense edits applies.
	if err := s.guard.CheckExpenseMutable(ctx, expense, existing); err != nil {
		logger.ExitMethodWithError("ledgerService.AddExpenseSplit", err, "expenseID", expenseID)
		return nil, err
	}

	sum := amount
	for _, sp := range existing {
		if sp.UserID == userID {
			return nil, domain.NewConflictError("user already has a split on this expense", map[string]decimal.Decimal{
				"existing_split": sp.Amount,
			})
		}
		sum = sum.Add(sp.Amount)
	}
	if sum.Sub(expense.Amount).GreaterThan(split.SumTolerance(len(existing) + 1)) {
		return nil, domain.NewValidationError(
			"splits would sum to %s, exceeding expense amount %s", sum.StringFixed(2), expense.Amount.StringFixed(2))
	}

	newSplit := &domain.ExpenseSplit{ExpenseID: expenseID, UserID: userID, Amount: amount.Round(2)}
	if err := s.expenseRepo.CreateSplit(ctx, newSplit); err != nil {
		logger.ExitMethodWithError("ledgerService.AddExpenseSplit", err, "expenseID", expenseID)
		return nil, err
	}

	logger.ExitMethod("ledgerService.AddExpenseSplit", "splitID", newSplit.ID)
	return newSplit, nil
}

func (s *ledgerService) UpdateExpense(ctx context.Context, in UpdateExpenseInput) (*domain.Expense, error) {
	logger.EnterMethod("ledgerService.UpdateExpense", "expenseID", in.ExpenseID)

	if in.Title == "" {
		return nil, domain.NewValidationError("expense title is required")
	}
	if in.Amount.IsNegative() {
		return nil, domain.NewValidationError("expense amount must not be negative, got %s", in.Amount.StringFixed(2))
	}

	expense, err := s.expenseRepo.GetByID(ctx, in.ExpenseID)
	if err != nil {
		logger.ExitMethodWithError("ledgerService.UpdateExpense", err, "expenseID", in.ExpenseID)
		return nil, err
	}
	splits, err := s.expenseRepo.ListSplits(ctx, in.ExpenseID)
	if err != nil {
		logger.ExitMethodWithError("ledgerService.UpdateExpense", err, "expenseID", in.ExpenseID)
		return nil, err
	}

	if err := s.guard.CheckExpenseMutable(ctx, expense, splits); err != nil {
		logger.ExitMethodWithError("ledgerService.UpdateExpense", err, "expenseID", in.ExpenseID)
		return nil, err
	}
	if err := s.requireActiveMember(ctx, expense.TripID, in.PaidBy); err != nil {
		return nil, err
	}

	expense.Title = in.Title
	expense.Amount = in.Amount.Round(2)
	expense.Currency = in.Currency
	expense.Category = in.Category
	expense.PaidBy = in.PaidBy

	if err := split.CheckSum(expense, splits); err != nil {
		logger.ExitMethodWithError("ledgerService.UpdateExpense", err, "expenseID", in.ExpenseID)
		return nil, domain.NewValidationError(
			"new amount %s does not match existing splits; adjust splits first", in.Amount.StringFixed(2))
	}

	if err := s.expenseRepo.Update(ctx, expense); err != nil {
		logger.ExitMethodWithError("ledgerService.UpdateExpense", err, "expenseID", in.ExpenseID)
		return nil, err
	}

	logger.ExitMethod("ledgerService.UpdateExpense", "expenseID", expense.ID)
	return expense, nil
}

func (s *ledgerService) DeleteExpense(ctx context.Context, expenseID int32) error {
	logger.EnterMethod("ledgerService.DeleteExpense", "expenseID", expenseID)

	expense, err := s.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		logger.ExitMethodWithError("ledgerService.DeleteExpense", err, "expenseID", expenseID)
		return err
	}
	splits, err := s.expenseRepo.ListSplits(ctx, expenseID)
	if err != nil {
		logger.ExitMethodWithError("ledgerService.DeleteExpense", err, "expenseID", expenseID)
		return err
	}

	if err := s.guard.CheckExpenseMutable(ctx, expense, splits); err != nil {
		logger.ExitMethodWithError("ledgerService.DeleteExpense", err, "expenseID", expenseID)
		return err
	}

	if err := s.expenseRepo.DeleteWithSplits(ctx, expenseID); err != nil {
		logger.ExitMethodWithError("ledgerService.DeleteExpense", err, "expenseID", expenseID)
		return err
	}

	logger.ExitMethod("ledgerService.DeleteExpense", "expenseID", expenseID)
	return nil
}

func (s *ledgerService) ListExpenses(ctx context.Context, tripID int32) ([]domain.Expense, []domain.ExpenseSplit, error) {
	expenses, err := s.expenseRepo.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, nil, err
	}
	splits, err := s.expenseRepo.ListSplitsByTrip(ctx, tripID)
	if err != nil {
		return nil, nil, err
	}
	return expenses, splits, nil
}

func (s *ledgerService) requireActiveMember(ctx context.Context, tripID, userID int32) error {
	member, err := s.memberRepo.GetMember(ctx, tripID, userID)
	if err != nil {
		return domain.NewValidationError("user %d is not a member of trip %d", userID, tripID)
	}
	if !member.IsActive() {
		return domain.NewValidationError("user %d is no longer an active member of trip %d", userID, tripID)
	}
	return nil
}
