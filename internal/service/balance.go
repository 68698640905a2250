package service

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"tripsplit-backend/internal/domain"
	"tripsplit-backend/internal/logger"
	"tripsplit-backend/internal/repository"
	"tripsplit-backend/internal/settle"
)

type balanceService struct {
	expenseRepo    repository.ExpenseRepository
	settlementRepo repository.SettlementRepository
	memberRepo     repository.MemberRepository
}

func NewBalanceService(
	expenseRepo repository.ExpenseRepository,
	settlementRepo repository.SettlementRepository,
	memberRepo repository.MemberRepository,
) BalanceService {
	return &balanceService{
		expenseRepo:    expenseRepo,
		settlementRepo: settlementRepo,
		memberRepo:     memberRepo,
	}
}

// CalculateBalances derives every involved user's net position from
// the ledger. Nothing is cached: the result is re-derivable from the
// store at any time.
func (s *balanceService) CalculateBalances(ctx context.Context, tripID int32) ([]domain.MemberBalance, error) {
	logger.EnterMethod("balanceService.CalculateBalances", "tripID", tripID)

	expenses, err := s.expenseRepo.ListByTrip(ctx, tripID)
	if err != nil {
		logger.ExitMethodWithError("balanceService.CalculateBalances", err, "tripID", tripID)
		return nil, err
	}
	splits, err := s.expenseRepo.ListSplitsByTrip(ctx, tripID)
	if err != nil {
		logger.ExitMethodWithError("balanceService.CalculateBalances", err, "tripID", tripID)
		return nil, err
	}
	settlements, err := s.settlementRepo.ListByTrip(ctx, tripID,
		[]domain.SettlementStatus{domain.SettlementStatusConfirmed})
	if err != nil {
		logger.ExitMethodWithError("balanceService.CalculateBalances", err, "tripID", tripID)
		return nil, err
	}
	members, err := s.memberRepo.ListByTrip(ctx, tripID)
	if err != nil {
		logger.ExitMethodWithError("balanceService.CalculateBalances", err, "tripID", tripID)
		return nil, err
	}

	balances := computeBalances(members, expenses, splits, settlements)

	logger.ExitMethod("balanceService.CalculateBalances", "tripID", tripID, "users", len(balances))
	return balances, nil
}

// computeBalances is the pure aggregation core. Monetary sums are
// rounded to two decimals after each aggregation step to match
// currency minor units, mirroring how the amounts were stored.
func computeBalances(
	members []domain.Member,
	expenses []domain.Expense,
	splits []domain.ExpenseSplit,
	settlements []domain.Settlement,
) []domain.MemberBalance {
	type entry struct {
		paid decimal.Decimal
		owed decimal.Decimal
		net  decimal.Decimal
	}
	entries := make(map[int32]*entry)
	get := func(userID int32) *entry {
		e, ok := entries[userID]
		if !ok {
			e = &entry{paid: decimal.Zero, owed: decimal.Zero, net: decimal.Zero}
			entries[userID] = e
		}
		return e
	}

	for _, expense := range expenses {
		e := get(expense.PaidBy)
		e.paid = e.paid.Add(expense.Amount).Round(2)
	}
	for _, s := range splits {
		e := get(s.UserID)
		e.owed = e.owed.Add(s.Amount).Round(2)
	}
	for _, e := range entries {
		e.net = e.paid.Sub(e.owed).Round(2)
	}
	for _, s := range settlements {
		if s.Status != domain.SettlementStatusConfirmed {
			continue
		}
		payer := get(s.PayerID)
		payer.net = payer.net.Add(s.Amount).Round(2)
		payee := get(s.PayeeID)
		payee.net = payee.net.Sub(s.Amount).Round(2)
	}

	active := make(map[int32]bool, len(members))
	for _, m := range members {
		if m.IsActive() {
			active[m.UserID] = true
			get(m.UserID)
		}
	}

	balances := make([]domain.MemberBalance, 0, len(entries))
	for userID, e := range entries {
		// Removed members stay visible only while money is still
		// attached to them.
		if !active[userID] && e.net.Abs().LessThanOrEqual(settle.Epsilon) {
			continue
		}
		balances = append(balances, domain.MemberBalance{
			UserID:     userID,
			TotalPaid:  e.paid,
			TotalOwed:  e.owed,
			NetBalance: e.net,
		})
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].UserID < balances[j].UserID })
	return balances
}
