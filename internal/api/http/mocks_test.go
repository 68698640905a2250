package http

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"tripsplit-backend/internal/domain"
	"tripsplit-backend/internal/service"
)

// MockLedgerService
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) CreateExpense(ctx context.Context, in service.CreateExpenseInput) (*domain.Expense, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Expense), args.Error(1)
}
func (m *MockLedgerService) AddExpenseSplit(ctx context.Context, expenseID, userID int32, amount decimal.Decimal) (*domain.ExpenseSplit, error) {
	args := m.Called(ctx, expenseID, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExpenseSplit), args.Error(1)
}
func (m *MockLedgerService) UpdateExpense(ctx context.Context, in service.UpdateExpenseInput) (*domain.Expense, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Expense), args.Error(1)
}
func (m *MockLedgerService) DeleteExpense(ctx context.Context, expenseID int32) error {
	args := m.Called(ctx, expenseID)
	return args.Error(0)
}
func (m *MockLedgerService) ListExpenses(ctx context.Context, tripID int32) ([]domain.Expense, []domain.ExpenseSplit, error) {
	args := m.Called(ctx, tripID)
	return args.Get(0).([]domain.Expense), args.Get(1).([]domain.ExpenseSplit), args.Error(2)
}

// MockBalanceService
type MockBalanceService struct {
	mock.Mock
}

func (m *MockBalanceService) CalculateBalances(ctx context.Context, tripID int32) ([]domain.MemberBalance, error) {
	args := m.Called(ctx, tripID)
	return args.Get(0).([]domain.MemberBalance), args.Error(1)
}

// MockSettlementService
type MockSettlementService struct {
	mock.Mock
}

func (m *MockSettlementService) Initiate(ctx context.Context, tripID, payerID, payeeID int32, amount decimal.Decimal, paymentMethod string) (*domain.Settlement, error) {
	args := m.Called(ctx, tripID, payerID, payeeID, amount, paymentMethod)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Settlement), args.Error(1)
}
func (m *MockSettlementService) Confirm(ctx context.Context, settlementID, confirmerID int32) (*domain.Settlement, error) {
	args := m.Called(ctx, settlementID, confirmerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Settlement), args.Error(1)
}
func (m *MockSettlementService) Reject(ctx context.Context, settlementID, rejecterID int32) (*domain.Settlement, error) {
	args := m.Called(ctx, settlementID, rejecterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Settlement), args.Error(1)
}
func (m *MockSettlementService) List(ctx context.Context, tripID int32) ([]domain.Settlement, error) {
	args := m.Called(ctx, tripID)
	return args.Get(0).([]domain.Settlement), args.Error(1)
}
func (m *MockSettlementService) Optimize(ctx context.Context, tripID int32) (*domain.SettlementPlan, error) {
	args := m.Called(ctx, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SettlementPlan), args.Error(1)
}
func (m *MockSettlementService) RecommendationsFor(ctx context.Context, tripID, userID int32) ([]domain.SettlementTransaction, error) {
	args := m.Called(ctx, tripID, userID)
	return args.Get(0).([]domain.SettlementTransaction), args.Error(1)
}

// MockParticipationService
type MockParticipationService struct {
	mock.Mock
}

func (m *MockParticipationService) OnActivityRSVPChanged(ctx context.Context, activityID, userID int32, status domain.RSVPStatus) error {
	args := m.Called(ctx, activityID, userID, status)
	return args.Error(0)
}

// MockMembershipService
type MockMembershipService struct {
	mock.Mock
}

func (m *MockMembershipService) AnalyzeRemovalEligibility(ctx context.Context, tripID, userID int32) (*domain.RemovalAnalysis, error) {
	args := m.Called(ctx, tripID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RemovalAnalysis), args.Error(1)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// stubLimiter answers every Allow call with a fixed verdict.
type stubLimiter struct {
	allowed bool
}

func (l stubLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return l.allowed, nil
}
