package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"tripsplit-backend/internal/domain"
)

// MockTripRepo
type MockTripRepo struct {
	mock.Mock
}

func (m *MockTripRepo) GetByID(ctx context.Context, id int32) (*domain.Trip, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Trip), args.Error(1)
}
func (m *MockTripRepo) List(ctx context.Context) ([]domain.Trip, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Trip), args.Error(1)
}

// MockMemberRepo
type MockMemberRepo struct {
	mock.Mock
}

func (m *MockMemberRepo) GetMember(ctx context.Context, tripID, userID int32) (*domain.Member, error) {
	args := m.Called(ctx, tripID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Member), args.Error(1)
}
func (m *MockMemberRepo) ListByTrip(ctx context.Context, tripID int32) ([]domain.Member, error) {
	args := m.Called(ctx, tripID)
	return args.Get(0).([]domain.Member), args.Error(1)
}

// MockActivityRepo
type MockActivityRepo struct {
	mock.Mock
}

func (m *MockActivityRepo) GetByID(ctx context.Context, id int32) (*domain.Activity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Activity), args.Error(1)
}
func (m *MockActivityRepo) ListByTrip(ctx context.Context, tripID int32) ([]domain.Activity, error) {
	args := m.Called(ctx, tripID)
	return args.Get(0).([]domain.Activity), args.Error(1)
}
func (m *MockActivityRepo) ListGoingUserIDs(ctx context.Context, activityID int32) ([]int32, error) {
	args := m.Called(ctx, activityID)
	return args.Get(0).([]int32), args.Error(1)
}

// MockExpenseRepo
type MockExpenseRepo struct {
	mock.Mock
}

func (m *MockExpenseRepo) CreateWithSplits(ctx context.Context, expense *domain.Expense, splits []domain.ExpenseSplit) error {
	args := m.Called(ctx, expense, splits)
	return args.Error(0)
}
func (m *MockExpenseRepo) GetByID(ctx context.Context, id int32) (*domain.Expense, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Expense), args.Error(1)
}
func (m *MockExpenseRepo) Update(ctx context.Context, expense *domain.Expense) error {
	args := m.Called(ctx, expense)
	return args.Error(0)
}
func (m *MockExpenseRepo) DeleteWithSplits(ctx context.Context, id int32) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockExpenseRepo) ListByTrip(ctx context.Context, tripID int32) ([]domain.Expense, error) {
	args := m.Called(ctx, tripID)
	return args.Get(0).([]domain.Expense), args.Error(1)
}
func (m *MockExpenseRepo) CreateSplit(ctx context.Context, split *domain.ExpenseSplit) error {
	args := m.Called(ctx, split)
	return args.Error(0)
}
func (m *MockExpenseRepo) ListSplits(ctx context.Context, expenseID int32) ([]domain.ExpenseSplit, error) {
	args := m.Called(ctx, expenseID)
	return args.Get(0).([]domain.ExpenseSplit), args.Error(1)
}
func (m *MockExpenseRepo) ListSplitsByTrip(ctx context.Context, tripID int32) ([]domain.ExpenseSplit, error) {
	args := m.Called(ctx, tripID)
	return args.Get(0).([]domain.ExpenseSplit), args.Error(1)
}
func (m *MockExpenseRepo) ReplaceSplits(ctx context.Context, expenseID int32, splits []domain.ExpenseSplit) error {
	args := m.Called(ctx, expenseID, splits)
	return args.Error(0)
}
func (m *MockExpenseRepo) GetActivityExpense(ctx context.Context, activityID int32) (*domain.Expense, error) {
	args := m.Called(ctx, activityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Expense), args.Error(1)
}
func (m *MockExpenseRepo) GetActivityExpenseForUser(ctx context.Context, activityID, userID int32) (*domain.Expense, error) {
	args := m.Called(ctx, activityID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Expense), args.Error(1)
}
func (m *MockExpenseRepo) EnsureActivityExpense(ctx context.Context, expense *domain.Expense) error {
	args := m.Called(ctx, expense)
	return args.Error(0)
}
func (m *MockExpenseRepo) EnsureActivityExpenseForUser(ctx context.Context, expense *domain.Expense, split domain.ExpenseSplit) (bool, error) {
	args := m.Called(ctx, expense, split)
	return args.Bool(0), args.Error(1)
}
func (m *MockExpenseRepo) RecalculateActivitySplits(ctx context.Context, expenseID int32, compute func(going []int32) ([]domain.ExpenseSplit, error)) error {
	args := m.Called(ctx, expenseID, compute)
	return args.Error(0)
}

// MockSettlementRepo
type MockSettlementRepo struct {
	mock.Mock
}

func (m *MockSettlementRepo) Create(ctx context.Context, settlement *domain.Settlement) error {
	args := m.Called(ctx, settlement)
	return args.Error(0)
}
func (m *MockSettlementRepo) GetByID(ctx context.Context, id int32) (*domain.Settlement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Settlement), args.Error(1)
}
func (m *MockSettlementRepo) ListByTrip(ctx context.Context, tripID int32, statuses []domain.SettlementStatus) ([]domain.Settlement, error) {
	args := m.Called(ctx, tripID, statuses)
	return args.Get(0).([]domain.Settlement), args.Error(1)
}
func (m *MockSettlementRepo) Transition(ctx context.Context, id int32, to domain.SettlementStatus, at time.Time) (bool, error) {
	args := m.Called(ctx, id, to, at)
	return args.Bool(0), args.Error(1)
}
func (m *MockSettlementRepo) HasTerminalCreatedAfter(ctx context.Context, tripID int32, t time.Time) (bool, error) {
	args := m.Called(ctx, tripID, t)
	return args.Bool(0), args.Error(1)
}
func (m *MockSettlementRepo) HasConfirmedCreatedAfter(ctx context.Context, tripID int32, t time.Time) (bool, error) {
	args := m.Called(ctx, tripID, t)
	return args.Bool(0), args.Error(1)
}
func (m *MockSettlementRepo) ClearExpiredPaymentLinks(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// MockEmailService
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendSettlementRequested(ctx context.Context, payeeEmail string, amount decimal.Decimal, paymentLink string) error {
	args := m.Called(ctx, payeeEmail, amount, paymentLink)
	return args.Error(0)
}
func (m *MockEmailService) SendSettlementResolved(ctx context.Context, payerEmail string, amount decimal.Decimal, confirmed bool) error {
	args := m.Called(ctx, payerEmail, amount, confirmed)
	return args.Error(0)
}

func activeMember(tripID, userID int32) *domain.Member {
	return &domain.Member{TripID: tripID, UserID: userID, Status: domain.MemberStatusActive}
}

func removedMember(tripID, userID int32) *domain.Member {
	return &domain.Member{TripID: tripID, UserID: userID, Status: domain.MemberStatusRemoved}
}
