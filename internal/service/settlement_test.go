package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"tripsplit-backend/internal/domain"
)

func TestSettlementService_Initiate(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockSettlementRepo := new(MockSettlementRepo)
		mockMemberRepo := new(MockMemberRepo)
		mockEmail := new(MockEmailService)
		svc := NewSettlementService(mockSettlementRepo, mockMemberRepo, nil, mockEmail)

		mockMemberRepo.On("GetMember", ctx, int32(1), int32(2)).Return(activeMember(1, 2), nil).Once()
		payee := activeMember(1, 3)
		payee.Email = "payee@example.com"
		mockMemberRepo.On("GetMember", ctx, int32(1), int32(3)).Return(payee, nil).Once()
		mockSettlementRepo.On("Create", ctx, mock.AnythingOfType("*domain.Settlement")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*domain.Settlement).ID = 42
			}).Return(nil).Once()
		mockEmail.On("SendSettlementRequested", ctx, "payee@example.com", money("30.00"), mock.AnythingOfType("string")).
			Return(nil).Once()

		settlement, err := svc.Initiate(ctx, 1, 2, 3, money("30.00"), "venmo")
		assert.NoError(t, err)
		assert.Equal(t, int32(42), settlement.ID)
		assert.Equal(t, domain.SettlementStatusPending, settlement.Status)
		assert.NotEmpty(t, settlement.PaymentLink)
		mockSettlementRepo.AssertExpectations(t)
		mockEmail.AssertExpectations(t)
	})

	t.Run("RejectsNonPositiveAmount", func(t *testing.T) {
		svc := NewSettlementService(new(MockSettlementRepo), new(MockMemberRepo), nil, nil)

		var validationErr *domain.ValidationError
		_, err := svc.Initiate(ctx, 1, 2, 3, money("0.00"), "")
		assert.ErrorAs(t, err, &validationErr)
		_, err = svc.Initiate(ctx, 1, 2, 3, money("-5.00"), "")
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("RejectsSelfSettlement", func(t *testing.T) {
		svc := NewSettlementService(new(MockSettlementRepo), new(MockMemberRepo), nil, nil)

		var validationErr *domain.ValidationError
		_, err := svc.Initiate(ctx, 1, 2, 2, money("10.00"), "")
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("RejectsRemovedMember", func(t *testing.T) {
		mockMemberRepo := new(MockMemberRepo)
		svc := NewSettlementService(new(MockSettlementRepo), mockMemberRepo, nil, nil)

		mockMemberRepo.On("GetMember", ctx, int32(1), int32(2)).Return(activeMember(1, 2), nil).Once()
		mockMemberRepo.On("GetMember", ctx, int32(1), int32(3)).Return(removedMember(1, 3), nil).Once()

		var validationErr *domain.ValidationError
		_, err := svc.Initiate(ctx, 1, 2, 3, money("10.00"), "")
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("EmailFailureDoesNotFailSettlement", func(t *testing.T) {
		mockSettlementRepo := new(MockSettlementRepo)
		mockMemberRepo := new(MockMemberRepo)
		mockEmail := new(MockEmailService)
		svc := NewSettlementService(mockSettlementRepo, mockMemberRepo, nil, mockEmail)

		mockMemberRepo.On("GetMember", ctx, int32(1), int32(2)).Return(activeMember(1, 2), nil).Once()
		payee := activeMember(1, 3)
		payee.Email = "payee@example.com"
		mockMemberRepo.On("GetMember", ctx, int32(1), int32(3)).Return(payee, nil).Once()
		mockSettlementRepo.On("Create", ctx, mock.AnythingOfType("*domain.Settlement")).Return(nil).Once()
		mockEmail.On("SendSettlementRequested", ctx, "payee@example.com", money("10.00"), mock.AnythingOfType("string")).
			Return(assert.AnError).Once()

		_, err := svc.Initiate(ctx, 1, 2, 3, money("10.00"), "")
		assert.NoError(t, err)
	})
}

func TestSettlementService_Confirm(t *testing.T) {
	ctx := context.Background()
	pending := func() *domain.Settlement {
		return &domain.Settlement{
			ID: 5, TripID: 1, PayerID: 2, PayeeID: 3,
			Amount: money("30.00"), Status: domain.SettlementStatusPending,
		}
	}

	t.Run("PayeeConfirms", func(t *testing.T) {
		mockSettlementRepo := new(MockSettlementRepo)
		mockMemberRepo := new(MockMemberRepo)
		svc := NewSettlementService(mockSettlementRepo, mockMemberRepo, nil, nil)

		mockSettlementRepo.On("GetByID", ctx, int32(5)).Return(pending(), nil).Once()
		mockSettlementRepo.On("Transition", ctx, int32(5), domain.SettlementStatusConfirmed, mock.AnythingOfType("time.Time")).
			Return(true, nil).Once()

		settlement, err := svc.Confirm(ctx, 5, 3)
		assert.NoError(t, err)
		assert.Equal(t, domain.SettlementStatusConfirmed, settlement.Status)
		assert.NotNil(t, settlement.ConfirmedAt)
		mockSettlementRepo.AssertExpectations(t)
	})

	t.Run("PayerCannotConfirm", func(t *testing.T) {
		mockSettlementRepo := new(MockSettlementRepo)
		svc := NewSettlementService(mockSettlementRepo, new(MockMemberRepo), nil, nil)

		mockSettlementRepo.On("GetByID", ctx, int32(5)).Return(pending(), nil).Once()

		var conflictErr *domain.ConflictError
		_, err := svc.Confirm(ctx, 5, 2)
		assert.ErrorAs(t, err, &conflictErr)
	})

	t.Run("AlreadyTerminal", func(t *testing.T) {
		mockSettlementRepo := new(MockSettlementRepo)
		svc := NewSettlementService(mockSettlementRepo, new(MockMemberRepo), nil, nil)

		now := time.Now()
		confirmed := pending()
		confirmed.Status = domain.SettlementStatusConfirmed
		confirmed.ConfirmedAt = &now
		mockSettlementRepo.On("GetByID", ctx, int32(5)).Return(confirmed, nil).Once()

		var conflictErr *domain.ConflictError
		_, err := svc.Confirm(ctx, 5, 3)
		assert.ErrorAs(t, err, &conflictErr)
		// Amounts ride along so the client can render the conflict.
		assert.True(t, conflictErr.Amounts["amount"].Equal(money("30.00")))
	})

	t.Run("LostRaceGivesConflict", func(t *testing.T) {
		mockSettlementRepo := new(MockSettlementRepo)
		svc := NewSettlementService(mockSettlementRepo, new(MockMemberRepo), nil, nil)

		mockSettlementRepo.On("GetByID", ctx, int32(5)).Return(pending(), nil).Once()
		// CAS reports the row was no longer pending.
		mockSettlementRepo.On("Transition", ctx, int32(5), domain.SettlementStatusConfirmed, mock.AnythingOfType("time.Time")).
			Return(false, nil).Once()

		var conflictErr *domain.ConflictError
		_, err := svc.Confirm(ctx, 5, 3)
		assert.ErrorAs(t, err, &conflictErr)
	})
}

func TestSettlementService_Reject(t *testing.T) {
	ctx := context.Background()
	mockSettlementRepo := new(MockSettlementRepo)
	mockMemberRepo := new(MockMemberRepo)
	mockEmail := new(MockEmailService)
	svc := NewSettlementService(mockSettlementRepo, mockMemberRepo, nil, mockEmail)

	pending := &domain.Settlement{
		ID: 5, TripID: 1, PayerID: 2, PayeeID: 3,
		Amount: money("30.00"), Status: domain.SettlementStatusPending,
	}
	mockSettlementRepo.On("GetByID", ctx, int32(5)).Return(pending, nil).Once()
	mockSettlementRepo.On("Transition", ctx, int32(5), domain.SettlementStatusRejected, mock.AnythingOfType("time.Time")).
		Return(true, nil).Once()
	payer := activeMember(1, 2)
	payer.Email = "payer@example.com"
	mockMemberRepo.On("GetMember", ctx, int32(1), int32(2)).Return(payer, nil).Once()
	mockEmail.On("SendSettlementResolved", ctx, "payer@example.com", money("30.00"), false).Return(nil).Once()

	settlement, err := svc.Reject(ctx, 5, 3)
	assert.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusRejected, settlement.Status)
	assert.NotNil(t, settlement.RejectedAt)
	assert.Nil(t, settlement.ConfirmedAt)
	mockEmail.AssertExpectations(t)
}

func TestSettlementService_Optimize(t *testing.T) {
	ctx := context.Background()
	mockExpenseRepo := new(MockExpenseRepo)
	mockSettlementRepo := new(MockSettlementRepo)
	mockMemberRepo := new(MockMemberRepo)
	balanceSvc := NewBalanceService(mockExpenseRepo, mockSettlementRepo, mockMemberRepo)
	svc := NewSettlementService(mockSettlementRepo, mockMemberRepo, balanceSvc, nil)

	mockExpenseRepo.On("ListByTrip", ctx, int32(1)).
		Return([]domain.Expense{{ID: 10, TripID: 1, PaidBy: 1, Amount: money("90.00")}}, nil).Once()
	mockExpenseRepo.On("ListSplitsByTrip", ctx, int32(1)).
		Return([]domain.ExpenseSplit{
			{ExpenseID: 10, UserID: 1, Amount: money("30.00")},
			{ExpenseID: 10, UserID: 2, Amount: money("30.00")},
			{ExpenseID: 10, UserID: 3, Amount: money("30.00")},
		}, nil).Once()
	mockSettlementRepo.On("ListByTrip", ctx, int32(1), []domain.SettlementStatus{domain.SettlementStatusConfirmed}).
		Return([]domain.Settlement{}, nil).Once()
	mockMemberRepo.On("ListByTrip", ctx, int32(1)).Return(activeMembers(1, 1, 2, 3), nil).Once()

	plan, err := svc.Optimize(ctx, 1)
	assert.NoError(t, err)
	assert.True(t, plan.IsValid)
	assert.Len(t, plan.Transactions, 2)
	assert.Equal(t, 2, plan.Stats.TransactionCount)
	assert.True(t, plan.Stats.TotalAmount.Equal(money("60.00")))
	for _, tx := range plan.Transactions {
		assert.Equal(t, int32(1), tx.ToUserID)
		assert.True(t, tx.Amount.Equal(money("30.00")))
	}
}
