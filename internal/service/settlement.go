package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tripsplit-backend/internal/domain"
	"tripsplit-backend/internal/logger"
	"tripsplit-backend/internal/repository"
	"tripsplit-backend/internal/settle"
)

type settlementService struct {
	settlementRepo repository.SettlementRepository
	memberRepo     repository.MemberRepository
	balanceSvc     BalanceService
	emailSvc       EmailService // nil-safe, notifications are best effort
}

func NewSettlementService(
	settlementRepo repository.SettlementRepository,
	memberRepo repository.MemberRepository,
	balanceSvc BalanceService,
	emailSvc EmailService,
) SettlementService {
	return &settlementService{
		settlementRepo: settlementRepo,
		memberRepo:     memberRepo,
		balanceSvc:     balanceSvc,
		emailSvc:       emailSvc,
	}
}

// Initiate records the payer's declared intent to pay the payee. The
// settlement starts pending; only the payee can move it further.
func (s *settlementService) Initiate(ctx context.Context, tripID, payerID, payeeID int32, amount decimal.Decimal, paymentMethod string) (*domain.Settlement, error) {
	logger.EnterMethod("settlementService.Initiate", "tripID", tripID, "payerID", payerID, "payeeID", payeeID, "amount", amount)

	if !amount.IsPositive() {
		return nil, domain.NewValidationError("settlement amount must be positive, got %s", amount.StringFixed(2))
	}
	if payerID == payeeID {
		return nil, domain.NewValidationError("payer and payee must be different users")
	}
	payer, err := s.memberRepo.GetMember(ctx, tripID, payerID)
	if err != nil {
		logger.ExitMethodWithError("settlementService.Initiate", err, "tripID", tripID)
		return nil, domain.NewValidationError("user %d is not a member of trip %d", payerID, tripID)
	}
	payee, err := s.memberRepo.GetMember(ctx, tripID, payeeID)
	if err != nil {
		logger.ExitMethodWithError("settlementService.Initiate", err, "tripID", tripID)
		return nil, domain.NewValidationError("user %d is not a member of trip %d", payeeID, tripID)
	}
	if !payer.IsActive() || !payee.IsActive() {
		return nil, domain.NewValidationError("settlements require both parties to be active members")
	}

	settlement := &domain.Settlement{
		TripID:        tripID,
		PayerID:       payerID,
		PayeeID:       payeeID,
		Amount:        amount.Round(2),
		Status:        domain.SettlementStatusPending,
		PaymentMethod: paymentMethod,
		PaymentLink:   uuid.NewString(),
	}
	if err := s.settlementRepo.Create(ctx, settlement); err != nil {
		logger.ExitMethodWithError("settlementService.Initiate", err, "tripID", tripID)
		return nil, err
	}

	// Notification failures never fail the settlement itself.
	if s.emailSvc != nil && payee.Email != "" {
		if err := s.emailSvc.SendSettlementRequested(ctx, payee.Email, settlement.Amount, settlement.PaymentLink); err != nil {
			logger.Warn("failed to notify payee of settlement request", "settlementID", settlement.ID, "error", err)
		}
	}

	logger.ExitMethod("settlementService.Initiate", "settlementID", settlement.ID)
	return settlement, nil
}

func (s *settlementService) Confirm(ctx context.Context, settlementID, confirmerID int32) (*domain.Settlement, error) {
	return s.resolve(ctx, settlementID, confirmerID, domain.SettlementStatusConfirmed)
}

func (s *settlementService) Reject(ctx context.Context, settlementID, rejecterID int32) (*domain.Settlement, error) {
	return s.resolve(ctx, settlementID, rejecterID, domain.SettlementStatusRejected)
}

// resolve moves a pending settlement to a terminal status. The status
// swap is a compare-and-swap in the store, so a double confirm cannot
// apply twice: the second caller gets a conflict.
func (s *settlementService) resolve(ctx context.Context, settlementID, actorID int32, to domain.SettlementStatus) (*domain.Settlement, error) {
	logger.EnterMethod("settlementService.resolve", "settlementID", settlementID, "actorID", actorID, "to", to)

	settlement, err := s.settlementRepo.GetByID(ctx, settlementID)
	if err != nil {
		logger.ExitMethodWithError("settlementService.resolve", err, "settlementID", settlementID)
		return nil, err
	}

	if settlement.PayeeID != actorID {
		return nil, domain.NewConflictError("only the payee can confirm or reject a settlement", nil)
	}
	if settlement.IsTerminal() {
		return nil, domain.NewConflictError(
			"settlement is already "+string(settlement.Status), map[string]decimal.Decimal{
				"amount": settlement.Amount,
			})
	}

	now := time.Now()
	applied, err := s.settlementRepo.Transition(ctx, settlementID, to, now)
	if err != nil {
		logger.ExitMethodWithError("settlementService.resolve", err, "settlementID", settlementID)
		return nil, err
	}
	if !applied {
		// Lost the race against a concurrent confirm/reject.
		return nil, domain.NewConflictError("settlement was already resolved", nil)
	}

	settlement.Status = to
	switch to {
	case domain.SettlementStatusConfirmed:
		settlement.ConfirmedAt = &now
	case domain.SettlementStatusRejected:
		settlement.RejectedAt = &now
	}

	if s.emailSvc != nil {
		if payer, err := s.memberRepo.GetMember(ctx, settlement.TripID, settlement.PayerID); err == nil && payer.Email != "" {
			confirmed := to == domain.SettlementStatusConfirmed
			if err := s.emailSvc.SendSettlementResolved(ctx, payer.Email, settlement.Amount, confirmed); err != nil {
				logger.Warn("failed to notify payer of settlement resolution", "settlementID", settlementID, "error", err)
			}
		}
	}

	logger.ExitMethod("settlementService.resolve", "settlementID", settlementID, "status", to)
	return settlement, nil
}

func (s *settlementService) List(ctx context.Context, tripID int32) ([]domain.Settlement, error) {
	return s.settlementRepo.ListByTrip(ctx, tripID, nil)
}

// Optimize computes the minimal transaction plan for the trip's
// current balances, validating the plan before returning it.
func (s *settlementService) Optimize(ctx context.Context, tripID int32) (*domain.SettlementPlan, error) {
	logger.EnterMethod("settlementService.Optimize", "tripID", tripID)

	balances, err := s.balanceSvc.CalculateBalances(ctx, tripID)
	if err != nil {
		logger.ExitMethodWithError("settlementService.Optimize", err, "tripID", tripID)
		return nil, err
	}

	transactions := settle.Optimize(balances)
	plan := &domain.SettlementPlan{
		Transactions: transactions,
		Stats:        settle.StatsOf(transactions),
		IsValid:      true,
	}
	if err := settle.Validate(balances, transactions); err != nil {
		// Balances that do not net out (e.g. drift from legacy rounding)
		// still get a plan, but the caller is told not to trust it blindly.
		logger.Inconsistency("settlement plan failed validation", "tripID", tripID, "error", err)
		plan.IsValid = false
	}

	logger.ExitMethod("settlementService.Optimize", "tripID", tripID, "transactions", len(transactions), "valid", plan.IsValid)
	return plan, nil
}

func (s *settlementService) RecommendationsFor(ctx context.Context, tripID, userID int32) ([]domain.SettlementTransaction, error) {
	balances, err := s.balanceSvc.CalculateBalances(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return settle.RecommendationsFor(balances, userID), nil
}
