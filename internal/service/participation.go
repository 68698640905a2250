package service

import (
	"context"
	"errors"
	"fmt"

	"tripsplit-backend/internal/domain"
	"tripsplit-backend/internal/logger"
	"tripsplit-backend/internal/repository"
	"tripsplit-backend/internal/split"
)

// participationService keeps activity-derived expenses in sync with
// RSVP state. Prepaid activities carry one shared expense whose splits
// track the going set; prepaid-per-person activities carry one expense
// per attending non-organizer.
type participationService struct {
	activityRepo   repository.ActivityRepository
	expenseRepo    repository.ExpenseRepository
	settlementRepo repository.SettlementRepository
}

func NewParticipationService(
	activityRepo repository.ActivityRepository,
	expenseRepo repository.ExpenseRepository,
	settlementRepo repository.SettlementRepository,
) ParticipationService {
	return &participationService{
		activityRepo:   activityRepo,
		expenseRepo:    expenseRepo,
		settlementRepo: settlementRepo,
	}
}

func (s *participationService) OnActivityRSVPChanged(ctx context.Context, activityID, userID int32, status domain.RSVPStatus) error {
	logger.EnterMethod("participationService.OnActivityRSVPChanged", "activityID", activityID, "userID", userID, "status", status)

	if !status.Valid() {
		return domain.NewValidationError("unknown RSVP status %q", status)
	}

	activity, err := s.activityRepo.GetByID(ctx, activityID)
	if err != nil {
		logger.ExitMethodWithError("participationService.OnActivityRSVPChanged", err, "activityID", activityID)
		return err
	}
	if !activity.PaymentType.Valid() {
		return domain.NewValidationError("activity %d has unknown payment type %q", activityID, activity.PaymentType)
	}
	if !activity.PaymentType.DrivesLedger() || !activity.Cost.IsPositive() {
		logger.ExitMethod("participationService.OnActivityRSVPChanged", "activityID", activityID, "skipped", true)
		return nil
	}

	switch activity.PaymentType {
	case domain.PaymentTypePrepaid:
		err = s.recalculateShared(ctx, activity)
	case domain.PaymentTypePrepaidPerPerson:
		err = s.recalculatePerPerson(ctx, activity, userID, status)
	default:
		err = fmt.Errorf("unhandled ledger payment type %q", activity.PaymentType)
	}

	if err != nil {
		// The RSVP change is already persisted and must stand; the
		// derived expense drift is reported for reconciliation instead
		// of failing the user's attendance intent.
		logger.Inconsistency("split recalculation failed after RSVP change",
			"activityID", activityID, "userID", userID, "status", status, "error", err)
		return err
	}

	logger.ExitMethod("participationService.OnActivityRSVPChanged", "activityID", activityID)
	return nil
}

// recalculateShared maintains the single shared expense of a prepaid
// activity: the cost divides evenly over whoever is going right now.
// Reading the going set and writing the split set happen inside one
// store transaction, so concurrent RSVP changes serialize.
func (s *participationService) recalculateShared(ctx context.Context, activity *domain.Activity) error {
	// Get-or-create happens atomically at the store under the activity
	// lock; concurrent first RSVPs converge on the same expense.
	// Created empty, the recalculation below fills the splits in.
	expense := &domain.Expense{
		TripID:     activity.TripID,
		Title:      activity.Title,
		Amount:     activity.Cost.Round(2),
		Category:   "activity",
		PaidBy:     activity.CreatedBy,
		ActivityID: &activity.ID,
	}
	if err := s.expenseRepo.EnsureActivityExpense(ctx, expense); err != nil {
		return err
	}

	return s.expenseRepo.RecalculateActivitySplits(ctx, expense.ID, func(going []int32) ([]domain.ExpenseSplit, error) {
		if len(going) == 0 {
			// Everyone backed out: drop the splits but keep the expense
			// for audit history.
			return nil, nil
		}
		return split.EvenSplits(expense.ID, activity.Cost, going)
	})
}

// recalculatePerPerson maintains one expense per attending
// non-organizer, each owing the flat fee to the organizer.
func (s *participationService) recalculatePerPerson(ctx context.Context, activity *domain.Activity, userID int32, status domain.RSVPStatus) error {
	if userID == activity.CreatedBy {
		// The organizer fronts the cost and owes nothing to themself.
		return nil
	}

	switch status {
	case domain.RSVPStatusGoing:
		// Atomic get-or-create under the activity lock: a duplicate
		// RSVP leaves the existing obligation untouched.
		expense := &domain.Expense{
			TripID:     activity.TripID,
			Title:      activity.Title,
			Amount:     activity.Cost.Round(2),
			Category:   "activity",
			PaidBy:     activity.CreatedBy,
			ActivityID: &activity.ID,
		}
		_, err := s.expenseRepo.EnsureActivityExpenseForUser(ctx, expense,
			domain.ExpenseSplit{UserID: userID, Amount: activity.Cost.Round(2)})
		return err

	case domain.RSVPStatusNotGoing:
		expense, err := s.expenseRepo.GetActivityExpenseForUser(ctx, activity.ID, userID)
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if err != nil {
			return err
		}
		settled, err := s.settlementRepo.HasConfirmedCreatedAfter(ctx, expense.TripID, expense.CreatedAt)
		if err != nil {
			return err
		}
		if settled {
			// The amount already flowed into a confirmed settlement.
			// Keep the expense so paid history stays true and only drop
			// the split, which leaves the organizer owed going forward.
			return s.expenseRepo.ReplaceSplits(ctx, expense.ID, nil)
		}
		return s.expenseRepo.DeleteWithSplits(ctx, expense.ID)

	default:
		return domain.NewValidationError("unknown RSVP status %q", status)
	}
}
