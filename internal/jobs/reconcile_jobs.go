package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"tripsplit-backend/internal/domain"
	"tripsplit-backend/internal/logger"
	"tripsplit-backend/internal/split"
)

// CheckLedgerConsistency verifies, for every trip, that each expense's
// splits still sum to the expense amount and that the trip's ledger
// conserves money overall. Drift is reported loudly; nothing is
// auto-corrected.
func (jr *JobRunner) CheckLedgerConsistency() {
	jr.runWithRecovery("CheckLedgerConsistency", func() {
		ctx := context.Background()

		trips, err := jr.store.TripRepository.List(ctx)
		if err != nil {
			logger.Error("Failed to list trips", "error", err)
			return
		}

		tripsChecked := 0
		driftsFound := 0
		for _, trip := range trips {
			drifts, err := jr.checkTrip(ctx, trip)
			if err != nil {
				logger.Error("Failed to check trip ledger",
					"trip_id", trip.ID,
					"trip_name", trip.Name,
					"error", err)
				continue
			}
			tripsChecked++
			driftsFound += drifts
		}

		logger.Info("Ledger consistency check completed",
			"trips_checked", tripsChecked,
			"drifts_found", driftsFound)
	})
}

func (jr *JobRunner) checkTrip(ctx context.Context, trip domain.Trip) (int, error) {
	expenses, err := jr.store.ExpenseRepository.ListByTrip(ctx, trip.ID)
	if err != nil {
		return 0, err
	}
	splits, err := jr.store.ExpenseRepository.ListSplitsByTrip(ctx, trip.ID)
	if err != nil {
		return 0, err
	}

	splitsByExpense := make(map[int32][]domain.ExpenseSplit)
	for _, s := range splits {
		splitsByExpense[s.ExpenseID] = append(splitsByExpense[s.ExpenseID], s)
	}

	drifts := 0
	totalExpensed := decimal.Zero
	totalSplit := decimal.Zero
	for _, expense := range expenses {
		expenseSplits := splitsByExpense[expense.ID]
		if err := split.CheckSum(&expense, expenseSplits); err != nil {
			drifts++
			logger.Inconsistency("expense splits drifted from expense amount",
				"trip_id", trip.ID,
				"expense_id", expense.ID,
				"expense_amount", expense.Amount.String(),
				"error", err)
		}
		if len(expenseSplits) == 0 {
			// Emptied activity expense, settled history. Not part of
			// the conservation total.
			continue
		}
		totalExpensed = totalExpensed.Add(expense.Amount)
		for _, s := range expenseSplits {
			totalSplit = totalSplit.Add(s.Amount)
		}
	}

	tolerance := split.SumTolerance(len(expenses))
	if totalExpensed.Sub(totalSplit).Abs().GreaterThan(tolerance) {
		drifts++
		logger.Inconsistency("trip ledger does not conserve money",
			"trip_id", trip.ID,
			"total_expensed", totalExpensed.String(),
			"total_split", totalSplit.String())
	}

	activityDrifts, err := jr.checkPrepaidActivities(ctx, trip, splitsByExpense)
	if err != nil {
		return drifts, err
	}
	return drifts + activityDrifts, nil
}

// checkPrepaidActivities verifies that each shared prepaid expense's
// split set still matches the activity's GOING set. A missed RSVP
// recalculation shows up here.
func (jr *JobRunner) checkPrepaidActivities(ctx context.Context, trip domain.Trip, splitsByExpense map[int32][]domain.ExpenseSplit) (int, error) {
	activities, err := jr.store.ActivityRepository.ListByTrip(ctx, trip.ID)
	if err != nil {
		return 0, err
	}

	drifts := 0
	for _, activity := range activities {
		if activity.PaymentType != domain.PaymentTypePrepaid || !activity.Cost.IsPositive() {
			continue
		}

		expense, err := jr.store.ExpenseRepository.GetActivityExpense(ctx, activity.ID)
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			continue // no RSVPs yet, nothing derived
		}
		if err != nil {
			return drifts, err
		}

		going, err := jr.store.ActivityRepository.ListGoingUserIDs(ctx, activity.ID)
		if err != nil {
			return drifts, err
		}

		splitUsers := make(map[int32]bool)
		for _, s := range splitsByExpense[expense.ID] {
			splitUsers[s.UserID] = true
		}
		matched := len(splitUsers) == len(going)
		for _, userID := range going {
			if !splitUsers[userID] {
				matched = false
			}
		}
		if !matched {
			drifts++
			logger.Inconsistency("prepaid activity splits drifted from GOING set",
				"trip_id", trip.ID,
				"activity_id", activity.ID,
				"expense_id", expense.ID,
				"going", len(going),
				"splits", len(splitUsers))
		}
	}
	return drifts, nil
}

// ExpirePaymentLinks clears payment links on pending settlements older
// than the configured TTL. The settlements themselves stay pending.
func (jr *JobRunner) ExpirePaymentLinks() {
	jr.runWithRecovery("ExpirePaymentLinks", func() {
		ctx := context.Background()

		ttl := time.Duration(jr.config.Scheduler.PaymentLinkTTLHours) * time.Hour
		cutoff := time.Now().Add(-ttl)

		cleared, err := jr.store.SettlementRepository.ClearExpiredPaymentLinks(ctx, cutoff)
		if err != nil {
			logger.Error("Failed to expire payment links", "error", err)
			return
		}

		logger.Info("Expired payment links cleared",
			"count", cleared,
			"cutoff", cutoff.Format(time.RFC3339))
	})
}
