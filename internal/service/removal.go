package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"tripsplit-backend/internal/domain"
	"tripsplit-backend/internal/logger"
	"tripsplit-backend/internal/repository"
	"tripsplit-backend/internal/settle"
)

type membershipService struct {
	tripRepo       repository.TripRepository
	memberRepo     repository.MemberRepository
	activityRepo   repository.ActivityRepository
	expenseRepo    repository.ExpenseRepository
	settlementRepo repository.SettlementRepository
}

func NewMembershipService(
	tripRepo repository.TripRepository,
	memberRepo repository.MemberRepository,
	activityRepo repository.ActivityRepository,
	expenseRepo repository.ExpenseRepository,
	settlementRepo repository.SettlementRepository,
) MembershipService {
	return &membershipService{
		tripRepo:       tripRepo,
		memberRepo:     memberRepo,
		activityRepo:   activityRepo,
		expenseRepo:    expenseRepo,
		settlementRepo: settlementRepo,
	}
}

// removalPolicy decides whether the computed components allow removal.
// Policies are versioned per trip: trips keep the rules they were
// created under, new versions slot in without touching old behavior.
type removalPolicy interface {
	evaluate(analysis *domain.RemovalAnalysis)
}

// legacyRemovalPolicy blocks on any nonzero total balance.
type legacyRemovalPolicy struct{}

func (legacyRemovalPolicy) evaluate(a *domain.RemovalAnalysis) {
	if len(a.PrepaidActivitiesOwed) > 0 {
		a.CanRemove = false
		a.Reason = "member organizes prepaid activities that other participants still owe money on; reassign or cancel them first"
		return
	}
	if a.Balance.Abs().GreaterThan(settle.Epsilon) {
		a.CanRemove = false
		a.Reason = fmt.Sprintf("member has an outstanding balance of %s", a.Balance.StringFixed(2))
		return
	}
	a.CanRemove = true
}

// splitRemovalPolicy checks the manual and prepaid-organizer
// components independently: a member with manual debts settled can
// leave even if activity bookkeeping still references them, as long as
// nobody owes them on activities they organize.
type splitRemovalPolicy struct{}

func (splitRemovalPolicy) evaluate(a *domain.RemovalAnalysis) {
	if len(a.PrepaidActivitiesOwed) > 0 {
		a.CanRemove = false
		a.Reason = "member organizes prepaid activities that other participants still owe money on; reassign or cancel them first"
		return
	}
	if a.ManualExpenseBalance.Abs().GreaterThan(settle.Epsilon) {
		a.CanRemove = false
		a.Reason = fmt.Sprintf("member has an outstanding manual expense balance of %s", a.ManualExpenseBalance.StringFixed(2))
		return
	}
	a.CanRemove = true
}

func policyForVersion(version int16) removalPolicy {
	if version >= domain.RemovalPolicySplit {
		return splitRemovalPolicy{}
	}
	return legacyRemovalPolicy{}
}

// AnalyzeRemovalEligibility computes what a member's departure would
// leave dangling and whether the trip's removal policy allows it.
func (s *membershipService) AnalyzeRemovalEligibility(ctx context.Context, tripID, userID int32) (*domain.RemovalAnalysis, error) {
	logger.EnterMethod("membershipService.AnalyzeRemovalEligibility", "tripID", tripID, "userID", userID)

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		logger.ExitMethodWithError("membershipService.AnalyzeRemovalEligibility", err, "tripID", tripID)
		return nil, err
	}
	if _, err := s.memberRepo.GetMember(ctx, tripID, userID); err != nil {
		logger.ExitMethodWithError("membershipService.AnalyzeRemovalEligibility", err, "tripID", tripID)
		return nil, err
	}

	members, err := s.memberRepo.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.expenseRepo.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	splits, err := s.expenseRepo.ListSplitsByTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	settlements, err := s.settlementRepo.ListByTrip(ctx, tripID,
		[]domain.SettlementStatus{domain.SettlementStatusConfirmed})
	if err != nil {
		return nil, err
	}
	activities, err := s.activityRepo.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	analysis := buildRemovalAnalysis(userID, members, expenses, splits, settlements, activities)
	policyForVersion(trip.RemovalPolicyVersion).evaluate(analysis)

	logger.ExitMethod("membershipService.AnalyzeRemovalEligibility",
		"tripID", tripID, "userID", userID, "canRemove", analysis.CanRemove)
	return analysis, nil
}

// buildRemovalAnalysis is the pure computation: it splits the user's
// balance into manual and activity components and collects the
// activities they organize that others still owe on. Confirmed
// settlements adjust the manual component, since a settlement pays a
// person, not an activity.
func buildRemovalAnalysis(
	userID int32,
	members []domain.Member,
	expenses []domain.Expense,
	splits []domain.ExpenseSplit,
	settlements []domain.Settlement,
	activities []domain.Activity,
) *domain.RemovalAnalysis {
	manualExpenses := make([]domain.Expense, 0, len(expenses))
	activityExpenses := make([]domain.Expense, 0, len(expenses))
	expenseByID := make(map[int32]*domain.Expense, len(expenses))
	for i := range expenses {
		expenseByID[expenses[i].ID] = &expenses[i]
		if expenses[i].IsManual() {
			manualExpenses = append(manualExpenses, expenses[i])
		} else {
			activityExpenses = append(activityExpenses, expenses[i])
		}
	}

	var manualSplits, activitySplits []domain.ExpenseSplit
	for _, sp := range splits {
		expense, ok := expenseByID[sp.ExpenseID]
		if !ok {
			continue // orphaned split, reconciliation job reports these
		}
		if expense.IsManual() {
			manualSplits = append(manualSplits, sp)
		} else {
			activitySplits = append(activitySplits, sp)
		}
	}

	manual := netBalanceOf(userID, computeBalances(members, manualExpenses, manualSplits, settlements))
	prepaid := netBalanceOf(userID, computeBalances(members, activityExpenses, activitySplits, nil))
	totalBalances := computeBalances(members, expenses, splits, settlements)

	return &domain.RemovalAnalysis{
		UserID:                 userID,
		Balance:                netBalanceOf(userID, totalBalances),
		ManualExpenseBalance:   manual,
		PrepaidActivityBalance: prepaid,
		PrepaidActivitiesOwed:  organizerDebts(userID, activities, expenses, splits),
		Suggestions:            settle.RecommendationsFor(totalBalances, userID),
	}
}

func netBalanceOf(userID int32, balances []domain.MemberBalance) decimal.Decimal {
	for _, b := range balances {
		if b.UserID == userID {
			return b.NetBalance
		}
	}
	return decimal.Zero
}

// organizerDebts lists the prepaid activities the user organizes where
// other participants still have unpaid splits.
func organizerDebts(userID int32, activities []domain.Activity, expenses []domain.Expense, splits []domain.ExpenseSplit) []domain.PrepaidActivityDebt {
	organized := make(map[int32]*domain.Activity)
	for i := range activities {
		a := &activities[i]
		if a.CreatedBy == userID && a.PaymentType.DrivesLedger() {
			organized[a.ID] = a
		}
	}
	if len(organized) == 0 {
		return nil
	}

	expenseActivity := make(map[int32]int32) // expense id -> activity id
	for _, e := range expenses {
		if e.ActivityID != nil && e.PaidBy == userID {
			if _, ok := organized[*e.ActivityID]; ok {
				expenseActivity[e.ID] = *e.ActivityID
			}
		}
	}

	outstanding := make(map[int32]decimal.Decimal)
	for _, sp := range splits {
		activityID, ok := expenseActivity[sp.ExpenseID]
		if !ok || sp.IsPaid || sp.UserID == userID {
			continue
		}
		outstanding[activityID] = outstanding[activityID].Add(sp.Amount)
	}

	var debts []domain.PrepaidActivityDebt
	for activityID, amount := range outstanding {
		if amount.Abs().LessThanOrEqual(settle.Epsilon) {
			continue
		}
		debts = append(debts, domain.PrepaidActivityDebt{
			ActivityID:  activityID,
			Title:       organized[activityID].Title,
			Outstanding: amount,
		})
	}
	sort.Slice(debts, func(i, j int) bool { return debts[i].ActivityID < debts[j].ActivityID })
	return debts
}
