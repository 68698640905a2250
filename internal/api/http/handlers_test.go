package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"tripsplit-backend/internal/config"
	"tripsplit-backend/internal/domain"
	"tripsplit-backend/internal/service"
)

func newTestHandler(
	ledger *MockLedgerService,
	balance *MockBalanceService,
	settlement *MockSettlementService,
	participation *MockParticipationService,
	membership *MockMembershipService,
	allowed bool,
) *mux.Router {
	h := NewHandler(ledger, balance, settlement, participation, membership,
		stubLimiter{allowed: allowed},
		config.RateLimitConfig{SettlementInitiations: 10, WindowMinutes: 10})
	r := mux.NewRouter()
	h.Register(r)
	return r
}

func doJSON(t *testing.T, router *mux.Router, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateExpense(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		ledger := new(MockLedgerService)
		router := newTestHandler(ledger, new(MockBalanceService), new(MockSettlementService),
			new(MockParticipationService), new(MockMembershipService), true)

		ledger.On("CreateExpense", mock.Anything, mock.AnythingOfType("service.CreateExpenseInput")).
			Return(&domain.Expense{ID: 10, TripID: 1, Title: "Dinner"}, nil).Once()

		rec := doJSON(t, router, http.MethodPost, "/trips/1/expenses", "", map[string]any{
			"title": "Dinner", "amount": "50.00", "paid_by": 1,
			"splits": []map[string]any{{"user_id": 1, "amount": "25.00"}, {"user_id": 2, "amount": "25.00"}},
		})
		assert.Equal(t, http.StatusCreated, rec.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("ValidationErrorMapsTo400", func(t *testing.T) {
		ledger := new(MockLedgerService)
		router := newTestHandler(ledger, new(MockBalanceService), new(MockSettlementService),
			new(MockParticipationService), new(MockMembershipService), true)

		ledger.On("CreateExpense", mock.Anything, mock.Anything).
			Return(nil, domain.NewValidationError("expense title is required")).Once()

		rec := doJSON(t, router, http.MethodPost, "/trips/1/expenses", "", map[string]any{"amount": "50.00"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("BadTripIDMapsTo400", func(t *testing.T) {
		router := newTestHandler(new(MockLedgerService), new(MockBalanceService), new(MockSettlementService),
			new(MockParticipationService), new(MockMembershipService), true)

		rec := doJSON(t, router, http.MethodPost, "/trips/abc/expenses", "", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_ErrorMapping(t *testing.T) {
	t.Run("NotFoundMapsTo404", func(t *testing.T) {
		ledger := new(MockLedgerService)
		router := newTestHandler(ledger, new(MockBalanceService), new(MockSettlementService),
			new(MockParticipationService), new(MockMembershipService), true)

		ledger.On("DeleteExpense", mock.Anything, int32(99)).
			Return(domain.NewNotFoundError("expense", 99)).Once()

		rec := doJSON(t, router, http.MethodDelete, "/expenses/99", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("ConflictMapsTo409", func(t *testing.T) {
		ledger := new(MockLedgerService)
		router := newTestHandler(ledger, new(MockBalanceService), new(MockSettlementService),
			new(MockParticipationService), new(MockMembershipService), true)

		ledger.On("DeleteExpense", mock.Anything, int32(10)).
			Return(domain.NewConflictError("expense predates a settlement", nil)).Once()

		rec := doJSON(t, router, http.MethodDelete, "/expenses/10", "", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("UnknownErrorMapsTo500", func(t *testing.T) {
		ledger := new(MockLedgerService)
		router := newTestHandler(ledger, new(MockBalanceService), new(MockSettlementService),
			new(MockParticipationService), new(MockMembershipService), true)

		ledger.On("DeleteExpense", mock.Anything, int32(10)).Return(assert.AnError).Once()

		rec := doJSON(t, router, http.MethodDelete, "/expenses/10", "", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandler_InitiateSettlement(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		settlement := new(MockSettlementService)
		router := newTestHandler(new(MockLedgerService), new(MockBalanceService), settlement,
			new(MockParticipationService), new(MockMembershipService), true)

		settlement.On("Initiate", mock.Anything, int32(1), int32(2), int32(3), money("30.00"), "venmo").
			Return(&domain.Settlement{ID: 5, Status: domain.SettlementStatusPending}, nil).Once()

		rec := doJSON(t, router, http.MethodPost, "/trips/1/settlements", "2", map[string]any{
			"payee_id": 3, "amount": "30.00", "payment_method": "venmo",
		})
		assert.Equal(t, http.StatusCreated, rec.Code)
		settlement.AssertExpectations(t)
	})

	t.Run("MissingUserHeaderMapsTo400", func(t *testing.T) {
		router := newTestHandler(new(MockLedgerService), new(MockBalanceService), new(MockSettlementService),
			new(MockParticipationService), new(MockMembershipService), true)

		rec := doJSON(t, router, http.MethodPost, "/trips/1/settlements", "", map[string]any{"payee_id": 3, "amount": "30.00"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("RateLimitedMapsTo429", func(t *testing.T) {
		settlement := new(MockSettlementService)
		router := newTestHandler(new(MockLedgerService), new(MockBalanceService), settlement,
			new(MockParticipationService), new(MockMembershipService), false)

		rec := doJSON(t, router, http.MethodPost, "/trips/1/settlements", "2", map[string]any{"payee_id": 3, "amount": "30.00"})
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		settlement.AssertNotCalled(t, "Initiate")
	})
}

func TestHandler_ConfirmSettlement(t *testing.T) {
	settlement := new(MockSettlementService)
	router := newTestHandler(new(MockLedgerService), new(MockBalanceService), settlement,
		new(MockParticipationService), new(MockMembershipService), true)

	settlement.On("Confirm", mock.Anything, int32(5), int32(3)).
		Return(&domain.Settlement{ID: 5, Status: domain.SettlementStatusConfirmed}, nil).Once()

	rec := doJSON(t, router, http.MethodPost, "/settlements/5/confirm", "3", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body domain.Settlement
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, domain.SettlementStatusConfirmed, body.Status)
}

// The RSVP trigger is fire-and-forget for genuine recalculation
// failures, since the RSVP itself already stands; rejected input is
// the caller's fault and maps to a client error instead.
func TestHandler_ActivityRSVPChanged(t *testing.T) {
	t.Run("Accepted", func(t *testing.T) {
		participation := new(MockParticipationService)
		router := newTestHandler(new(MockLedgerService), new(MockBalanceService), new(MockSettlementService),
			participation, new(MockMembershipService), true)

		participation.On("OnActivityRSVPChanged", mock.Anything, int32(20), int32(2), domain.RSVPStatusGoing).
			Return(nil).Once()

		rec := doJSON(t, router, http.MethodPost, "/activities/20/rsvp", "", map[string]any{
			"user_id": 2, "status": "GOING",
		})
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("RecalculationFailureStillAccepted", func(t *testing.T) {
		participation := new(MockParticipationService)
		router := newTestHandler(new(MockLedgerService), new(MockBalanceService), new(MockSettlementService),
			participation, new(MockMembershipService), true)

		participation.On("OnActivityRSVPChanged", mock.Anything, int32(20), int32(2), domain.RSVPStatusNotGoing).
			Return(assert.AnError).Once()

		rec := doJSON(t, router, http.MethodPost, "/activities/20/rsvp", "", map[string]any{
			"user_id": 2, "status": "NOT_GOING",
		})
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("UnknownStatusRejected", func(t *testing.T) {
		participation := new(MockParticipationService)
		router := newTestHandler(new(MockLedgerService), new(MockBalanceService), new(MockSettlementService),
			participation, new(MockMembershipService), true)

		participation.On("OnActivityRSVPChanged", mock.Anything, int32(20), int32(2), domain.RSVPStatus("MAYBE")).
			Return(domain.NewValidationError("unknown RSVP status %q", "MAYBE")).Once()

		rec := doJSON(t, router, http.MethodPost, "/activities/20/rsvp", "", map[string]any{
			"user_id": 2, "status": "MAYBE",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MissingActivityRejected", func(t *testing.T) {
		participation := new(MockParticipationService)
		router := newTestHandler(new(MockLedgerService), new(MockBalanceService), new(MockSettlementService),
			participation, new(MockMembershipService), true)

		participation.On("OnActivityRSVPChanged", mock.Anything, int32(99), int32(2), domain.RSVPStatusGoing).
			Return(domain.NewNotFoundError("activity", 99)).Once()

		rec := doJSON(t, router, http.MethodPost, "/activities/99/rsvp", "", map[string]any{
			"user_id": 2, "status": "GOING",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_GetBalances(t *testing.T) {
	balance := new(MockBalanceService)
	router := newTestHandler(new(MockLedgerService), balance, new(MockSettlementService),
		new(MockParticipationService), new(MockMembershipService), true)

	balance.On("CalculateBalances", mock.Anything, int32(1)).
		Return([]domain.MemberBalance{
			{UserID: 1, NetBalance: money("25.00")},
			{UserID: 2, NetBalance: money("-25.00")},
		}, nil).Once()

	rec := doJSON(t, router, http.MethodGet, "/trips/1/balances", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body []domain.MemberBalance
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Len(t, body, 2)
}

func TestHandler_GetRemovalEligibility(t *testing.T) {
	membership := new(MockMembershipService)
	router := newTestHandler(new(MockLedgerService), new(MockBalanceService), new(MockSettlementService),
		new(MockParticipationService), membership, true)

	membership.On("AnalyzeRemovalEligibility", mock.Anything, int32(1), int32(2)).
		Return(&domain.RemovalAnalysis{UserID: 2, CanRemove: false, Reason: "outstanding balance"}, nil).Once()

	rec := doJSON(t, router, http.MethodGet, "/trips/1/members/2/removal-eligibility", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body domain.RemovalAnalysis
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.CanRemove)
}

var _ service.LedgerService = (*MockLedgerService)(nil)
