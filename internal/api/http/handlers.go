// Package http exposes the ledger's operations over a thin JSON API.
// Authentication lives in front of this service; the acting user id
// arrives in the X-User-ID header.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"tripsplit-backend/internal/config"
	"tripsplit-backend/internal/domain"
	"tripsplit-backend/internal/logger"
	"tripsplit-backend/internal/ratelimit"
	"tripsplit-backend/internal/service"
)

type Handler struct {
	ledgerSvc        service.LedgerService
	balanceSvc       service.BalanceService
	settlementSvc    service.SettlementService
	participationSvc service.ParticipationService
	membershipSvc    service.MembershipService
	limiter          ratelimit.Limiter
	rateCfg          config.RateLimitConfig
}

func NewHandler(
	ledgerSvc service.LedgerService,
	balanceSvc service.BalanceService,
	settlementSvc service.SettlementService,
	participationSvc service.ParticipationService,
	membershipSvc service.MembershipService,
	limiter ratelimit.Limiter,
	rateCfg config.RateLimitConfig,
) *Handler {
	return &Handler{
		ledgerSvc:        ledgerSvc,
		balanceSvc:       balanceSvc,
		settlementSvc:    settlementSvc,
		participationSvc: participationSvc,
		membershipSvc:    membershipSvc,
		limiter:          limiter,
		rateCfg:          rateCfg,
	}
}

// Register mounts all routes on the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/trips/{tripID}/expenses", h.CreateExpense).Methods(http.MethodPost)
	r.HandleFunc("/trips/{tripID}/expenses", h.ListExpenses).Methods(http.MethodGet)
	r.HandleFunc("/expenses/{expenseID}", h.UpdateExpense).Methods(http.MethodPut)
	r.HandleFunc("/expenses/{expenseID}", h.DeleteExpense).Methods(http.MethodDelete)
	r.HandleFunc("/expenses/{expenseID}/splits", h.AddExpenseSplit).Methods(http.MethodPost)

	r.HandleFunc("/trips/{tripID}/balances", h.GetBalances).Methods(http.MethodGet)

	r.HandleFunc("/trips/{tripID}/settlements", h.InitiateSettlement).Methods(http.MethodPost)
	r.HandleFunc("/trips/{tripID}/settlements", h.ListSettlements).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripID}/settlements/plan", h.GetSettlementPlan).Methods(http.MethodGet)
	r.HandleFunc("/trips/{tripID}/settlements/recommendations", h.GetRecommendations).Methods(http.MethodGet)
	r.HandleFunc("/settlements/{settlementID}/confirm", h.ConfirmSettlement).Methods(http.MethodPost)
	r.HandleFunc("/settlements/{settlementID}/reject", h.RejectSettlement).Methods(http.MethodPost)

	r.HandleFunc("/trips/{tripID}/members/{userID}/removal-eligibility", h.GetRemovalEligibility).Methods(http.MethodGet)

	r.HandleFunc("/activities/{activityID}/rsvp", h.ActivityRSVPChanged).Methods(http.MethodPost)
}

type createExpenseRequest struct {
	Title      string          `json:"title"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Category   string          `json:"category"`
	PaidBy     int32           `json:"paid_by"`
	ActivityID *int32          `json:"activity_id,omitempty"`
	Splits     []struct {
		UserID int32           `json:"user_id"`
		Amount decimal.Decimal `json:"amount"`
	} `json:"splits"`
}

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathID(r, "tripID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req createExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewValidationError("invalid request body: %v", err))
		return
	}

	in := service.CreateExpenseInput{
		TripID:     tripID,
		Title:      req.Title,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Category:   req.Category,
		PaidBy:     req.PaidBy,
		ActivityID: req.ActivityID,
	}
	for _, s := range req.Splits {
		in.Splits = append(in.Splits, service.SplitShare{UserID: s.UserID, Amount: s.Amount})
	}

	expense, err := h.ledgerSvc.CreateExpense(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}

func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathID(r, "tripID")
	if err != nil {
		writeError(w, err)
		return
	}

	expenses, splits, err := h.ledgerSvc.ListExpenses(r.Context(), tripID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"expenses": expenses,
		"splits":   splits,
	})
}

func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	expenseID, err := pathID(r, "expenseID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req createExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewValidationError("invalid request body: %v", err))
		return
	}

	expense, err := h.ledgerSvc.UpdateExpense(r.Context(), service.UpdateExpenseInput{
		ExpenseID: expenseID,
		Title:     req.Title,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Category:  req.Category,
		PaidBy:    req.PaidBy,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	expenseID, err := pathID(r, "expenseID")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.ledgerSvc.DeleteExpense(r.Context(), expenseID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addSplitRequest struct {
	UserID int32           `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) AddExpenseSplit(w http.ResponseWriter, r *http.Request) {
	expenseID, err := pathID(r, "expenseID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req addSplitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewValidationError("invalid request body: %v", err))
		return
	}

	split, err := h.ledgerSvc.AddExpenseSplit(r.Context(), expenseID, req.UserID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, split)
}

func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathID(r, "tripID")
	if err != nil {
		writeError(w, err)
		return
	}

	balances, err := h.balanceSvc.CalculateBalances(r.Context(), tripID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

type initiateSettlementRequest struct {
	PayeeID       int32           `json:"payee_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method,omitempty"`
}

func (h *Handler) InitiateSettlement(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathID(r, "tripID")
	if err != nil {
		writeError(w, err)
		return
	}
	payerID, err := actingUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.limiter != nil {
		key := fmt.Sprintf("settlement-initiate:%d", payerID)
		window := time.Duration(h.rateCfg.WindowMinutes) * time.Minute
		allowed, err := h.limiter.Allow(r.Context(), key, h.rateCfg.SettlementInitiations, window)
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request", "error", err)
		} else if !allowed {
			http.Error(w, "too many settlement requests, slow down", http.StatusTooManyRequests)
			return
		}
	}

	var req initiateSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewValidationError("invalid request body: %v", err))
		return
	}

	settlement, err := h.settlementSvc.Initiate(r.Context(), tripID, payerID, req.PayeeID, req.Amount, req.PaymentMethod)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, settlement)
}

func (h *Handler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathID(r, "tripID")
	if err != nil {
		writeError(w, err)
		return
	}
	settlements, err := h.settlementSvc.List(r.Context(), tripID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlements)
}

func (h *Handler) GetSettlementPlan(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathID(r, "tripID")
	if err != nil {
		writeError(w, err)
		return
	}
	plan, err := h.settlementSvc.Optimize(r.Context(), tripID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathID(r, "tripID")
	if err != nil {
		writeError(w, err)
		return
	}
	userID, err := actingUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	recommendations, err := h.settlementSvc.RecommendationsFor(r.Context(), tripID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recommendations)
}

func (h *Handler) ConfirmSettlement(w http.ResponseWriter, r *http.Request) {
	h.resolveSettlement(w, r, true)
}

func (h *Handler) RejectSettlement(w http.ResponseWriter, r *http.Request) {
	h.resolveSettlement(w, r, false)
}

func (h *Handler) resolveSettlement(w http.ResponseWriter, r *http.Request, confirm bool) {
	settlementID, err := pathID(r, "settlementID")
	if err != nil {
		writeError(w, err)
		return
	}
	actorID, err := actingUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var settlement *domain.Settlement
	if confirm {
		settlement, err = h.settlementSvc.Confirm(r.Context(), settlementID, actorID)
	} else {
		settlement, err = h.settlementSvc.Reject(r.Context(), settlementID, actorID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlement)
}

func (h *Handler) GetRemovalEligibility(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathID(r, "tripID")
	if err != nil {
		writeError(w, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}

	analysis, err := h.membershipSvc.AnalyzeRemovalEligibility(r.Context(), tripID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// ActivityRSVPChanged is the fire-and-forget trigger into the split
// recalculator. The RSVP itself is already persisted upstream, so
// genuine recalculation failures are reported for reconciliation and
// the caller still gets 202; rejected input (bad status, unknown
// activity) is the caller's fault and maps to a client error.
func (h *Handler) ActivityRSVPChanged(w http.ResponseWriter, r *http.Request) {
	activityID, err := pathID(r, "activityID")
	if err != nil {
		writeError(w, err)
		return
	}

	var rsvp domain.ActivityRSVP
	if err := json.NewDecoder(r.Body).Decode(&rsvp); err != nil {
		writeError(w, domain.NewValidationError("invalid request body: %v", err))
		return
	}
	rsvp.ActivityID = activityID

	if err := h.participationSvc.OnActivityRSVPChanged(r.Context(), rsvp.ActivityID, rsvp.UserID, rsvp.Status); err != nil {
		var validationErr *domain.ValidationError
		var notFoundErr *domain.NotFoundError
		if errors.As(err, &validationErr) || errors.As(err, &notFoundErr) {
			writeError(w, err)
			return
		}
		logger.Error("RSVP split recalculation failed", "activityID", rsvp.ActivityID, "userID", rsvp.UserID, "error", err)
	}
	w.WriteHeader(http.StatusAccepted)
}

func pathID(r *http.Request, name string) (int32, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("invalid %s: %q", name, raw)
	}
	return int32(id), nil
}

func actingUser(r *http.Request) (int32, error) {
	raw := r.Header.Get("X-User-ID")
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("missing or invalid X-User-ID header")
	}
	return int32(id), nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var (
		validationErr    *domain.ValidationError
		notFoundErr      *domain.NotFoundError
		conflictErr      *domain.ConflictError
		inconsistencyErr *domain.InconsistencyError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		status = http.StatusNotFound
	case errors.As(err, &conflictErr):
		status = http.StatusConflict
	case errors.As(err, &inconsistencyErr):
		// Surfaced, never masked as success.
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
