package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tripsplit-backend/internal/domain"
	"tripsplit-backend/internal/logger"
	"tripsplit-backend/internal/repository"
)

type settlementRepository struct {
	db *sql.DB
}

func NewSettlementRepository(db *sql.DB) repository.SettlementRepository {
	return &settlementRepository{db: db}
}

const settlementColumns = `id, trip_id, payer_id, payee_id, amount, status,
	       COALESCE(payment_method, ''), COALESCE(payment_link, ''),
	       created_at, confirmed_at, rejected_at`

func scanSettlement(row interface{ Scan(...any) error }, s *domain.Settlement) error {
	return row.Scan(
		&s.ID, &s.TripID, &s.PayerID, &s.PayeeID, &s.Amount, &s.Status,
		&s.PaymentMethod, &s.PaymentLink, &s.CreatedAt, &s.ConfirmedAt, &s.RejectedAt,
	)
}

func (r *settlementRepository) Create(ctx context.Context, settlement *domain.Settlement) error {
	logger.EnterMethod("settlementRepository.Create", "tripID", settlement.TripID, "payerID", settlement.PayerID, "payeeID", settlement.PayeeID)

	query := `
		INSERT INTO settlements (trip_id, payer_id, payee_id, amount, status, payment_method, payment_link, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		settlement.TripID, settlement.PayerID, settlement.PayeeID, settlement.Amount,
		settlement.Status, settlement.PaymentMethod, settlement.PaymentLink, time.Now(),
	).Scan(&settlement.ID, &settlement.CreatedAt)
	if err != nil {
		logger.ExitMethodWithError("settlementRepository.Create", err, "tripID", settlement.TripID)
		return err
	}

	logger.ExitMethod("settlementRepository.Create", "settlementID", settlement.ID)
	return nil
}

func (r *settlementRepository) GetByID(ctx context.Context, id int32) (*domain.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE id = $1`

	settlement := &domain.Settlement{}
	err := scanSettlement(r.db.QueryRowContext(ctx, query, id), settlement)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("settlement", id)
	}
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

func (r *settlementRepository) ListByTrip(ctx context.Context, tripID int32, statuses []domain.SettlementStatus) ([]domain.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE trip_id = $1`
	args := []any{tripID}

	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = fmt.Sprintf("$%d", i+2)
			args = append(args, status)
		}
		query += ` AND status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settlements []domain.Settlement
	for rows.Next() {
		var s domain.Settlement
		if err := scanSettlement(rows, &s); err != nil {
			return nil, err
		}
		settlements = append(settlements, s)
	}
	return settlements, rows.Err()
}

// Transition is a compare-and-swap on the status column: the update
// only lands while the settlement is still pending. A false return
// means someone already moved it, which the service reports as a
// conflict instead of double-applying.
func (r *settlementRepository) Transition(ctx context.Context, id int32, to domain.SettlementStatus, at time.Time) (bool, error) {
	logger.EnterMethod("settlementRepository.Transition", "settlementID", id, "to", to)

	var stampColumn string
	switch to {
	case domain.SettlementStatusConfirmed:
		stampColumn = "confirmed_at"
	case domain.SettlementStatusRejected:
		stampColumn = "rejected_at"
	default:
		return false, domain.NewValidationError("invalid settlement transition target: %s", to)
	}

	query := fmt.Sprintf(
		`UPDATE settlements SET status = $1, %s = $2 WHERE id = $3 AND status = $4`,
		stampColumn,
	)
	result, err := r.db.ExecContext(ctx, query, to, at, id, domain.SettlementStatusPending)
	if err != nil {
		logger.ExitMethodWithError("settlementRepository.Transition", err, "settlementID", id)
		return false, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	logger.ExitMethod("settlementRepository.Transition", "settlementID", id, "applied", n > 0)
	return n > 0, nil
}

func (r *settlementRepository) HasTerminalCreatedAfter(ctx context.Context, tripID int32, t time.Time) (bool, error) {
	return r.existsCreatedAfter(ctx, tripID, t,
		[]domain.SettlementStatus{domain.SettlementStatusConfirmed, domain.SettlementStatusRejected})
}

func (r *settlementRepository) HasConfirmedCreatedAfter(ctx context.Context, tripID int32, t time.Time) (bool, error) {
	return r.existsCreatedAfter(ctx, tripID, t,
		[]domain.SettlementStatus{domain.SettlementStatusConfirmed})
}

func (r *settlementRepository) existsCreatedAfter(ctx context.Context, tripID int32, t time.Time, statuses []domain.SettlementStatus) (bool, error) {
	placeholders := make([]string, len(statuses))
	args := []any{tripID, t}
	for i, status := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, status)
	}

	query := `SELECT EXISTS (
		SELECT 1 FROM settlements
		WHERE trip_id = $1 AND created_at > $2 AND status IN (` + strings.Join(placeholders, ", ") + `)
	)`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&exists)
	return exists, err
}

func (r *settlementRepository) ClearExpiredPaymentLinks(ctx context.Context, before time.Time) (int64, error) {
	query := `UPDATE settlements SET payment_link = ''
	          WHERE status = $1 AND payment_link <> '' AND created_at < $2`

	result, err := r.db.ExecContext(ctx, query, domain.SettlementStatusPending, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
