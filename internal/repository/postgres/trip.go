package postgres

import (
	"context"
	"database/sql"
	"errors"

	"tripsplit-backend/internal/domain"
	"tripsplit-backend/internal/repository"
)

type tripRepository struct {
	db *sql.DB
}

func NewTripRepository(db *sql.DB) repository.TripRepository {
	return &tripRepository{db: db}
}

func (r *tripRepository) GetByID(ctx context.Context, id int32) (*domain.Trip, error) {
	query := `SELECT id, name, currency, removal_policy_version, created_at FROM trips WHERE id = $1`

	trip := &domain.Trip{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&trip.ID, &trip.Name, &trip.Currency, &trip.RemovalPolicyVersion, &trip.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("trip", id)
	}
	if err != nil {
		return nil, err
	}
	return trip, nil
}

func (r *tripRepository) List(ctx context.Context) ([]domain.Trip, error) {
	query := `SELECT id, name, currency, removal_policy_version, created_at FROM trips ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []domain.Trip
	for rows.Next() {
		var trip domain.Trip
		if err := rows.Scan(&trip.ID, &trip.Name, &trip.Currency, &trip.RemovalPolicyVersion, &trip.CreatedAt); err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}
