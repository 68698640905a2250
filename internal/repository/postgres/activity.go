package postgres

import (
	"context"
	"database/sql"
	"errors"

	"tripsplit-backend/internal/domain"
	"tripsplit-backend/internal/repository"
)

type activityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) repository.ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) GetByID(ctx context.Context, id int32) (*domain.Activity, error) {
	query := `SELECT id, trip_id, created_by, title, payment_type, COALESCE(cost, 0)
	          FROM activities WHERE id = $1`

	activity := &domain.Activity{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&activity.ID, &activity.TripID, &activity.CreatedBy, &activity.Title,
		&activity.PaymentType, &activity.Cost,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("activity", id)
	}
	if err != nil {
		return nil, err
	}
	return activity, nil
}

func (r *activityRepository) ListByTrip(ctx context.Context, tripID int32) ([]domain.Activity, error) {
	query := `SELECT id, trip_id, created_by, title, payment_type, COALESCE(cost, 0)
	          FROM activities WHERE trip_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []domain.Activity
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.TripID, &a.CreatedBy, &a.Title, &a.PaymentType, &a.Cost); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func (r *activityRepository) ListGoingUserIDs(ctx context.Context, activityID int32) ([]int32, error) {
	query := `SELECT user_id FROM activity_rsvps WHERE activity_id = $1 AND status = 'GOING' ORDER BY user_id`

	rows, err := r.db.QueryContext(ctx, query, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var userIDs []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}
