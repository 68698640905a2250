package postgres

import (
	"context"
	"database/sql"
	"errors"

	"tripsplit-backend/internal/domain"
	"tripsplit-backend/internal/repository"
)

type memberRepository struct {
	db *sql.DB
}

func NewMemberRepository(db *sql.DB) repository.MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) GetMember(ctx context.Context, tripID, userID int32) (*domain.Member, error) {
	query := `SELECT tm.trip_id, tm.user_id, COALESCE(u.email, ''), tm.is_admin, tm.status, COALESCE(tm.rsvp_status, '')
	          FROM trip_members tm
	          LEFT JOIN users u ON u.id = tm.user_id
	          WHERE tm.trip_id = $1 AND tm.user_id = $2`

	member := &domain.Member{}
	err := r.db.QueryRowContext(ctx, query, tripID, userID).Scan(
		&member.TripID, &member.UserID, &member.Email, &member.IsAdmin, &member.Status, &member.RSVPStatus,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("member", userID)
	}
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (r *memberRepository) ListByTrip(ctx context.Context, tripID int32) ([]domain.Member, error) {
	query := `SELECT tm.trip_id, tm.user_id, COALESCE(u.email, ''), tm.is_admin, tm.status, COALESCE(tm.rsvp_status, '')
	          FROM trip_members tm
	          LEFT JOIN users u ON u.id = tm.user_id
	          WHERE tm.trip_id = $1 ORDER BY tm.user_id`

	rows, err := r.db.QueryContext(ctx, query, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.TripID, &m.UserID, &m.Email, &m.IsAdmin, &m.Status, &m.RSVPStatus); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
