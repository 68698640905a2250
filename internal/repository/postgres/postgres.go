package postgres

import (
	"database/sql"

	"tripsplit-backend/internal/repository"

	_ "github.com/lib/pq"
)

type Store struct {
	db *sql.DB
	repository.TripRepository
	repository.MemberRepository
	repository.ActivityRepository
	repository.ExpenseRepository
	repository.SettlementRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                   db,
		TripRepository:       NewTripRepository(db),
		MemberRepository:     NewMemberRepository(db),
		ActivityRepository:   NewActivityRepository(db),
		ExpenseRepository:    NewExpenseRepository(db),
		SettlementRepository: NewSettlementRepository(db),
	}
}
