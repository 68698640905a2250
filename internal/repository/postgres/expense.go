package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tripsplit-backend/internal/domain"
	"tripsplit-backend/internal/logger"
	"tripsplit-backend/internal/repository"
)

type expenseRepository struct {
	db *sql.DB
}

func NewExpenseRepository(db *sql.DB) repository.ExpenseRepository {
	return &expenseRepository{db: db}
}

const expenseColumns = `id, trip_id, title, amount, COALESCE(currency, ''), COALESCE(category, ''),
	       paid_by, activity_id, is_settled, created_at`

func scanExpense(row interface{ Scan(...any) error }, e *domain.Expense) error {
	return row.Scan(
		&e.ID, &e.TripID, &e.Title, &e.Amount, &e.Currency, &e.Category,
		&e.PaidBy, &e.ActivityID, &e.IsSettled, &e.CreatedAt,
	)
}

// CreateWithSplits inserts the expense and all of its splits in one
// transaction, so no reader ever observes the expense without them.
func (r *expenseRepository) CreateWithSplits(ctx context.Context, expense *domain.Expense, splits []domain.ExpenseSplit) error {
	logger.EnterMethod("expenseRepository.CreateWithSplits", "tripID", expense.TripID, "paidBy", expense.PaidBy, "splits", len(splits))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.ExitMethodWithError("expenseRepository.CreateWithSplits", err, "tripID", expense.TripID)
		return err
	}
	defer tx.Rollback()

	if err := insertExpenseTx(ctx, tx, expense); err != nil {
		logger.ExitMethodWithError("expenseRepository.CreateWithSplits", err, "tripID", expense.TripID)
		return err
	}

	if err := insertSplits(ctx, tx, expense.ID, splits); err != nil {
		logger.ExitMethodWithError("expenseRepository.CreateWithSplits", err, "expenseID", expense.ID)
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.ExitMethodWithError("expenseRepository.CreateWithSplits", err, "expenseID", expense.ID)
		return err
	}
	for i := range splits {
		splits[i].ExpenseID = expense.ID
	}

	logger.ExitMethod("expenseRepository.CreateWithSplits", "expenseID", expense.ID)
	return nil
}

func insertExpenseTx(ctx context.Context, tx *sql.Tx, expense *domain.Expense) error {
	query := `
		INSERT INTO expenses (trip_id, title, amount, currency, category, paid_by, activity_id, is_settled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	return tx.QueryRowContext(ctx, query,
		expense.TripID, expense.Title, expense.Amount, expense.Currency, expense.Category,
		expense.PaidBy, expense.ActivityID, expense.IsSettled, time.Now(),
	).Scan(&expense.ID, &expense.CreatedAt)
}

func insertSplits(ctx context.Context, tx *sql.Tx, expenseID int32, splits []domain.ExpenseSplit) error {
	query := `INSERT INTO expense_splits (expense_id, user_id, amount, is_paid) VALUES ($1, $2, $3, $4) RETURNING id`
	for i := range splits {
		err := tx.QueryRowContext(ctx, query, expenseID, splits[i].UserID, splits[i].Amount, splits[i].IsPaid).Scan(&splits[i].ID)
		if err != nil {
			return fmt.Errorf("failed to insert split for user %d: %w", splits[i].UserID, err)
		}
	}
	return nil
}

func (r *expenseRepository) GetByID(ctx context.Context, id int32) (*domain.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1`

	expense := &domain.Expense{}
	err := scanExpense(r.db.QueryRowContext(ctx, query, id), expense)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("expense", id)
	}
	if err != nil {
		return nil, err
	}
	return expense, nil
}

func (r *expenseRepository) Update(ctx context.Context, expense *domain.Expense) error {
	logger.EnterMethod("expenseRepository.Update", "expenseID", expense.ID)

	query := `UPDATE expenses SET title = $1, amount = $2, currency = $3, category = $4, paid_by = $5, is_settled = $6 WHERE id = $7`
	result, err := r.db.ExecContext(ctx, query,
		expense.Title, expense.Amount, expense.Currency, expense.Category, expense.PaidBy, expense.IsSettled, expense.ID,
	)
	if err != nil {
		logger.ExitMethodWithError("expenseRepository.Update", err, "expenseID", expense.ID)
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.NewNotFoundError("expense", expense.ID)
	}

	logger.ExitMethod("expenseRepository.Update", "expenseID", expense.ID)
	return nil
}

// DeleteWithSplits removes the expense and its splits in one
// transaction. Deleting a missing expense reports not found.
func (r *expenseRepository) DeleteWithSplits(ctx context.Context, id int32) error {
	logger.EnterMethod("expenseRepository.DeleteWithSplits", "expenseID", id)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.ExitMethodWithError("expenseRepository.DeleteWithSplits", err, "expenseID", id)
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM expense_splits WHERE expense_id = $1`, id); err != nil {
		logger.ExitMethodWithError("expenseRepository.DeleteWithSplits", err, "expenseID", id)
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		logger.ExitMethodWithError("expenseRepository.DeleteWithSplits", err, "expenseID", id)
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.NewNotFoundError("expense", id)
	}

	if err := tx.Commit(); err != nil {
		logger.ExitMethodWithError("expenseRepository.DeleteWithSplits", err, "expenseID", id)
		return err
	}

	logger.ExitMethod("expenseRepository.DeleteWithSplits", "expenseID", id)
	return nil
}

func (r *expenseRepository) ListByTrip(ctx context.Context, tripID int32) ([]domain.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE trip_id = $1 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []domain.Expense
	for rows.Next() {
		var e domain.Expense
		if err := scanExpense(rows, &e); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (r *expenseRepository) CreateSplit(ctx context.Context, split *domain.ExpenseSplit) error {
	query := `INSERT INTO expense_splits (expense_id, user_id, amount, is_paid) VALUES ($1, $2, $3, $4) RETURNING id`
	return r.db.QueryRowContext(ctx, query, split.ExpenseID, split.UserID, split.Amount, split.IsPaid).Scan(&split.ID)
}

func (r *expenseRepository) ListSplits(ctx context.Context, expenseID int32) ([]domain.ExpenseSplit, error) {
	query := `SELECT id, expense_id, user_id, amount, is_paid FROM expense_splits WHERE expense_id = $1 ORDER BY user_id`
	return r.querySplits(ctx, query, expenseID)
}

func (r *expenseRepository) ListSplitsByTrip(ctx context.Context, tripID int32) ([]domain.ExpenseSplit, error) {
	query := `SELECT s.id, s.expense_id, s.user_id, s.amount, s.is_paid
	          FROM expense_splits s
	          JOIN expenses e ON e.id = s.expense_id
	          WHERE e.trip_id = $1 ORDER BY s.expense_id, s.user_id`
	return r.querySplits(ctx, query, tripID)
}

func (r *expenseRepository) querySplits(ctx context.Context, query string, arg any) ([]domain.ExpenseSplit, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var splits []domain.ExpenseSplit
	for rows.Next() {
		var s domain.ExpenseSplit
		if err := rows.Scan(&s.ID, &s.ExpenseID, &s.UserID, &s.Amount, &s.IsPaid); err != nil {
			return nil, err
		}
		splits = append(splits, s)
	}
	return splits, rows.Err()
}

// ReplaceSplits swaps the full split set of an expense in one
// transaction, locking the expense row first so concurrent
// replacements serialize.
func (r *expenseRepository) ReplaceSplits(ctx context.Context, expenseID int32, splits []domain.ExpenseSplit) error {
	logger.EnterMethod("expenseRepository.ReplaceSplits", "expenseID", expenseID, "splits", len(splits))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.ExitMethodWithError("expenseRepository.ReplaceSplits", err, "expenseID", expenseID)
		return err
	}
	defer tx.Rollback()

	if err := lockExpense(ctx, tx, expenseID); err != nil {
		logger.ExitMethodWithError("expenseRepository.ReplaceSplits", err, "expenseID", expenseID)
		return err
	}

	if err := replaceSplitsTx(ctx, tx, expenseID, splits); err != nil {
		logger.ExitMethodWithError("expenseRepository.ReplaceSplits", err, "expenseID", expenseID)
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.ExitMethodWithError("expenseRepository.ReplaceSplits", err, "expenseID", expenseID)
		return err
	}

	logger.ExitMethod("expenseRepository.ReplaceSplits", "expenseID", expenseID)
	return nil
}

func lockExpense(ctx context.Context, tx *sql.Tx, expenseID int32) error {
	var id int32
	err := tx.QueryRowContext(ctx, `SELECT id FROM expenses WHERE id = $1 FOR UPDATE`, expenseID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFoundError("expense", expenseID)
	}
	return err
}

func replaceSplitsTx(ctx context.Context, tx *sql.Tx, expenseID int32, splits []domain.ExpenseSplit) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM expense_splits WHERE expense_id = $1`, expenseID); err != nil {
		return err
	}
	return insertSplits(ctx, tx, expenseID, splits)
}

func (r *expenseRepository) GetActivityExpense(ctx context.Context, activityID int32) (*domain.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE activity_id = $1 ORDER BY id LIMIT 1`

	expense := &domain.Expense{}
	err := scanExpense(r.db.QueryRowContext(ctx, query, activityID), expense)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("activity expense", activityID)
	}
	if err != nil {
		return nil, err
	}
	return expense, nil
}

func (r *expenseRepository) GetActivityExpenseForUser(ctx context.Context, activityID, userID int32) (*domain.Expense, error) {
	query := `SELECT ` + qualifyExpenseColumns("e") + `
	          FROM expenses e
	          JOIN expense_splits s ON s.expense_id = e.id
	          WHERE e.activity_id = $1 AND s.user_id = $2
	          ORDER BY e.id LIMIT 1`

	expense := &domain.Expense{}
	err := scanExpense(r.db.QueryRowContext(ctx, query, activityID, userID), expense)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("activity expense", activityID)
	}
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// EnsureActivityExpense gets or creates the shared expense of a
// prepaid activity. The activity row lock serializes concurrent first
// RSVPs, so the activity owns exactly one expense no matter how the
// calls interleave.
func (r *expenseRepository) EnsureActivityExpense(ctx context.Context, expense *domain.Expense) error {
	if expense.ActivityID == nil {
		return domain.NewValidationError("expense is not linked to an activity")
	}
	activityID := *expense.ActivityID
	logger.EnterMethod("expenseRepository.EnsureActivityExpense", "activityID", activityID)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.ExitMethodWithError("expenseRepository.EnsureActivityExpense", err, "activityID", activityID)
		return err
	}
	defer tx.Rollback()

	if err := lockActivity(ctx, tx, activityID); err != nil {
		logger.ExitMethodWithError("expenseRepository.EnsureActivityExpense", err, "activityID", activityID)
		return err
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE activity_id = $1 ORDER BY id LIMIT 1`
	err = scanExpense(tx.QueryRowContext(ctx, query, activityID), expense)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		logger.ExitMethodWithError("expenseRepository.EnsureActivityExpense", err, "activityID", activityID)
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		if err := insertExpenseTx(ctx, tx, expense); err != nil {
			logger.ExitMethodWithError("expenseRepository.EnsureActivityExpense", err, "activityID", activityID)
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		logger.ExitMethodWithError("expenseRepository.EnsureActivityExpense", err, "activityID", activityID)
		return err
	}

	logger.ExitMethod("expenseRepository.EnsureActivityExpense", "activityID", activityID, "expenseID", expense.ID)
	return nil
}

// EnsureActivityExpenseForUser gets or creates the per-person expense
// owed by the split's user, holding the activity row lock so one user
// RSVPing twice concurrently cannot end up owing the fee twice.
func (r *expenseRepository) EnsureActivityExpenseForUser(ctx context.Context, expense *domain.Expense, split domain.ExpenseSplit) (bool, error) {
	if expense.ActivityID == nil {
		return false, domain.NewValidationError("expense is not linked to an activity")
	}
	activityID := *expense.ActivityID
	logger.EnterMethod("expenseRepository.EnsureActivityExpenseForUser", "activityID", activityID, "userID", split.UserID)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.ExitMethodWithError("expenseRepository.EnsureActivityExpenseForUser", err, "activityID", activityID)
		return false, err
	}
	defer tx.Rollback()

	if err := lockActivity(ctx, tx, activityID); err != nil {
		logger.ExitMethodWithError("expenseRepository.EnsureActivityExpenseForUser", err, "activityID", activityID)
		return false, err
	}

	query := `SELECT ` + qualifyExpenseColumns("e") + `
	          FROM expenses e
	          JOIN expense_splits s ON s.expense_id = e.id
	          WHERE e.activity_id = $1 AND s.user_id = $2
	          ORDER BY e.id LIMIT 1`
	err = scanExpense(tx.QueryRowContext(ctx, query, activityID, split.UserID), expense)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		logger.ExitMethodWithError("expenseRepository.EnsureActivityExpenseForUser", err, "activityID", activityID)
		return false, err
	}

	created := false
	if errors.Is(err, sql.ErrNoRows) {
		if err := insertExpenseTx(ctx, tx, expense); err != nil {
			logger.ExitMethodWithError("expenseRepository.EnsureActivityExpenseForUser", err, "activityID", activityID)
			return false, err
		}
		if err := insertSplits(ctx, tx, expense.ID, []domain.ExpenseSplit{split}); err != nil {
			logger.ExitMethodWithError("expenseRepository.EnsureActivityExpenseForUser", err, "expenseID", expense.ID)
			return false, err
		}
		created = true
	}

	if err := tx.Commit(); err != nil {
		logger.ExitMethodWithError("expenseRepository.EnsureActivityExpenseForUser", err, "activityID", activityID)
		return false, err
	}

	logger.ExitMethod("expenseRepository.EnsureActivityExpenseForUser", "activityID", activityID, "expenseID", expense.ID, "created", created)
	return created, nil
}

func lockActivity(ctx context.Context, tx *sql.Tx, activityID int32) error {
	var id int32
	err := tx.QueryRowContext(ctx, `SELECT id FROM activities WHERE id = $1 FOR UPDATE`, activityID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFoundError("activity", activityID)
	}
	return err
}

func qualifyExpenseColumns(alias string) string {
	return alias + `.id, ` + alias + `.trip_id, ` + alias + `.title, ` + alias + `.amount,
	       COALESCE(` + alias + `.currency, ''), COALESCE(` + alias + `.category, ''),
	       ` + alias + `.paid_by, ` + alias + `.activity_id, ` + alias + `.is_settled, ` + alias + `.created_at`
}

// RecalculateActivitySplits reads the activity's current going set and
// rewrites the expense's splits inside a single transaction. The
// expense row lock serializes concurrent RSVP recalculations on the
// same activity, so two racing changes cannot interleave their reads
// and writes.
func (r *expenseRepository) RecalculateActivitySplits(ctx context.Context, expenseID int32, compute func(going []int32) ([]domain.ExpenseSplit, error)) error {
	logger.EnterMethod("expenseRepository.RecalculateActivitySplits", "expenseID", expenseID)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.ExitMethodWithError("expenseRepository.RecalculateActivitySplits", err, "expenseID", expenseID)
		return err
	}
	defer tx.Rollback()

	var activityID sql.NullInt32
	err = tx.QueryRowContext(ctx, `SELECT activity_id FROM expenses WHERE id = $1 FOR UPDATE`, expenseID).Scan(&activityID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFoundError("expense", expenseID)
	}
	if err != nil {
		logger.ExitMethodWithError("expenseRepository.RecalculateActivitySplits", err, "expenseID", expenseID)
		return err
	}
	if !activityID.Valid {
		return domain.NewValidationError("expense %d is not linked to an activity", expenseID)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT user_id FROM activity_rsvps WHERE activity_id = $1 AND status = 'GOING' ORDER BY user_id`,
		activityID.Int32,
	)
	if err != nil {
		logger.ExitMethodWithError("expenseRepository.RecalculateActivitySplits", err, "expenseID", expenseID)
		return err
	}
	var going []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		going = append(going, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	splits, err := compute(going)
	if err != nil {
		logger.ExitMethodWithError("expenseRepository.RecalculateActivitySplits", err, "expenseID", expenseID)
		return err
	}

	if err := replaceSplitsTx(ctx, tx, expenseID, splits); err != nil {
		logger.ExitMethodWithError("expenseRepository.RecalculateActivitySplits", err, "expenseID", expenseID)
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.ExitMethodWithError("expenseRepository.RecalculateActivitySplits", err, "expenseID", expenseID)
		return err
	}

	logger.ExitMethod("expenseRepository.RecalculateActivitySplits", "expenseID", expenseID, "going", len(going), "splits", len(splits))
	return nil
}
