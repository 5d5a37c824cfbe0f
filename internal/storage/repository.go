// Package storage provides the SQLite-backed repository for users and
// expenses.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"splitledger/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if necessary) the database at dbPath
// and applies pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateUser inserts a new user row. Unique violations on name or email
// map to the corresponding sentinel errors.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err, "users.email") {
			return core.ErrEmailExists
		}
		if isUniqueViolation(err, "users.name") {
			return core.ErrNameExists
		}
		return fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "user_id", u.ID, "name", u.Name)
	return nil
}

// GetUserByEmail returns the user with the given email, or
// core.ErrUserNotFound.
func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.getUser(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`, email)
}

// GetUserByID returns the user with the given ID, or core.ErrUserNotFound.
func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (core.User, error) {
	return r.getUser(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?`, id)
}

func (r *SQLiteRepository) getUser(ctx context.Context, query string, arg any) (core.User, error) {
	var u core.User
	var createdAt int64
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return u, nil
}

// ListUsers returns all registered users ordered by name.
func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var u core.User
		var createdAt int64
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &createdAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.CreatedAt = time.Unix(createdAt, 0).UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// CountUsers returns the number of registered users.
func (r *SQLiteRepository) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// InsertExpense persists a new expense row.
func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, description, amount_cents, category, is_shared, paid_by, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Description, e.Amount.Cents, string(e.Category),
		boolToInt(e.IsShared), e.UserID, e.UserID, e.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"expense_id", e.ID,
		"expense_description", e.Description,
		"amount_cents", e.Amount.Cents,
		"category", e.Category,
		"is_shared", e.IsShared)
	return nil
}

// UpdateExpense replaces all mutable fields of the expense with the given
// ID. Returns core.ErrExpenseNotFound when no row matches.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, id string, in core.ExpenseInput) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses
		 SET description = ?, amount_cents = ?, category = ?, is_shared = ?, paid_by = ?, user_id = ?
		 WHERE id = ?`,
		in.Description, in.Amount.Cents, string(in.Category),
		boolToInt(in.IsShared), in.PaidBy, in.PaidBy, id,
	)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update expense rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrExpenseNotFound
	}
	return nil
}

// DeleteExpense removes the expense with the given ID. Returns
// core.ErrExpenseNotFound when no row matches. Deletion is physical.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrExpenseNotFound
	}
	return nil
}

// GetExpense returns a single expense by ID with the payer name resolved,
// or core.ErrExpenseNotFound.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT e.id, e.description, e.amount_cents, e.category, e.is_shared,
		        COALESCE(u.name, 'Unknown'), e.user_id, e.created_at
		 FROM expenses e
		 LEFT JOIN users u ON u.id = e.user_id
		 WHERE e.id = ?`, id)

	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// ListVisibleExpenses returns every expense that is shared or owned by
// userID, newest first, with the payer display name resolved ("Unknown"
// when the user row is gone).
func (r *SQLiteRepository) ListVisibleExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.description, e.amount_cents, e.category, e.is_shared,
		        COALESCE(u.name, 'Unknown'), e.user_id, e.created_at
		 FROM expenses e
		 LEFT JOIN users u ON u.id = e.user_id
		 WHERE e.is_shared = 1 OR e.user_id = ?
		 ORDER BY e.created_at DESC, e.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list visible expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

// MonthlyTotals sums the amounts of userID's own expenses per calendar
// month of the given year. Months without data are absent; callers
// backfill with core.FillMonths. Month indexes are 0-11.
func (r *SQLiteRepository) MonthlyTotals(ctx context.Context, year int, userID string) ([]core.MonthlyExpense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT CAST(strftime('%m', created_at, 'unixepoch') AS INTEGER) - 1 AS month,
		        SUM(amount_cents)
		 FROM expenses
		 WHERE CAST(strftime('%Y', created_at, 'unixepoch') AS INTEGER) = ? AND user_id = ?
		 GROUP BY month
		 ORDER BY month`, year, userID)
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	defer rows.Close()

	var totals []core.MonthlyExpense
	for rows.Next() {
		var m core.MonthlyExpense
		if err := rows.Scan(&m.Month, &m.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		totals = append(totals, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly totals: %w", err)
	}
	return totals, nil
}

// CategoryTotals sums the amounts of userID's own expenses per category
// for the given year, largest first.
func (r *SQLiteRepository) CategoryTotals(ctx context.Context, year int, userID string) ([]core.CategoryExpense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, SUM(amount_cents) AS total
		 FROM expenses
		 WHERE CAST(strftime('%Y', created_at, 'unixepoch') AS INTEGER) = ? AND user_id = ?
		 GROUP BY category
		 ORDER BY total DESC`, year, userID)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	var totals []core.CategoryExpense
	for rows.Next() {
		var c core.CategoryExpense
		var category string
		if err := rows.Scan(&category, &c.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		c.Category = core.Category(category)
		totals = append(totals, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	return totals, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var e core.Expense
	var category string
	var isShared int
	var createdAt int64
	if err := row.Scan(&e.ID, &e.Description, &e.Amount.Cents, &category,
		&isShared, &e.PaidByName, &e.UserID, &createdAt); err != nil {
		return core.Expense{}, err
	}
	e.Category = core.Category(category)
	e.IsShared = isShared != 0
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	return e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}
