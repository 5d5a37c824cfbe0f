// Package services orchestrates expense operations across the SQLite
// repository and the AMQP revalidation bus.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"splitledger/internal/amqp"
	"splitledger/internal/core"
)

// Overview bundles both chart datasets for one year, with the monthly
// buckets backfilled to all twelve months.
type Overview struct {
	Year       int
	Monthly    []core.MonthlyExpense
	Categories []core.CategoryExpense
}

// ExpenseService implements the application's expense operations.
type ExpenseService struct {
	store     Store
	publisher EventPublisher
	ids       IDGenerator
	now       func() time.Time
}

func NewExpenseService(store Store, publisher EventPublisher) *ExpenseService {
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		ids:       UUIDGenerator{},
		now:       time.Now,
	}
}

// GetExpenses returns the expenses visible to userID: shared ones plus
// the user's own, newest first. An empty userID yields an empty result,
// not an error.
func (s *ExpenseService) GetExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	if userID == "" {
		return nil, nil
	}
	expenses, err := s.store.ListVisibleExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// GetSummary computes the caller's dashboard summary over all visible
// expenses. The even-share divisor is the registered-user count.
func (s *ExpenseService) GetSummary(ctx context.Context, userID string) (core.Summary, error) {
	expenses, err := s.GetExpenses(ctx, userID)
	if err != nil {
		return core.Summary{}, err
	}
	userCount, err := s.store.CountUsers(ctx)
	if err != nil {
		return core.Summary{}, fmt.Errorf("count users: %w", err)
	}
	return core.ComputeSummary(expenses, userID, userCount, s.now()), nil
}

// GetMonthlyExpenses returns the caller's per-month sums for the year.
// Months without data are absent; presentation backfills with
// core.FillMonths.
func (s *ExpenseService) GetMonthlyExpenses(ctx context.Context, year int, userID string) ([]core.MonthlyExpense, error) {
	totals, err := s.store.MonthlyTotals(ctx, year, userID)
	if err != nil {
		return nil, fmt.Errorf("monthly expenses: %w", err)
	}
	return totals, nil
}

// GetCategoryExpenses returns the caller's per-category sums for the
// year, largest first.
func (s *ExpenseService) GetCategoryExpenses(ctx context.Context, year int, userID string) ([]core.CategoryExpense, error) {
	totals, err := s.store.CategoryTotals(ctx, year, userID)
	if err != nil {
		return nil, fmt.Errorf("category expenses: %w", err)
	}
	return totals, nil
}

// GetOverview fetches the monthly and category aggregates concurrently
// and backfills the monthly buckets.
func (s *ExpenseService) GetOverview(ctx context.Context, year int, userID string) (Overview, error) {
	ov := Overview{Year: year}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		monthly, err := s.GetMonthlyExpenses(gctx, year, userID)
		if err != nil {
			return err
		}
		ov.Monthly = core.FillMonths(monthly)
		return nil
	})
	g.Go(func() error {
		categories, err := s.GetCategoryExpenses(gctx, year, userID)
		if err != nil {
			return err
		}
		ov.Categories = categories
		return nil
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return ov, nil
}

// ListUsers returns all registered users.
func (s *ExpenseService) ListUsers(ctx context.Context) ([]core.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// AddExpense validates the input, checks the payer exists, and persists
// a new expense with a generated ID and the current timestamp. The
// revalidation signal is published best-effort.
func (s *ExpenseService) AddExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := s.checkPayer(ctx, in.PaidBy); err != nil {
		return core.Expense{}, err
	}

	e := core.Expense{
		ID:          s.ids.NewID(),
		Description: in.Description,
		Amount:      in.Amount,
		Category:    in.Category,
		IsShared:    in.IsShared,
		UserID:      in.PaidBy,
		CreatedAt:   s.now(),
	}
	if err := s.store.InsertExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("add expense: %w", err)
	}

	s.publishEvent(ctx, e.ID, amqp.ActionCreated, in.PaidBy)
	return e, nil
}

// UpdateExpense validates the input and replaces all mutable fields of
// the expense. Returns core.ErrExpenseNotFound when no row matches.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id string, in core.ExpenseInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	if err := s.checkPayer(ctx, in.PaidBy); err != nil {
		return err
	}

	if err := s.store.UpdateExpense(ctx, id, in); err != nil {
		if errors.Is(err, core.ErrExpenseNotFound) {
			return err
		}
		return fmt.Errorf("update expense: %w", err)
	}

	s.publishEvent(ctx, id, amqp.ActionUpdated, in.PaidBy)
	return nil
}

// DeleteExpense removes the expense. Deleting a missing ID returns
// core.ErrExpenseNotFound, same policy as update.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) error {
	if err := s.store.DeleteExpense(ctx, id); err != nil {
		if errors.Is(err, core.ErrExpenseNotFound) {
			return err
		}
		return fmt.Errorf("delete expense: %w", err)
	}

	s.publishEvent(ctx, id, amqp.ActionDeleted, "")
	return nil
}

// GetExpense returns a single expense by ID. Used by the export worker.
func (s *ExpenseService) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	return s.store.GetExpense(ctx, id)
}

func (s *ExpenseService) checkPayer(ctx context.Context, payerID string) error {
	_, err := s.store.GetUserByID(ctx, payerID)
	if errors.Is(err, core.ErrUserNotFound) {
		return core.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("check payer: %w", err)
	}
	return nil
}

func (s *ExpenseService) publishEvent(ctx context.Context, expenseID, action, userID string) {
	if s.publisher == nil {
		return
	}
	// Best-effort: the mutation already succeeded locally.
	if err := s.publisher.PublishExpenseEvent(ctx, expenseID, action, userID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"expense_id", expenseID,
			"action", action,
			"error", err)
	}
}

// Close closes the storage and publisher connections.
func (s *ExpenseService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %v", errs)
	}
	return nil
}
