package services

import (
	"context"

	"github.com/google/uuid"

	"splitledger/internal/core"
)

// Store is the persistence surface the expense service needs. The
// SQLite repository implements it; tests use an in-memory fake.
type Store interface {
	InsertExpense(ctx context.Context, e core.Expense) error
	UpdateExpense(ctx context.Context, id string, in core.ExpenseInput) error
	DeleteExpense(ctx context.Context, id string) error
	GetExpense(ctx context.Context, id string) (core.Expense, error)
	ListVisibleExpenses(ctx context.Context, userID string) ([]core.Expense, error)
	MonthlyTotals(ctx context.Context, year int, userID string) ([]core.MonthlyExpense, error)
	CategoryTotals(ctx context.Context, year int, userID string) ([]core.CategoryExpense, error)

	GetUserByID(ctx context.Context, id string) (core.User, error)
	ListUsers(ctx context.Context) ([]core.User, error)
	CountUsers(ctx context.Context) (int, error)

	Close() error
}

// EventPublisher emits the revalidation signal after mutations. The AMQP
// client implements it; a nil publisher disables the bus.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, expenseID, action, userID string) error
	Close() error
}

// IDGenerator mints unique expense identifiers.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator is the default IDGenerator.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.New().String()
}
