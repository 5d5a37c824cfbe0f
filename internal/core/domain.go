package core

import (
	"errors"
	"strings"
	"time"
)

const (
	CategoryFixed     Category = "fixed"
	CategoryUtilities Category = "utilities"
	CategoryFood      Category = "food"
	CategoryOther     Category = "other"
	CategoryPersonal  Category = "personal"
)

type (
	// Category is one of the fixed expense categories.
	Category string

	Money struct {
		Cents int64
	}

	// User is a registered account. The password hash never leaves the
	// storage and auth layers.
	User struct {
		ID           string
		Name         string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}

	// Expense is a single recorded expense. Shared expenses are split
	// among all registered users; personal ones belong to the payer only.
	Expense struct {
		ID          string
		Description string
		Amount      Money
		Category    Category
		IsShared    bool
		// PaidByName is the payer's display name, resolved on read.
		// "Unknown" when the paying user row is missing.
		PaidByName string
		// UserID is the owning (paying) user.
		UserID    string
		CreatedAt time.Time
	}

	// ExpenseInput carries the mutable fields of an expense for
	// create and update operations.
	ExpenseInput struct {
		Description string
		Amount      Money
		Category    Category
		IsShared    bool
		PaidBy      string
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyPayer       = errors.New("empty payer")
	ErrUserNotFound     = errors.New("user not found")
	ErrExpenseNotFound  = errors.New("expense not found")
	ErrEmailExists      = errors.New("email already registered")
	ErrNameExists       = errors.New("name already taken")
)

// Categories lists all valid categories in display order.
func Categories() []Category {
	return []Category{
		CategoryFixed,
		CategoryUtilities,
		CategoryFood,
		CategoryOther,
		CategoryPersonal,
	}
}

func (c Category) Valid() bool {
	switch c {
	case CategoryFixed, CategoryUtilities, CategoryFood, CategoryOther, CategoryPersonal:
		return true
	}
	return false
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (in ExpenseInput) Validate() error {
	if len(strings.TrimSpace(in.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(in.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := in.Amount.Validate(); err != nil {
		return err
	}
	if !in.Category.Valid() {
		return ErrInvalidCategory
	}
	if strings.TrimSpace(in.PaidBy) == "" {
		return ErrEmptyPayer
	}
	return nil
}
