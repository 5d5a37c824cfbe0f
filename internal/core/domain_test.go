package core

import "testing"

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories() {
		if !c.Valid() {
			t.Fatalf("category %q should be valid", c)
		}
	}
	for _, c := range []Category{"", "groceries", "FIXED", "shared"} {
		if c.Valid() {
			t.Fatalf("category %q should be invalid", c)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err != nil {
		t.Fatalf("zero is allowed, got %v", err)
	}
	if err := (Money{Cents: -1}).Validate(); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

func TestExpenseInputValidate(t *testing.T) {
	good := ExpenseInput{
		Description: "rent",
		Amount:      Money{Cents: 120000},
		Category:    CategoryFixed,
		IsShared:    true,
		PaidBy:      "u1",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		in   ExpenseInput
		want error
	}{
		{"empty description", ExpenseInput{Description: "  ", Amount: Money{Cents: 1}, Category: CategoryFood, PaidBy: "u1"}, ErrEmptyDescription},
		{"negative amount", ExpenseInput{Description: "a", Amount: Money{Cents: -1}, Category: CategoryFood, PaidBy: "u1"}, ErrInvalidAmount},
		{"bad category", ExpenseInput{Description: "a", Amount: Money{Cents: 1}, Category: "snacks", PaidBy: "u1"}, ErrInvalidCategory},
		{"empty payer", ExpenseInput{Description: "a", Amount: Money{Cents: 1}, Category: CategoryFood, PaidBy: " "}, ErrEmptyPayer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.in.Validate(); err != tc.want {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}
