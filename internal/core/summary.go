package core

import "time"

type (
	// Summary aggregates the caller's view of all visible expenses.
	// Partner personal fields are always zero: another party's personal
	// spending is never shown.
	Summary struct {
		TotalShared              Money
		SharedThisMonth          Money
		YourPersonal             Money
		YourPersonalThisMonth    Money
		PartnerPersonal          Money
		PartnerPersonalThisMonth Money
		// Balance is positive when the caller has paid more than their
		// even share of all shared expenses, negative when they owe.
		Balance Money
	}

	// MonthlyExpense is the summed amount for one calendar month,
	// with Month indexed 0-11.
	MonthlyExpense struct {
		Month  int
		Amount Money
	}

	// CategoryExpense is the summed amount for one category.
	CategoryExpense struct {
		Category Category
		Amount   Money
	}
)

// ComputeSummary derives the dashboard summary from the expenses visible
// to userID (shared plus their own personal ones, as returned by the
// expense query).
//
// The even share divides total shared spending by userCount, clamped to a
// minimum of 1. "This month" means created on or after the first calendar
// day of the month containing now.
func ComputeSummary(expenses []Expense, userID string, userCount int, now time.Time) Summary {
	if userCount < 1 {
		userCount = 1
	}
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var s Summary
	var youPaidShared int64
	for _, e := range expenses {
		thisMonth := !e.CreatedAt.Before(firstOfMonth)
		if e.IsShared {
			s.TotalShared.Cents += e.Amount.Cents
			if thisMonth {
				s.SharedThisMonth.Cents += e.Amount.Cents
			}
			if e.UserID == userID {
				youPaidShared += e.Amount.Cents
			}
			continue
		}
		if e.UserID == userID {
			s.YourPersonal.Cents += e.Amount.Cents
			if thisMonth {
				s.YourPersonalThisMonth.Cents += e.Amount.Cents
			}
		}
	}

	s.Balance.Cents = youPaidShared - s.TotalShared.Cents/int64(userCount)
	return s
}

// FillMonths backfills a sparse monthly aggregation so that all twelve
// months are present, missing ones with amount 0, ordered by month.
// Rows with an out-of-range month index are dropped.
func FillMonths(sparse []MonthlyExpense) []MonthlyExpense {
	byMonth := make(map[int]Money, len(sparse))
	for _, m := range sparse {
		if m.Month < 0 || m.Month > 11 {
			continue
		}
		byMonth[m.Month] = Money{Cents: byMonth[m.Month].Cents + m.Amount.Cents}
	}

	filled := make([]MonthlyExpense, 12)
	for i := 0; i < 12; i++ {
		filled[i] = MonthlyExpense{Month: i, Amount: byMonth[i]}
	}
	return filled
}
