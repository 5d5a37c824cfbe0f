// Package sheets defines the outbound port for mirroring expenses to an
// external report spreadsheet.
package sheets

import (
	"context"

	"splitledger/internal/core"
)

// ExpenseWriter appends one expense to the report sheet and returns a
// reference to the written row.
type ExpenseWriter interface {
	Append(ctx context.Context, e core.Expense) (rowRef string, err error)
}
