package http

import (
	"encoding/json"
	"net/http"
	"time"

	"splitledger/internal/core"
	"splitledger/internal/log"
)

// decimalAmount accepts a monetary amount as either a JSON number or a
// string, so clients may send 12.34, "12.34" or "12,34". The raw text
// is handed to core.ParseDecimalToCents unchanged.
type decimalAmount string

func (d *decimalAmount) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = decimalAmount(s)
		return nil
	}
	*d = decimalAmount(b)
	return nil
}

type expenseRequest struct {
	Description string        `json:"description"`
	Amount      decimalAmount `json:"amount"`
	Category    string        `json:"category"`
	IsShared    bool          `json:"isShared"`
	PaidBy      string        `json:"paidBy"`
}

type expenseResponse struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	Category    string      `json:"category"`
	IsShared    bool        `json:"isShared"`
	PaidByName  string      `json:"paidByName"`
	UserID      string      `json:"userId"`
	CreatedAt   string      `json:"createdAt"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		Description: e.Description,
		Amount:      json.Number(e.Amount.String()),
		Category:    string(e.Category),
		IsShared:    e.IsShared,
		PaidByName:  e.PaidByName,
		UserID:      e.UserID,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// toInput converts the request body into a validated-later domain
// input. The caller becomes the payer when paidBy is omitted.
func (req expenseRequest) toInput(callerID string) (core.ExpenseInput, error) {
	cents, err := core.ParseDecimalToCents(string(req.Amount))
	if err != nil {
		return core.ExpenseInput{}, core.ErrInvalidAmount
	}
	paidBy := sanitizeInput(req.PaidBy)
	if paidBy == "" {
		paidBy = callerID
	}
	return core.ExpenseInput{
		Description: sanitizeInput(req.Description),
		Amount:      core.Money{Cents: cents},
		Category:    core.Category(req.Category),
		IsShared:    req.IsShared,
		PaidBy:      paidBy,
	}, nil
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	if cached, ok := s.expensesCache.Get(userID); ok {
		s.writeExpenses(w, cached)
		return
	}

	expenses, err := s.service.GetExpenses(r.Context(), userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Expense listing failed", log.FieldError, err, log.FieldUserID, userID)
		writeError(w, err)
		return
	}

	s.expensesCache.Set(userID, expenses)
	s.writeExpenses(w, expenses)
}

func (s *Server) writeExpenses(w http.ResponseWriter, expenses []core.Expense) {
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	in, err := req.toInput(UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	expense, err := s.service.AddExpense(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	s.invalidateFor(expense)
	s.logger.InfoContext(r.Context(), "Expense created",
		log.FieldExpenseID, expense.ID,
		log.FieldAmountCents, expense.Amount.Cents,
		log.FieldCategory, string(expense.Category),
		log.FieldIsShared, expense.IsShared)
	writeJSON(w, http.StatusCreated, toExpenseResponse(expense))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	in, err := req.toInput(UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.service.UpdateExpense(r.Context(), id, in); err != nil {
		writeError(w, err)
		return
	}

	s.invalidateAll()
	s.logger.InfoContext(r.Context(), "Expense updated", log.FieldExpenseID, id)
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.service.DeleteExpense(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	s.invalidateAll()
	s.logger.InfoContext(r.Context(), "Expense deleted", log.FieldExpenseID, id)
	w.WriteHeader(http.StatusNoContent)
}
