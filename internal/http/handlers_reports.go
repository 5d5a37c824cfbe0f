package http

import (
	"encoding/json"
	"net/http"

	"splitledger/internal/core"
	"splitledger/internal/log"
	"splitledger/internal/services"
)

type summaryResponse struct {
	TotalShared              json.Number `json:"totalShared"`
	SharedThisMonth          json.Number `json:"sharedThisMonth"`
	YourPersonal             json.Number `json:"yourPersonal"`
	YourPersonalThisMonth    json.Number `json:"yourPersonalThisMonth"`
	PartnerPersonal          json.Number `json:"partnerPersonal"`
	PartnerPersonalThisMonth json.Number `json:"partnerPersonalThisMonth"`
	Balance                  json.Number `json:"balance"`
}

type monthlyResponse struct {
	Month  int         `json:"month"`
	Amount json.Number `json:"amount"`
}

type categoryResponse struct {
	Category string      `json:"category"`
	Amount   json.Number `json:"amount"`
}

type overviewResponse struct {
	Year       int                `json:"year"`
	Monthly    []monthlyResponse  `json:"monthly"`
	Categories []categoryResponse `json:"categories"`
}

func amount(m core.Money) json.Number {
	return json.Number(m.String())
}

func toSummaryResponse(s core.Summary) summaryResponse {
	return summaryResponse{
		TotalShared:              amount(s.TotalShared),
		SharedThisMonth:          amount(s.SharedThisMonth),
		YourPersonal:             amount(s.YourPersonal),
		YourPersonalThisMonth:    amount(s.YourPersonalThisMonth),
		PartnerPersonal:          amount(s.PartnerPersonal),
		PartnerPersonalThisMonth: amount(s.PartnerPersonalThisMonth),
		Balance:                  amount(s.Balance),
	}
}

func toMonthlyResponse(rows []core.MonthlyExpense) []monthlyResponse {
	out := make([]monthlyResponse, 0, len(rows))
	for _, m := range rows {
		out = append(out, monthlyResponse{Month: m.Month, Amount: amount(m.Amount)})
	}
	return out
}

func toCategoryResponse(rows []core.CategoryExpense) []categoryResponse {
	out := make([]categoryResponse, 0, len(rows))
	for _, c := range rows {
		out = append(out, categoryResponse{Category: string(c.Category), Amount: amount(c.Amount)})
	}
	return out
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	if cached, ok := s.summaryCache.Get(userID); ok {
		writeJSON(w, http.StatusOK, toSummaryResponse(cached))
		return
	}

	summary, err := s.service.GetSummary(r.Context(), userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Summary failed", log.FieldError, err, log.FieldUserID, userID)
		writeError(w, err)
		return
	}

	s.summaryCache.Set(userID, summary)
	writeJSON(w, http.StatusOK, toSummaryResponse(summary))
}

// handleMonthlyExpenses serves the caller's per-month totals for the
// requested year, always with all twelve months present.
func (s *Server) handleMonthlyExpenses(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	year := parseYear(r)
	key := s.cacheKey(userID, year)

	if cached, ok := s.monthlyCache.Get(key); ok {
		writeJSON(w, http.StatusOK, toMonthlyResponse(cached))
		return
	}

	rows, err := s.service.GetMonthlyExpenses(r.Context(), year, userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Monthly aggregation failed",
			log.FieldError, err, log.FieldUserID, userID, log.FieldYear, year)
		writeError(w, err)
		return
	}

	filled := core.FillMonths(rows)
	s.monthlyCache.Set(key, filled)
	writeJSON(w, http.StatusOK, toMonthlyResponse(filled))
}

func (s *Server) handleCategoryExpenses(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	year := parseYear(r)
	key := s.cacheKey(userID, year)

	if cached, ok := s.categoryCache.Get(key); ok {
		writeJSON(w, http.StatusOK, toCategoryResponse(cached))
		return
	}

	rows, err := s.service.GetCategoryExpenses(r.Context(), year, userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Category aggregation failed",
			log.FieldError, err, log.FieldUserID, userID, log.FieldYear, year)
		writeError(w, err)
		return
	}

	s.categoryCache.Set(key, rows)
	writeJSON(w, http.StatusOK, toCategoryResponse(rows))
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	year := parseYear(r)
	key := s.cacheKey(userID, year)

	if cached, ok := s.overviewCache.Get(key); ok {
		writeJSON(w, http.StatusOK, toOverviewResponse(cached))
		return
	}

	ov, err := s.service.GetOverview(r.Context(), year, userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Overview failed",
			log.FieldError, err, log.FieldUserID, userID, log.FieldYear, year)
		writeError(w, err)
		return
	}

	s.overviewCache.Set(key, ov)
	writeJSON(w, http.StatusOK, toOverviewResponse(ov))
}

func toOverviewResponse(ov services.Overview) overviewResponse {
	return overviewResponse{
		Year:       ov.Year,
		Monthly:    toMonthlyResponse(ov.Monthly),
		Categories: toCategoryResponse(ov.Categories),
	}
}
