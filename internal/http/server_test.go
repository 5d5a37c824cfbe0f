package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"splitledger/internal/auth"
	"splitledger/internal/core"
	"splitledger/internal/log"
	"splitledger/internal/services"
)

type fakeService struct {
	users    map[string]core.User
	expenses map[string]core.Expense
	nextID   int
	now      time.Time
}

func newFakeService(userIDs ...string) *fakeService {
	f := &fakeService{
		users:    make(map[string]core.User),
		expenses: make(map[string]core.Expense),
		now:      time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	for _, id := range userIDs {
		f.users[id] = core.User{ID: id, Name: "user-" + id, Email: id + "@example.com", CreatedAt: f.now}
	}
	return f
}

func (f *fakeService) GetExpenses(_ context.Context, userID string) ([]core.Expense, error) {
	var out []core.Expense
	for _, e := range f.expenses {
		if e.IsShared || e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeService) GetSummary(_ context.Context, userID string) (core.Summary, error) {
	all := make([]core.Expense, 0, len(f.expenses))
	for _, e := range f.expenses {
		if e.IsShared || e.UserID == userID {
			all = append(all, e)
		}
	}
	return core.ComputeSummary(all, userID, len(f.users), f.now), nil
}

func (f *fakeService) GetMonthlyExpenses(_ context.Context, year int, userID string) ([]core.MonthlyExpense, error) {
	byMonth := make(map[int]int64)
	for _, e := range f.expenses {
		if e.UserID == userID && e.CreatedAt.Year() == year {
			byMonth[int(e.CreatedAt.Month())-1] += e.Amount.Cents
		}
	}
	var out []core.MonthlyExpense
	for m, cents := range byMonth {
		out = append(out, core.MonthlyExpense{Month: m, Amount: core.Money{Cents: cents}})
	}
	return out, nil
}

func (f *fakeService) GetCategoryExpenses(_ context.Context, year int, userID string) ([]core.CategoryExpense, error) {
	byCat := make(map[core.Category]int64)
	for _, e := range f.expenses {
		if e.UserID == userID && e.CreatedAt.Year() == year {
			byCat[e.Category] += e.Amount.Cents
		}
	}
	var out []core.CategoryExpense
	for cat, cents := range byCat {
		out = append(out, core.CategoryExpense{Category: cat, Amount: core.Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Amount.Cents > out[j].Amount.Cents })
	return out, nil
}

func (f *fakeService) GetOverview(ctx context.Context, year int, userID string) (services.Overview, error) {
	monthly, _ := f.GetMonthlyExpenses(ctx, year, userID)
	categories, _ := f.GetCategoryExpenses(ctx, year, userID)
	return services.Overview{Year: year, Monthly: core.FillMonths(monthly), Categories: categories}, nil
}

func (f *fakeService) ListUsers(_ context.Context) ([]core.User, error) {
	var out []core.User
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeService) AddExpense(_ context.Context, in core.ExpenseInput) (core.Expense, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}
	payer, ok := f.users[in.PaidBy]
	if !ok {
		return core.Expense{}, core.ErrUserNotFound
	}
	f.nextID++
	e := core.Expense{
		ID:          "exp-" + string(rune('0'+f.nextID)),
		Description: in.Description,
		Amount:      in.Amount,
		Category:    in.Category,
		IsShared:    in.IsShared,
		PaidByName:  payer.Name,
		UserID:      in.PaidBy,
		CreatedAt:   f.now,
	}
	f.expenses[e.ID] = e
	return e, nil
}

func (f *fakeService) UpdateExpense(_ context.Context, id string, in core.ExpenseInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	e, ok := f.expenses[id]
	if !ok {
		return core.ErrExpenseNotFound
	}
	e.Description = in.Description
	e.Amount = in.Amount
	e.Category = in.Category
	e.IsShared = in.IsShared
	e.UserID = in.PaidBy
	f.expenses[id] = e
	return nil
}

func (f *fakeService) DeleteExpense(_ context.Context, id string) error {
	if _, ok := f.expenses[id]; !ok {
		return core.ErrExpenseNotFound
	}
	delete(f.expenses, id)
	return nil
}

type fakeAuthn struct {
	users map[string]core.User // by email
	svc   *fakeService         // registered users become visible to the service
}

func (a *fakeAuthn) Register(_ context.Context, name, email, credential string) (core.User, error) {
	if len(credential) < 8 {
		return core.User{}, auth.ErrWeakPassword
	}
	if _, ok := a.users[email]; ok {
		return core.User{}, core.ErrEmailExists
	}
	u := core.User{ID: "u-" + name, Name: name, Email: email}
	a.users[email] = u
	if a.svc != nil {
		a.svc.users[u.ID] = u
	}
	return u, nil
}

func (a *fakeAuthn) Authenticate(_ context.Context, email, credential string) (core.User, error) {
	u, ok := a.users[email]
	if !ok || credential != "correct-horse" {
		return core.User{}, auth.ErrInvalidCredentials
	}
	return u, nil
}

func newTestServer(t *testing.T, svc ExpenseService) (*Server, *auth.JWTManager) {
	t.Helper()
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	tokens := auth.NewJWTManager("test-secret-key-0123456789", time.Hour)
	authn := &fakeAuthn{users: map[string]core.User{
		"a@example.com": {ID: "u1", Name: "alice", Email: "a@example.com"},
	}}
	if fs, ok := svc.(*fakeService); ok {
		authn.svc = fs
	}
	srv := NewServer(":0", svc, authn, tokens, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, tokens
}

func bearerFor(t *testing.T, tokens *auth.JWTManager, userID string) string {
	t.Helper()
	token, err := tokens.Generate(core.User{ID: userID, Email: userID + "@example.com"})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return "Bearer " + token
}

func doJSON(t *testing.T, srv *Server, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, newFakeService("u1"))

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := doJSON(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t, newFakeService("u1"))

	paths := []string{"/api/users", "/api/expenses", "/api/summary", "/api/overview"}
	for _, path := range paths {
		rr := doJSON(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token: status=%d, want 401", path, rr.Code)
		}
	}

	rr := doJSON(t, srv, http.MethodGet, "/api/expenses", "Bearer not-a-token", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status=%d, want 401", rr.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	srv, _ := newTestServer(t, newFakeService("u1"))

	rr := doJSON(t, srv, http.MethodPost, "/api/register", "", `{"name":"bob","email":"b@example.com","password":"long-enough"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/register", "", `{"name":"bob","email":"b@example.com","password":"short"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("weak password status=%d, want 422", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/login", "", `{"email":"a@example.com","password":"correct-horse"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Token == "" || resp.User.ID != "u1" {
		t.Fatalf("unexpected login response: %+v", resp)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/login", "", `{"email":"a@example.com","password":"wrong"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad credentials status=%d, want 401", rr.Code)
	}
}

func TestExpenseLifecycle(t *testing.T) {
	svc := newFakeService("u1", "u2")
	srv, tokens := newTestServer(t, svc)
	bearer := bearerFor(t, tokens, "u1")

	rr := doJSON(t, srv, http.MethodPost, "/api/expenses", bearer,
		`{"description":"groceries","amount":45.50,"category":"food","isShared":true}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created expenseResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Amount.String() != "45.50" {
		t.Fatalf("amount round trip: got %q", created.Amount)
	}
	if created.UserID != "u1" {
		t.Fatalf("payer should default to caller, got %q", created.UserID)
	}

	// Cached list must still reflect the new row.
	rr = doJSON(t, srv, http.MethodGet, "/api/expenses", bearer, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	var listed []expenseResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("list should contain the created expense: %+v", listed)
	}

	rr = doJSON(t, srv, http.MethodPut, "/api/expenses/"+created.ID, bearer,
		`{"description":"dinner","amount":60,"category":"food","isShared":false,"paidBy":"u2"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/expenses/"+created.ID, bearer, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodDelete, "/api/expenses/"+created.ID, bearer, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("double delete status=%d, want 404", rr.Code)
	}
}

func TestCreateExpenseAcceptsStringAmounts(t *testing.T) {
	srv, tokens := newTestServer(t, newFakeService("u1"))
	bearer := bearerFor(t, tokens, "u1")

	cases := []struct {
		name string
		body string
		want string
	}{
		{"comma string", `{"description":"caffe","amount":"12,34","category":"food"}`, "12.34"},
		{"dot string", `{"description":"caffe","amount":"12.34","category":"food"}`, "12.34"},
		{"bare number", `{"description":"caffe","amount":12.34,"category":"food"}`, "12.34"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, srv, http.MethodPost, "/api/expenses", bearer, tc.body)
			if rr.Code != http.StatusCreated {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			var created expenseResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
				t.Fatal(err)
			}
			if created.Amount.String() != tc.want {
				t.Fatalf("amount=%q, want %q", created.Amount, tc.want)
			}
		})
	}

	rr := doJSON(t, srv, http.MethodPost, "/api/expenses", bearer,
		`{"description":"caffe","amount":"not-a-number","category":"food"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("garbage string amount: status=%d, want 422", rr.Code)
	}
}

func TestCreateExpenseRejectsBadInput(t *testing.T) {
	srv, tokens := newTestServer(t, newFakeService("u1"))
	bearer := bearerFor(t, tokens, "u1")

	cases := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"negative amount", `{"description":"x","amount":-5,"category":"food"}`, http.StatusUnprocessableEntity},
		{"bad category", `{"description":"x","amount":5,"category":"snacks"}`, http.StatusUnprocessableEntity},
		{"empty description", `{"description":" ","amount":5,"category":"food"}`, http.StatusUnprocessableEntity},
		{"unknown payer", `{"description":"x","amount":5,"category":"food","paidBy":"ghost"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, srv, http.MethodPost, "/api/expenses", bearer, tc.body)
			if rr.Code != tc.want {
				t.Fatalf("status=%d, want %d (body=%s)", rr.Code, tc.want, rr.Body.String())
			}
		})
	}
}

func TestSummaryEndpoint(t *testing.T) {
	svc := newFakeService("u1", "u2")
	srv, tokens := newTestServer(t, svc)
	bearer := bearerFor(t, tokens, "u1")

	rr := doJSON(t, srv, http.MethodPost, "/api/expenses", bearer,
		`{"description":"rent","amount":100,"category":"fixed","isShared":true}`)
	if rr.Code != http.StatusCreated {
		t.Fatal(rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/summary", bearer, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status=%d", rr.Code)
	}
	var sum summaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.TotalShared.String() != "100.00" {
		t.Fatalf("totalShared=%q", sum.TotalShared)
	}
	// u1 paid all 100.00 of shared; even share across 2 users is 50.00.
	if sum.Balance.String() != "50.00" {
		t.Fatalf("balance=%q, want 50.00", sum.Balance)
	}
	if sum.PartnerPersonal.String() != "0.00" {
		t.Fatalf("partnerPersonal=%q, want 0.00", sum.PartnerPersonal)
	}
}

func TestRegistrationRefreshesCachedSummaries(t *testing.T) {
	svc := newFakeService("u1", "u2")
	srv, tokens := newTestServer(t, svc)
	bearer := bearerFor(t, tokens, "u1")

	rr := doJSON(t, srv, http.MethodPost, "/api/expenses", bearer,
		`{"description":"rent","amount":100,"category":"fixed","isShared":true}`)
	if rr.Code != http.StatusCreated {
		t.Fatal(rr.Body.String())
	}

	// Warm the cache: even share across 2 users, u1 paid everything.
	rr = doJSON(t, srv, http.MethodGet, "/api/summary", bearer, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status=%d", rr.Code)
	}
	var sum summaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Balance.String() != "50.00" {
		t.Fatalf("balance before registration=%q, want 50.00", sum.Balance)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/register", "",
		`{"name":"carol","email":"c@example.com","password":"long-enough"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", rr.Code, rr.Body.String())
	}

	// The divisor is now 3, and the cached summary must not survive.
	rr = doJSON(t, srv, http.MethodGet, "/api/summary", bearer, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status=%d", rr.Code)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Balance.String() != "66.67" {
		t.Fatalf("balance after registration=%q, want 66.67", sum.Balance)
	}
}

func TestMonthlyEndpointBackfillsAllMonths(t *testing.T) {
	svc := newFakeService("u1")
	srv, tokens := newTestServer(t, svc)
	bearer := bearerFor(t, tokens, "u1")

	rr := doJSON(t, srv, http.MethodPost, "/api/expenses", bearer,
		`{"description":"rent","amount":100,"category":"fixed","isShared":true}`)
	if rr.Code != http.StatusCreated {
		t.Fatal(rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/expenses/monthly?year=2025", bearer, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("monthly status=%d", rr.Code)
	}
	var months []monthlyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &months); err != nil {
		t.Fatal(err)
	}
	if len(months) != 12 {
		t.Fatalf("expected 12 months, got %d", len(months))
	}
	if months[5].Amount.String() != "100.00" { // fake clock is 2025-06-15
		t.Fatalf("june amount=%q", months[5].Amount)
	}
	if months[0].Amount.String() != "0.00" {
		t.Fatalf("empty month should be 0.00, got %q", months[0].Amount)
	}
}

func TestOverviewEndpoint(t *testing.T) {
	svc := newFakeService("u1")
	srv, tokens := newTestServer(t, svc)
	bearer := bearerFor(t, tokens, "u1")

	rr := doJSON(t, srv, http.MethodPost, "/api/expenses", bearer,
		`{"description":"rent","amount":100,"category":"fixed","isShared":true}`)
	if rr.Code != http.StatusCreated {
		t.Fatal(rr.Body.String())
	}
	rr = doJSON(t, srv, http.MethodPost, "/api/expenses", bearer,
		`{"description":"pasta","amount":20,"category":"food","isShared":true}`)
	if rr.Code != http.StatusCreated {
		t.Fatal(rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/overview?year=2025", bearer, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("overview status=%d", rr.Code)
	}
	var ov overviewResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &ov); err != nil {
		t.Fatal(err)
	}
	if ov.Year != 2025 || len(ov.Monthly) != 12 {
		t.Fatalf("overview shape wrong: year=%d months=%d", ov.Year, len(ov.Monthly))
	}
	if len(ov.Categories) != 2 || ov.Categories[0].Category != "fixed" {
		t.Fatalf("categories should be ordered by amount: %+v", ov.Categories)
	}
}

func TestListUsersEndpoint(t *testing.T) {
	srv, tokens := newTestServer(t, newFakeService("u1", "u2"))
	bearer := bearerFor(t, tokens, "u1")

	rr := doJSON(t, srv, http.MethodGet, "/api/users", bearer, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("users status=%d", rr.Code)
	}
	var users []userResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &users); err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
}
