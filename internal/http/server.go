package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"splitledger/internal/auth"
	"splitledger/internal/cache"
	"splitledger/internal/core"
	"splitledger/internal/log"
	"splitledger/internal/services"
)

// ExpenseService is the application surface the HTTP layer exposes.
type ExpenseService interface {
	GetExpenses(ctx context.Context, userID string) ([]core.Expense, error)
	GetSummary(ctx context.Context, userID string) (core.Summary, error)
	GetMonthlyExpenses(ctx context.Context, year int, userID string) ([]core.MonthlyExpense, error)
	GetCategoryExpenses(ctx context.Context, year int, userID string) ([]core.CategoryExpense, error)
	GetOverview(ctx context.Context, year int, userID string) (services.Overview, error)
	ListUsers(ctx context.Context) ([]core.User, error)
	AddExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error)
	UpdateExpense(ctx context.Context, id string, in core.ExpenseInput) error
	DeleteExpense(ctx context.Context, id string) error
}

// Authenticator registers users and verifies their credentials.
type Authenticator interface {
	Register(ctx context.Context, name, email, credential string) (core.User, error)
	Authenticate(ctx context.Context, email, credential string) (core.User, error)
}

// TokenManager issues and validates session tokens.
type TokenManager interface {
	Generate(user core.User) (string, error)
	Validate(token string) (*auth.Claims, error)
}

type Server struct {
	http.Server

	service ExpenseService
	authn   Authenticator
	tokens  TokenManager
	logger  *log.Logger
	metrics *metrics

	rateLimiter *rateLimiter

	// Read-side caches, invalidated on mutation. Shared expenses are
	// visible to everyone, so a shared mutation purges everything;
	// a personal one only drops the payer's entries.
	expensesCache *cache.LRUCache[[]core.Expense]
	summaryCache  *cache.LRUCache[core.Summary]
	monthlyCache  *cache.LRUCache[[]core.MonthlyExpense]
	categoryCache *cache.LRUCache[[]core.CategoryExpense]
	overviewCache *cache.LRUCache[services.Overview]

	cacheManager *cache.Manager
	shutdownOnce sync.Once
}

// NewServer wires routes, middleware, caches and metrics, returning a
// ready-to-run server listening on addr.
func NewServer(addr string, svc ExpenseService, authn Authenticator, tokens TokenManager, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		service:     svc,
		authn:       authn,
		tokens:      tokens,
		logger:      logger.WithComponent(log.ComponentHTTP),
		metrics:     newMetrics(registry),
		rateLimiter: newRateLimiter(60, time.Minute),

		expensesCache: cache.NewLRUCache[[]core.Expense](200, 5*time.Minute),
		summaryCache:  cache.NewLRUCache[core.Summary](100, 5*time.Minute),
		monthlyCache:  cache.NewLRUCache[[]core.MonthlyExpense](100, 5*time.Minute),
		categoryCache: cache.NewLRUCache[[]core.CategoryExpense](100, 5*time.Minute),
		overviewCache: cache.NewLRUCache[services.Overview](100, 5*time.Minute),

		cacheManager: cache.NewManager(),
	}

	for _, c := range []cache.Cleaner{
		s.expensesCache, s.summaryCache, s.monthlyCache, s.categoryCache, s.overviewCache,
	} {
		s.cacheManager.Register(c)
	}
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("POST /api/register", s.with(s.handleRegister))
	mux.HandleFunc("POST /api/login", s.with(s.handleLogin))

	mux.HandleFunc("GET /api/users", s.with(s.authed(s.handleListUsers)))
	mux.HandleFunc("GET /api/expenses", s.with(s.authed(s.handleListExpenses)))
	mux.HandleFunc("POST /api/expenses", s.with(s.authed(s.handleCreateExpense)))
	mux.HandleFunc("PUT /api/expenses/{id}", s.with(s.authed(s.handleUpdateExpense)))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.with(s.authed(s.handleDeleteExpense)))
	mux.HandleFunc("GET /api/summary", s.with(s.authed(s.handleSummary)))
	mux.HandleFunc("GET /api/expenses/monthly", s.with(s.authed(s.handleMonthlyExpenses)))
	mux.HandleFunc("GET /api/expenses/categories", s.with(s.authed(s.handleCategoryExpenses)))
	mux.HandleFunc("GET /api/overview", s.with(s.authed(s.handleOverview)))

	return s
}

// Shutdown stops the cleanup goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) cacheKey(userID string, year int) string {
	return userID + ":" + strconv.Itoa(year)
}

// invalidateFor drops cached reads made stale by a mutation of e.
func (s *Server) invalidateFor(e core.Expense) {
	if e.IsShared {
		s.expensesCache.Purge()
		s.summaryCache.Purge()
		s.overviewCache.Purge()
		// Monthly and category charts only aggregate the owner's rows.
		s.monthlyCache.InvalidatePrefix(e.UserID + ":")
		s.categoryCache.InvalidatePrefix(e.UserID + ":")
		return
	}
	s.expensesCache.Delete(e.UserID)
	s.summaryCache.Delete(e.UserID)
	s.monthlyCache.InvalidatePrefix(e.UserID + ":")
	s.categoryCache.InvalidatePrefix(e.UserID + ":")
	s.overviewCache.InvalidatePrefix(e.UserID + ":")
}

// invalidateAll purges every read cache. Updates and deletes can move
// an expense between users or change its sharing, so the safe move is
// to drop everything.
func (s *Server) invalidateAll() {
	s.expensesCache.Purge()
	s.summaryCache.Purge()
	s.monthlyCache.Purge()
	s.categoryCache.Purge()
	s.overviewCache.Purge()
}
