package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"plata/internal/fx"
	"plata/internal/handlers"
	"plata/internal/logger"
	"plata/internal/middleware"
	"plata/internal/models"
	"plata/internal/services"
	"plata/internal/validator"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
	Rates  *fixedRateProvider
}

// fixedRateProvider serves rates from a mutable table, standing in for the
// network providers. An empty table makes every pair unavailable.
type fixedRateProvider struct {
	rates map[string]decimal.Decimal
}

func (p *fixedRateProvider) Name() string { return "fixed" }

func (p *fixedRateProvider) Supports(base, quote string) bool {
	_, ok := p.rates[base+"/"+quote]
	return ok
}

func (p *fixedRateProvider) FetchRate(_ context.Context, base, quote string) (decimal.Decimal, string, error) {
	if value, ok := p.rates[base+"/"+quote]; ok {
		return value, "fixed", nil
	}
	return decimal.Zero, "", fx.ErrUnsupportedPair
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.User{},
		&models.Account{},
		&models.AccountBalance{},
		&models.Transaction{},
		&models.ExchangeRate{},
		&models.PendingTransaction{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)

	rateProvider := &fixedRateProvider{rates: map[string]decimal.Decimal{}}
	rateService := fx.NewService(db, []fx.Provider{rateProvider}, fx.Options{
		MemoryTTL:   time.Minute,
		StoredTTL:   time.Hour,
		Timeout:     time.Second,
		Attempts:    1,
		BackoffBase: time.Millisecond,
	})

	// Services
	userService := services.NewUserService(db)
	accountService := services.NewAccountService(db)
	balanceService := services.NewBalanceService()
	pendingService := services.NewPendingService(db, 10)
	transactionService := services.NewTransactionService(db, userService, accountService, balanceService, rateService, pendingService)

	// Handlers
	userHandler := handlers.NewUserHandler(userService)
	accountHandler := handlers.NewAccountHandler(accountService)
	transactionHandler := handlers.NewTransactionHandler(transactionService)
	pendingHandler := handlers.NewPendingHandler(pendingService, transactionService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Identity(userService))

	v1.PATCH("/users/tracking-mode", userHandler.UpdateTrackingMode)

	accounts := v1.Group("/accounts")
	accounts.POST("", accountHandler.CreateAccount)
	accounts.GET("", accountHandler.ListAccounts)
	accounts.GET("/:id", accountHandler.GetAccountByID)

	v1.GET("/balances", accountHandler.ListBalances)

	transactions := v1.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.ListTransactions)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.PATCH("/:id", transactionHandler.UpdateTransaction)

	pending := v1.Group("/pending-transactions")
	pending.GET("", pendingHandler.ListPending)
	pending.POST("/retry", pendingHandler.RetryAll)

	return &testApp{DB: db, Router: router, Rates: rateProvider}
}

// request makes an HTTP request to the test router as the given caller.
func (app *testApp) request(method, path, body, telegramUserID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if telegramUserID != "" {
		req.Header.Set("X-Telegram-User-ID", telegramUserID)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}
