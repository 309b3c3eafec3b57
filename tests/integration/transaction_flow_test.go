package integration

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
)

// balanceMap extracts account/currency keyed balances from a /balances response.
func balanceMap(t *testing.T, result map[string]interface{}) map[string]string {
	t.Helper()
	entries, ok := result["balances"].([]interface{})
	if !ok {
		t.Fatalf("expected balances array, got: %v", result)
	}
	out := make(map[string]string, len(entries))
	for _, raw := range entries {
		entry := raw.(map[string]interface{})
		key := entry["account_name"].(string) + "/" + entry["currency"].(string)
		out[key] = entry["balance"].(string)
	}
	return out
}

func assertBalance(t *testing.T, balances map[string]string, key, want string) {
	t.Helper()
	got, ok := balances[key]
	if !ok {
		t.Fatalf("expected balance entry for %s, have %v", key, balances)
	}
	if !decimal.RequireFromString(got).Equal(decimal.RequireFromString(want)) {
		t.Errorf("balance %s: expected %s, got %s", key, want, got)
	}
}

func TestTransactionFlow_IncomeExpenseTransferConversion(t *testing.T) {
	app := setupApp(t)
	caller := "1001"

	// Income creates the Checking account on first mention.
	rec := app.request("POST", "/api/v1/transactions",
		`{"type":"income","amount":"2500","currency":"USD","account_to":"Checking"}`, caller)
	if rec.Code != http.StatusCreated {
		t.Fatalf("income: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("POST", "/api/v1/transactions",
		`{"type":"expense","amount":"50","currency":"USD","account_from":"Checking"}`, caller)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expense: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// Transfer auto-creates Savings.
	rec = app.request("POST", "/api/v1/transactions",
		`{"type":"transfer","amount":"500","currency":"USD","account_from":"Checking","account_to":"Savings"}`, caller)
	if rec.Code != http.StatusCreated {
		t.Fatalf("transfer: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("POST", "/api/v1/transactions",
		`{"type":"conversion","amount":"100","currency":"USD","currency_to":"EUR","account_from":"Checking","exchange_rate":"0.92"}`, caller)
	if rec.Code != http.StatusCreated {
		t.Fatalf("conversion: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/v1/balances", "", caller)
	if rec.Code != http.StatusOK {
		t.Fatalf("balances: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	balances := balanceMap(t, parseJSON(t, rec))
	assertBalance(t, balances, "Checking/USD", "1850")
	assertBalance(t, balances, "Checking/EUR", "92")
	assertBalance(t, balances, "Savings/USD", "500")

	// All four transactions are listed.
	rec = app.request("GET", "/api/v1/transactions", "", caller)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	if result["total_items"].(float64) != 4 {
		t.Errorf("expected 4 transactions, got %v", result["total_items"])
	}
}

func TestTransactionFlow_StrictRejectionLeavesNoTrace(t *testing.T) {
	app := setupApp(t)
	caller := "1002"

	rec := app.request("POST", "/api/v1/transactions",
		`{"type":"income","amount":"100","currency":"USD","account_to":"Wallet"}`, caller)
	if rec.Code != http.StatusCreated {
		t.Fatalf("income: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("POST", "/api/v1/transactions",
		`{"type":"expense","amount":"150","currency":"USD","account_from":"Wallet"}`, caller)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("overdraft: expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/v1/balances", "", caller)
	balances := balanceMap(t, parseJSON(t, rec))
	assertBalance(t, balances, "Wallet/USD", "100")

	rec = app.request("GET", "/api/v1/transactions", "", caller)
	result := parseJSON(t, rec)
	if result["total_items"].(float64) != 1 {
		t.Errorf("expected only the income row, got %v", result["total_items"])
	}
}

func TestTransactionFlow_TrackingModeSwitch(t *testing.T) {
	app := setupApp(t)
	caller := "1003"

	rec := app.request("PATCH", "/api/v1/users/tracking-mode", `{"mode":"logging"}`, caller)
	if rec.Code != http.StatusOK {
		t.Fatalf("mode switch: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Overdraft from an empty account passes in logging mode.
	rec = app.request("POST", "/api/v1/transactions",
		`{"type":"expense","amount":"30","currency":"USD","account_from":"Wallet"}`, caller)
	if rec.Code != http.StatusCreated {
		t.Fatalf("logging expense: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/v1/balances", "", caller)
	balances := balanceMap(t, parseJSON(t, rec))
	assertBalance(t, balances, "Wallet/USD", "-30")
}

func TestTransactionFlow_PendingQueueAndRetry(t *testing.T) {
	app := setupApp(t)
	caller := "1004"

	// No USD/EUR rate configured: the conversion is queued, not failed.
	rec := app.request("POST", "/api/v1/transactions",
		`{"type":"income","amount":"200","currency":"USD","account_to":"Bank"}`, caller)
	if rec.Code != http.StatusCreated {
		t.Fatalf("income: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("POST", "/api/v1/transactions",
		`{"type":"conversion","amount":"100","currency":"USD","currency_to":"EUR","account_from":"Bank"}`, caller)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("conversion: expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if parseJSON(t, rec)["status"] != "pending" {
		t.Fatal("expected pending status")
	}

	rec = app.request("GET", "/api/v1/pending-transactions", "", caller)
	if parseJSON(t, rec)["total_items"].(float64) != 1 {
		t.Fatal("expected one queued intent")
	}

	// Retry before the rate exists: the entry stays queued.
	rec = app.request("POST", "/api/v1/pending-transactions/retry", "", caller)
	if rec.Code != http.StatusOK {
		t.Fatalf("retry: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = app.request("GET", "/api/v1/pending-transactions", "", caller)
	if parseJSON(t, rec)["total_items"].(float64) != 1 {
		t.Fatal("expected intent to remain queued while rate is missing")
	}

	// Rate appears; the next sweep completes the stored intent.
	app.Rates.rates["USD/EUR"] = decimal.RequireFromString("0.92")

	rec = app.request("POST", "/api/v1/pending-transactions/retry", "", caller)
	if rec.Code != http.StatusOK {
		t.Fatalf("retry: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/v1/pending-transactions", "", caller)
	if parseJSON(t, rec)["total_items"].(float64) != 0 {
		t.Fatal("expected queue to drain after successful retry")
	}

	rec = app.request("GET", "/api/v1/balances", "", caller)
	balances := balanceMap(t, parseJSON(t, rec))
	assertBalance(t, balances, "Bank/USD", "100")
	assertBalance(t, balances, "Bank/EUR", "92")
}

func TestTransactionFlow_MissingIdentityHeader(t *testing.T) {
	app := setupApp(t)

	rec := app.request("GET", "/api/v1/balances", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity header, got %d", rec.Code)
	}
}

func TestTransactionFlow_UsersAreIsolated(t *testing.T) {
	app := setupApp(t)

	rec := app.request("POST", "/api/v1/transactions",
		`{"type":"income","amount":"100","currency":"USD","account_to":"Wallet"}`, "2001")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/v1/balances", "", "2002")
	balances := balanceMap(t, parseJSON(t, rec))
	if len(balances) != 0 {
		t.Errorf("expected no balances for other user, got %v", balances)
	}
}
