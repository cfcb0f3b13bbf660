package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/vizion-pay/vizion_core/internal/config"
	"github.com/vizion-pay/vizion_core/internal/logging"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	fee, _ := decimal.NewFromString("0.029")
	pfee, _ := decimal.NewFromString("0.005")
	return config.Config{
		AppName:             "VizionCore",
		AppEnv:              "development",
		Port:                "8080",
		SupportedCurrencies: []string{"XCD", "USD"},
		FeePct:              fee,
		PlatformFeePct:      pfee,
		ProviderTimeout:     5 * time.Second,
		PaymentsPerMinute:   60,
		PlatformOwnerID:     "platform",
		WebhookTimeout:      2 * time.Second,
		WebhookAttempts:     1,
		WebhookBackoff:      time.Millisecond,
		SettlementInterval:  time.Hour,
	}
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New()
	if _, err := Setup(app, Deps{Cfg: testConfig(t), Logger: logging.Discard()}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, bearer string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

// bootstrapToken issues a full-scope token through the admin endpoint. Dev
// config has no admin key so the guard is open.
func bootstrapToken(t *testing.T, app *fiber.App) string {
	t.Helper()
	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/tokens", "", map[string]any{
		"business_id": "merchant-1",
		"name":        "test key",
		"scopes":      []string{"read", "write", "transactions", "users", "webhooks", "reports"},
	})
	if status != fiber.StatusCreated {
		t.Fatalf("token bootstrap failed with %d: %v", status, body)
	}
	value, _ := body["value"].(string)
	if value == "" {
		t.Fatal("token bootstrap returned no value")
	}
	return value
}

func TestPingAndHealth(t *testing.T) {
	app := newTestApp(t)

	status, body := doJSON(t, app, fiber.MethodGet, "/api/v1/ping", "", nil)
	if status != fiber.StatusOK || body["status"] != "ok" {
		t.Fatalf("ping: %d %v", status, body)
	}

	status, _ = doJSON(t, app, fiber.MethodGet, "/health", "", nil)
	if status != fiber.StatusOK {
		t.Fatalf("health: %d", status)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newTestApp(t)

	status, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/payments", "", map[string]any{})
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer, got %d", status)
	}

	status, _ = doJSON(t, app, fiber.MethodGet, "/api/v1/transactions", "", nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer, got %d", status)
	}
}

func TestWalletLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	value := bootstrapToken(t, app)

	status, created := doJSON(t, app, fiber.MethodPost, "/api/v1/wallets", value, map[string]any{
		"owner_id":   "merchant-1",
		"owner_kind": "merchant",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create wallet: %d %v", status, created)
	}
	walletID, _ := created["id"].(string)
	if walletID == "" {
		t.Fatal("wallet id missing from response")
	}

	status, got := doJSON(t, app, fiber.MethodGet, "/api/v1/wallets/"+walletID, value, nil)
	if status != fiber.StatusOK || got["status"] != "active" {
		t.Fatalf("get wallet: %d %v", status, got)
	}

	status, balance := doJSON(t, app, fiber.MethodGet, "/api/v1/wallets/"+walletID+"/balance?currency=XCD", value, nil)
	if status != fiber.StatusOK {
		t.Fatalf("balance: %d %v", status, balance)
	}
	if balance["available"] != "0" {
		t.Fatalf("expected zero available balance, got %v", balance["available"])
	}

	status, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/wallets/"+walletID+"/suspend", value, nil)
	if status != fiber.StatusOK {
		t.Fatalf("suspend: %d", status)
	}
	status, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/wallets/"+walletID+"/suspend", value, nil)
	if status != fiber.StatusConflict {
		t.Fatalf("double suspend should conflict, got %d", status)
	}
}

func TestPaymentFailureSurfacesTransactionID(t *testing.T) {
	app := newTestApp(t)
	value := bootstrapToken(t, app)

	for _, owner := range []string{"payer-1", "merchant-1"} {
		status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/wallets", value, map[string]any{
			"owner_id":   owner,
			"owner_kind": "user",
		})
		if status != fiber.StatusCreated {
			t.Fatalf("create wallet %s: %d %v", owner, status, body)
		}
	}

	// The payer holds no funds, so the ledger rejects the completion and the
	// API reports the failed record.
	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/payments", value, map[string]any{
		"amount":         "25.00",
		"currency":       "XCD",
		"method":         "card",
		"source_id":      "payer-1",
		"destination_id": "merchant-1",
	})
	if status != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422 insufficient funds, got %d %v", status, body)
	}
	txnID, _ := body["transaction_id"].(string)
	if txnID == "" {
		t.Fatal("failed payment must expose its transaction id")
	}

	status, txn := doJSON(t, app, fiber.MethodGet, "/api/v1/transactions/"+txnID, value, nil)
	if status != fiber.StatusOK {
		t.Fatalf("get transaction: %d %v", status, txn)
	}
	if txn["status"] != "failed" {
		t.Fatalf("expected failed record, got %v", txn["status"])
	}
}

func TestPaymentValidationOverHTTP(t *testing.T) {
	app := newTestApp(t)
	value := bootstrapToken(t, app)

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"bad amount", map[string]any{"amount": "abc", "currency": "XCD", "method": "card"}, fiber.StatusBadRequest},
		{"bad currency", map[string]any{"amount": "10", "currency": "GBP", "method": "card"}, fiber.StatusBadRequest},
		{"bad method", map[string]any{"amount": "10", "currency": "XCD", "method": "crypto"}, fiber.StatusBadRequest},
	}
	for _, tc := range cases {
		status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/payments", value, tc.body)
		if status != tc.want {
			t.Fatalf("%s: expected %d, got %d %v", tc.name, tc.want, status, body)
		}
	}
}

func TestWebhookRegistrationOverHTTP(t *testing.T) {
	app := newTestApp(t)
	value := bootstrapToken(t, app)

	status, created := doJSON(t, app, fiber.MethodPost, "/api/v1/webhooks", value, map[string]any{
		"url":    "https://example.com/hooks",
		"events": []string{"payment.succeeded"},
	})
	if status != fiber.StatusCreated {
		t.Fatalf("register webhook: %d %v", status, created)
	}
	if secret, _ := created["secret"].(string); secret == "" {
		t.Fatal("registration must return the signing secret")
	}

	status, listed := doJSON(t, app, fiber.MethodGet, "/api/v1/webhooks", value, nil)
	if status != fiber.StatusOK {
		t.Fatalf("list webhooks: %d", status)
	}
	endpoints, _ := listed["endpoints"].([]any)
	if len(endpoints) != 1 {
		t.Fatalf("expected 1 endpoint, got %d", len(endpoints))
	}
	first, _ := endpoints[0].(map[string]any)
	if secret, ok := first["secret"].(string); ok && secret != "" {
		t.Fatal("listing must not re-expose the secret")
	}
}

func TestTokenRevocationOverHTTP(t *testing.T) {
	app := newTestApp(t)

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/tokens", "", map[string]any{
		"business_id": "merchant-1",
		"name":        "short lived",
		"scopes":      []string{"read"},
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create token: %d %v", status, body)
	}
	tokenObj, _ := body["token"].(map[string]any)
	tokenID, _ := tokenObj["id"].(string)
	value, _ := body["value"].(string)
	if tokenID == "" || value == "" {
		t.Fatalf("incomplete token response: %v", body)
	}

	status, _ = doJSON(t, app, fiber.MethodGet, "/api/v1/transactions", value, nil)
	if status != fiber.StatusForbidden {
		t.Fatalf("read-only token lacks transactions scope, expected 403, got %d", status)
	}

	req := httptest.NewRequest(fiber.MethodDelete, "/api/v1/tokens/"+tokenID, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("delete token: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	status, _ = doJSON(t, app, fiber.MethodGet, "/api/v1/transactions", value, nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("revoked token must be unauthorized, got %d", status)
	}
}

func TestWithdrawalFlowOverHTTP(t *testing.T) {
	app := newTestApp(t)
	value := bootstrapToken(t, app)

	for owner, kind := range map[string]string{"platform": "platform", "merchant-1": "merchant"} {
		status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/wallets", value, map[string]any{
			"owner_id":   owner,
			"owner_kind": kind,
		})
		if status != fiber.StatusCreated {
			t.Fatalf("create wallet %s: %d %v", owner, status, body)
		}
	}

	// No funds: the request is rejected up front.
	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/withdrawals", value, map[string]any{
		"amount":           "50.00",
		"currency":         "XCD",
		"destination_kind": "bank_account",
	})
	if status == fiber.StatusCreated {
		t.Fatalf("expected rejection for unfunded withdrawal, got %d %v", status, body)
	}
}

func TestUnknownTransactionIs404(t *testing.T) {
	app := newTestApp(t)
	value := bootstrapToken(t, app)

	status, _ := doJSON(t, app, fiber.MethodGet, fmt.Sprintf("/api/v1/transactions/%s", "nope"), value, nil)
	if status != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}
