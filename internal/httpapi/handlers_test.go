package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"retailpos/backend/internal/service"
	"retailpos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()
	t.Setenv("SEED_ADMIN_PASSWORD", "admin-pass-1")
	t.Setenv("SEED_CASHIER_PASSWORD", "cashier-pass-1")

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, nil, nil, memory.DefaultStoreID)
	auth := NewAuthManager(testSecret, time.Hour, repo)

	return New(svc, auth, nil)
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, handler http.Handler, username string, password string) string {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s failed: %d (body: %s)", username, rec.Code, rec.Body.String())
	}
	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode login body: %v", err)
	}
	return body.AccessToken
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestLoginAndBadPassword(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	login(t, handler, "cashier", "cashier-pass-1")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "cashier",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequestsWithoutTokenRejected(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCheckoutFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "cashier", "cashier-pass-1")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"payment_method": "cash",
		"tax_rate":       "10",
		"line_items": []map[string]any{
			{"product_id": "prod-milk-01", "quantity": "2", "unit_price": "1.99"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var created struct {
		Sale struct {
			ID            string `json:"id"`
			FinalAmount   string `json:"final_amount"`
			ReceiptNumber string `json:"receipt_number"`
		} `json:"sale"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if created.Sale.FinalAmount != "4.378" {
		t.Fatalf("expected final amount 4.378, got %s", created.Sale.FinalAmount)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales/receipt/"+created.Sale.ReceiptNumber, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on receipt lookup, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales/"+created.Sale.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on sale lookup, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestCheckoutInsufficientStockMapsToConflict(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "cashier", "cashier-pass-1")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"payment_method": "cash",
		"line_items": []map[string]any{
			{"product_id": "prod-milk-01", "quantity": "9999", "unit_price": "1.99"},
		},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestCheckoutValidationMapsToBadRequest(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "cashier", "cashier-pass-1")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"payment_method": "cash",
		"line_items":     []map[string]any{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestInventoryAdjustRoleGate(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	cashierToken := login(t, handler, "cashier", "cashier-pass-1")
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/inventory/adjust", cashierToken, map[string]any{
		"product_id":      "prod-milk-01",
		"quantity_change": "5",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", rec.Code)
	}

	stockToken := login(t, handler, "stock", "cashier-pass-1")
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/inventory/adjust", stockToken, map[string]any{
		"product_id":      "prod-milk-01",
		"quantity_change": "-5",
		"reason":          "damaged cartons",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for stock keeper, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestProductCRUDOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	adminToken := login(t, handler, "admin", "admin-pass-1")
	cashierToken := login(t, handler, "cashier", "cashier-pass-1")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", cashierToken, map[string]any{
		"sku": "SKU-JAM-01", "name": "Strawberry Jam", "price": "4.20", "cost": "2.90",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier create, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products", adminToken, map[string]any{
		"sku": "SKU-JAM-01", "name": "Strawberry Jam", "price": "4.20", "cost": "2.90",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Product struct {
			ID string `json:"id"`
		} `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode product: %v", err)
	}

	// Duplicate SKU maps to 409.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products", adminToken, map[string]any{
		"sku": "SKU-JAM-01", "name": "Another Jam", "price": "4.20", "cost": "2.90",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate sku, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/sku/SKU-JAM-01", cashierToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on sku lookup, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPatch, "/api/v1/products/"+created.Product.ID, adminToken, map[string]any{
		"price": "4.50",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on patch, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/products/"+created.Product.ID, adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/"+created.Product.ID, adminToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestAnalyticsEndpointsRoleGate(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	cashierToken := login(t, handler, "cashier", "cashier-pass-1")
	adminToken := login(t, handler, "admin", "admin-pass-1")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/analytics/customer-insights", cashierToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier insights, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/analytics/customer-insights", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin insights, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/analytics/sales-summary", cashierToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for sales summary, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/analytics/sales-summary?from=bogus", cashierToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad time parameter, got %d", rec.Code)
	}
}

func TestUserCreationRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	cashierToken := login(t, handler, "cashier", "cashier-pass-1")
	adminToken := login(t, handler, "admin", "admin-pass-1")

	payload := map[string]any{
		"username": "newcashier", "password": "cashier-pass-2", "role": "cashier", "store_id": memory.DefaultStoreID,
	}
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/users", cashierToken, payload)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/users", adminToken, payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	login(t, handler, "newcashier", "cashier-pass-2")
}

func TestUserListingRequiresAdminAndHidesHashes(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	cashierToken := login(t, handler, "cashier", "cashier-pass-1")
	adminToken := login(t, handler, "admin", "admin-pass-1")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/users", cashierToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/users", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	raw := rec.Body.String()
	if strings.Contains(raw, "password") || strings.Contains(raw, "$2a$") {
		t.Fatalf("user listing leaks credentials: %s", raw)
	}

	var body struct {
		Users []struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"users"`
	}
	if err := json.NewDecoder(bytes.NewReader([]byte(raw))).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Users) == 0 {
		t.Fatalf("expected seeded accounts in listing")
	}
	seen := map[string]bool{}
	for _, u := range body.Users {
		seen[u.Username] = true
	}
	if !seen["admin"] || !seen["cashier"] {
		t.Fatalf("missing seeded accounts: %+v", body.Users)
	}
}

func TestCustomerUpdateAndPhoneLookupOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	adminToken := login(t, handler, "admin", "admin-pass-1")
	cashierToken := login(t, handler, "cashier", "cashier-pass-1")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/customers", cashierToken, map[string]any{
		"name": "Asha", "phone": "555-0101",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create customer failed: %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Customer struct {
			ID string `json:"id"`
		} `json:"customer"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	rec = doJSON(t, handler, http.MethodPatch, "/api/v1/customers/"+created.Customer.ID, cashierToken, map[string]any{
		"email": "asha@example.com",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier update, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPatch, "/api/v1/customers/"+created.Customer.ID, adminToken, map[string]any{
		"email": "asha@example.com",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update customer failed: %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/customers/phone/555-0101", cashierToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("phone lookup failed: %d (body: %s)", rec.Code, rec.Body.String())
	}
	var found struct {
		Customer struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"customer"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&found); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if found.Customer.ID != created.Customer.ID || found.Customer.Email != "asha@example.com" {
		t.Fatalf("unexpected lookup result: %+v", found.Customer)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/customers/phone/555-9999", cashierToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown phone, got %d", rec.Code)
	}
}

func TestAttemptLimiterSweepsIdleKeys(t *testing.T) {
	limiter := newAttemptLimiter(2, 10*time.Millisecond)

	if !limiter.Allow("10.0.0.1") {
		t.Fatalf("first attempt should be allowed")
	}

	time.Sleep(25 * time.Millisecond)

	if !limiter.Allow("10.0.0.2") {
		t.Fatalf("attempt from a second client should be allowed")
	}

	limiter.mu.Lock()
	_, stale := limiter.entries["10.0.0.1"]
	limiter.mu.Unlock()
	if stale {
		t.Fatalf("expected the idle client key to be dropped")
	}
}

func TestAttemptLimiterBlocksOverMax(t *testing.T) {
	limiter := newAttemptLimiter(2, time.Minute)

	if !limiter.Allow("10.0.0.1") || !limiter.Allow("10.0.0.1") {
		t.Fatalf("attempts within the limit should be allowed")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatalf("third attempt inside the window should be blocked")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Fatalf("other clients are limited independently")
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "cashier", "cashier-pass-1")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/customers", token, map[string]any{
		"name": "Ben", "phone": "555-0102", "unexpected": true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}
