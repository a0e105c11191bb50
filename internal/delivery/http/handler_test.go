package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/jumboapi/backend/config"
	"github.com/jumboapi/backend/internal/domain"
	"github.com/jumboapi/backend/internal/infrastructure/jumbo"
	"github.com/jumboapi/backend/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeAccount is a canned AccountClient.
type fakeAccount struct {
	authenticated bool
	receipt       *jumbo.ReceiptDetail
	err           error
}

func (f *fakeAccount) IsAuthenticated() bool { return f.authenticated }
func (f *fakeAccount) AuthInfo() jumbo.AuthInfo {
	return jumbo.AuthInfo{Authenticated: f.authenticated}
}
func (f *fakeAccount) Login(ctx context.Context, username, password string) error { return f.err }
func (f *fakeAccount) GetBasket(ctx context.Context) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"id":"b-1"}`), nil
}
func (f *fakeAccount) AddToBasket(ctx context.Context, sku string, quantity float64) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"id":"b-1"}`), nil
}
func (f *fakeAccount) RemoveFromBasket(ctx context.Context, lineID string) (json.RawMessage, error) {
	return json.RawMessage(`{"id":"b-1"}`), f.err
}
func (f *fakeAccount) UpdateBasketQuantity(ctx context.Context, lineID string, quantity float64) (json.RawMessage, error) {
	return json.RawMessage(`{"id":"b-1"}`), f.err
}
func (f *fakeAccount) GetLists(ctx context.Context, listLimit, itemLimit int) (json.RawMessage, error) {
	return json.RawMessage(`{"customerLists":{"items":[]}}`), f.err
}
func (f *fakeAccount) GetList(ctx context.Context, listID string, itemLimit int) (json.RawMessage, error) {
	return json.RawMessage(`{"id":"` + listID + `"}`), f.err
}
func (f *fakeAccount) GetOrders(ctx context.Context, ordersLimit, receiptsPage, receiptsPageSize int) (json.RawMessage, error) {
	return json.RawMessage(`{"onlineOrders":{"orders":[]}}`), f.err
}
func (f *fakeAccount) GetOrderDetails(ctx context.Context, orderID int64) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"orderId":42}`), nil
}
func (f *fakeAccount) GetReceipt(ctx context.Context, transactionID string) (*jumbo.ReceiptDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.receipt, nil
}

// fakeCatalog is a minimal in-memory catalog.
type fakeCatalog struct {
	products map[string]domain.CatalogProduct
	barcodes map[string]string
	searches map[string][]string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products: make(map[string]domain.CatalogProduct),
		barcodes: make(map[string]string),
		searches: make(map[string][]string),
	}
}

func (f *fakeCatalog) GetBySku(ctx context.Context, sku string) (*domain.CatalogProduct, error) {
	product, ok := f.products[sku]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &product, nil
}

func (f *fakeCatalog) GetByBarcode(ctx context.Context, ean string) (*domain.CatalogProduct, error) {
	sku, ok := f.barcodes[ean]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return f.GetBySku(ctx, sku)
}

func (f *fakeCatalog) Search(ctx context.Context, query string, limit int) ([]domain.CatalogProduct, error) {
	var out []domain.CatalogProduct
	for _, sku := range f.searches[query] {
		out = append(out, domain.CatalogProduct{SKU: sku})
	}
	return out, nil
}

func (f *fakeCatalog) FetchProducts(ctx context.Context, skus []string) (map[string]domain.CatalogProduct, error) {
	out := make(map[string]domain.CatalogProduct)
	for _, sku := range skus {
		if product, ok := f.products[sku]; ok {
			out[sku] = product
		}
	}
	return out, nil
}

type fakeExternal struct{}

func (f *fakeExternal) LookupBarcode(ctx context.Context, barcode string) (*domain.ExternalProduct, error) {
	return nil, domain.ErrProductNotFound
}

type fakeCache struct {
	entries map[string]domain.CacheEntry
}

func newFakeCache() *fakeCache { return &fakeCache{entries: make(map[string]domain.CacheEntry)} }

func (f *fakeCache) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	entry, ok := f.entries[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return &entry, nil
}
func (f *fakeCache) Put(ctx context.Context, key string, entry *domain.CacheEntry) error {
	f.entries[key] = *entry
	return nil
}
func (f *fakeCache) Clear(ctx context.Context) error {
	f.entries = make(map[string]domain.CacheEntry)
	return nil
}

type fakeSettings struct {
	settings domain.MatchSettings
}

func (f *fakeSettings) Get() (domain.MatchSettings, error) { return f.settings, nil }
func (f *fakeSettings) Update(patch domain.SettingsPatch) (domain.MatchSettings, error) {
	updated := patch.Apply(f.settings)
	if err := updated.Validate(); err != nil {
		return f.settings, err
	}
	f.settings = updated
	return f.settings, nil
}
func (f *fakeSettings) SetCredentials(creds domain.Credentials) error { return nil }
func (f *fakeSettings) Credentials() (domain.Credentials, bool) {
	return domain.Credentials{}, false
}

type fixture struct {
	router   *gin.Engine
	account  *fakeAccount
	catalog  *fakeCatalog
	cache    *fakeCache
	settings *fakeSettings
}

func newFixture() *fixture {
	account := &fakeAccount{authenticated: true}
	catalog := newFakeCatalog()
	cache := newFakeCache()
	settings := &fakeSettings{settings: domain.DefaultMatchSettings()}

	barcodes := usecase.NewBarcodeService(catalog, &fakeExternal{}, cache, settings, false)
	receipts := usecase.NewReceiptService(catalog, cache, settings, false)
	handler := NewHandler(account, catalog, barcodes, receipts, settings, cache)

	cfg := &config.Config{}
	cfg.Server.Environment = "test"
	cfg.Server.AllowedOrigins = []string{"http://localhost:*"}

	return &fixture{
		router:   SetupRouter(cfg, handler),
		account:  account,
		catalog:  catalog,
		cache:    cache,
		settings: settings,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response JSON: %v\n%s", err, w.Body.String())
	}
	return body
}

func TestHealthCheck(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "healthy" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["authenticated"] != true {
		t.Errorf("authenticated = %v, want true", body["authenticated"])
	}
}

func TestAuthStatus(t *testing.T) {
	f := newFixture()
	f.account.authenticated = false

	w := f.do(t, http.MethodGet, "/api/v1/auth/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["authenticated"] != false {
		t.Errorf("authenticated = %v, want false", body["authenticated"])
	}
}

func TestLogin_MissingFields(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "only"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSearchProduct(t *testing.T) {
	f := newFixture()
	f.catalog.products["123456PAK"] = domain.CatalogProduct{
		SKU:   "123456PAK",
		Title: "Jumbo Pindakaas",
		Price: domain.ProductPrice{Price: 289},
	}

	t.Run("found", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/products/search?sku=123456PAK", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		body := decodeBody(t, w)
		if body["title"] != "Jumbo Pindakaas" {
			t.Errorf("title = %v", body["title"])
		}
	})

	t.Run("missing sku parameter", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/products/search", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("unknown sku", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/products/search?sku=UNKNOWN", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})
}

func TestLookupBarcode(t *testing.T) {
	f := newFixture()
	f.catalog.products["123456PAK"] = domain.CatalogProduct{
		SKU:   "123456PAK",
		EAN:   "8718452829408",
		Title: "Jumbo Pindakaas",
	}
	f.catalog.barcodes["8718452829408"] = "123456PAK"

	t.Run("exact hit", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/products/barcode", map[string]string{"barcode": "8718452829408"})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
		}
		body := decodeBody(t, w)
		if body["sku"] != "123456PAK" || body["verified"] != true {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("unknown barcode", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/products/barcode", map[string]string{"barcode": "0000000000000"})
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("missing barcode", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/products/barcode", map[string]string{})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestSettingsRoundTrip(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodGet, "/api/v1/settings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["confidenceThreshold"] != float64(50) {
		t.Errorf("confidenceThreshold = %v, want 50", body["confidenceThreshold"])
	}

	w = f.do(t, http.MethodPut, "/api/v1/settings", map[string]interface{}{"confidenceThreshold": 80})
	if w.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, want 200: %s", w.Code, w.Body.String())
	}
	body = decodeBody(t, w)
	if body["confidenceThreshold"] != float64(80) {
		t.Errorf("confidenceThreshold after update = %v, want 80", body["confidenceThreshold"])
	}
}

func TestUpdateSettings_RejectsInvalid(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodPut, "/api/v1/settings", map[string]interface{}{"confidenceThreshold": 150})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	// Settings unchanged after the rejected update
	if f.settings.settings.ConfidenceThreshold != 50 {
		t.Errorf("ConfidenceThreshold = %d, want unchanged 50", f.settings.settings.ConfidenceThreshold)
	}
}

func TestClearMatchCache(t *testing.T) {
	f := newFixture()
	f.cache.entries["barcode:8718452829408"] = domain.CacheEntry{SKU: "X"}

	w := f.do(t, http.MethodPost, "/api/v1/settings/clear-cache", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(f.cache.entries) != 0 {
		t.Errorf("cache entries remain after clear")
	}
}

func TestBasketEndpoints(t *testing.T) {
	f := newFixture()

	t.Run("get basket", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/basket", nil)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("add requires sku", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/basket/add", map[string]interface{}{"quantity": 2})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("update quantity must be positive", func(t *testing.T) {
		w := f.do(t, http.MethodPatch, "/api/v1/basket/items/line-1", map[string]interface{}{"quantity": -1})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("not authenticated maps to 401", func(t *testing.T) {
		f.account.err = domain.ErrNotAuthenticated
		defer func() { f.account.err = nil }()

		w := f.do(t, http.MethodGet, "/api/v1/basket", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("upstream failure maps to 502", func(t *testing.T) {
		f.account.err = domain.ErrCatalogUnavailable
		defer func() { f.account.err = nil }()

		w := f.do(t, http.MethodGet, "/api/v1/basket", nil)
		if w.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", w.Code)
		}
	})
}

func TestGetOrderDetails_InvalidID(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodGet, "/api/v1/orders/not-a-number", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// storeReceiptJSON is a minimal print layout with one matchable item.
func storeReceiptJSON(t *testing.T) string {
	t.Helper()
	layout := map[string]interface{}{
		"documents": []interface{}{
			map[string]interface{}{
				"documents": []interface{}{
					map[string]interface{}{
						"printSections": []interface{}{
							map[string]interface{}{
								"textObjects": []interface{}{
									map[string]interface{}{
										"textLines": []interface{}{
											map[string]interface{}{"texts": []interface{}{
												map[string]string{"text": "OMSCHRIJVING"},
												map[string]string{"text": "BEDRAG"},
											}},
											map[string]interface{}{"texts": []interface{}{
												map[string]string{"text": "PINDAKAAS 600G"},
												map[string]string{"text": "2,89"},
											}},
											map[string]interface{}{"texts": []interface{}{
												map[string]string{"text": "Totaal"},
												map[string]string{"text": "2,89"},
											}},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}
	raw, err := json.Marshal(layout)
	if err != nil {
		t.Fatalf("failed to build receipt fixture: %v", err)
	}
	return string(raw)
}

func TestGetReceipt_StoreReceiptEnriched(t *testing.T) {
	f := newFixture()
	f.catalog.searches["PINDAKAAS 600G"] = []string{"123456PAK"}
	f.catalog.products["123456PAK"] = domain.CatalogProduct{
		SKU:      "123456PAK",
		Title:    "Jumbo Pindakaas Naturel",
		Subtitle: "600 g",
		Price:    domain.ProductPrice{Price: 289},
	}
	f.account.receipt = &jumbo.ReceiptDetail{
		TransactionID: "100/200/300",
		ReceiptSource: "STORE",
		ReceiptImage: &jumbo.ReceiptImage{
			Type:  "JSON",
			Image: storeReceiptJSON(t),
		},
	}

	w := f.do(t, http.MethodGet, "/api/v1/receipts/100/200/300", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)

	items, ok := body["items"].([]interface{})
	if !ok || len(items) != 1 {
		t.Fatalf("items = %v, want 1 parsed line", body["items"])
	}
	item := items[0].(map[string]interface{})
	if item["sku"] != "123456PAK" {
		t.Errorf("item sku = %v, want catalog enrichment for store receipts", item["sku"])
	}
	if body["total"] != 2.89 {
		t.Errorf("total = %v, want 2.89", body["total"])
	}
}

func TestGetReceipt_OnlineReceiptNotEnriched(t *testing.T) {
	f := newFixture()
	f.catalog.searches["PINDAKAAS 600G"] = []string{"123456PAK"}
	f.catalog.products["123456PAK"] = domain.CatalogProduct{
		SKU:   "123456PAK",
		Title: "Jumbo Pindakaas Naturel",
	}
	f.account.receipt = &jumbo.ReceiptDetail{
		TransactionID: "987654-20251102",
		ReceiptSource: "ONLINE",
		ReceiptImage: &jumbo.ReceiptImage{
			Type:  "JSON",
			Image: storeReceiptJSON(t),
		},
	}

	w := f.do(t, http.MethodGet, "/api/v1/receipts/987654-20251102", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)

	if body["orderId"] != float64(987654) {
		t.Errorf("orderId = %v, want 987654 extracted from the transaction ID", body["orderId"])
	}
	items := body["items"].([]interface{})
	item := items[0].(map[string]interface{})
	if _, enriched := item["sku"]; enriched {
		t.Errorf("online receipt items were enriched: %v", item)
	}
}

func TestGetReceipt_NotFound(t *testing.T) {
	f := newFixture()
	f.account.err = domain.ErrProductNotFound

	w := f.do(t, http.MethodGet, "/api/v1/receipts/unknown", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestUpdateCredentials(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodPut, "/api/v1/settings/credentials", map[string]string{
		"username": "user@example.com",
		"password": "hunter2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "saved" {
		t.Errorf("status field = %v, want saved", body["status"])
	}

	w = f.do(t, http.MethodPut, "/api/v1/settings/credentials", map[string]string{"username": ""})
	body = decodeBody(t, w)
	if body["status"] != "cleared" {
		t.Errorf("status field = %v, want cleared", body["status"])
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	f := newFixture()

	t.Run("generates an id", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/health", nil)
		if w.Header().Get(RequestIDHeader) == "" {
			t.Errorf("no %s header on response", RequestIDHeader)
		}
	})

	t.Run("honors a caller-supplied id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "caller-id-1")
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)

		if got := w.Header().Get(RequestIDHeader); got != "caller-id-1" {
			t.Errorf("request id = %q, want caller-id-1", got)
		}
	})
}

func TestCORSMiddleware(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/settings", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestIsAllowedOrigin(t *testing.T) {
	allowed := []string{"http://localhost:*", "https://app.example.com"}

	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:5173", true},
		{"http://localhost:3000", true},
		{"https://app.example.com", true},
		{"https://evil.example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isAllowedOrigin(tt.origin, allowed); got != tt.want {
			t.Errorf("isAllowedOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestRouteNotFound(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodGet, "/api/v1/unknown", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
