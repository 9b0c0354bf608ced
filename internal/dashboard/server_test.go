package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appconfig "costlens/config"
	"costlens/internal/state"
	"costlens/logger"
	"costlens/models"
)

func TestNormalizeAddress(t *testing.T) {
	cases := map[string]string{
		"":                           "0.0.0.0:8080",
		"  :9090  ":                  "0.0.0.0:9090",
		"localhost":                  "localhost:8080",
		"0.0.0.0:80":                 "0.0.0.0:80",
		"[::1]:443":                  "[::1]:443",
		"::1":                        "[::1]:8080",
		"*:8080":                     "0.0.0.0:8080",
		"http://13.200.112.203:8080": "13.200.112.203:8080",
		"http://:7070":               "0.0.0.0:7070",
		"https://dash.example.com/":  "dash.example.com:8080",
	}

	for input, want := range cases {
		if got := normalizeAddress(input); got != want {
			t.Fatalf("normalizeAddress(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNewServerDisabledReturnsNil(t *testing.T) {
	srv := NewServer(appconfig.DashboardConfig{Enabled: false}, appconfig.FormConfig{}, state.NewStore(), nil, logger.Logger())
	if srv != nil {
		t.Fatal("disabled dashboard must yield a nil server")
	}
	if srv.Address() != "" {
		t.Fatal("nil server address must be empty")
	}
}

func defaultParams() models.Parameters {
	return models.Parameters{
		Exchange:   "OKX",
		Symbol:     "BTC-USDT-SWAP",
		OrderType:  "market",
		Quantity:   100,
		Volatility: 0.3,
		FeeTier:    "VIP0",
	}
}

func newTestServer(t *testing.T) (*Server, http.Handler, *state.Store, *state.ParamStore) {
	t.Helper()

	cfg := appconfig.DashboardConfig{Enabled: true, Address: ":0", LogHistory: 50}
	form := appconfig.FormConfig{
		Exchanges:  []string{"OKX"},
		Symbols:    []string{"BTC-USDT-SWAP", "ETH-USDT-SWAP"},
		OrderTypes: []string{"market", "limit"},
		FeeTiers:   []string{"VIP0", "VIP1"},
	}

	store := state.NewStore()
	params := state.NewParamStore(defaultParams(), nil)

	srv := NewServer(cfg, form, store, params, logger.Logger())
	if srv == nil {
		t.Fatal("expected dashboard server, got nil")
	}

	router, err := srv.buildRouter("costlens")
	if err != nil {
		t.Fatalf("buildRouter failed: %v", err)
	}
	return srv, router, store, params
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string, out interface{}) int {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("unmarshal %s %s response: %v", method, path, err)
		}
	}
	return rec.Code
}

func TestStatusEndpointReflectsStore(t *testing.T) {
	_, router, store, _ := newTestServer(t)

	var status state.StatusView
	if code := doJSON(t, router, http.MethodGet, "/api/status", "", &status); code != http.StatusOK {
		t.Fatalf("GET /api/status = %d", code)
	}
	if status.Status != state.StatusDisconnected {
		t.Errorf("initial status = %s, want disconnected", status.Status)
	}

	store.SetStatus(state.StatusErrored)
	store.SetError("ANALYTICS_ERROR", "bad book")

	if code := doJSON(t, router, http.MethodGet, "/api/status", "", &status); code != http.StatusOK {
		t.Fatalf("GET /api/status = %d", code)
	}
	if status.Status != state.StatusErrored || status.ErrorMessage != "bad book" {
		t.Errorf("status not reflected: %+v", status)
	}
}

func TestOrderbookAndAnalyticsEndpoints(t *testing.T) {
	_, router, store, _ := newTestServer(t)

	var book state.OrderbookView
	doJSON(t, router, http.MethodGet, "/api/orderbook", "", &book)
	if book.HasData {
		t.Error("orderbook must start empty")
	}

	store.SetOrderbook(models.OrderbookSnapshot{
		Symbol: "BTC-USDT-SWAP",
		Bids:   [][]string{{"100", "1"}, {"99", "2"}},
		Asks:   [][]string{{"101", "1"}},
	})
	store.SetAnalytics(models.AnalyticsResult{NetCost: models.NetCostResult{Bps: 3.3}})

	doJSON(t, router, http.MethodGet, "/api/orderbook", "", &book)
	if !book.HasData || book.BidLevels != 2 || book.AskLevels != 1 {
		t.Errorf("orderbook view wrong: %+v", book)
	}

	var analytics state.AnalyticsView
	doJSON(t, router, http.MethodGet, "/api/analytics", "", &analytics)
	if !analytics.HasData || analytics.Result.NetCost.Bps != 3.3 {
		t.Errorf("analytics view wrong: %+v", analytics)
	}
}

func TestParameterEditEndpoint(t *testing.T) {
	_, router, _, params := newTestServer(t)

	var updated models.Parameters
	code := doJSON(t, router, http.MethodPost, "/api/parameters", `{"field":"quantity","value":"250"}`, &updated)
	if code != http.StatusOK {
		t.Fatalf("POST /api/parameters = %d", code)
	}
	if updated.Quantity != 250 {
		t.Errorf("response must carry the updated snapshot: %+v", updated)
	}
	if params.Snapshot().Quantity != 250 {
		t.Errorf("edit did not reach the parameter store")
	}
}

func TestParameterEditEndpointRejectsBadInput(t *testing.T) {
	_, router, _, params := newTestServer(t)

	cases := []string{
		`{"field":"quantity","value":"lots"}`,
		`{"field":"leverage","value":"10"}`,
		`{"value":"10"}`,
		`not json`,
	}
	for _, body := range cases {
		if code := doJSON(t, router, http.MethodPost, "/api/parameters", body, nil); code != http.StatusBadRequest {
			t.Errorf("POST %s = %d, want 400", body, code)
		}
	}

	if params.Snapshot().Quantity != 100 {
		t.Errorf("rejected edits must not change state: %+v", params.Snapshot())
	}
}

func TestFormEndpointServesStaticEnumeration(t *testing.T) {
	_, router, _, _ := newTestServer(t)

	var form map[string][]string
	if code := doJSON(t, router, http.MethodGet, "/api/form", "", &form); code != http.StatusOK {
		t.Fatalf("GET /api/form = %d", code)
	}
	if len(form["symbols"]) != 2 || form["order_types"][1] != "limit" {
		t.Errorf("form enumeration wrong: %v", form)
	}
}

func TestNewServerNormalizesConfiguredAddress(t *testing.T) {
	cfg := appconfig.DashboardConfig{Enabled: true, Address: ":9000"}
	srv := NewServer(cfg, appconfig.FormConfig{}, state.NewStore(), nil, logger.Logger())
	if srv == nil {
		t.Fatal("expected dashboard server, got nil")
	}
	if got := srv.Address(); got != "0.0.0.0:9000" {
		t.Fatalf("server address = %q, want %q", got, "0.0.0.0:9000")
	}
}
