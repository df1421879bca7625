package ecommerce

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/shopsync/internal/domain/integration"
)

func privateSettings(shopURL string) *integration.Settings {
	return &integration.Settings{
		AppType:  integration.AppTypePrivate,
		ShopURL:  shopURL,
		APIKey:   "key",
		Password: "secret",
	}
}

func newTestClient(t *testing.T, settings *integration.Settings, cfg ClientConfig) (*Client, *[]time.Duration) {
	t.Helper()
	c, err := NewClient(settings, cfg, nil)
	require.NoError(t, err)
	slept := make([]time.Duration, 0)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return c, &slept
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestBaseURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "shop.myshopify.com", want: "https://shop.myshopify.com"},
		{in: "https://shop.myshopify.com/", want: "https://shop.myshopify.com"},
		{in: "http://127.0.0.1:8080", want: "http://127.0.0.1:8080"},
		{in: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := baseURL(tt.in)
			if tt.wantErr {
				var cfgErr *integration.ConfigurationError
				assert.ErrorAs(t, err, &cfgErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdminPath(t *testing.T) {
	assert.Equal(t, "/admin/products.json", ClientConfig{}.adminPath("products.json"))
	assert.Equal(t, "/admin/api/2024-01/products/1.json", ClientConfig{APIVersion: "2024-01"}.adminPath("/products/1.json"))
}

func TestCredentialsFor(t *testing.T) {
	tests := []struct {
		name     string
		settings integration.Settings
		field    string
	}{
		{"private without password", integration.Settings{AppType: integration.AppTypePrivate, APIKey: "k"}, "api_key"},
		{"public without token", integration.Settings{AppType: integration.AppTypePublic}, "access_token"},
		{"unknown app type", integration.Settings{AppType: "Custom"}, "app_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := credentialsFor(&tt.settings)
			var cfgErr *integration.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.True(t, integration.IsFatal(err))
		})
	}
}

func TestRetryDelay(t *testing.T) {
	limit := 30 * time.Second
	assert.Equal(t, 2*time.Second, retryDelay("2", 0, limit))
	assert.Equal(t, 500*time.Millisecond, retryDelay("0.5", 0, limit))
	assert.Equal(t, time.Second, retryDelay("", 0, limit))
	assert.Equal(t, 4*time.Second, retryDelay("garbage", 2, limit))
	assert.Equal(t, limit, retryDelay("120", 0, limit))
	assert.Equal(t, limit, retryDelay("", 10, limit))
}

func TestNextPage(t *testing.T) {
	link := `<https://shop/admin/products.json?page_info=p1&limit=250>; rel="previous", <https://shop/admin/products.json?page_info=p3&limit=250>; rel="next"`
	assert.Equal(t, "https://shop/admin/products.json?page_info=p3&limit=250", nextPage(link))
	assert.Empty(t, nextPage(""))
	assert.Empty(t, nextPage(`<https://shop/a>; rel="previous"`))
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func TestClient_BasicAuthForPrivateApps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		assert.Empty(t, r.Header.Get(headerAccessToken))
		assert.Equal(t, "/admin/shop.json", r.URL.Path)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, privateSettings(srv.URL), ClientConfig{})
	var out map[string]bool
	require.NoError(t, c.Get(context.Background(), "shop.json", &out))
	assert.True(t, out["ok"])
}

func TestClient_TokenHeaderForPublicApps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, ok := r.BasicAuth()
		assert.False(t, ok)
		assert.Equal(t, "tok", r.Header.Get(headerAccessToken))
		assert.Equal(t, "/admin/api/2024-01/shop.json", r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	settings := &integration.Settings{AppType: integration.AppTypePublic, ShopURL: srv.URL, AccessToken: "tok"}
	c, _ := newTestClient(t, settings, ClientConfig{APIVersion: "2024-01"})
	var out map[string]any
	require.NoError(t, c.Get(context.Background(), "shop.json", &out))
}

func TestClient_Non2xxIsRemoteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":{"title":["can't be blank"]}}`))
	}))
	defer srv.Close()

	c, slept := newTestClient(t, privateSettings(srv.URL), ClientConfig{})
	err := c.Post(context.Background(), "products.json", map[string]string{}, nil)

	var httpErr *integration.RemoteHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.StatusCode)
	assert.Equal(t, http.MethodPost, httpErr.Method)
	assert.Equal(t, "/admin/products.json", httpErr.Path)
	assert.Contains(t, httpErr.Body, "can't be blank")
	assert.Empty(t, *slept)
}

func TestClient_RetriesRateLimitThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2.0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"a":1}`, string(body))
		_, _ = w.Write([]byte(`{"done":true}`))
	}))
	defer srv.Close()

	c, slept := newTestClient(t, privateSettings(srv.URL), ClientConfig{MaxRetries: 3})
	var out map[string]bool
	require.NoError(t, c.Put(context.Background(), "products/1.json", map[string]int{"a": 1}, &out))

	assert.True(t, out["done"])
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second}, *slept)
}

func TestClient_RateLimitExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, slept := newTestClient(t, privateSettings(srv.URL), ClientConfig{MaxRetries: 3, MaxBackoff: 3 * time.Second})
	err := c.Get(context.Background(), "products.json", &map[string]any{})

	assert.ErrorIs(t, err, integration.ErrRemoteRateLimited)
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, *slept)
}

func TestClient_CancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewClient(privateSettings(srv.URL), ClientConfig{MaxRetries: 3}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepContext(ctx, d)
	}

	err = c.Get(ctx, "products.json", &map[string]any{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, privateSettings(srv.URL), ClientConfig{})
	err := c.Get(context.Background(), "products.json", &map[string]any{})
	assert.ErrorIs(t, err, integration.ErrRemoteInvalidPayload)
}

func TestClient_TransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, _ := newTestClient(t, privateSettings(url), ClientConfig{})
	err := c.Delete(context.Background(), "webhooks/1.json")
	assert.ErrorIs(t, err, integration.ErrRemoteUnavailable)
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}

func TestClient_GetPagesFollowsLinkHeader(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "250", r.URL.Query().Get("limit"))
		switch r.URL.Query().Get("page_info") {
		case "":
			w.Header().Set("Link", `<`+srv.URL+`/admin/products.json?limit=250&page_info=p2>; rel="next"`)
			_ = json.NewEncoder(w).Encode(productsEnvelope{Products: []integration.RemoteProduct{{ID: 1}}})
		case "p2":
			w.Header().Set("Link", `<`+srv.URL+`/admin/products.json?limit=250>; rel="previous"`)
			_ = json.NewEncoder(w).Encode(productsEnvelope{Products: []integration.RemoteProduct{{ID: 2}, {ID: 3}}})
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page_info"))
		}
	}))
	defer srv.Close()

	c, _ := newTestClient(t, privateSettings(srv.URL), ClientConfig{})
	g := NewShopifyGateway(c)
	products, err := g.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, int64(3), products[2].ID)
}

func TestClient_GetPagesStopsOnVisitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, privateSettings(srv.URL), ClientConfig{})
	boom := errors.New("boom")
	err := c.GetPages(context.Background(), "orders.json", nil, func([]byte) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestDecode_Decimal(t *testing.T) {
	var v integration.RemoteVariant
	require.NoError(t, decode([]byte(`{"id":10,"sku":"A1","price":"9.99"}`), &v))
	assert.True(t, decimal.RequireFromString("9.99").Equal(v.Price))
}
