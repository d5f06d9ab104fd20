package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/laundry-billing/internal/domain/auth"
	"github.com/xenking/laundry-billing/internal/domain/order"
	"github.com/xenking/laundry-billing/internal/domain/pricing"
	"github.com/xenking/laundry-billing/internal/domain/tariff"
)

// --- Mock implementations ---

type mockAPIKeyRepo struct {
	info *auth.APIKeyInfo
	err  error
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.info == nil || m.info.KeyHash != hash {
		return nil, auth.ErrKeyNotFound
	}
	return m.info, nil
}

type mockOrderService struct {
	snapshot tariff.Snapshot
	quote    *order.Quote
	submit   *order.SubmitResult
	orders   map[string]*order.Order
	recent   []order.Summary
	stats    *order.DailyStats
	customer *order.Customer
	err      error

	lastBranch   string
	lastStaff    string
	lastQuote    order.QuoteRequest
	lastSubmit   order.SubmitRequest
	lastMethod   order.PaymentMethod
	lastLimit    int
	lastDay      time.Time
	handoverCall int
}

var testLoc = time.UTC

func (m *mockOrderService) Snapshot(_ context.Context, branchID string) (tariff.Snapshot, error) {
	m.lastBranch = branchID
	return m.snapshot, m.err
}

func (m *mockOrderService) Quote(_ context.Context, branchID string, req order.QuoteRequest) (*order.Quote, error) {
	m.lastBranch = branchID
	m.lastQuote = req
	return m.quote, m.err
}

func (m *mockOrderService) Submit(_ context.Context, branchID, staffID string, req order.SubmitRequest) (*order.SubmitResult, error) {
	m.lastBranch = branchID
	m.lastStaff = staffID
	m.lastSubmit = req
	return m.submit, m.err
}

func (m *mockOrderService) Get(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *mockOrderService) Handover(_ context.Context, id string, method order.PaymentMethod) (*order.Order, error) {
	m.handoverCall++
	m.lastMethod = method
	if m.err != nil {
		return nil, m.err
	}
	o := *m.orders[id]
	o.Status = order.StatusDelivered
	return &o, nil
}

func (m *mockOrderService) Recent(_ context.Context, branchID string, limit int) ([]order.Summary, error) {
	m.lastBranch = branchID
	m.lastLimit = limit
	return m.recent, m.err
}

func (m *mockOrderService) DailyStats(_ context.Context, branchID string, day time.Time) (*order.DailyStats, error) {
	m.lastBranch = branchID
	m.lastDay = day
	return m.stats, m.err
}

func (m *mockOrderService) FindCustomer(_ context.Context, branchID, _ string) (*order.Customer, error) {
	m.lastBranch = branchID
	if m.customer == nil {
		return nil, order.ErrCustomerNotFound
	}
	return m.customer, nil
}

func (m *mockOrderService) Today() time.Time {
	return time.Date(2026, 3, 10, 9, 30, 0, 0, testLoc)
}

func (m *mockOrderService) Location() *time.Location { return testLoc }

// --- Helpers ---

const (
	testKey    = "staff-key"
	testBranch = "br-1"
)

var testPepper = []byte("pepper")

func newTestServer(svc *mockOrderService) http.Handler {
	return newTestServerAs(svc, auth.RoleAuthUser)
}

func newTestServerAs(svc *mockOrderService, role auth.Role) http.Handler {
	keys := &mockAPIKeyRepo{info: &auth.APIKeyInfo{
		ID:       "key-1",
		KeyHash:  HashAPIKey(testKey, testPepper),
		StaffID:  "staff-1",
		BranchID: testBranch,
		Role:     role,
	}}
	return NewHandler(svc, NewSecurityHandler(keys, testPepper)).Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	r.Header.Set(APIKeyHeader, testKey)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&out))
	return out
}

func testOrder(id, branch string) *order.Order {
	return &order.Order{
		ID:             id,
		ReadableBillID: "B-000001",
		BranchID:       branch,
		Customer:       order.Customer{ID: "c1", Phone: "9876543210", Name: "Asha"},
		DeliveryMode:   order.DeliveryPickup,
		Subtotal:       decimal.NewFromInt(225),
		Discount:       decimal.Zero,
		Final:          decimal.NewFromInt(225),
		AmountPaid:     decimal.Zero,
		PaymentStatus:  order.PaymentUnpaid,
		Status:         order.StatusPending,
		PieceCount:     3,
		BulkWeight:     decimal.NewFromInt(5),
	}
}

// --- Tests ---

func TestSecurityMiddleware(t *testing.T) {
	h := newTestServer(&mockOrderService{})

	tests := []struct {
		name string
		key  string
		want int
	}{
		{name: "missing key", key: "", want: http.StatusUnauthorized},
		{name: "unknown key", key: "nope", want: http.StatusUnauthorized},
		{name: "valid key", key: testKey, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/meta", nil)
			if tt.key != "" {
				r.Header.Set(APIKeyHeader, tt.key)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSecurityMiddleware_LookupError(t *testing.T) {
	keys := &mockAPIKeyRepo{err: errors.New("db down")}
	h := NewHandler(&mockOrderService{}, NewSecurityHandler(keys, testPepper)).Router()

	w := do(t, h, http.MethodGet, "/api/v1/meta", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthenticated", decodeBody(t, w)["error"])
}

func TestHashAPIKey(t *testing.T) {
	a := HashAPIKey("k", []byte("p1"))
	b := HashAPIKey("k", []byte("p2"))
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, HashAPIKey("k", []byte("p1")))
}

func TestGetMeta(t *testing.T) {
	svc := &mockOrderService{snapshot: tariff.Snapshot{
		BranchID: testBranch,
		Settings: tariff.DefaultSettings(),
		Rates: tariff.NewSpecialRates([]tariff.SpecialRate{
			{ItemID: "blanket", Service: tariff.RateWash, Rate: decimal.NewFromInt(120)},
		}),
	}}
	w := do(t, newTestServer(svc), http.MethodGet, "/api/v1/meta", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp metaResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, testBranch, svc.lastBranch)
	assert.InDelta(t, 45, resp.Settings.WashFoldPerKg, 0.001)
	require.Len(t, resp.SpecialRates, 1)
	assert.Equal(t, "blanket", resp.SpecialRates[0].ItemID)
	assert.NotNil(t, resp.Items)
}

func TestQuote(t *testing.T) {
	svc := &mockOrderService{quote: &order.Quote{
		Lines: []pricing.LineItem{{
			Name:         "Bulk Pile (Wash & Fold)",
			Service:      pricing.ServiceWashFold,
			Quantity:     1,
			Weight:       decimal.NewFromInt(5),
			UnitPrice:    decimal.NewFromInt(225),
			TotalPrice:   decimal.NewFromInt(225),
			IsBaseCharge: true,
		}},
		Subtotal:   decimal.NewFromInt(225),
		PieceCount: 0,
	}}

	body := `{"bulk":{"weight":5,"service":"Wash & Fold"},"items":[{"item_id":"shirt","quantity":2,"service":"Iron Only"}]}`
	w := do(t, newTestServer(svc), http.MethodPost, "/api/v1/quote", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp quoteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 225, resp.Subtotal, 0.001)
	require.Len(t, resp.Lines, 1)
	assert.True(t, resp.Lines[0].IsBaseCharge)

	assert.True(t, svc.lastQuote.BulkWeight.Equal(decimal.NewFromInt(5)))
	require.Len(t, svc.lastQuote.Items, 1)
	assert.Equal(t, "shirt", svc.lastQuote.Items[0].ItemID)
	assert.Equal(t, "Iron Only", svc.lastQuote.Items[0].Service)
}

func TestQuote_BadBody(t *testing.T) {
	h := newTestServer(&mockOrderService{})

	tests := []struct {
		name string
		body string
		msg  string
	}{
		{name: "empty", body: "", msg: "request body required"},
		{name: "malformed", body: "{", msg: "invalid JSON body"},
		{name: "unknown field", body: `{"promo_code":"X"}`, msg: "invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/v1/quote", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.msg, decodeBody(t, w)["message"])
		})
	}
}

func TestSubmitOrder(t *testing.T) {
	due := time.Date(2026, 3, 12, 18, 0, 0, 0, time.UTC)
	svc := &mockOrderService{submit: &order.SubmitResult{
		Created: &order.Created{ID: "o-1", ReadableBillID: "B-000042", CreatedAt: due.Add(-48 * time.Hour)},
		Payload: &order.Payload{
			Subtotal:      decimal.NewFromInt(283),
			Discount:      decimal.NewFromInt(3),
			Final:         decimal.NewFromInt(280),
			AmountPaid:    decimal.NewFromInt(280),
			PaymentStatus: order.PaymentPaid,
			PieceCount:    4,
			DueAt:         due,
		},
		Expected: 2,
	}}

	body := `{
		"bulk": {"weight": 5},
		"items": [{"item_id": "shirt", "quantity": 1, "service": "Iron Only"}],
		"customer": {"phone": "9876543210", "name": "Asha"},
		"due_date": "2026-03-12",
		"due_time": "18:00",
		"discount": 3,
		"payment": {"status": "PAID", "method": "UPI"},
		"piece_count": 4
	}`
	w := do(t, newTestServer(svc), http.MethodPost, "/api/v1/orders", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "B-000042", resp.ReadableBillID)
	assert.InDelta(t, 280, resp.FinalAmount, 0.001)
	assert.Equal(t, 4, resp.PieceCount)
	assert.Equal(t, 2, resp.SuggestedPieceCount)

	assert.Equal(t, "staff-1", svc.lastStaff)
	assert.Equal(t, testBranch, svc.lastBranch)
	assert.Equal(t, "9876543210", svc.lastSubmit.Phone)
	assert.Equal(t, "UPI", svc.lastSubmit.PaymentMethod)
	require.NotNil(t, svc.lastSubmit.PieceCount)
	assert.Equal(t, 4, *svc.lastSubmit.PieceCount)
	require.Len(t, svc.lastSubmit.Items, 1)
}

func TestSubmitOrder_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{
			name:     "validation",
			err:      order.ValidationErrors{{Field: "phone", Message: "too short"}},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "validation_failed",
		},
		{
			name:     "storage",
			err:      &order.StorageError{Op: "create order", Err: errors.New(`duplicate key value violates unique constraint "orders_bill"`)},
			wantCode: http.StatusBadGateway,
			wantErr:  "storage_error",
		},
		{
			name:     "unexpected",
			err:      errors.New("boom"),
			wantCode: http.StatusInternalServerError,
			wantErr:  "internal_error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOrderService{err: tt.err}
			w := do(t, newTestServer(svc), http.MethodPost, "/api/v1/orders", `{"items":[]}`)
			assert.Equal(t, tt.wantCode, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, tt.wantErr, body["error"])
		})
	}
}

func TestSubmitOrder_ValidationDetails(t *testing.T) {
	svc := &mockOrderService{err: order.ValidationErrors{
		{Field: "phone", Message: "phone must have at least 10 characters"},
		{Field: "items", Message: "at least one item is required"},
	}}
	w := do(t, newTestServer(svc), http.MethodPost, "/api/v1/orders", `{}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	body := decodeBody(t, w)
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	fields, ok := details["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "phone")
	assert.Contains(t, fields, "items")
}

func TestStorageErrorMessageVerbatim(t *testing.T) {
	msg := `new row for relation "orders" violates check constraint "orders_final_check"`
	svc := &mockOrderService{err: &order.StorageError{Op: "create order", Err: errors.New(msg)}}
	w := do(t, newTestServer(svc), http.MethodPost, "/api/v1/orders", `{}`)
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, msg, decodeBody(t, w)["message"])
}

func TestGetOrder(t *testing.T) {
	svc := &mockOrderService{orders: map[string]*order.Order{
		"o-1": testOrder("o-1", testBranch),
		"o-2": testOrder("o-2", "other-branch"),
	}}
	h := newTestServer(svc)

	t.Run("found", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/api/v1/orders/o-1", "")
		require.Equal(t, http.StatusOK, w.Code)
		var resp orderResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "o-1", resp.ID)
		assert.Equal(t, "Asha", resp.Customer.Name)
		assert.Nil(t, resp.PaymentMethod)
		assert.NotNil(t, resp.Lines)
	})

	t.Run("missing", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/api/v1/orders/o-9", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "order_not_found", decodeBody(t, w)["error"])
	})

	t.Run("other branch is hidden", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/api/v1/orders/o-2", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandover(t *testing.T) {
	t.Run("default method", func(t *testing.T) {
		svc := &mockOrderService{orders: map[string]*order.Order{"o-1": testOrder("o-1", testBranch)}}
		w := do(t, newTestServer(svc), http.MethodPost, "/api/v1/orders/o-1/handover", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, order.PaymentMethod(""), svc.lastMethod)
		assert.Equal(t, "DELIVERED", decodeBody(t, w)["status"])
	})

	t.Run("empty body of unknown length", func(t *testing.T) {
		svc := &mockOrderService{orders: map[string]*order.Order{"o-1": testOrder("o-1", testBranch)}}
		r := httptest.NewRequest(http.MethodPost, "/api/v1/orders/o-1/handover", io.NopCloser(strings.NewReader("")))
		r.Header.Set(APIKeyHeader, testKey)
		require.Equal(t, int64(-1), r.ContentLength)
		w := httptest.NewRecorder()
		newTestServer(svc).ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, 1, svc.handoverCall)
		assert.Equal(t, order.PaymentMethod(""), svc.lastMethod)
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := &mockOrderService{orders: map[string]*order.Order{"o-1": testOrder("o-1", testBranch)}}
		w := do(t, newTestServer(svc), http.MethodPost, "/api/v1/orders/o-1/handover", `{"payment_method":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Zero(t, svc.handoverCall)
	})

	t.Run("explicit method is upper-cased", func(t *testing.T) {
		svc := &mockOrderService{orders: map[string]*order.Order{"o-1": testOrder("o-1", testBranch)}}
		w := do(t, newTestServer(svc), http.MethodPost, "/api/v1/orders/o-1/handover", `{"payment_method":"upi"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, order.MethodUPI, svc.lastMethod)
	})

	t.Run("already delivered", func(t *testing.T) {
		svc := &mockOrderService{
			orders: map[string]*order.Order{"o-1": testOrder("o-1", testBranch)},
			err:    order.ErrAlreadyDelivered,
		}
		w := do(t, newTestServer(svc), http.MethodPost, "/api/v1/orders/o-1/handover", "")
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("other branch", func(t *testing.T) {
		svc := &mockOrderService{orders: map[string]*order.Order{"o-1": testOrder("o-1", "elsewhere")}}
		w := do(t, newTestServer(svc), http.MethodPost, "/api/v1/orders/o-1/handover", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Zero(t, svc.handoverCall)
	})
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{name: "short", in: "order saved", limit: 20, want: "order saved"},
		{name: "newlines", in: " a\nb\r ", limit: 20, want: "a b"},
		{name: "ascii cut", in: "abcdef", limit: 4, want: "abcd"},
		{name: "cut inside rune", in: "abआशा", limit: 4, want: "ab"},
		{name: "cut on rune boundary", in: "abआशा", limit: 5, want: "abआ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitize(tt.in, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestRecentOrders(t *testing.T) {
	svc := &mockOrderService{recent: []order.Summary{
		{ID: "o-2", ReadableBillID: "B-000002", Final: decimal.NewFromInt(100), Status: order.StatusPending},
		{ID: "o-1", ReadableBillID: "B-000001", Final: decimal.NewFromInt(50), Status: order.StatusDelivered},
	}}
	h := newTestServer(svc)

	w := do(t, h, http.MethodGet, "/api/v1/orders/recent?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp recentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Orders, 2)
	assert.Equal(t, "B-000002", resp.Orders[0].ReadableBillID)
	assert.Equal(t, 5, svc.lastLimit)

	w = do(t, h, http.MethodGet, "/api/v1/orders/recent", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, svc.lastLimit)

	w = do(t, h, http.MethodGet, "/api/v1/orders/recent?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDailyStats(t *testing.T) {
	svc := &mockOrderService{stats: &order.DailyStats{
		Day:         "2026-03-10",
		Created:     4,
		TotalWeight: decimal.RequireFromString("12.5"),
		Cleared:     1,
		DueToday:    2,
	}}
	h := newTestServer(svc)

	w := do(t, h, http.MethodGet, "/api/v1/stats/daily", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp statsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Created)
	assert.InDelta(t, 12.5, resp.TotalWeight, 0.001)
	assert.Equal(t, 10, svc.lastDay.Day())

	w = do(t, h, http.MethodGet, "/api/v1/stats/daily?day=2026-02-01", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, testLoc), svc.lastDay)

	w = do(t, h, http.MethodGet, "/api/v1/stats/daily?day=01-02-2026", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDailyStats_Role(t *testing.T) {
	tests := []struct {
		role auth.Role
		want int
	}{
		{role: auth.RoleUser, want: http.StatusForbidden},
		{role: "", want: http.StatusForbidden},
		{role: auth.RoleAuthUser, want: http.StatusOK},
		{role: auth.RoleAdmin, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			svc := &mockOrderService{stats: &order.DailyStats{Day: "2026-03-10"}}
			w := do(t, newTestServerAs(svc, tt.role), http.MethodGet, "/api/v1/stats/daily", "")
			require.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusForbidden {
				assert.Equal(t, "forbidden", decodeBody(t, w)["error"])
				assert.True(t, svc.lastDay.IsZero())
			}
		})
	}

	// Trainees still take orders.
	w := do(t, newTestServerAs(&mockOrderService{}, auth.RoleUser), http.MethodGet, "/api/v1/meta", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFindCustomer(t *testing.T) {
	svc := &mockOrderService{customer: &order.Customer{ID: "c1", Phone: "9876543210", Name: "Asha"}}
	w := do(t, newTestServer(svc), http.MethodGet, "/api/v1/customers/9876543210", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Asha", decodeBody(t, w)["name"])

	w = do(t, newTestServer(&mockOrderService{}), http.MethodGet, "/api/v1/customers/000", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "customer_not_found", decodeBody(t, w)["error"])
}

func TestRouterFallbacks(t *testing.T) {
	h := newTestServer(&mockOrderService{})

	w := do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeBody(t, w)["error"])

	w = do(t, h, http.MethodDelete, "/api/v1/quote", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
