package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/shoe-market/internal/api/httpx/middlewares"
	"github.com/jcmexdev/shoe-market/internal/ledger"
	"github.com/jcmexdev/shoe-market/internal/ledger/memledger"
	"github.com/jcmexdev/shoe-market/internal/marketplace/catalog"
	"github.com/jcmexdev/shoe-market/internal/marketplace/domain"
	"github.com/jcmexdev/shoe-market/internal/marketplace/orders"
	"github.com/jcmexdev/shoe-market/internal/pkg/clock"
	"github.com/jcmexdev/shoe-market/internal/storage/memory"
)

type testAPI struct {
	router  http.Handler
	catalog *catalog.Service
	clock   *clock.Manual
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	backend := memory.New()
	led := memledger.New()
	clk := clock.NewManual(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	cat := catalog.NewService(backend.Bucket("items"))
	svc := orders.NewService(orders.Deps{
		Items:     cat,
		Pending:   backend.Bucket("pending_orders"),
		Completed: backend.Bucket("orders"),
		Verifier:  ledger.NewVerifier(led),
		Clock:     clk,
		Window:    2 * time.Minute,
	})
	return &testAPI{
		router:  NewRouter(NewHandler(cat, svc, led)),
		catalog: cat,
		clock:   clk,
	}
}

func (a *testAPI) do(t *testing.T, method, path, principal string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if principal != "" {
		req.Header.Set(middlewares.HeaderPrincipal, principal)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testAPI) addItem(t *testing.T, seller string, name string, price uint64) ItemResponse {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/items", seller, ItemRequest{Name: name, Location: "Nairobi", Price: price})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[ItemResponse](t, rec)
}

func TestHealth(t *testing.T) {
	rec := newTestAPI(t).do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestItemRoutes(t *testing.T) {
	api := newTestAPI(t)
	item := api.addItem(t, "alice", "Air Runner", 500)
	api.addItem(t, "bob", "Trail Boot", 1200)

	tests := []struct {
		name       string
		method     string
		path       string
		principal  string
		body       any
		wantStatus int
		wantError  string
	}{
		{"get item", http.MethodGet, "/items/" + item.ID, "", nil, http.StatusOK, ""},
		{"get missing item", http.MethodGet, "/items/nope", "", nil, http.StatusNotFound, "not_found"},
		{"add without principal", http.MethodPost, "/items", "", ItemRequest{Name: "x", Price: 1}, http.StatusUnauthorized, "unauthenticated"},
		{"add invalid", http.MethodPost, "/items", "alice", ItemRequest{Name: "x"}, http.StatusBadRequest, "invalid_payload"},
		{"add malformed json", http.MethodPost, "/items", "alice", "{", http.StatusBadRequest, "invalid_json"},
		{"update by non owner", http.MethodPut, "/items/" + item.ID, "bob", ItemRequest{Name: "x", Price: 1}, http.StatusForbidden, "not_owner"},
		{"update by owner", http.MethodPut, "/items/" + item.ID, "alice", ItemRequest{Name: "Air Runner 2", Price: 550}, http.StatusOK, ""},
		{"like", http.MethodPost, "/items/" + item.ID + "/like", "carol", nil, http.StatusOK, ""},
		{"comment", http.MethodPost, "/items/" + item.ID + "/comments", "carol", CommentRequest{Text: "nice"}, http.StatusCreated, ""},
		{"bad price filter", http.MethodGet, "/items?min_price=abc", "", nil, http.StatusBadRequest, "invalid_query"},
		{"delete by non owner", http.MethodDelete, "/items/" + item.ID, "bob", nil, http.StatusForbidden, "not_owner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, tt.method, tt.path, tt.principal, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeBody[ErrorResponse](t, rec).Error)
			}
		})
	}

	got := decodeBody[ItemResponse](t, api.do(t, http.MethodGet, "/items/"+item.ID, "", nil))
	assert.Equal(t, uint64(550), got.Price)
	assert.Equal(t, 1, got.Likes)
	assert.Equal(t, "nice", decodeBody[CommentsResponse](t, api.do(t, http.MethodGet, "/items/"+item.ID+"/comments", "", nil)).Comments)
}

func TestListItems_Filters(t *testing.T) {
	api := newTestAPI(t)
	api.addItem(t, "alice", "Air Runner", 500)
	api.addItem(t, "bob", "Trail Boot", 1200)

	tests := []struct {
		query string
		want  int
	}{
		{"", 2},
		{"?name=runner", 1},
		{"?location=nairobi", 2},
		{"?seller=bob", 1},
		{"?min_price=600", 1},
		{"?max_price=600", 1},
		{"?min_price=100&max_price=2000", 2},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := api.do(t, http.MethodGet, "/items"+tt.query, "", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Len(t, decodeBody[[]ItemResponse](t, rec), tt.want)
		})
	}

	rec := api.do(t, http.MethodGet, "/items/count", "", nil)
	assert.Equal(t, 2, decodeBody[CountResponse](t, rec).Count)
}

func TestOrderFlow(t *testing.T) {
	api := newTestAPI(t)
	item := api.addItem(t, "seller", "I1", 500)

	rec := api.do(t, http.MethodPost, "/orders", "buyer", CreateOrderRequest{ItemID: item.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decodeBody[OrderResponse](t, rec)
	assert.Equal(t, string(domain.StatusPaymentPending), order.Status)
	assert.Nil(t, order.PaidAtBlock)
	assert.NotEmpty(t, order.ExpiresAt)

	// The correlation id is a JSON string.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, strconv.FormatUint(order.CorrelationID, 10), raw["correlation_id"])

	pending := decodeBody[[]OrderResponse](t, api.do(t, http.MethodGet, "/orders/pending", "", nil))
	require.Len(t, pending, 1)

	complete := CompleteOrderRequest{Seller: "seller", ItemID: item.ID, Price: 500, Block: 0, CorrelationID: order.CorrelationID}

	rec = api.do(t, http.MethodPost, "/orders/complete", "buyer", complete)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code, "no transfer yet")

	rec = api.do(t, http.MethodPost, "/ledger/transfers", "buyer", TransferRequest{To: "seller", Amount: 500, Memo: order.CorrelationID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, uint64(0), decodeBody[TransferResponse](t, rec).Block)

	rec = api.do(t, http.MethodPost, "/payments/verify", "buyer", VerifyPaymentRequest{Receiver: "seller", Amount: 500, Block: 0, Memo: order.CorrelationID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[VerifyPaymentResponse](t, rec).Verified)

	rec = api.do(t, http.MethodPost, "/orders/complete", "buyer", complete)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decodeBody[OrderResponse](t, rec)
	assert.Equal(t, string(domain.StatusCompleted), done.Status)
	require.NotNil(t, done.PaidAtBlock)
	assert.Empty(t, done.ExpiresAt)

	rec = api.do(t, http.MethodPost, "/orders/complete", "buyer", complete)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	completed := decodeBody[[]OrderResponse](t, api.do(t, http.MethodGet, "/orders", "", nil))
	require.Len(t, completed, 1)
	assert.Equal(t, "buyer", completed[0].Buyer)

	got, err := api.catalog.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.SoldAmount)
}

func TestCreateOrder_Errors(t *testing.T) {
	api := newTestAPI(t)

	assert.Equal(t, http.StatusUnauthorized, api.do(t, http.MethodPost, "/orders", "", CreateOrderRequest{ItemID: "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodPost, "/orders", "buyer", CreateOrderRequest{}).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodPost, "/orders", "buyer", CreateOrderRequest{ItemID: "x"}).Code)
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{fmt.Errorf("wrap: %w", domain.ErrItemNotFound), http.StatusNotFound, "not_found"},
		{domain.ErrInvalidPayload, http.StatusBadRequest, "invalid_payload"},
		{domain.ErrVerificationFailed, http.StatusPaymentRequired, "verification_failed"},
		{domain.ErrNotOwner, http.StatusForbidden, "not_owner"},
		{domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
		{domain.ErrInconsistentState, http.StatusInternalServerError, "inconsistent_state"},
		{fmt.Errorf("%w: %w", domain.ErrLedgerUnavailable, errors.New("dial")), http.StatusBadGateway, "ledger_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeDomainError(context.Background(), rec, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeBody[ErrorResponse](t, rec).Error)
		})
	}
}
