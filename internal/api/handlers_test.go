package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skoll/internal/engine"
)

func newTestServer() *Server {
	return NewServer(engine.New())
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestSubmitOrder(t *testing.T) {
	srv := newTestServer()

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/orders",
		`{"instrument":"AAPL","side":"BUY","price":69,"quantity":1000}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp SubmitOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(0), resp.OrderID)

	// The next accepted buy gets the next id.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/orders",
		`{"instrument":"AAPL","side":"buy","price":68,"quantity":500}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(1), resp.OrderID)
}

func TestSubmitOrder_Validation(t *testing.T) {
	srv := newTestServer()

	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"missing instrument", `{"side":"BUY","price":69,"quantity":10}`},
		{"bad side", `{"instrument":"AAPL","side":"HOLD","price":69,"quantity":10}`},
		{"zero price", `{"instrument":"AAPL","side":"BUY","price":0,"quantity":10}`},
		{"negative price", `{"instrument":"AAPL","side":"BUY","price":-1,"quantity":10}`},
		{"zero quantity", `{"instrument":"AAPL","side":"BUY","price":69,"quantity":0}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/api/v1/orders", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCancelOrder(t *testing.T) {
	srv := newTestServer()

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/orders",
		`{"instrument":"AAPL","side":"SELL","price":75,"quantity":750}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp SubmitOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	path := fmt.Sprintf("/api/v1/orders/sell/%d?instrument=AAPL", resp.OrderID)
	rec = doJSON(t, srv, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Cancelling again finds nothing.
	rec = doJSON(t, srv, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Missing instrument is a caller error, not a lookup miss.
	rec = doJSON(t, srv, http.MethodDelete, "/api/v1/orders/sell/0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrderBook(t *testing.T) {
	srv := newTestServer()

	doJSON(t, srv, http.MethodPost, "/api/v1/orders",
		`{"instrument":"AAPL","side":"BUY","price":69,"quantity":1000}`)
	doJSON(t, srv, http.MethodPost, "/api/v1/orders",
		`{"instrument":"AAPL","side":"SELL","price":75,"quantity":750}`)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/orderbook/AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var book OrderBookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &book))
	assert.Equal(t, "AAPL", book.Instrument)
	require.NotNil(t, book.Bid)
	assert.Equal(t, int64(69), book.Bid.Price)
	require.NotNil(t, book.Ask)
	assert.Equal(t, int64(75), book.Ask.Price)
	require.Len(t, book.Bids, 1)
	require.Len(t, book.Asks, 1)

	// An unknown instrument is an empty book, not an error.
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/orderbook/NOPE", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &book))
	assert.Nil(t, book.Bid)
	assert.Nil(t, book.Ask)
}

func TestHealth(t *testing.T) {
	rec := doJSON(t, newTestServer(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
