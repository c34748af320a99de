package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/games-store/api/internal/orders"
	"github.com/games-store/api/internal/orders/memstore"
)

type capturePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (c *capturePublisher) Publish(topic string, key, value []byte, headers ...kafkago.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
}

func (c *capturePublisher) published() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.topics...)
}

func newTestServer(t *testing.T) (*httptest.Server, *memstore.Store, *capturePublisher) {
	t.Helper()
	st := memstore.New()
	st.PutProduct(orders.Product{
		ID: "p1", Name: "Elden Ring",
		Price: decimal.RequireFromString("59.90"), Stock: 5, Active: true,
	})

	pub := &capturePublisher{}
	router := NewRouter()
	h := &OrdersHandler{Svc: orders.NewService(st), Producer: pub, Service: "test-api"}
	h.Register(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, st, pub
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func TestCreateOrderEndpoint(t *testing.T) {
	srv, st, pub := newTestServer(t)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/orders", CreateOrderReq{
		UserID: "u1",
		Items:  []orders.ItemInput{{ProductID: "p1", Qty: 3}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, env.Success)

	data := env.Data.(map[string]any)
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, "179.7", data["total"])
	assert.Equal(t, 2, st.ProductStock("p1"))
	assert.Equal(t, []string{orders.TopicOrderCreated}, pub.published())
}

func TestCreateOrderEndpointInsufficientStock(t *testing.T) {
	srv, st, pub := newTestServer(t)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/orders", CreateOrderReq{
		UserID: "u1",
		Items:  []orders.ItemInput{{ProductID: "p1", Qty: 10}},
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "p1")
	assert.Equal(t, 5, st.ProductStock("p1"))
	assert.Empty(t, pub.published(), "no event for a failed order")
}

func TestCreateOrderEndpointBadRequests(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/orders", CreateOrderReq{UserID: "u1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/orders", CreateOrderReq{
		UserID: "u1",
		Items:  []orders.ItemInput{{ProductID: "ghost", Qty: 1}},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelOrderEndpoint(t *testing.T) {
	srv, st, pub := newTestServer(t)

	_, env := doJSON(t, http.MethodPost, srv.URL+"/api/orders", CreateOrderReq{
		UserID: "u1",
		Items:  []orders.ItemInput{{ProductID: "p1", Qty: 2}},
	})
	orderID := env.Data.(map[string]any)["id"].(string)
	require.Equal(t, 3, st.ProductStock("p1"))

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/orders/"+orderID+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", env.Data.(map[string]any)["status"])
	assert.Equal(t, 5, st.ProductStock("p1"))

	resp, env = doJSON(t, http.MethodPost, srv.URL+"/api/orders/"+orderID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.False(t, env.Success)

	assert.Equal(t, []string{orders.TopicOrderCreated, orders.TopicOrderCancelled}, pub.published())
}

func TestUpdateStatusEndpoint(t *testing.T) {
	srv, _, pub := newTestServer(t)

	_, env := doJSON(t, http.MethodPost, srv.URL+"/api/orders", CreateOrderReq{
		UserID: "u1",
		Items:  []orders.ItemInput{{ProductID: "p1", Qty: 1}},
	})
	orderID := env.Data.(map[string]any)["id"].(string)

	resp, env := doJSON(t, http.MethodPut, srv.URL+"/api/orders/"+orderID+"/status",
		UpdateStatusReq{Status: "processing"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "processing", env.Data.(map[string]any)["status"])

	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/api/orders/"+orderID+"/status",
		UpdateStatusReq{Status: "bogus"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, []string{orders.TopicOrderCreated, orders.TopicOrderStatusChanged}, pub.published())
}

func TestGetOrderEndpointNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/orders/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestStatsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	_, env := doJSON(t, http.MethodPost, srv.URL+"/api/orders", CreateOrderReq{
		UserID: "u1",
		Items:  []orders.ItemInput{{ProductID: "p1", Qty: 1}},
	})
	require.True(t, env.Success)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/orders/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := env.Data.(map[string]any)
	assert.Equal(t, float64(1), data["total_orders"])
	assert.Equal(t, "59.9", data["revenue"])
}
