package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/games-store/api/internal/kafka"
	"github.com/games-store/api/internal/orders"
	"github.com/games-store/api/internal/redisx"
)

// EventPublisher is what the handlers need from the Kafka producer; tests
// plug in a capture stub.
type EventPublisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

type OrdersHandler struct {
	Svc      *orders.Service
	Producer EventPublisher // optional
	Cache    *redisx.Cache  // optional
	Service  string
}

type CreateOrderReq struct {
	UserID string             `json:"user_id"`
	Items  []orders.ItemInput `json:"items"`
	ShipTo string             `json:"delivery_address,omitempty"`
	Notes  string             `json:"notes,omitempty"`
}

type UpdateStatusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/api/orders", h.create)
	r.Get("/api/orders", h.list)
	r.Get("/api/orders/stats", h.stats)
	r.Get("/api/orders/{id}", h.get)
	r.Get("/api/orders/{id}/status", h.status)
	r.Put("/api/orders/{id}/status", h.updateStatus)
	r.Post("/api/orders/{id}/cancel", h.cancel)
	r.Get("/api/users/{id}/orders", h.byUser)
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.CreateOrder(ctx, req.UserID, req.Items, orders.Meta{ShipTo: req.ShipTo, Notes: req.Notes})
	if err != nil {
		writeErr(w, err)
		return
	}

	h.cacheStatus(ctx, o)
	h.publish(r, orders.TopicOrderCreated, orders.EventOrderCreated, o.ID, orders.OrderCreatedPayload{
		OrderID: o.ID,
		UserID:  o.UserID,
		Items:   orders.ItemLines(o.Items),
		Total:   o.Total.StringFixed(2),
	})
	writeData(w, http.StatusCreated, "order created", o)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Svc.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, "order found", o)
}

// status serves the cached status when present, falling back to the DB.
func (h *OrdersHandler) status(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, ok := h.Cache.Get(ctx, key); ok {
		writeData(w, http.StatusOK, "order status", json.RawMessage(s))
		return
	}
	o, err := h.Svc.GetOrder(ctx, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeData(w, http.StatusOK, "order status", map[string]any{"status": o.Status})
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	page, limit, offset := pageParams(r)
	f := orders.OrderFilter{
		Status: orders.Status(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	}
	list, total, err := h.Svc.ListOrders(ctx, f)
	if err != nil {
		writeErr(w, err)
		return
	}
	writePaginated(w, list, page, limit, total, "orders retrieved")
}

func (h *OrdersHandler) byUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	page, limit, offset := pageParams(r)
	f := orders.OrderFilter{UserID: chi.URLParam(r, "id"), Limit: limit, Offset: offset}
	list, total, err := h.Svc.ListOrders(ctx, f)
	if err != nil {
		writeErr(w, err)
		return
	}
	writePaginated(w, list, page, limit, total, "user orders retrieved")
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusReq
	if !decodeBody(w, r, &req) {
		return
	}
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.UpdateStatus(ctx, orderID, req.Status)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.cacheStatus(ctx, o)
	if o.Status == orders.StatusCancelled {
		h.publish(r, orders.TopicOrderCancelled, orders.EventOrderCancelled, o.ID,
			orders.OrderCancelledPayload{OrderID: o.ID, Restored: orders.ItemLines(o.Items)})
	} else {
		h.publish(r, orders.TopicOrderStatusChanged, orders.EventOrderStatusChanged, o.ID,
			orders.OrderStatusChangedPayload{OrderID: o.ID, Status: string(o.Status)})
	}
	writeData(w, http.StatusOK, "order status updated", o)
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.CancelOrder(ctx, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.cacheStatus(ctx, o)
	h.publish(r, orders.TopicOrderCancelled, orders.EventOrderCancelled, o.ID,
		orders.OrderCancelledPayload{OrderID: o.ID, Restored: orders.ItemLines(o.Items)})
	writeData(w, http.StatusOK, "order cancelled", o)
}

func (h *OrdersHandler) stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if s, ok := h.Cache.Get(ctx, redisx.KeyOrderStats); ok {
		writeData(w, http.StatusOK, "order stats", json.RawMessage(s))
		return
	}
	st, err := h.Svc.Stats(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	if b, err := json.Marshal(st); err == nil {
		h.Cache.Set(ctx, redisx.KeyOrderStats, string(b), redisx.TTLStatsCache)
	}
	writeData(w, http.StatusOK, "order stats", st)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	h.Cache.Set(ctx, key, fmt.Sprintf(`{"status":%q}`, o.Status), redisx.TTLStatusCache)
	h.Cache.Del(ctx, redisx.KeyOrderStats)
}

func (h *OrdersHandler) publish(r *http.Request, topic, eventType, orderID string, payload any) {
	if h.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	h.Producer.Publish(topic, orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
