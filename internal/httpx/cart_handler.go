package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/games-store/api/internal/cart"
	"github.com/games-store/api/internal/orders"
)

type CartHandler struct {
	Repo   *cart.Repo
	Orders *OrdersHandler // checkout funnels into the order engine
}

type addCartItemReq struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type updateCartItemReq struct {
	Qty int `json:"qty"`
}

type checkoutReq struct {
	UserID string `json:"user_id"`
	ShipTo string `json:"delivery_address,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Get("/api/cart", h.get)
	r.Post("/api/cart", h.addItem)
	r.Post("/api/cart/checkout", h.checkout)
	r.Put("/api/cart/items/{id}", h.updateItem)
	r.Delete("/api/cart/items/{id}", h.removeItem)
	r.Delete("/api/cart/{id}", h.clear)
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, Envelope{Success: false, Message: "user_id is required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.Repo.ByUser(ctx, userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if c == nil {
		writeData(w, http.StatusOK, "cart is empty", nil)
		return
	}
	writeData(w, http.StatusOK, "cart retrieved", c)
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemReq
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" || req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, Envelope{Success: false, Message: "user_id and product_id are required"})
		return
	}
	if req.Qty == 0 {
		req.Qty = 1
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.Repo.AddItem(ctx, req.UserID, req.ProductID, req.Qty)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusCreated, "item added", c)
}

func (h *CartHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemReq
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.UpdateItem(ctx, chi.URLParam(r, "id"), req.Qty); err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, "quantity updated", nil)
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.RemoveItem(ctx, chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, "item removed", nil)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.Clear(ctx, chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, "cart cleared", nil)
}

// checkout turns the active cart into an order. The order itself commits (or
// rolls back) atomically inside the engine; clearing the cart afterwards is
// best-effort, since a leftover cart is harmless while a half-written order
// is not.
func (h *CartHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, Envelope{Success: false, Message: "user_id is required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Repo.ByUser(ctx, req.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if c == nil || len(c.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, Envelope{Success: false, Message: "cart is empty"})
		return
	}

	o, err := h.Orders.Svc.CreateOrder(ctx, req.UserID, c.ItemInputs(),
		orders.Meta{ShipTo: req.ShipTo, Notes: req.Notes})
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = h.Repo.Clear(ctx, c.ID)

	h.Orders.cacheStatus(ctx, o)
	h.Orders.publish(r, orders.TopicOrderCreated, orders.EventOrderCreated, o.ID, orders.OrderCreatedPayload{
		OrderID: o.ID,
		UserID:  o.UserID,
		Items:   orders.ItemLines(o.Items),
		Total:   o.Total.StringFixed(2),
	})
	writeData(w, http.StatusCreated, "order created", o)
}
