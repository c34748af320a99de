package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/games-store/api/internal/payments"
)

type PaymentsHandler struct {
	Repo *payments.Repo
}

type createPaymentReq struct {
	OrderID       string          `json:"order_id"`
	Method        string          `json:"method"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id,omitempty"`
}

type paymentStatusReq struct {
	Status string `json:"status"`
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Post("/api/payments", h.create)
	r.Get("/api/payments/{id}", h.get)
	r.Put("/api/payments/{id}/status", h.updateStatus)
	r.Get("/api/orders/{id}/payments", h.byOrder)
}

func (h *PaymentsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createPaymentReq
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p := payments.Payment{
		OrderID:       req.OrderID,
		Method:        req.Method,
		Amount:        req.Amount,
		TransactionID: req.TransactionID,
	}
	if err := h.Repo.Create(ctx, &p); err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusCreated, "payment recorded", p)
}

func (h *PaymentsHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Repo.ByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, "payment found", p)
}

func (h *PaymentsHandler) byOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Repo.ByOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, "payments retrieved", list)
}

func (h *PaymentsHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req paymentStatusReq
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.UpdateStatus(ctx, chi.URLParam(r, "id"), req.Status); err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, "payment status updated", nil)
}
