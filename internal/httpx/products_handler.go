package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/games-store/api/internal/catalog"
)

type ProductsHandler struct {
	Repo *catalog.Repo
}

func (h *ProductsHandler) Register(r *chi.Mux) {
	r.Post("/api/products", h.create)
	r.Get("/api/products", h.list)
	r.Get("/api/products/categories", h.categories)
	r.Get("/api/products/platforms", h.platforms)
	r.Get("/api/products/{id}", h.get)
	r.Put("/api/products/{id}", h.update)
	r.Delete("/api/products/{id}", h.delete)
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if !decodeBody(w, r, &p) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.Create(ctx, &p); err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusCreated, "product created", p)
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	q := r.URL.Query()
	_, limit, offset := pageParams(r)
	f := catalog.Filter{
		Category:   q.Get("category"),
		Platform:   q.Get("platform"),
		Search:     q.Get("search"),
		ActiveOnly: q.Get("all") == "",
		Limit:      limit,
		Offset:     offset,
	}
	if s := q.Get("min_price"); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Envelope{Success: false, Message: "invalid min_price"})
			return
		}
		f.MinPrice = &d
	}
	if s := q.Get("max_price"); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Envelope{Success: false, Message: "invalid max_price"})
			return
		}
		f.MaxPrice = &d
	}

	list, err := h.Repo.List(ctx, f)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, "products retrieved", list)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Repo.ByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, "product found", p)
}

func (h *ProductsHandler) update(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if !decodeBody(w, r, &p) {
		return
	}
	p.ID = chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.Update(ctx, &p); err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, "product updated", p)
}

func (h *ProductsHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, "product deactivated", nil)
}

func (h *ProductsHandler) categories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	cats, err := h.Repo.Categories(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, "categories retrieved", cats)
}

func (h *ProductsHandler) platforms(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	plats, err := h.Repo.Platforms(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, "platforms retrieved", plats)
}
