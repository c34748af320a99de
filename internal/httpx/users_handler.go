package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/games-store/api/internal/users"
)

type UsersHandler struct {
	Repo *users.Repo
}

type createUserReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role,omitempty"`
}

func (h *UsersHandler) Register(r *chi.Mux) {
	r.Post("/api/users", h.create)
	r.Get("/api/users", h.list)
	r.Get("/api/users/{id}", h.get)
	r.Put("/api/users/{id}", h.update)
	r.Delete("/api/users/{id}", h.delete)
}

func (h *UsersHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createUserReq
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	u := users.User{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Phone:    req.Phone,
		Role:     req.Role,
	}
	if err := h.Repo.Create(ctx, &u, req.Password); err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusCreated, "user created", u)
}

func (h *UsersHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	_, limit, offset := pageParams(r)
	list, err := h.Repo.List(ctx, limit, offset)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, "users retrieved", list)
}

func (h *UsersHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	u, err := h.Repo.ByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, "user found", u)
}

func (h *UsersHandler) update(w http.ResponseWriter, r *http.Request) {
	var u users.User
	if !decodeBody(w, r, &u) {
		return
	}
	u.ID = chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.Update(ctx, &u); err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, "user updated", u)
}

func (h *UsersHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, "user deactivated", nil)
}
