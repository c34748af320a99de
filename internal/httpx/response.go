package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/games-store/api/internal/orders"
)

// Envelope is the uniform response shape of the API.
type Envelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       any         `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, code int, message string, data any) {
	writeJSON(w, code, Envelope{Success: true, Message: message, Data: data})
}

func writePaginated(w http.ResponseWriter, data any, page, limit, total int, message string) {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	writeJSON(w, http.StatusOK, Envelope{
		Success:    true,
		Message:    message,
		Data:       data,
		Pagination: &Pagination{Page: page, Limit: limit, Total: total, Pages: pages},
	})
}

// writeErr maps the engine's error taxonomy onto HTTP classes. Internal
// details never reach the client.
func writeErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	msg := "internal error"
	switch orders.KindOf(err) {
	case orders.KindInvalidArgument:
		code, msg = http.StatusBadRequest, err.Error()
	case orders.KindNotFound:
		code, msg = http.StatusNotFound, err.Error()
	case orders.KindInsufficientStock:
		code, msg = http.StatusConflict, err.Error()
	case orders.KindInvalidTransition:
		code, msg = http.StatusConflict, err.Error()
	}
	writeJSON(w, code, Envelope{Success: false, Message: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, Envelope{Success: false, Message: "invalid json"})
		return false
	}
	return true
}

func pageParams(r *http.Request) (page, limit, offset int) {
	page = intQuery(r, "page", 1)
	limit = intQuery(r, "limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit, (page - 1) * limit
}

func intQuery(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
