package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type ItemLine struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	UnitPrice string `json:"unit_price"`
}

type OrderCreatedPayload struct {
	OrderID string     `json:"order_id"`
	UserID  string     `json:"user_id"`
	Items   []ItemLine `json:"items"`
	Total   string     `json:"total"`
}

type OrderCancelledPayload struct {
	OrderID  string     `json:"order_id"`
	Restored []ItemLine `json:"restored"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// ItemLines renders an order's items for event payloads; prices are emitted
// as two-digit decimal strings.
func ItemLines(items []OrderItem) []ItemLine {
	out := make([]ItemLine, 0, len(items))
	for _, it := range items {
		out = append(out, ItemLine{
			ProductID: it.ProductID,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice.StringFixed(2),
		})
	}
	return out
}
