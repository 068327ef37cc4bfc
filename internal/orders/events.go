package orders

import (
	"encoding/json"
	"time"
)

const EventOrderRecorded = "OrderRecorded"

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // session id
	Payload       json.RawMessage `json:"payload"`
}

type ItemLine struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	UnitPrice int64  `json:"unit_price"`
}

// OrderRecordedPayload is published once per newly persisted order; downstream
// consumers (fulfillment) key dedup off event_id.
type OrderRecordedPayload struct {
	OrderID       int64      `json:"order_id"`
	SessionID     string     `json:"session_id"`
	CustomerEmail string     `json:"customer_email"`
	TotalAmount   int64      `json:"total_amount"`
	Currency      string     `json:"currency"`
	Items         []ItemLine `json:"items"`
}
