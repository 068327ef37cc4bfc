package orders

import "time"

// Order is one completed payment session. SessionID is unique: no matter how
// many times the provider reports completion, at most one row exists.
type Order struct {
	ID              int64
	SessionID       string
	PaymentIntentID string
	CustomerEmail   string
	CustomerName    string
	PaymentStatus   string
	PaymentMethod   string
	Currency        string
	SubtotalAmount  int64
	TaxAmount       int64
	TotalAmount     int64
	AddressLine1    string
	AddressLine2    string
	City            string
	PostalCode      string
	Country         string
	Metadata        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Items           []OrderItem
}

// OrderItem snapshots a purchased line at purchase time; it is never re-joined
// against the live catalog. Amounts are minor units.
type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   string
	ProductName string
	Description string
	Quantity    int
	UnitPrice   int64
	TotalPrice  int64
	Currency    string
}

// OrderSummary is the list-view projection.
type OrderSummary struct {
	ID            int64
	SessionID     string
	CustomerEmail string
	PaymentStatus string
	TotalAmount   int64
	Currency      string
	CreatedAt     time.Time
	ItemCount     int
}

// EmailLog is the sent-confirmation ledger. A row for a session means the
// confirmation was accepted by the provider; do not resend unless forced.
type EmailLog struct {
	ID        int64
	SessionID string
	Recipient string
	SentAt    time.Time
}
