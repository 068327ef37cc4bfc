package checkout

import (
	"context"
	"time"
)

const PaymentStatusPaid = "paid"

// LineItem is one priced cart row handed to the payment provider when a hosted
// session is created. UnitAmount is in minor units (øre/cents).
type LineItem struct {
	Name        string
	Description string
	UnitAmount  int64
	Quantity    int64
}

// Session is the result of creating a hosted checkout session: the customer is
// redirected to URL and comes back via the success/cancel URLs.
type Session struct {
	ID  string
	URL string
}

type CustomerDetails struct {
	Email        string
	Name         string
	AddressLine1 string
	AddressLine2 string
	City         string
	PostalCode   string
	Country      string
}

// SessionItem is a purchased line as reported by the provider, including the
// product snapshot captured at purchase time.
type SessionItem struct {
	ProductID   string
	ProductName string
	Description string
	Quantity    int64
	UnitPrice   int64
	TotalPrice  int64
	Currency    string
}

type SessionDetail struct {
	ID              string
	PaymentIntentID string
	PaymentStatus   string
	PaymentMethods  []string
	Currency        string
	AmountSubtotal  int64
	AmountTax       int64
	AmountTotal     int64
	CustomerEmail   string // top-level session field
	Customer        CustomerDetails
	Created         time.Time
	Metadata        map[string]string
	Items           []SessionItem
	SuccessURL      string
	CancelURL       string
}

// Gateway is the slice of the payment provider the shop needs: create a hosted
// session, and read one back with its line items expanded.
type Gateway interface {
	CreateSession(ctx context.Context, items []LineItem, successURL, cancelURL string) (Session, error)
	GetSession(ctx context.Context, id string) (SessionDetail, error)
}

// RecipientEmail resolves the confirmation-email recipient with a fixed
// precedence: the structured customer-details email wins over the top-level
// session email. Empty string means no recipient is known.
func RecipientEmail(d SessionDetail) string {
	if d.Customer.Email != "" {
		return d.Customer.Email
	}
	return d.CustomerEmail
}
