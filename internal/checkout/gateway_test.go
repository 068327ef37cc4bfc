package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

func TestRecipientEmailPrecedence(t *testing.T) {
	// structured customer-details email wins
	d := SessionDetail{CustomerEmail: "top@shop.dk", Customer: CustomerDetails{Email: "details@shop.dk"}}
	assert.Equal(t, "details@shop.dk", RecipientEmail(d))

	// fall back to top-level field
	d = SessionDetail{CustomerEmail: "top@shop.dk"}
	assert.Equal(t, "top@shop.dk", RecipientEmail(d))

	// no recipient known
	assert.Equal(t, "", RecipientEmail(SessionDetail{}))
}

func TestFromStripeSession(t *testing.T) {
	s := &stripe.CheckoutSession{
		ID:             "cs_1",
		PaymentStatus:  stripe.CheckoutSessionPaymentStatusPaid,
		Currency:       stripe.Currency("dkk"),
		AmountSubtotal: 17498,
		AmountTotal:    17498,
		CustomerEmail:  "top@shop.dk",
		Created:        1754049600,
		PaymentIntent:  &stripe.PaymentIntent{ID: "pi_1"},
		TotalDetails:   &stripe.CheckoutSessionTotalDetails{AmountTax: 0},
		CustomerDetails: &stripe.CheckoutSessionCustomerDetails{
			Email: "details@shop.dk",
			Name:  "Jonas Jensen",
			Address: &stripe.Address{
				Line1:      "Nørregade 1",
				City:       "Aarhus",
				PostalCode: "8000",
				Country:    "DK",
			},
		},
		LineItems: &stripe.LineItemList{Data: []*stripe.LineItem{
			{
				Quantity:    1,
				AmountTotal: 4999,
				Currency:    stripe.Currency("dkk"),
				Price: &stripe.Price{
					UnitAmount: 4999,
					Product: &stripe.Product{
						ID:          "prod_1",
						Name:        "Backpack",
						Description: "catalog description",
					},
				},
			},
		}},
	}

	d := fromStripeSession(s)
	assert.Equal(t, "cs_1", d.ID)
	assert.Equal(t, "paid", d.PaymentStatus)
	assert.Equal(t, "DKK", d.Currency)
	assert.Equal(t, "pi_1", d.PaymentIntentID)
	assert.Equal(t, "details@shop.dk", d.Customer.Email)
	assert.Equal(t, "Aarhus", d.Customer.City)

	require.Len(t, d.Items, 1)
	it := d.Items[0]
	assert.Equal(t, "prod_1", it.ProductID)
	assert.Equal(t, "Backpack", it.ProductName)
	// line description empty, falls back to the product snapshot
	assert.Equal(t, "catalog description", it.Description)
	assert.Equal(t, int64(4999), it.UnitPrice)
	assert.Equal(t, int64(4999), it.TotalPrice)
	assert.Equal(t, "DKK", it.Currency)
}
