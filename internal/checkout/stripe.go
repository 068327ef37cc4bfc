package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeGateway implements Gateway against Stripe Checkout Sessions.
type StripeGateway struct {
	api      *client.API
	currency string
	methods  []string
}

func NewStripeGateway(apiKey, currency string) *StripeGateway {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeGateway{
		api:      api,
		currency: strings.ToLower(currency),
		methods:  []string{"card", "mobilepay"},
	}
}

func (g *StripeGateway) CreateSession(ctx context.Context, items []LineItem, successURL, cancelURL string) (Session, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
	for _, it := range items {
		li := &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(g.currency),
				UnitAmount: stripe.Int64(it.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
				},
			},
			Quantity: stripe.Int64(it.Quantity),
		}
		if it.Description != "" {
			li.PriceData.ProductData.Description = stripe.String(it.Description)
		}
		lineItems = append(lineItems, li)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:                     stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes:       stripe.StringSlice(g.methods),
		CustomerCreation:         stripe.String(string(stripe.CheckoutSessionCustomerCreationAlways)),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionRequired)),
		LineItems:                lineItems,
		SuccessURL:               stripe.String(successURL),
		CancelURL:                stripe.String(cancelURL),
	}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("create checkout session: %w", err)
	}
	return Session{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) GetSession(ctx context.Context, id string) (SessionDetail, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")
	params.AddExpand("line_items.data.price.product")

	s, err := g.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return SessionDetail{}, fmt.Errorf("get checkout session %s: %w", id, err)
	}
	return fromStripeSession(s), nil
}

func fromStripeSession(s *stripe.CheckoutSession) SessionDetail {
	d := SessionDetail{
		ID:             s.ID,
		PaymentStatus:  string(s.PaymentStatus),
		PaymentMethods: s.PaymentMethodTypes,
		Currency:       strings.ToUpper(string(s.Currency)),
		AmountSubtotal: s.AmountSubtotal,
		AmountTotal:    s.AmountTotal,
		CustomerEmail:  s.CustomerEmail,
		Created:        time.Unix(s.Created, 0).UTC(),
		Metadata:       s.Metadata,
		SuccessURL:     s.SuccessURL,
		CancelURL:      s.CancelURL,
	}
	if s.PaymentIntent != nil {
		d.PaymentIntentID = s.PaymentIntent.ID
	}
	if s.TotalDetails != nil {
		d.AmountTax = s.TotalDetails.AmountTax
	}
	if cd := s.CustomerDetails; cd != nil {
		d.Customer.Email = cd.Email
		d.Customer.Name = cd.Name
		if a := cd.Address; a != nil {
			d.Customer.AddressLine1 = a.Line1
			d.Customer.AddressLine2 = a.Line2
			d.Customer.City = a.City
			d.Customer.PostalCode = a.PostalCode
			d.Customer.Country = a.Country
		}
	}
	if s.LineItems != nil {
		for _, li := range s.LineItems.Data {
			item := SessionItem{
				Description: li.Description,
				Quantity:    li.Quantity,
				TotalPrice:  li.AmountTotal,
				Currency:    strings.ToUpper(string(li.Currency)),
			}
			if p := li.Price; p != nil {
				item.UnitPrice = p.UnitAmount
				if prod := p.Product; prod != nil {
					item.ProductID = prod.ID
					item.ProductName = prod.Name
					if item.Description == "" {
						item.Description = prod.Description
					}
				}
			}
			d.Items = append(d.Items, item)
		}
	}
	return d
}
