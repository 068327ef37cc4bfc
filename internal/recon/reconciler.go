package recon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/devdisplay/webshop/internal/checkout"
	kafkax "github.com/devdisplay/webshop/internal/kafka"
	"github.com/devdisplay/webshop/internal/mail"
	"github.com/devdisplay/webshop/internal/orders"
)

var ErrSessionNotPaid = errors.New("session is not paid")

type OrderStore interface {
	ExistsBySessionID(ctx context.Context, sessionID string) (bool, error)
	Insert(ctx context.Context, o *orders.Order) (created bool, err error)
}

type Mailer interface {
	SendIfNotSent(ctx context.Context, sessionID, to string, amountTotal int64, forceResend bool) (mail.Result, error)
}

// Publisher is satisfied by kafka.Producer; nil disables event publishing.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Outcome struct {
	OrderCreated bool
	EmailSent    bool
	EmailReason  mail.Reason
}

// Reconciler converges the two completion triggers (provider webhook, client
// receipt poll) onto durable state: one Order row and at most one confirmation
// email per paid session, no matter how often it runs.
type Reconciler struct {
	Gateway  checkout.Gateway
	Store    OrderStore
	Mailer   Mailer
	Producer Publisher
	Service  string
	Currency string // fallback when the provider reports none
}

// Reconcile is safe to call repeatedly and concurrently for the same session.
// Order persistence is guarded twice: a read check up front, and the unique
// constraint on session_id for callers that race past it. Email dispatch is
// guarded by the sent-email ledger inside the mailer.
func (r *Reconciler) Reconcile(ctx context.Context, sessionID string) (Outcome, error) {
	var out Outcome

	detail, err := r.Gateway.GetSession(ctx, sessionID)
	if err != nil {
		return out, fmt.Errorf("fetch session %s: %w", sessionID, err)
	}
	if detail.PaymentStatus != checkout.PaymentStatusPaid {
		return out, fmt.Errorf("session %s: %w (status %q)", sessionID, ErrSessionNotPaid, detail.PaymentStatus)
	}

	exists, err := r.Store.ExistsBySessionID(ctx, sessionID)
	if err != nil {
		return out, fmt.Errorf("lookup order %s: %w", sessionID, err)
	}
	if exists {
		log.Printf("order %s already recorded", sessionID)
	} else {
		o := r.buildOrder(detail)
		created, err := r.Store.Insert(ctx, &o)
		if err != nil {
			return out, fmt.Errorf("persist order %s: %w", sessionID, err)
		}
		if created {
			out.OrderCreated = true
			log.Printf("recorded order %s (%d items, total %d %s)", sessionID, len(o.Items), o.TotalAmount, o.Currency)
			r.publishRecorded(&o)
		} else {
			// Lost the insert race to a concurrent reconcile; the row exists.
			log.Printf("order %s inserted concurrently, skipping", sessionID)
		}
	}

	to := checkout.RecipientEmail(detail)
	if to == "" {
		log.Printf("no recipient email for session %s, skipping confirmation", sessionID)
		out.EmailReason = mail.ReasonNoRecipient
		return out, nil
	}

	res, err := r.Mailer.SendIfNotSent(ctx, sessionID, to, detail.AmountTotal, false)
	out.EmailSent = res.Sent
	out.EmailReason = res.Reason
	if err != nil {
		return out, fmt.Errorf("confirmation email %s: %w", sessionID, err)
	}
	log.Printf("confirmation email for %s: sent=%v (%s)", sessionID, res.Sent, res.Reason)
	return out, nil
}

func (r *Reconciler) buildOrder(d checkout.SessionDetail) orders.Order {
	currency := strings.ToUpper(d.Currency)
	if currency == "" {
		currency = r.Currency
	}

	o := orders.Order{
		SessionID:       d.ID,
		PaymentIntentID: d.PaymentIntentID,
		CustomerEmail:   checkout.RecipientEmail(d),
		CustomerName:    d.Customer.Name,
		PaymentStatus:   d.PaymentStatus,
		Currency:        currency,
		SubtotalAmount:  d.AmountSubtotal,
		TaxAmount:       d.AmountTax,
		TotalAmount:     d.AmountTotal,
		AddressLine1:    d.Customer.AddressLine1,
		AddressLine2:    d.Customer.AddressLine2,
		City:            d.Customer.City,
		PostalCode:      d.Customer.PostalCode,
		Country:         d.Customer.Country,
		CreatedAt:       d.Created,
		UpdatedAt:       time.Now().UTC(),
	}
	if len(d.PaymentMethods) > 0 {
		o.PaymentMethod = d.PaymentMethods[0]
	}
	if len(d.Metadata) > 0 {
		if b, err := json.Marshal(d.Metadata); err == nil {
			o.Metadata = string(b)
		}
	}
	for _, it := range d.Items {
		itemCurrency := strings.ToUpper(it.Currency)
		if itemCurrency == "" {
			itemCurrency = currency
		}
		o.Items = append(o.Items, orders.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Description: it.Description,
			Quantity:    int(it.Quantity),
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
			Currency:    itemCurrency,
		})
	}
	return o
}

func (r *Reconciler) publishRecorded(o *orders.Order) {
	if r.Producer == nil {
		return
	}
	items := make([]orders.ItemLine, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orders.ItemLine{ProductID: it.ProductID, Qty: it.Quantity, UnitPrice: it.UnitPrice})
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderRecorded,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      r.Service,
		CorrelationID: o.SessionID,
		Payload: kafkax.MustMarshal(orders.OrderRecordedPayload{
			OrderID:       o.ID,
			SessionID:     o.SessionID,
			CustomerEmail: o.CustomerEmail,
			TotalAmount:   o.TotalAmount,
			Currency:      o.Currency,
			Items:         items,
		}),
	}
	r.Producer.Publish(orders.PartitionKey(o.SessionID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderRecorded)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
