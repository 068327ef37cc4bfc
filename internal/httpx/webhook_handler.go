package httpx

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/devdisplay/webshop/internal/recon"
)

const maxWebhookBody = 64 * 1024

type SessionReconciler interface {
	Reconcile(ctx context.Context, sessionID string) (recon.Outcome, error)
}

// WebhookHandler receives Stripe's at-least-once event deliveries. Signature
// verification gates everything; after that the handler always answers 200,
// because a non-2xx only triggers a redelivery that the idempotency guards
// would absorb anyway.
type WebhookHandler struct {
	Secret     string
	Reconciler SessionReconciler
}

func (h *WebhookHandler) Register(r *chi.Mux) {
	r.Post("/api/webhooks/stripe", h.handle)
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload, r.Header.Get("Stripe-Signature"), h.Secret,
		// Provider payloads are pinned to the account's API version, which may
		// trail the SDK's.
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		log.Printf("webhook signature verification failed: %v", err)
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		log.Printf("ignoring event type %s", event.Type)
		w.WriteHeader(http.StatusOK)
		return
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		log.Printf("cannot decode checkout session from event %s: %v", event.ID, err)
		w.WriteHeader(http.StatusOK)
		return
	}

	if session.ID == "" || session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		log.Printf("session not eligible: id=%q payment_status=%q", session.ID, session.PaymentStatus)
		w.WriteHeader(http.StatusOK)
		return
	}

	if _, err := h.Reconciler.Reconcile(r.Context(), session.ID); err != nil {
		// Acknowledge anyway: correctness rests on the idempotency keys, and
		// failing the delivery only invites a retry storm.
		log.Printf("reconcile %s: %v", session.ID, err)
	}
	w.WriteHeader(http.StatusOK)
}
