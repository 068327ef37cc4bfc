package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/devdisplay/webshop/internal/checkout"
	"github.com/devdisplay/webshop/internal/redisx"
)

// CheckoutItem is a cart row as posted by the storefront; price is in major
// units and converted before it reaches the provider.
type CheckoutItem struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
	ImageURL    string  `json:"imageUrl"`
}

type sessionResp struct {
	ID            string `json:"id"`
	AmountTotal   int64  `json:"amount_total"`
	CustomerEmail string `json:"customer_email"`
	PaymentStatus string `json:"payment_status"`
}

type PaymentsHandler struct {
	Gateway     checkout.Gateway
	Redis       *redis.Client
	FrontendURL string
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Post("/api/payments/create-checkout-session", h.createCheckoutSession)
	r.Get("/api/payments/session/{id}", h.getSession)
}

func (h *PaymentsHandler) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var items []CheckoutItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(items) == 0 {
		writeError(w, http.StatusBadRequest, "empty cart")
		return
	}
	lineItems := make([]checkout.LineItem, 0, len(items))
	for _, it := range items {
		if it.Name == "" || len(it.Name) > 200 || it.Quantity <= 0 || it.Price < 0 {
			writeError(w, http.StatusBadRequest, "missing or invalid line item")
			return
		}
		lineItems = append(lineItems, checkout.LineItem{
			Name:        it.Name,
			Description: it.Description,
			UnitAmount:  int64(math.Round(it.Price * 100)),
			Quantity:    it.Quantity,
		})
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	successURL := h.FrontendURL + "/receipt.html?session_id={CHECKOUT_SESSION_ID}"
	cancelURL := h.FrontendURL + "/cart.html"
	sess, err := h.Gateway.CreateSession(ctx, lineItems, successURL, cancelURL)
	if err != nil {
		writeError(w, http.StatusBadGateway, "payment provider error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": sess.URL})
}

func (h *PaymentsHandler) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeySession, sessionID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	detail, err := h.Gateway.GetSession(ctx, sessionID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "error retrieving session from payment provider")
		return
	}
	resp := sessionResp{
		ID:            detail.ID,
		AmountTotal:   detail.AmountTotal,
		CustomerEmail: checkout.RecipientEmail(detail),
		PaymentStatus: detail.PaymentStatus,
	}

	// Only a paid session is terminal, so only that is safe to cache while the
	// receipt page is polling.
	if h.Redis != nil && detail.PaymentStatus == checkout.PaymentStatusPaid {
		if b, err := json.Marshal(resp); err == nil {
			_ = h.Redis.Set(ctx, key, b, redisx.TTLSession).Err()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
