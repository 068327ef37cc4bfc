package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	netmail "net/mail"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/devdisplay/webshop/internal/mail"
	"github.com/devdisplay/webshop/internal/orders"
)

type OrderStore interface {
	GetBySessionID(ctx context.Context, sessionID string) (orders.Order, error)
	List(ctx context.Context, page, pageSize int) ([]orders.OrderSummary, int, error)
}

type ConfirmationSender interface {
	SendIfNotSent(ctx context.Context, sessionID, to string, amountTotal int64, forceResend bool) (mail.Result, error)
}

type OrdersHandler struct {
	Store  OrderStore
	Mailer ConfirmationSender
}

type confirmationReq struct {
	SessionID     string `json:"sessionId"`
	CustomerEmail string `json:"customerEmail"`
	AmountTotal   int64  `json:"amountTotal"`
}

type confirmationResp struct {
	OK     bool   `json:"ok"`
	Sent   bool   `json:"sent"`
	Reason string `json:"reason"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/api/orders/send-confirmation", h.sendConfirmation)
	r.Get("/api/orders/order/{sessionId}", h.getOrder)
	r.Get("/api/orders/list", h.list)
}

// sendConfirmation is the client-poll trigger for the confirmation email. It
// never persists order state; the webhook path owns that.
func (h *OrdersHandler) sendConfirmation(w http.ResponseWriter, r *http.Request) {
	var req confirmationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.SessionID == "" || len(req.SessionID) > 200 {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if req.CustomerEmail == "" || len(req.CustomerEmail) > 254 {
		writeError(w, http.StatusBadRequest, "customerEmail is required")
		return
	}
	if _, err := netmail.ParseAddress(req.CustomerEmail); err != nil {
		writeError(w, http.StatusBadRequest, "customerEmail is not a valid address")
		return
	}
	if req.AmountTotal < 0 {
		writeError(w, http.StatusBadRequest, "amountTotal must be non-negative")
		return
	}
	resend := r.URL.Query().Get("resend") == "true"

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Mailer.SendIfNotSent(ctx, req.SessionID, req.CustomerEmail, req.AmountTotal, resend)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch res.Reason {
	case mail.ReasonNotConfigured:
		writeError(w, http.StatusInternalServerError, "email service not configured")
	case mail.ReasonProviderFailed:
		writeError(w, http.StatusBadGateway, "email provider unavailable, please try again later")
	case mail.ReasonProviderRejected:
		code := res.StatusCode
		if code < 400 {
			code = http.StatusBadGateway
		}
		writeError(w, code, "failed to send email")
	default:
		writeJSON(w, http.StatusOK, confirmationResp{OK: true, Sent: res.Sent, Reason: string(res.Reason)})
	}
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Store.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]map[string]any, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]any{
			"productId":      it.ProductID,
			"productName":    it.ProductName,
			"description":    it.Description,
			"quantity":       it.Quantity,
			"unitPrice":      it.UnitPrice,
			"totalPrice":     it.TotalPrice,
			"formattedPrice": formatAmount(it.TotalPrice, it.Currency),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":             o.ID,
		"sessionId":      o.SessionID,
		"customerEmail":  o.CustomerEmail,
		"customerName":   o.CustomerName,
		"paymentStatus":  o.PaymentStatus,
		"totalAmount":    o.TotalAmount,
		"formattedTotal": formatAmount(o.TotalAmount, o.Currency),
		"createdAt":      o.CreatedAt,
		"items":          items,
	})
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	page := parseIntOr(r.URL.Query().Get("page"), 1)
	pageSize := parseIntOr(r.URL.Query().Get("pageSize"), 10)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rows, total, err := h.Store.List(ctx, page, pageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	list := make([]map[string]any, 0, len(rows))
	for _, o := range rows {
		list = append(list, map[string]any{
			"id":             o.ID,
			"sessionId":      o.SessionID,
			"customerEmail":  o.CustomerEmail,
			"paymentStatus":  o.PaymentStatus,
			"totalAmount":    o.TotalAmount,
			"formattedTotal": formatAmount(o.TotalAmount, o.Currency),
			"createdAt":      o.CreatedAt,
			"itemCount":      o.ItemCount,
		})
	}
	totalPages := (total + pageSize - 1) / pageSize
	writeJSON(w, http.StatusOK, map[string]any{
		"orders":     list,
		"total":      total,
		"page":       page,
		"pageSize":   pageSize,
		"totalPages": totalPages,
	})
}

func formatAmount(minor int64, currency string) string {
	return fmt.Sprintf("%.2f %s", float64(minor)/100, currency)
}

func parseIntOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
