package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdisplay/webshop/internal/checkout"
)

type fakeGateway struct {
	session    checkout.Session
	detail     checkout.SessionDetail
	err        error
	gotItems   []checkout.LineItem
	gotSuccess string
	gotCancel  string
}

func (f *fakeGateway) CreateSession(_ context.Context, items []checkout.LineItem, successURL, cancelURL string) (checkout.Session, error) {
	f.gotItems = items
	f.gotSuccess = successURL
	f.gotCancel = cancelURL
	if f.err != nil {
		return checkout.Session{}, f.err
	}
	return f.session, nil
}

func (f *fakeGateway) GetSession(_ context.Context, id string) (checkout.SessionDetail, error) {
	if f.err != nil {
		return checkout.SessionDetail{}, f.err
	}
	return f.detail, nil
}

func newPaymentsRouter(gw checkout.Gateway) http.Handler {
	r := NewRouter()
	(&PaymentsHandler{Gateway: gw, FrontendURL: "https://shop.example"}).Register(r)
	return r
}

func TestCreateCheckoutSession(t *testing.T) {
	gw := &fakeGateway{session: checkout.Session{ID: "cs_1", URL: "https://checkout.stripe.com/pay/cs_1"}}
	h := newPaymentsRouter(gw)

	body := `[{"name":"Backpack","description":"Eco","price":49.99,"quantity":2,"imageUrl":"x"}]`
	req := httptest.NewRequest(http.MethodPost, "/api/payments/create-checkout-session", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://checkout.stripe.com/pay/cs_1", resp["url"])

	require.Len(t, gw.gotItems, 1)
	// major-unit catalog price converted to minor units
	assert.Equal(t, int64(4999), gw.gotItems[0].UnitAmount)
	assert.Equal(t, int64(2), gw.gotItems[0].Quantity)
	assert.Contains(t, gw.gotSuccess, "{CHECKOUT_SESSION_ID}")
	assert.Equal(t, "https://shop.example/cart.html", gw.gotCancel)
}

func TestCreateCheckoutSessionValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"empty cart", `[]`},
		{"missing name", `[{"price":1,"quantity":1}]`},
		{"zero quantity", `[{"name":"x","price":1,"quantity":0}]`},
		{"negative price", `[{"name":"x","price":-1,"quantity":1}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := &fakeGateway{}
			h := newPaymentsRouter(gw)
			req := httptest.NewRequest(http.MethodPost, "/api/payments/create-checkout-session", strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Nil(t, gw.gotItems)
		})
	}
}

func TestCreateCheckoutSessionGatewayError(t *testing.T) {
	gw := &fakeGateway{err: errors.New("stripe down")}
	h := newPaymentsRouter(gw)
	body := `[{"name":"Backpack","price":49.99,"quantity":1}]`
	req := httptest.NewRequest(http.MethodPost, "/api/payments/create-checkout-session", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGetSessionResponseShape(t *testing.T) {
	gw := &fakeGateway{detail: checkout.SessionDetail{
		ID:            "cs_1",
		AmountTotal:   12999,
		PaymentStatus: "paid",
		CustomerEmail: "top@shop.dk",
		Customer:      checkout.CustomerDetails{Email: "details@shop.dk"},
	}}
	h := newPaymentsRouter(gw)
	req := httptest.NewRequest(http.MethodGet, "/api/payments/session/cs_1", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp sessionResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "cs_1", resp.ID)
	assert.Equal(t, int64(12999), resp.AmountTotal)
	assert.Equal(t, "paid", resp.PaymentStatus)
	// same precedence the reconciler uses
	assert.Equal(t, "details@shop.dk", resp.CustomerEmail)
}

func TestGetSessionGatewayError(t *testing.T) {
	gw := &fakeGateway{err: errors.New("stripe down")}
	h := newPaymentsRouter(gw)
	req := httptest.NewRequest(http.MethodGet, "/api/payments/session/cs_1", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
