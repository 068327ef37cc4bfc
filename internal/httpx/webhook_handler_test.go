package httpx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdisplay/webshop/internal/recon"
)

const testWebhookSecret = "whsec_test_secret"

type fakeReconciler struct {
	sessions []string
	err      error
}

func (f *fakeReconciler) Reconcile(_ context.Context, sessionID string) (recon.Outcome, error) {
	f.sessions = append(f.sessions, sessionID)
	return recon.Outcome{OrderCreated: true, EmailSent: true}, f.err
}

func signStripePayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func postWebhook(t *testing.T, rec *fakeReconciler, payload, signature string) *httptest.ResponseRecorder {
	t.Helper()
	r := NewRouter()
	(&WebhookHandler{Secret: testWebhookSecret, Reconciler: rec}).Register(r)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func completedEvent(sessionID, paymentStatus string) string {
	return fmt.Sprintf(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": %q, "payment_status": %q}}
	}`, sessionID, paymentStatus)
}

func TestWebhookInvalidSignature(t *testing.T) {
	rec := &fakeReconciler{}
	payload := completedEvent("cs_test_1", "paid")

	w := postWebhook(t, rec, payload, "t=1,v1=deadbeef")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, rec.sessions)
}

func TestWebhookMissingSignature(t *testing.T) {
	rec := &fakeReconciler{}
	w := postWebhook(t, rec, completedEvent("cs_test_1", "paid"), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, rec.sessions)
}

func TestWebhookPaidSessionTriggersReconcile(t *testing.T) {
	rec := &fakeReconciler{}
	payload := completedEvent("cs_test_1", "paid")

	w := postWebhook(t, rec, payload, signStripePayload([]byte(payload), testWebhookSecret))
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, rec.sessions, 1)
	assert.Equal(t, "cs_test_1", rec.sessions[0])
}

func TestWebhookIgnoresUnrelatedEventTypes(t *testing.T) {
	rec := &fakeReconciler{}
	payload := `{"id":"evt_2","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`

	w := postWebhook(t, rec, payload, signStripePayload([]byte(payload), testWebhookSecret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, rec.sessions)
}

func TestWebhookIgnoresUnpaidSession(t *testing.T) {
	rec := &fakeReconciler{}
	payload := completedEvent("cs_test_1", "unpaid")

	w := postWebhook(t, rec, payload, signStripePayload([]byte(payload), testWebhookSecret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, rec.sessions)
}

func TestWebhookAcksDespiteReconcileError(t *testing.T) {
	rec := &fakeReconciler{err: fmt.Errorf("db down")}
	payload := completedEvent("cs_test_1", "paid")

	w := postWebhook(t, rec, payload, signStripePayload([]byte(payload), testWebhookSecret))
	// non-2xx would only trigger a redelivery the idempotency guards absorb
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, rec.sessions, 1)
}
