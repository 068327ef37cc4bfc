package mail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdisplay/webshop/internal/orders"
)

type fakeLedger struct {
	logs    map[string]orders.EmailLog
	upserts int
	getErr  error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{logs: map[string]orders.EmailLog{}}
}

func (f *fakeLedger) GetEmailLog(_ context.Context, sessionID string) (orders.EmailLog, bool, error) {
	if f.getErr != nil {
		return orders.EmailLog{}, false, f.getErr
	}
	l, ok := f.logs[sessionID]
	return l, ok, nil
}

func (f *fakeLedger) UpsertEmailLog(_ context.Context, sessionID, recipient string) error {
	f.upserts++
	f.logs[sessionID] = orders.EmailLog{SessionID: sessionID, Recipient: recipient, SentAt: time.Now()}
	return nil
}

type fakeClient struct {
	calls     int
	responses []*rest.Response
	err       error
	lastMsg   *sgmail.SGMailV3
}

func (f *fakeClient) Send(m *sgmail.SGMailV3) (*rest.Response, error) {
	f.calls++
	f.lastMsg = m
	if f.err != nil {
		return nil, f.err
	}
	i := f.calls - 1
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

func newMailer(ledger Ledger, client Client) *ConfirmationMailer {
	return &ConfirmationMailer{
		Ledger:    ledger,
		Client:    client,
		APIKey:    "SG.test-key",
		FromEmail: "orders@shop.example",
		FromName:  "Webshop",
		Currency:  "DKK",
		ShopURL:   "https://shop.example",
		BaseDelay: time.Millisecond,
	}
}

func TestSendIfNotSentFirstSend(t *testing.T) {
	ledger := newFakeLedger()
	client := &fakeClient{responses: []*rest.Response{{StatusCode: 202}}}
	m := newMailer(ledger, client)

	res, err := m.SendIfNotSent(context.Background(), "cs_1", "a@b.dk", 12999, false)
	require.NoError(t, err)
	assert.True(t, res.Sent)
	assert.Equal(t, ReasonSent, res.Reason)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, 1, ledger.upserts)
	assert.Equal(t, "a@b.dk", ledger.logs["cs_1"].Recipient)
}

func TestSendIfNotSentShortCircuits(t *testing.T) {
	ledger := newFakeLedger()
	ledger.logs["cs_1"] = orders.EmailLog{SessionID: "cs_1", Recipient: "a@b.dk"}
	client := &fakeClient{responses: []*rest.Response{{StatusCode: 202}}}
	m := newMailer(ledger, client)

	res, err := m.SendIfNotSent(context.Background(), "cs_1", "a@b.dk", 12999, false)
	require.NoError(t, err)
	assert.False(t, res.Sent)
	assert.Equal(t, ReasonAlreadySent, res.Reason)
	// the provider must not be contacted at all
	assert.Equal(t, 0, client.calls)
	assert.Equal(t, 0, ledger.upserts)
}

func TestSendIfNotSentForcedResend(t *testing.T) {
	ledger := newFakeLedger()
	ledger.logs["cs_1"] = orders.EmailLog{SessionID: "cs_1", Recipient: "old@b.dk"}
	client := &fakeClient{responses: []*rest.Response{{StatusCode: 202}}}
	m := newMailer(ledger, client)

	res, err := m.SendIfNotSent(context.Background(), "cs_1", "new@b.dk", 12999, true)
	require.NoError(t, err)
	assert.True(t, res.Sent)
	assert.Equal(t, ReasonResent, res.Reason)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, "new@b.dk", ledger.logs["cs_1"].Recipient)
}

func TestSendIfNotSentNotConfigured(t *testing.T) {
	ledger := newFakeLedger()
	client := &fakeClient{responses: []*rest.Response{{StatusCode: 202}}}
	m := newMailer(ledger, client)
	m.APIKey = ""

	res, err := m.SendIfNotSent(context.Background(), "cs_1", "a@b.dk", 100, false)
	require.NoError(t, err)
	assert.False(t, res.Sent)
	assert.Equal(t, ReasonNotConfigured, res.Reason)
	assert.Equal(t, 0, client.calls)
}

func TestSendIfNotSentTransientRetriesThenFails(t *testing.T) {
	ledger := newFakeLedger()
	client := &fakeClient{responses: []*rest.Response{{StatusCode: 500}, {StatusCode: 503}, {StatusCode: 429}}}
	m := newMailer(ledger, client)

	res, err := m.SendIfNotSent(context.Background(), "cs_1", "a@b.dk", 100, false)
	require.NoError(t, err)
	assert.False(t, res.Sent)
	assert.Equal(t, ReasonProviderFailed, res.Reason)
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, 0, ledger.upserts)
}

func TestSendIfNotSentTransientThenSucceeds(t *testing.T) {
	ledger := newFakeLedger()
	client := &fakeClient{responses: []*rest.Response{{StatusCode: 429}, {StatusCode: 202}}}
	m := newMailer(ledger, client)

	res, err := m.SendIfNotSent(context.Background(), "cs_1", "a@b.dk", 100, false)
	require.NoError(t, err)
	assert.True(t, res.Sent)
	assert.Equal(t, 2, client.calls)
	assert.Equal(t, 1, ledger.upserts)
}

func TestSendIfNotSentPermanentFailureNoRetry(t *testing.T) {
	ledger := newFakeLedger()
	client := &fakeClient{responses: []*rest.Response{{StatusCode: 400, Body: "bad request"}}}
	m := newMailer(ledger, client)

	res, err := m.SendIfNotSent(context.Background(), "cs_1", "a@b.dk", 100, false)
	require.NoError(t, err)
	assert.False(t, res.Sent)
	assert.Equal(t, ReasonProviderRejected, res.Reason)
	assert.Equal(t, 400, res.StatusCode)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, 0, ledger.upserts)
}

func TestSendIfNotSentTransportErrorRetries(t *testing.T) {
	ledger := newFakeLedger()
	client := &fakeClient{err: errors.New("connection refused")}
	m := newMailer(ledger, client)

	res, err := m.SendIfNotSent(context.Background(), "cs_1", "a@b.dk", 100, false)
	require.NoError(t, err)
	assert.False(t, res.Sent)
	assert.Equal(t, ReasonProviderFailed, res.Reason)
	assert.Equal(t, 3, client.calls)
}

func TestSendIfNotSentLedgerReadError(t *testing.T) {
	ledger := newFakeLedger()
	ledger.getErr = errors.New("db down")
	client := &fakeClient{responses: []*rest.Response{{StatusCode: 202}}}
	m := newMailer(ledger, client)

	_, err := m.SendIfNotSent(context.Background(), "cs_1", "a@b.dk", 100, false)
	require.Error(t, err)
	assert.Equal(t, 0, client.calls)
}

func TestBuildMessageFormatsAmount(t *testing.T) {
	m := newMailer(newFakeLedger(), nil)
	msg := m.buildMessage("cs_1", "a@b.dk", 12999)

	require.Len(t, msg.Content, 2)
	assert.Contains(t, msg.Content[0].Value, "129.99 DKK")
	assert.Contains(t, msg.Content[0].Value, "cs_1")
	assert.Equal(t, "orders@shop.example", msg.From.Address)
}
