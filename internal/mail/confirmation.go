package mail

import (
	"context"
	"fmt"
	"html"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/devdisplay/webshop/internal/orders"
	"github.com/devdisplay/webshop/internal/redisx"
)

type Reason string

const (
	ReasonSent             Reason = "sent"
	ReasonResent           Reason = "resent"
	ReasonAlreadySent      Reason = "already-sent"
	ReasonNotConfigured    Reason = "sendgrid-not-configured"
	ReasonProviderFailed   Reason = "provider-failed"
	ReasonProviderRejected Reason = "provider-rejected"
	ReasonNoRecipient      Reason = "no-recipient"
)

type Result struct {
	Sent       bool
	Reason     Reason
	StatusCode int // provider status on rejected/failed outcomes
}

// Ledger is the persisted sent-email record keyed by session id.
type Ledger interface {
	GetEmailLog(ctx context.Context, sessionID string) (orders.EmailLog, bool, error)
	UpsertEmailLog(ctx context.Context, sessionID, recipient string) error
}

// ConfirmationMailer sends the order-confirmation email at most once per
// session. The ledger read and the send are not atomic: two first-time callers
// racing the check can both send before either commits its log row. The window
// is narrow (webhook and receipt poll are separated by the redirect round
// trip) and is accepted; the unique index keeps the ledger itself single-rowed.
type ConfirmationMailer struct {
	Ledger Ledger
	Client Client        // nil means build a SendGrid client from APIKey per send
	Redis  *redis.Client // optional fast-path marker, DB stays the truth

	APIKey    string
	FromEmail string
	FromName  string
	Currency  string
	ShopURL   string
	Sandbox   bool

	MaxAttempts int           // transient-failure attempts, default 3
	BaseDelay   time.Duration // first backoff sleep, doubles per attempt, default 400ms
}

func (m *ConfirmationMailer) SendIfNotSent(ctx context.Context, sessionID, to string, amountTotal int64, forceResend bool) (Result, error) {
	if m.Redis != nil && !forceResend {
		key := fmt.Sprintf(redisx.KeyEmailSent, sessionID)
		if ok, _ := redisx.Exists(ctx, m.Redis, key); ok {
			return Result{Sent: false, Reason: ReasonAlreadySent}, nil
		}
	}

	_, found, err := m.Ledger.GetEmailLog(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("read email log %s: %w", sessionID, err)
	}
	if found && !forceResend {
		return Result{Sent: false, Reason: ReasonAlreadySent}, nil
	}

	if m.APIKey == "" || m.FromEmail == "" {
		return Result{Sent: false, Reason: ReasonNotConfigured}, nil
	}

	msg := m.buildMessage(sessionID, to, amountTotal)

	client := m.Client
	if client == nil {
		client = NewSendGridClient(m.APIKey)
	}

	maxAttempts := m.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	delay := m.BaseDelay
	if delay <= 0 {
		delay = 400 * time.Millisecond
	}

	attempts := 0
	for {
		attempts++
		resp, err := client.Send(msg)
		if err == nil {
			code := resp.StatusCode
			transient := code == 429 || code >= 500
			if !transient {
				if code == 202 {
					return m.recordSent(ctx, sessionID, to, found)
				}
				log.Printf("sendgrid non-success: %d %s", code, resp.Body)
				return Result{Sent: false, Reason: ReasonProviderRejected, StatusCode: code}, nil
			}
			if attempts >= maxAttempts {
				log.Printf("sendgrid failed after %d attempts: %d %s", attempts, code, resp.Body)
				return Result{Sent: false, Reason: ReasonProviderFailed, StatusCode: code}, nil
			}
		} else {
			if attempts >= maxAttempts {
				log.Printf("sendgrid failed after %d attempts: %v", attempts, err)
				return Result{Sent: false, Reason: ReasonProviderFailed}, nil
			}
		}
		time.Sleep(delay)
		delay *= 2
	}
}

func (m *ConfirmationMailer) recordSent(ctx context.Context, sessionID, to string, resent bool) (Result, error) {
	res := Result{Sent: true, Reason: ReasonSent, StatusCode: 202}
	if resent {
		res.Reason = ReasonResent
	}
	if err := m.Ledger.UpsertEmailLog(ctx, sessionID, to); err != nil {
		// The mail went out; surface the ledger failure so the caller logs it.
		return res, fmt.Errorf("upsert email log %s: %w", sessionID, err)
	}
	if m.Redis != nil {
		key := fmt.Sprintf(redisx.KeyEmailSent, sessionID)
		_ = m.Redis.Set(ctx, key, to, redisx.TTLEmailSent).Err()
	}
	return res, nil
}

func (m *ConfirmationMailer) buildMessage(sessionID, to string, amountTotal int64) *sgmail.SGMailV3 {
	from := sgmail.NewEmail(m.FromName, m.FromEmail)
	toAddr := sgmail.NewEmail("", to)
	subject := "Order Confirmation - Thank you for your purchase!"

	amount := fmt.Sprintf("%.2f %s", float64(amountTotal)/100, m.Currency)
	text := fmt.Sprintf("Thank you for your order!\nSession ID: %s\nAmount: %s", sessionID, amount)
	htmlBody := confirmationHTML(html.EscapeString(sessionID), html.EscapeString(to), amount, m.ShopURL)

	msg := sgmail.NewSingleEmail(from, subject, toAddr, text, htmlBody)
	msg.SetReplyTo(from)
	msg.AddCategories("order-confirmation")
	if len(msg.Personalizations) > 0 {
		msg.Personalizations[0].SetCustomArg("session_id", sessionID)
	}
	if m.Sandbox {
		ms := sgmail.NewMailSettings()
		ms.SetSandboxMode(sgmail.NewSetting(true))
		msg.MailSettings = ms
	}
	return msg
}

func confirmationHTML(sessionID, to, amount, shopURL string) string {
	return fmt.Sprintf(`
<html>
<body style='font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;'>
  <div style='background:#f8f9fa; padding:20px; text-align:center;'>
    <h1 style='color:#28a745;margin:0;'>Order Confirmation</h1>
    <p style='margin:8px 0 0'>Thank you for your purchase!</p>
  </div>
  <div style='padding:20px;'>
    <h2 style='margin-top:0;'>Order Details</h2>
    <table style='width:100%%; border-collapse:collapse;'>
      <tr><td style='padding:10px; border-bottom:1px solid #dee2e6;'><strong>Order ID:</strong></td>
          <td style='padding:10px; border-bottom:1px solid #dee2e6;'>%s</td></tr>
      <tr><td style='padding:10px; border-bottom:1px solid #dee2e6;'><strong>Customer Email:</strong></td>
          <td style='padding:10px; border-bottom:1px solid #dee2e6;'>%s</td></tr>
      <tr><td style='padding:10px; border-bottom:1px solid #dee2e6;'><strong>Total Amount:</strong></td>
          <td style='padding:10px; border-bottom:1px solid #dee2e6;'><strong>%s</strong></td></tr>
    </table>
    <div style='margin-top:30px; padding:20px; background:#e9ecef; border-radius:5px;'>
      <p><strong>What's next?</strong></p>
      <p>Your order is being processed. We'll email tracking details once it ships.</p>
    </div>
    <div style='margin-top:20px; text-align:center;'>
      <a href='%s' style='background:#007bff; color:#fff; padding:10px 20px; text-decoration:none; border-radius:5px;'>Continue Shopping</a>
    </div>
  </div>
  <div style='background:#f8f9fa; padding:20px; text-align:center; color:#6c757d;'>
    <p style='margin:0;'>Thank you for shopping with us!</p>
    <p style='margin:4px 0 0;'><small>Questions? Just reply to this email.</small></p>
  </div>
</body>
</html>`, sessionID, to, amount, shopURL)
}
