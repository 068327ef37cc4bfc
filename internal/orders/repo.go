package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

var ErrNotFound = errors.New("order not found")

const pgUniqueViolation = "23505"

func (r *Repo) ExistsBySessionID(ctx context.Context, sessionID string) (bool, error) {
	var n int
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE session_id=$1`, sessionID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Insert writes the order and its items in one transaction. The check-then-act
// window against concurrent reconcile calls is closed by the unique index on
// session_id: a duplicate insert loses the race and reports created=false
// instead of an error.
func (r *Repo) Insert(ctx context.Context, o *Order) (created bool, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO orders(
			session_id, payment_intent_id, customer_email, customer_name,
			payment_status, payment_method, currency,
			subtotal_amount, tax_amount, total_amount,
			address_line1, address_line2, city, postal_code, country,
			metadata, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		RETURNING id`,
		o.SessionID, o.PaymentIntentID, o.CustomerEmail, o.CustomerName,
		o.PaymentStatus, o.PaymentMethod, o.Currency,
		o.SubtotalAmount, o.TaxAmount, o.TotalAmount,
		o.AddressLine1, o.AddressLine2, o.City, o.PostalCode, o.Country,
		o.Metadata, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("insert order %s: %w", o.SessionID, err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items(order_id, product_id, product_name, description,
				quantity, unit_price, total_price, currency)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			RETURNING id`,
			it.OrderID, it.ProductID, it.ProductName, it.Description,
			it.Quantity, it.UnitPrice, it.TotalPrice, it.Currency,
		).Scan(&it.ID)
		if err != nil {
			return false, fmt.Errorf("insert order item for %s: %w", o.SessionID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repo) GetBySessionID(ctx context.Context, sessionID string) (Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, session_id, COALESCE(payment_intent_id,''), customer_email,
			COALESCE(customer_name,''), payment_status, COALESCE(payment_method,''),
			currency, subtotal_amount, tax_amount, total_amount,
			COALESCE(address_line1,''), COALESCE(address_line2,''), COALESCE(city,''),
			COALESCE(postal_code,''), COALESCE(country,''), COALESCE(metadata,''),
			created_at, updated_at
		FROM orders WHERE session_id=$1`, sessionID,
	).Scan(&o.ID, &o.SessionID, &o.PaymentIntentID, &o.CustomerEmail,
		&o.CustomerName, &o.PaymentStatus, &o.PaymentMethod,
		&o.Currency, &o.SubtotalAmount, &o.TaxAmount, &o.TotalAmount,
		&o.AddressLine1, &o.AddressLine2, &o.City,
		&o.PostalCode, &o.Country, &o.Metadata,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, product_name, COALESCE(description,''),
			quantity, unit_price, total_price, currency
		FROM order_items WHERE order_id=$1 ORDER BY id`, o.ID)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
			&it.Description, &it.Quantity, &it.UnitPrice, &it.TotalPrice, &it.Currency); err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// List returns one page of order summaries, newest first, plus the total count.
func (r *Repo) List(ctx context.Context, page, pageSize int) ([]OrderSummary, int, error) {
	offset := (page - 1) * pageSize
	rows, err := r.DB.Query(ctx, `
		SELECT o.id, o.session_id, o.customer_email, o.payment_status,
			o.total_amount, o.currency, o.created_at,
			(SELECT COUNT(*) FROM order_items i WHERE i.order_id = o.id)
		FROM orders o
		ORDER BY o.created_at DESC
		LIMIT $1 OFFSET $2`, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []OrderSummary
	for rows.Next() {
		var s OrderSummary
		if err := rows.Scan(&s.ID, &s.SessionID, &s.CustomerEmail, &s.PaymentStatus,
			&s.TotalAmount, &s.Currency, &s.CreatedAt, &s.ItemCount); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *Repo) GetEmailLog(ctx context.Context, sessionID string) (EmailLog, bool, error) {
	var l EmailLog
	err := r.DB.QueryRow(ctx,
		`SELECT id, session_id, recipient, sent_at FROM email_logs WHERE session_id=$1`,
		sessionID,
	).Scan(&l.ID, &l.SessionID, &l.Recipient, &l.SentAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return EmailLog{}, false, nil
	}
	if err != nil {
		return EmailLog{}, false, err
	}
	return l, true, nil
}

// UpsertEmailLog records an accepted send. The unique index on session_id keeps
// the ledger single-rowed; a forced resend refreshes recipient and timestamp.
func (r *Repo) UpsertEmailLog(ctx context.Context, sessionID, recipient string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO email_logs(session_id, recipient, sent_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (session_id)
		DO UPDATE SET recipient = EXCLUDED.recipient, sent_at = EXCLUDED.sent_at`,
		sessionID, recipient, time.Now().UTC())
	return err
}

// MarkFulfillmentRequested is the downstream consumer's write; replays are
// absorbed by the primary-key conflict.
func (r *Repo) MarkFulfillmentRequested(ctx context.Context, orderID int64) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO fulfillments(order_id, status)
		VALUES ($1, 'REQUESTED')
		ON CONFLICT (order_id) DO NOTHING`, orderID)
	return err
}
