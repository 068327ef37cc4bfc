package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the tables the services expect. Idempotent, safe to run
// at every boot.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schemaDDL)
	return err
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS products (
	id          BIGSERIAL PRIMARY KEY,
	name        VARCHAR(200)  NOT NULL,
	description VARCHAR(1000) NOT NULL DEFAULT '',
	price       NUMERIC(10,2) NOT NULL,
	image_url   VARCHAR(500)  NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ   NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
	id                BIGSERIAL PRIMARY KEY,
	session_id        VARCHAR(200) NOT NULL UNIQUE,
	payment_intent_id VARCHAR(200),
	customer_email    VARCHAR(254) NOT NULL DEFAULT '',
	customer_name     VARCHAR(100),
	payment_status    VARCHAR(20)  NOT NULL,
	payment_method    VARCHAR(50),
	currency          VARCHAR(3)   NOT NULL,
	subtotal_amount   BIGINT       NOT NULL DEFAULT 0,
	tax_amount        BIGINT       NOT NULL DEFAULT 0,
	total_amount      BIGINT       NOT NULL DEFAULT 0,
	address_line1     VARCHAR(200),
	address_line2     VARCHAR(200),
	city              VARCHAR(100),
	postal_code       VARCHAR(20),
	country           VARCHAR(2),
	metadata          VARCHAR(2000),
	created_at        TIMESTAMPTZ  NOT NULL,
	updated_at        TIMESTAMPTZ  NOT NULL
);

CREATE TABLE IF NOT EXISTS order_items (
	id           BIGSERIAL PRIMARY KEY,
	order_id     BIGINT        NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	product_id   VARCHAR(200)  NOT NULL,
	product_name VARCHAR(200)  NOT NULL,
	description  VARCHAR(1000),
	quantity     INT           NOT NULL,
	unit_price   BIGINT        NOT NULL,
	total_price  BIGINT        NOT NULL,
	currency     VARCHAR(3)    NOT NULL
);

CREATE TABLE IF NOT EXISTS email_logs (
	id         BIGSERIAL PRIMARY KEY,
	session_id VARCHAR(200) NOT NULL UNIQUE,
	recipient  VARCHAR(254) NOT NULL,
	sent_at    TIMESTAMPTZ  NOT NULL
);

CREATE TABLE IF NOT EXISTS fulfillments (
	order_id     BIGINT      PRIMARY KEY REFERENCES orders(id) ON DELETE CASCADE,
	status       VARCHAR(20) NOT NULL,
	requested_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders (created_at DESC);
`
