package redisx

import "time"

const (
	// Confirmation-email fast path: idem:email:confirm:{session_id} -> recipient.
	// Shortcut only; the email_logs table stays the source of truth.
	KeyEmailSent = "idem:email:confirm:%s"

	// Receipt-poll cache: checkout_session:{session_id} -> session summary JSON.
	KeySession = "checkout_session:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLEmailSent = 24 * time.Hour
	TTLSession   = 60 * time.Second
	TTLDedup     = 48 * time.Hour
)
