package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/devdisplay/webshop/internal/kafka"
	"github.com/devdisplay/webshop/internal/orders"
	"github.com/devdisplay/webshop/internal/redisx"
)

type Store interface {
	MarkFulfillmentRequested(ctx context.Context, orderID int64) error
}

// Service consumes order.recorded events and opens a fulfillment request per
// order. Redelivered events are dropped via the redis dedup key; the insert
// itself is conflict-safe, so dedup is an optimization, not a correctness
// requirement.
type Service struct {
	Store       Store
	Redis       *redis.Client
	ServiceName string
}

func (s *Service) HandleOrderRecorded(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderRecorded {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderRecordedPayload](env.Payload)
	if err != nil {
		return err
	}

	if err := s.Store.MarkFulfillmentRequested(ctx, p.OrderID); err != nil {
		return err
	}

	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	log.Printf("fulfillment requested: order=%d session=%s total=%d %s",
		p.OrderID, p.SessionID, p.TotalAmount, p.Currency)
	return nil
}
