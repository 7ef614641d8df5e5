package reservation

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/ariefcatur/go-reservations/internal/booking"
	kafkax "github.com/ariefcatur/go-reservations/internal/kafka"
	"github.com/go-chi/chi/v5/middleware"
	kafkago "github.com/segmentio/kafka-go"
)

type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// KafkaNotifier publishes reservation events keyed by item id.
type KafkaNotifier struct {
	Producer Publisher
	Service  string
}

func (n *KafkaNotifier) Notify(ctx context.Context, eventType, actor string, r booking.ReservationDTO) error {
	env, err := kafkax.NewEnvelope(
		eventType,
		n.Service,
		strconv.FormatInt(r.ID, 10),
		middleware.GetReqID(ctx),
		booking.ReservationEventPayload{Actor: actor, Reservation: r},
	)
	if err != nil {
		return err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return n.Producer.Publish(ctx, booking.PartitionKey(r.Target), b, kafkax.EventHeaders(eventType, env.EventVersion)...)
}
