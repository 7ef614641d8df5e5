// Package audit records reservation lifecycle events consumed from kafka.
package audit

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-reservations/internal/booking"
	kafkax "github.com/ariefcatur/go-reservations/internal/kafka"
	"github.com/ariefcatur/go-reservations/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Entry struct {
	Envelope booking.Envelope
	Payload  booking.ReservationEventPayload
}

type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

type Service struct {
	Recorder    Recorder
	Redis       *redis.Client // optional, dedup on event id
	ServiceName string
	Log         *zap.Logger
}

var knownEvents = map[string]bool{
	booking.EventReservationCreated: true,
	booking.EventReservationUpdated: true,
	booking.EventReservationDeleted: true,
}

// HandleReservationEvent is installed as the consumer handler. Returning nil
// commits the offset.
func (s *Service) HandleReservationEvent(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		s.log().Warn("skip undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if !knownEvents[env.EventType] {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if s.Redis != nil {
		if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[booking.ReservationEventPayload](env.Payload)
	if err != nil {
		s.log().Warn("skip bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	if err := s.Recorder.Record(ctx, Entry{Envelope: env, Payload: p}); err != nil {
		return err
	}
	if s.Redis != nil {
		_, _ = redisx.MarkOnce(ctx, s.Redis, dkey, redisx.TTLDedup)
	}
	s.log().Debug("event recorded",
		zap.String("event_type", env.EventType),
		zap.Int64("reservation_id", p.Reservation.ID),
	)
	return nil
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
