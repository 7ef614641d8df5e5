// Package reservation runs reservation requests through validation,
// authorization, the availability check and persistence.
package reservation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ariefcatur/go-reservations/internal/authz"
	"github.com/ariefcatur/go-reservations/internal/booking"
	"github.com/ariefcatur/go-reservations/internal/redisx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const loadTimeout = 3 * time.Second

type Authorizer interface {
	Authorize(ctx context.Context, actor string, res authz.Owned) error
}

// Notifier receives a lifecycle event after each committed mutation.
type Notifier interface {
	Notify(ctx context.Context, eventType, actor string, r booking.ReservationDTO) error
}

type Service struct {
	store  booking.Store
	gate   Authorizer
	cache  booking.Cache
	notify Notifier
	log    *zap.Logger
	loads  singleflight.Group
}

type Option func(*Service)

func WithCache(c booking.Cache) Option { return func(s *Service) { s.cache = c } }
func WithNotifier(n Notifier) Option  { return func(s *Service) { s.notify = n } }
func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

func NewService(store booking.Store, gate Authorizer, opts ...Option) *Service {
	s := &Service{store: store, gate: gate}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// CreateReservation books [StartTime, EndTime) on dto.Target for dto.Owner.
// An empty owner defaults to the actor.
func (s *Service) CreateReservation(ctx context.Context, actor string, dto booking.ReservationDTO) (booking.ReservationDTO, error) {
	start, end := dto.StartTime.UTC(), dto.EndTime.UTC()
	if err := booking.ValidateInterval(start, end); err != nil {
		return booking.ReservationDTO{}, err
	}
	if dto.Owner == "" {
		dto.Owner = actor
	}

	if _, err := s.store.GetItem(ctx, dto.Target); err != nil {
		return booking.ReservationDTO{}, notFoundAs(err, booking.ErrTargetNotFound, "get item")
	}
	if err := s.gate.Authorize(ctx, actor, dto); err != nil {
		return booking.ReservationDTO{}, err
	}
	if _, err := s.store.GetUser(ctx, dto.Owner); err != nil {
		return booking.ReservationDTO{}, notFoundAs(err, booking.ErrOwnerNotFound, "get owner")
	}

	var created booking.Reservation
	err := s.store.WithTarget(ctx, dto.Target, func(w booking.ReservationWriter) error {
		existing, err := w.ReservationsInRange(ctx, dto.Target, start, end)
		if err != nil {
			return err
		}
		if !booking.CheckAvailability(existing, start, end, nil) {
			return booking.ErrConflict
		}
		created, err = w.AddReservation(ctx, booking.Reservation{
			ItemID:    dto.Target,
			Owner:     dto.Owner,
			StartTime: start,
			EndTime:   end,
		})
		return err
	})
	if err != nil {
		s.log.Debug("create rejected",
			zap.Int64("item_id", dto.Target),
			zap.String("owner", dto.Owner),
			zap.Error(err),
		)
		return booking.ReservationDTO{}, booking.Persistence("create reservation", err)
	}

	out := booking.ReservationToDTO(created)
	s.afterWrite(ctx, booking.EventReservationCreated, actor, out)
	return out, nil
}

// UpdateReservation moves an existing reservation to a new interval. Only the
// interval changes; item and owner stay as created.
func (s *Service) UpdateReservation(ctx context.Context, actor string, dto booking.ReservationDTO) (booking.ReservationDTO, error) {
	current, err := s.store.GetReservation(ctx, dto.ID)
	if err != nil {
		return booking.ReservationDTO{}, notFoundAs(err, booking.ErrNotFound, "get reservation")
	}
	start, end := dto.StartTime.UTC(), dto.EndTime.UTC()
	if err := booking.ValidateInterval(start, end); err != nil {
		return booking.ReservationDTO{}, err
	}
	if err := s.gate.Authorize(ctx, actor, current); err != nil {
		return booking.ReservationDTO{}, err
	}

	var updated booking.Reservation
	err = s.store.WithTarget(ctx, current.ItemID, func(w booking.ReservationWriter) error {
		existing, err := w.ReservationsInRange(ctx, current.ItemID, start, end)
		if err != nil {
			return err
		}
		if !booking.CheckAvailability(existing, start, end, &current.ID) {
			return booking.ErrConflict
		}
		moved := current
		moved.StartTime, moved.EndTime = start, end
		updated, err = w.UpdateReservation(ctx, moved)
		return err
	})
	if err != nil {
		return booking.ReservationDTO{}, booking.Persistence("update reservation", err)
	}

	out := booking.ReservationToDTO(updated)
	s.afterWrite(ctx, booking.EventReservationUpdated, actor, out)
	return out, nil
}

func (s *Service) DeleteReservation(ctx context.Context, actor string, id int64) error {
	current, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return notFoundAs(err, booking.ErrNotFound, "get reservation")
	}
	if err := s.gate.Authorize(ctx, actor, current); err != nil {
		return err
	}
	if err := s.store.DeleteReservation(ctx, id); err != nil {
		return booking.Persistence("delete reservation", err)
	}
	s.afterWrite(ctx, booking.EventReservationDeleted, actor, booking.ReservationToDTO(current))
	return nil
}

// GetReservation is read-only. Concurrent misses for the same id share one
// store lookup, and the fill never overwrites what a later write cached.
func (s *Service) GetReservation(ctx context.Context, id int64) (booking.ReservationDTO, error) {
	key := redisx.ReservationKey(id)
	if s.cache != nil {
		var cached booking.ReservationDTO
		if ok, err := s.cache.Get(ctx, key, &cached); err == nil && ok {
			return cached, nil
		} else if err != nil {
			s.log.Warn("cache get", zap.String("key", key), zap.Error(err))
		}
	}

	v, err, _ := s.loads.Do(strconv.FormatInt(id, 10), func() (any, error) {
		// Shared by every waiter; detached from the first caller's cancellation.
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		r, err := s.store.GetReservation(lctx, id)
		if err != nil {
			return nil, err
		}
		return booking.ReservationToDTO(r), nil
	})
	if err != nil {
		return booking.ReservationDTO{}, notFoundAs(err, booking.ErrNotFound, "get reservation")
	}
	dto := v.(booking.ReservationDTO)
	if s.cache != nil {
		if _, err := s.cache.Add(ctx, key, dto); err != nil {
			s.log.Warn("cache fill", zap.String("key", key), zap.Error(err))
		}
	}
	return dto, nil
}

func (s *Service) GetReservations(ctx context.Context) ([]booking.ReservationDTO, error) {
	rs, err := s.store.ListReservations(ctx)
	if err != nil {
		return nil, booking.Persistence("list reservations", err)
	}
	return booking.ReservationsToDTO(rs), nil
}

func (s *Service) GetReservationsForItem(ctx context.Context, itemID int64) ([]booking.ReservationDTO, error) {
	if _, err := s.store.GetItem(ctx, itemID); err != nil {
		return nil, notFoundAs(err, booking.ErrNotFound, "get item")
	}
	rs, err := s.store.ListReservationsForItem(ctx, itemID)
	if err != nil {
		return nil, booking.Persistence("list item reservations", err)
	}
	return booking.ReservationsToDTO(rs), nil
}

// afterWrite runs once the mutation is committed; failures here are logged,
// never returned. Updates and deletes leave a tombstone, so neither a reader
// that loaded before the commit nor a slower writer can refill the key.
func (s *Service) afterWrite(ctx context.Context, eventType, actor string, dto booking.ReservationDTO) {
	if s.cache != nil {
		key := redisx.ReservationKey(dto.ID)
		var err error
		if eventType == booking.EventReservationCreated {
			err = s.cache.Set(ctx, key, dto)
		} else {
			err = s.cache.Tombstone(ctx, redisx.TTLTombstone, key)
		}
		if err != nil {
			s.log.Warn("cache write", zap.String("key", key), zap.Error(err))
		}
	}
	if s.notify != nil {
		if err := s.notify.Notify(ctx, eventType, actor, dto); err != nil {
			s.log.Warn("publish event",
				zap.String("event_type", eventType),
				zap.Int64("reservation_id", dto.ID),
				zap.Error(err),
			)
		}
	}
	s.log.Info("reservation "+eventType,
		zap.String("actor", actor),
		zap.Int64("reservation_id", dto.ID),
		zap.Int64("item_id", dto.Target),
	)
}

// notFoundAs rewrites a store ErrNotFound into the more specific sentinel and
// classifies anything else.
func notFoundAs(err, sentinel error, op string) error {
	if errors.Is(err, booking.ErrNotFound) {
		if sentinel == booking.ErrNotFound {
			return err
		}
		return fmt.Errorf("%s: %w", op, sentinel)
	}
	return booking.Persistence(op, err)
}
