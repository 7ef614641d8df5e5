package items

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-reservations/internal/authz"
	"github.com/ariefcatur/go-reservations/internal/booking"
	"github.com/ariefcatur/go-reservations/internal/redisx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Authorizer interface {
	Authorize(ctx context.Context, actor string, res authz.Owned) error
}

// Notifier receives a ReservationDeleted event for every reservation an item
// delete cascades to.
type Notifier interface {
	Notify(ctx context.Context, eventType, actor string, r booking.ReservationDTO) error
}

type Service struct {
	store  booking.Store
	gate   Authorizer
	cache  booking.Cache
	notify Notifier
	log    *zap.Logger
}

func NewService(store booking.Store, gate Authorizer, cache booking.Cache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, gate: gate, cache: cache, log: log}
}

// WithNotifier publishes the reservation deletes caused by DeleteItem.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notify = n
	return s
}

func validate(dto booking.ItemDTO) error {
	if strings.TrimSpace(dto.Name) == "" {
		return fmt.Errorf("item name is required: %w", booking.ErrInvalidInput)
	}
	return nil
}

// CreateItem stores a new item owned by dto.Owner (the actor when empty).
func (s *Service) CreateItem(ctx context.Context, actor string, dto booking.ItemDTO) (booking.ItemDTO, error) {
	if err := validate(dto); err != nil {
		return booking.ItemDTO{}, err
	}
	if dto.Owner == "" {
		dto.Owner = actor
	}
	if err := s.gate.Authorize(ctx, actor, dto); err != nil {
		return booking.ItemDTO{}, err
	}
	if _, err := s.store.GetUser(ctx, dto.Owner); err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return booking.ItemDTO{}, fmt.Errorf("user %q: %w", dto.Owner, booking.ErrOwnerNotFound)
		}
		return booking.ItemDTO{}, booking.Persistence("get owner", err)
	}
	it, err := s.store.AddItem(ctx, booking.Item{
		Name:        strings.TrimSpace(dto.Name),
		Description: dto.Description,
		Owner:       dto.Owner,
	})
	if err != nil {
		return booking.ItemDTO{}, booking.Persistence("add item", err)
	}
	s.log.Info("item created", zap.Int64("item_id", it.ID), zap.String("owner", it.Owner))
	return booking.ItemToDTO(it), nil
}

func (s *Service) GetItem(ctx context.Context, id int64) (booking.ItemDTO, error) {
	key := redisx.ItemKey(id)
	if s.cache != nil {
		var cached booking.ItemDTO
		if ok, err := s.cache.Get(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}
	it, err := s.store.GetItem(ctx, id)
	if err != nil {
		return booking.ItemDTO{}, booking.Persistence("get item", err)
	}
	dto := booking.ItemToDTO(it)
	if s.cache != nil {
		if _, err := s.cache.Add(ctx, key, dto); err != nil {
			s.log.Warn("cache fill", zap.String("key", key), zap.Error(err))
		}
	}
	return dto, nil
}

func (s *Service) GetItems(ctx context.Context) ([]booking.ItemDTO, error) {
	return s.filter(ctx, func(booking.Item) bool { return true })
}

// GetItemsByUser lists the items whose owner is exactly username.
func (s *Service) GetItemsByUser(ctx context.Context, username string) ([]booking.ItemDTO, error) {
	return s.filter(ctx, func(it booking.Item) bool { return it.Owner == username })
}

// QueryItems matches query case-insensitively against name and description.
// An empty query matches everything.
func (s *Service) QueryItems(ctx context.Context, query string) ([]booking.ItemDTO, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	return s.filter(ctx, func(it booking.Item) bool {
		return strings.Contains(strings.ToLower(it.Name), q) ||
			strings.Contains(strings.ToLower(it.Description), q)
	})
}

func (s *Service) filter(ctx context.Context, keep func(booking.Item) bool) ([]booking.ItemDTO, error) {
	all, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, booking.Persistence("list items", err)
	}
	out := make([]booking.ItemDTO, 0, len(all))
	for _, it := range all {
		if keep(it) {
			out = append(out, booking.ItemToDTO(it))
		}
	}
	return out, nil
}

// UpdateItem changes name and description. Ownership is checked against the
// stored item, not the request body.
func (s *Service) UpdateItem(ctx context.Context, actor string, dto booking.ItemDTO) (booking.ItemDTO, error) {
	current, err := s.store.GetItem(ctx, dto.ID)
	if err != nil {
		return booking.ItemDTO{}, booking.Persistence("get item", err)
	}
	if err := validate(dto); err != nil {
		return booking.ItemDTO{}, err
	}
	if err := s.gate.Authorize(ctx, actor, current); err != nil {
		return booking.ItemDTO{}, err
	}
	current.Name = strings.TrimSpace(dto.Name)
	current.Description = dto.Description
	updated, err := s.store.UpdateItem(ctx, current)
	if err != nil {
		return booking.ItemDTO{}, booking.Persistence("update item", err)
	}
	s.invalidate(ctx, redisx.ItemKey(updated.ID))
	return booking.ItemToDTO(updated), nil
}

// DeleteItem removes the item together with its reservations.
func (s *Service) DeleteItem(ctx context.Context, actor string, id int64) error {
	current, err := s.store.GetItem(ctx, id)
	if err != nil {
		return booking.Persistence("get item", err)
	}
	if err := s.gate.Authorize(ctx, actor, current); err != nil {
		return err
	}
	cascaded, err := s.store.ListReservationsForItem(ctx, id)
	if err != nil {
		return booking.Persistence("list item reservations", err)
	}
	if err := s.store.DeleteItem(ctx, id); err != nil {
		return booking.Persistence("delete item", err)
	}

	keys := []string{redisx.ItemKey(id)}
	for _, r := range cascaded {
		keys = append(keys, redisx.ReservationKey(r.ID))
	}
	s.invalidate(ctx, keys...)
	if s.notify != nil {
		for _, r := range cascaded {
			if err := s.notify.Notify(ctx, booking.EventReservationDeleted, actor, booking.ReservationToDTO(r)); err != nil {
				s.log.Warn("publish event",
					zap.String("event_type", booking.EventReservationDeleted),
					zap.Int64("reservation_id", r.ID),
					zap.Error(err),
				)
			}
		}
	}
	s.log.Info("item deleted",
		zap.String("actor", actor),
		zap.Int64("item_id", id),
		zap.Int("reservations_removed", len(cascaded)),
	)
	return nil
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Tombstone(ctx, redisx.TTLTombstone, keys...); err != nil {
		s.log.Warn("cache invalidate", zap.Strings("keys", keys), zap.Error(err))
	}
}
