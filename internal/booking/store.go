package booking

import (
	"context"
	"time"
)

// ReservationWriter is the part of the store that participates in a
// serialized check-then-write sequence for one item.
type ReservationWriter interface {
	// ReservationsInRange returns every reservation on itemID whose interval
	// intersects [start, end).
	ReservationsInRange(ctx context.Context, itemID int64, start, end time.Time) ([]Reservation, error)
	AddReservation(ctx context.Context, r Reservation) (Reservation, error)
	UpdateReservation(ctx context.Context, r Reservation) (Reservation, error)
}

type UserStore interface {
	GetUser(ctx context.Context, username string) (User, error)
	AddUser(ctx context.Context, u User) (User, error)
}

type ItemStore interface {
	GetItem(ctx context.Context, id int64) (Item, error)
	ListItems(ctx context.Context) ([]Item, error)
	AddItem(ctx context.Context, it Item) (Item, error)
	UpdateItem(ctx context.Context, it Item) (Item, error)
	// DeleteItem also removes the item's reservations.
	DeleteItem(ctx context.Context, id int64) error
}

// Store is the repository consumed by the services. Lookups of absent
// entities fail with an error matching ErrNotFound.
type Store interface {
	UserStore
	ItemStore
	ReservationWriter

	GetReservation(ctx context.Context, id int64) (Reservation, error)
	ListReservations(ctx context.Context) ([]Reservation, error)
	ListReservationsForItem(ctx context.Context, itemID int64) ([]Reservation, error)
	DeleteReservation(ctx context.Context, id int64) error

	// WithTarget runs fn while holding the per-item write lock for itemID.
	// Writes made through w become visible atomically when fn returns nil and
	// are discarded otherwise. Fails with ErrTargetNotFound if the item does
	// not exist.
	WithTarget(ctx context.Context, itemID int64, fn func(w ReservationWriter) error) error
}

// Cache is an optional read-through cache for DTO projections. Writers
// overwrite with Set or Tombstone after a commit; readers fill with Add, which
// never replaces what a writer left behind.
type Cache interface {
	Get(ctx context.Context, key string, out any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Add(ctx context.Context, key string, v any) (bool, error)
	// Tombstone marks keys as deleted for ttl. Get reports them as misses
	// and Add cannot fill them.
	Tombstone(ctx context.Context, ttl time.Duration, keys ...string) error
}
