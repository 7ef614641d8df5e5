package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps everything in process memory. It applies the same
// storage-level guarantees as the postgres schema: strict intervals, no
// overlapping reservations per item, cascading item deletes.
type MemoryStore struct {
	mu           sync.RWMutex
	items        map[int64]Item
	users        map[string]User
	reservations map[int64]Reservation
	itemSeq      int64
	resSeq       int64

	locksMu     sync.Mutex
	targetLocks map[int64]*sync.Mutex

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:        map[int64]Item{},
		users:        map[string]User{},
		reservations: map[int64]Reservation{},
		targetLocks:  map[int64]*sync.Mutex{},
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) GetUser(ctx context.Context, username string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return User{}, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	return u, nil
}

func (s *MemoryStore) AddUser(ctx context.Context, u User) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.Username]; exists {
		return User{}, fmt.Errorf("user %q: %w", u.Username, ErrConflict)
	}
	u.CreatedAt = s.now()
	s.users[u.Username] = u
	return u, nil
}

func (s *MemoryStore) GetItem(ctx context.Context, id int64) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return Item{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return it, nil
}

func (s *MemoryStore) ListItems(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) AddItem(ctx context.Context, it Item) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[it.Owner]; !ok {
		return Item{}, fmt.Errorf("item owner %q: %w", it.Owner, ErrOwnerNotFound)
	}
	s.itemSeq++
	it.ID = s.itemSeq
	it.CreatedAt = s.now()
	s.items[it.ID] = it
	return it, nil
}

func (s *MemoryStore) UpdateItem(ctx context.Context, it Item) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.items[it.ID]
	if !ok {
		return Item{}, fmt.Errorf("item %d: %w", it.ID, ErrNotFound)
	}
	old.Name = it.Name
	old.Description = it.Description
	s.items[it.ID] = old
	return old, nil
}

func (s *MemoryStore) DeleteItem(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	delete(s.items, id)
	for rid, r := range s.reservations {
		if r.ItemID == id {
			delete(s.reservations, rid)
		}
	}
	return nil
}

func (s *MemoryStore) GetReservation(ctx context.Context, id int64) (Reservation, error) {
	if err := ctx.Err(); err != nil {
		return Reservation{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return Reservation{}, fmt.Errorf("reservation %d: %w", id, ErrNotFound)
	}
	return r, nil
}

func (s *MemoryStore) ListReservations(ctx context.Context) ([]Reservation, error) {
	return s.filterReservations(ctx, func(Reservation) bool { return true })
}

func (s *MemoryStore) ListReservationsForItem(ctx context.Context, itemID int64) ([]Reservation, error) {
	return s.filterReservations(ctx, func(r Reservation) bool { return r.ItemID == itemID })
}

func (s *MemoryStore) ReservationsInRange(ctx context.Context, itemID int64, start, end time.Time) ([]Reservation, error) {
	return s.filterReservations(ctx, func(r Reservation) bool {
		return r.ItemID == itemID && Overlaps(r, start, end)
	})
}

func (s *MemoryStore) filterReservations(ctx context.Context, keep func(Reservation) bool) ([]Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Reservation
	for _, r := range s.reservations {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (s *MemoryStore) AddReservation(ctx context.Context, r Reservation) (Reservation, error) {
	if err := ctx.Err(); err != nil {
		return Reservation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(r)
}

func (s *MemoryStore) UpdateReservation(ctx context.Context, r Reservation) (Reservation, error) {
	if err := ctx.Err(); err != nil {
		return Reservation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceLocked(r)
}

func (s *MemoryStore) DeleteReservation(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reservations[id]; !ok {
		return fmt.Errorf("reservation %d: %w", id, ErrNotFound)
	}
	delete(s.reservations, id)
	return nil
}

// insertLocked enforces the checks the postgres schema carries as
// constraints. Callers hold s.mu.
func (s *MemoryStore) insertLocked(r Reservation) (Reservation, error) {
	if err := s.checkLocked(r, nil); err != nil {
		return Reservation{}, err
	}
	s.resSeq++
	r.ID = s.resSeq
	r.CreatedAt = s.now()
	r.UpdatedAt = r.CreatedAt
	s.reservations[r.ID] = r
	return r, nil
}

func (s *MemoryStore) replaceLocked(r Reservation) (Reservation, error) {
	old, ok := s.reservations[r.ID]
	if !ok {
		return Reservation{}, fmt.Errorf("reservation %d: %w", r.ID, ErrNotFound)
	}
	if err := s.checkLocked(r, &r.ID); err != nil {
		return Reservation{}, err
	}
	r.CreatedAt = old.CreatedAt
	r.UpdatedAt = s.now()
	s.reservations[r.ID] = r
	return r, nil
}

func (s *MemoryStore) checkLocked(r Reservation, self *int64) error {
	if err := ValidateInterval(r.StartTime, r.EndTime); err != nil {
		return err
	}
	if _, ok := s.items[r.ItemID]; !ok {
		return fmt.Errorf("item %d: %w", r.ItemID, ErrTargetNotFound)
	}
	if _, ok := s.users[r.Owner]; !ok {
		return fmt.Errorf("user %q: %w", r.Owner, ErrOwnerNotFound)
	}
	for _, other := range s.reservations {
		if other.ItemID != r.ItemID || (self != nil && other.ID == *self) {
			continue
		}
		if Overlaps(other, r.StartTime, r.EndTime) {
			return fmt.Errorf("overlaps reservation %d: %w", other.ID, ErrConflict)
		}
	}
	return nil
}

func (s *MemoryStore) targetLock(itemID int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.targetLocks[itemID]
	if !ok {
		l = &sync.Mutex{}
		s.targetLocks[itemID] = l
	}
	return l
}

func (s *MemoryStore) WithTarget(ctx context.Context, itemID int64, fn func(w ReservationWriter) error) error {
	l := s.targetLock(itemID)
	l.Lock()
	defer l.Unlock()

	if _, err := s.GetItem(ctx, itemID); err != nil {
		return fmt.Errorf("item %d: %w", itemID, ErrTargetNotFound)
	}

	tx := &memoryTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// memoryTx stages writes until WithTarget's callback returns.
type memoryTx struct {
	store   *MemoryStore
	pending []stagedWrite
}

type stagedWrite struct {
	update bool
	r      Reservation
}

func (t *memoryTx) ReservationsInRange(ctx context.Context, itemID int64, start, end time.Time) ([]Reservation, error) {
	return t.store.ReservationsInRange(ctx, itemID, start, end)
}

func (t *memoryTx) AddReservation(ctx context.Context, r Reservation) (Reservation, error) {
	if err := ctx.Err(); err != nil {
		return Reservation{}, err
	}
	t.store.mu.Lock()
	t.store.resSeq++
	r.ID = t.store.resSeq
	now := t.store.now()
	t.store.mu.Unlock()
	r.CreatedAt, r.UpdatedAt = now, now
	t.pending = append(t.pending, stagedWrite{r: r})
	return r, nil
}

func (t *memoryTx) UpdateReservation(ctx context.Context, r Reservation) (Reservation, error) {
	if err := ctx.Err(); err != nil {
		return Reservation{}, err
	}
	old, err := t.store.GetReservation(ctx, r.ID)
	if err != nil {
		return Reservation{}, err
	}
	r.CreatedAt = old.CreatedAt
	r.UpdatedAt = t.store.now()
	t.pending = append(t.pending, stagedWrite{update: true, r: r})
	return r, nil
}

func (t *memoryTx) commit() error {
	if len(t.pending) == 0 {
		return nil
	}
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	backup := make(map[int64]Reservation, len(t.pending))
	added := make([]int64, 0, len(t.pending))
	rollback := func() {
		for id, r := range backup {
			s.reservations[id] = r
		}
		for _, id := range added {
			delete(s.reservations, id)
		}
	}
	for _, w := range t.pending {
		if w.update {
			old, ok := s.reservations[w.r.ID]
			if !ok {
				rollback()
				return fmt.Errorf("reservation %d: %w", w.r.ID, ErrNotFound)
			}
			if err := s.checkLocked(w.r, &w.r.ID); err != nil {
				rollback()
				return err
			}
			if _, saved := backup[w.r.ID]; !saved {
				backup[w.r.ID] = old
			}
		} else {
			if err := s.checkLocked(w.r, nil); err != nil {
				rollback()
				return err
			}
			added = append(added, w.r.ID)
		}
		s.reservations[w.r.ID] = w.r
	}
	return nil
}
