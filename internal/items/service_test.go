package items

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/go-reservations/internal/authz"
	"github.com/ariefcatur/go-reservations/internal/booking"
	"github.com/ariefcatur/go-reservations/internal/redisx"
)

func newService(t *testing.T) (*Service, *booking.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	store := booking.NewMemoryStore()
	for _, u := range []booking.User{
		{Username: "alice", Role: booking.RoleMember},
		{Username: "alicia", Role: booking.RoleMember},
		{Username: "bob", Role: booking.RoleMember},
		{Username: "root", Role: booking.RoleAdmin},
	} {
		if _, err := store.AddUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	return NewService(store, authz.NewGate(store, nil), nil, nil), store
}

func TestCreateAndGetItem(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.CreateItem(ctx, "alice", booking.ItemDTO{Name: " Projector ", Description: "HD, HDMI"})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == 0 || created.Owner != "alice" || created.Name != "Projector" {
		t.Fatalf("unexpected item: %+v", created)
	}
	got, err := svc.GetItem(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != created {
		t.Fatalf("got %+v, want %+v", got, created)
	}
	if _, err := svc.GetItem(ctx, 404); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestCreateItemRejections(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.CreateItem(ctx, "alice", booking.ItemDTO{Name: "  "}); !errors.Is(err, booking.ErrInvalidInput) {
		t.Fatalf("blank name: want ErrInvalidInput, got %v", err)
	}
	if _, err := svc.CreateItem(ctx, "bob", booking.ItemDTO{Name: "x", Owner: "alice"}); !errors.Is(err, booking.ErrUnauthorized) {
		t.Fatalf("foreign owner: want ErrUnauthorized, got %v", err)
	}
	if _, err := svc.CreateItem(ctx, "root", booking.ItemDTO{Name: "x", Owner: "ghost"}); !errors.Is(err, booking.ErrOwnerNotFound) {
		t.Fatalf("missing owner: want ErrOwnerNotFound, got %v", err)
	}
	if _, err := svc.CreateItem(ctx, "root", booking.ItemDTO{Name: "x", Owner: "bob"}); err != nil {
		t.Fatalf("admin for bob: %v", err)
	}
}

func TestItemQueries(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for _, c := range []struct{ actor, name, desc string }{
		{"alice", "Projector", "conference room B"},
		{"alice", "Camera", "mirrorless"},
		{"alicia", "Tripod", "for the camera"},
		{"bob", "Van", "seats nine"},
	} {
		if _, err := svc.CreateItem(ctx, c.actor, booking.ItemDTO{Name: c.name, Description: c.desc}); err != nil {
			t.Fatal(err)
		}
	}

	byUser, err := svc.GetItemsByUser(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(byUser) != 2 {
		t.Fatalf("exact owner match: want 2, got %+v", byUser)
	}

	q, err := svc.QueryItems(ctx, "CAMERA")
	if err != nil {
		t.Fatal(err)
	}
	if len(q) != 2 {
		t.Fatalf("substring over name and description: want 2, got %+v", q)
	}

	all, err := svc.GetItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("want 4 items, got %d", len(all))
	}
}

func TestUpdateItem(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	it, err := svc.CreateItem(ctx, "alice", booking.ItemDTO{Name: "Projector"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.UpdateItem(ctx, "bob", booking.ItemDTO{ID: it.ID, Name: "Mine now", Owner: "bob"})
	if !errors.Is(err, booking.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	updated, err := svc.UpdateItem(ctx, "alice", booking.ItemDTO{ID: it.ID, Name: "Projector 2", Owner: "bob"})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "Projector 2" || updated.Owner != "alice" {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if _, err := svc.UpdateItem(ctx, "alice", booking.ItemDTO{ID: 404, Name: "x"}); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDeleteItemCascades(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	it, err := svc.CreateItem(ctx, "alice", booking.ItemDTO{Name: "Projector"})
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	r, err := store.AddReservation(ctx, booking.Reservation{ItemID: it.ID, Owner: "bob", StartTime: start, EndTime: start.Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteItem(ctx, "bob", it.ID); !errors.Is(err, booking.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if err := svc.DeleteItem(ctx, "alice", it.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetReservation(ctx, r.ID); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("reservation survived: %v", err)
	}
	if err := svc.DeleteItem(ctx, "alice", it.ID); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	ids    []int64
}

func (n *recordingNotifier) Notify(_ context.Context, eventType, _ string, r booking.ReservationDTO) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventType)
	n.ids = append(n.ids, r.ID)
	return nil
}

func TestDeleteItemPublishesCascadedDeletes(t *testing.T) {
	svc, store := newService(t)
	n := &recordingNotifier{}
	svc.WithNotifier(n)
	ctx := context.Background()

	it, err := svc.CreateItem(ctx, "alice", booking.ItemDTO{Name: "Projector"})
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var want []int64
	for i := 0; i < 2; i++ {
		r, err := store.AddReservation(ctx, booking.Reservation{
			ItemID: it.ID, Owner: "bob",
			StartTime: start.Add(time.Duration(i) * time.Hour), EndTime: start.Add(time.Duration(i+1) * time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
		want = append(want, r.ID)
	}

	if err := svc.DeleteItem(ctx, "alice", it.ID); err != nil {
		t.Fatal(err)
	}
	if len(n.events) != 2 {
		t.Fatalf("want 2 events, got %v", n.events)
	}
	for i, e := range n.events {
		if e != booking.EventReservationDeleted || n.ids[i] != want[i] {
			t.Fatalf("event %d = %s for %d, want %s for %d", i, e, n.ids[i], booking.EventReservationDeleted, want[i])
		}
	}
}

// itemCache follows the Cache contract; tombstones never expire here.
type itemCache struct {
	mu   sync.Mutex
	data map[string]booking.ItemDTO
	dead map[string]bool
}

func newItemCache() *itemCache {
	return &itemCache{data: map[string]booking.ItemDTO{}, dead: map[string]bool{}}
}

func (c *itemCache) Get(_ context.Context, key string, out any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if ok {
		*out.(*booking.ItemDTO) = v
	}
	return ok, nil
}

func (c *itemCache) Set(_ context.Context, key string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = v.(booking.ItemDTO)
	delete(c.dead, key)
	return nil
}

func (c *itemCache) Add(_ context.Context, key string, v any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok || c.dead[key] {
		return false, nil
	}
	c.data[key] = v.(booking.ItemDTO)
	return true, nil
}

func (c *itemCache) Tombstone(_ context.Context, _ time.Duration, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.dead[k] = true
	}
	return nil
}

// stallingStore holds the next GetItem after the row was read until release
// is closed.
type stallingStore struct {
	*booking.MemoryStore
	armed   atomic.Bool
	loaded  chan struct{}
	release chan struct{}
}

func (s *stallingStore) GetItem(ctx context.Context, id int64) (booking.Item, error) {
	it, err := s.MemoryStore.GetItem(ctx, id)
	if s.armed.CompareAndSwap(true, false) {
		close(s.loaded)
		<-s.release
	}
	return it, err
}

func TestSlowItemReadDoesNotResurrectDeletedItem(t *testing.T) {
	_, store := newService(t)
	ctx := context.Background()
	it, err := store.AddItem(ctx, booking.Item{Name: "Projector", Owner: "alice"})
	if err != nil {
		t.Fatal(err)
	}

	st := &stallingStore{MemoryStore: store, loaded: make(chan struct{}), release: make(chan struct{})}
	st.armed.Store(true)
	cache := newItemCache()
	svc := NewService(st, authz.NewGate(store, nil), cache, nil)

	read := make(chan error, 1)
	go func() {
		_, err := svc.GetItem(ctx, it.ID)
		read <- err
	}()
	<-st.loaded
	if err := svc.DeleteItem(ctx, "alice", it.ID); err != nil {
		t.Fatal(err)
	}
	close(st.release)
	if err := <-read; err != nil {
		t.Fatalf("in-flight read: %v", err)
	}

	if got, err := svc.GetItem(ctx, it.ID); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("deleted item still served: %+v err=%v", got, err)
	}
	if !cache.dead[redisx.ItemKey(it.ID)] {
		t.Fatal("delete left no tombstone")
	}
}
