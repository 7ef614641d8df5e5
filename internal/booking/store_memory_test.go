package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func seededMemory(t *testing.T) (*MemoryStore, Item) {
	t.Helper()
	ctx := context.Background()
	s := NewMemoryStore()
	if _, err := s.AddUser(ctx, User{Username: "alice", Role: RoleMember}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddUser(ctx, User{Username: "bob", Role: RoleMember}); err != nil {
		t.Fatal(err)
	}
	it, err := s.AddItem(ctx, Item{Name: "projector", Owner: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	return s, it
}

func TestMemoryStoreRangeQuery(t *testing.T) {
	ctx := context.Background()
	s, it := seededMemory(t)
	for _, iv := range [][2]time.Time{{at(8, 0), at(9, 0)}, {at(10, 0), at(11, 0)}, {at(12, 0), at(13, 0)}} {
		if _, err := s.AddReservation(ctx, Reservation{ItemID: it.ID, Owner: "bob", StartTime: iv[0], EndTime: iv[1]}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ReservationsInRange(ctx, it.ID, at(9, 0), at(12, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !got[0].StartTime.Equal(at(10, 0)) {
		t.Fatalf("want only the 10:00 reservation, got %+v", got)
	}

	got, err = s.ReservationsInRange(ctx, it.ID, at(8, 30), at(12, 30))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3, got %d", len(got))
	}
}

func TestMemoryStoreRejectsOverlapOnDirectWrite(t *testing.T) {
	ctx := context.Background()
	s, it := seededMemory(t)
	first, err := s.AddReservation(ctx, Reservation{ItemID: it.ID, Owner: "bob", StartTime: at(10, 0), EndTime: at(11, 0)})
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.AddReservation(ctx, Reservation{ItemID: it.ID, Owner: "alice", StartTime: at(10, 30), EndTime: at(11, 30)})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}

	first.StartTime, first.EndTime = at(10, 15), at(10, 45)
	if _, err := s.UpdateReservation(ctx, first); err != nil {
		t.Fatalf("shrinking within own slot: %v", err)
	}
	_, err = s.AddReservation(ctx, Reservation{ItemID: it.ID, Owner: "bob", StartTime: at(12, 0), EndTime: at(12, 0)})
	if !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("want ErrInvalidInterval, got %v", err)
	}
}

func TestMemoryStoreWithTargetDiscardsOnError(t *testing.T) {
	ctx := context.Background()
	s, it := seededMemory(t)
	boom := errors.New("boom")

	err := s.WithTarget(ctx, it.ID, func(w ReservationWriter) error {
		if _, err := w.AddReservation(ctx, Reservation{ItemID: it.ID, Owner: "bob", StartTime: at(10, 0), EndTime: at(11, 0)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	all, _ := s.ListReservations(ctx)
	if len(all) != 0 {
		t.Fatalf("staged write leaked: %+v", all)
	}
}

func TestMemoryStoreWithTargetUnknownItem(t *testing.T) {
	s, _ := seededMemory(t)
	err := s.WithTarget(context.Background(), 999, func(ReservationWriter) error { return nil })
	if !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("want ErrTargetNotFound, got %v", err)
	}
}

func TestMemoryStoreWithTargetSerializes(t *testing.T) {
	ctx := context.Background()
	s, it := seededMemory(t)

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.WithTarget(ctx, it.ID, func(w ReservationWriter) error {
				existing, err := w.ReservationsInRange(ctx, it.ID, at(10, 0), at(11, 0))
				if err != nil {
					return err
				}
				if !CheckAvailability(existing, at(10, 0), at(11, 0), nil) {
					return ErrConflict
				}
				_, err = w.AddReservation(ctx, Reservation{ItemID: it.ID, Owner: "bob", StartTime: at(10, 0), EndTime: at(11, 0)})
				return err
			})
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("want exactly one success, got %d", ok)
	}
}

func TestMemoryStoreDeleteItemCascades(t *testing.T) {
	ctx := context.Background()
	s, it := seededMemory(t)
	r, err := s.AddReservation(ctx, Reservation{ItemID: it.ID, Owner: "bob", StartTime: at(10, 0), EndTime: at(11, 0)})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteItem(ctx, it.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetReservation(ctx, r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("reservation survived item delete: %v", err)
	}
	if err := s.DeleteItem(ctx, it.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: want ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreDuplicateUser(t *testing.T) {
	s, _ := seededMemory(t)
	_, err := s.AddUser(context.Background(), User{Username: "alice"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}
