package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/go-reservations/internal/booking"
	"golang.org/x/crypto/bcrypt"
)

func newService() (*Service, *booking.MemoryStore) {
	store := booking.NewMemoryStore()
	return NewService(store, nil).WithCost(bcrypt.MinCost), store
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "alice", "correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != booking.RoleMember {
		t.Fatalf("role = %s", u.Role)
	}
	stored, _ := store.GetUser(ctx, "alice")
	if stored.PasswordHash == "correct horse" || stored.PasswordHash == "" {
		t.Fatal("password stored in clear")
	}

	if _, err := svc.Authenticate(ctx, "alice", "correct horse"); err != nil {
		t.Fatalf("good credentials rejected: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "alice", "wrong horse"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("wrong password: want ErrBadCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody", "correct horse"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("unknown user: want ErrBadCredentials, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	tests := []struct {
		name, user, pass string
		want             error
	}{
		{"short username", "al", "long enough", booking.ErrInvalidInput},
		{"bad characters", "al ice", "long enough", booking.ErrInvalidInput},
		{"short password", "alice", "short", booking.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tt.user, tt.pass); !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := svc.Register(ctx, "alice", "long enough"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Register(ctx, "alice", "long enough"); !errors.Is(err, booking.ErrConflict) {
		t.Fatalf("duplicate: want ErrConflict, got %v", err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()

	if err := svc.EnsureAdmin(ctx, "", ""); err != nil {
		t.Fatalf("empty admin config must be a no-op: %v", err)
	}
	if err := svc.EnsureAdmin(ctx, "root", "super secret"); err != nil {
		t.Fatal(err)
	}
	u, err := store.GetUser(ctx, "root")
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != booking.RoleAdmin {
		t.Fatalf("role = %s", u.Role)
	}
	if err := svc.EnsureAdmin(ctx, "root", "other password"); err != nil {
		t.Fatalf("second call must be a no-op: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "root", "super secret"); err != nil {
		t.Fatalf("first password no longer works: %v", err)
	}
}
