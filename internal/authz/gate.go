// Package authz decides whether an acting user may mutate an item or a
// reservation.
package authz

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-reservations/internal/booking"
	"go.uber.org/zap"
)

// Owned is anything whose owner can be named: items, reservations and their
// DTOs.
type Owned interface {
	OwnerUsername() string
}

type UserLookup interface {
	GetUser(ctx context.Context, username string) (booking.User, error)
}

type Gate struct {
	users UserLookup
	log   *zap.Logger
}

func NewGate(users UserLookup, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{users: users, log: log}
}

// IsAllowed is true when actor owns res or holds an elevated role. An actor
// that does not resolve to a known user is denied. Only infrastructure
// failures are returned as errors.
func (g *Gate) IsAllowed(ctx context.Context, actor string, res Owned) (bool, error) {
	if actor == "" || res == nil {
		return false, nil
	}
	u, err := g.users.GetUser(ctx, actor)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			g.log.Debug("unknown actor denied", zap.String("actor", actor))
			return false, nil
		}
		return false, err
	}
	if u.Role.Elevated() {
		return true, nil
	}
	owner := res.OwnerUsername()
	return owner != "" && owner == u.Username, nil
}

// Authorize is IsAllowed folded into a single error: booking.ErrUnauthorized
// on deny.
func (g *Gate) Authorize(ctx context.Context, actor string, res Owned) error {
	ok, err := g.IsAllowed(ctx, actor, res)
	if err != nil {
		return booking.Persistence("authorize", err)
	}
	if !ok {
		owner := ""
		if res != nil {
			owner = res.OwnerUsername()
		}
		g.log.Info("authorization denied", zap.String("actor", actor), zap.String("owner", owner))
		return booking.ErrUnauthorized
	}
	return nil
}
