// Package accounts registers users and checks their credentials.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/ariefcatur/go-reservations/internal/booking"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var ErrBadCredentials = errors.New("invalid username or password")

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,64}$`)

const minPasswordLen = 8

type Service struct {
	users booking.UserStore
	cost  int
	log   *zap.Logger
}

func NewService(users booking.UserStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{users: users, cost: bcrypt.DefaultCost, log: log}
}

// WithCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

func (s *Service) Register(ctx context.Context, username, password string) (booking.User, error) {
	return s.create(ctx, username, password, booking.RoleMember)
}

// EnsureAdmin creates the admin account unless a user with that name exists.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" {
		return nil
	}
	_, err := s.users.GetUser(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, booking.ErrNotFound) {
		return err
	}
	_, err = s.create(ctx, username, password, booking.RoleAdmin)
	if errors.Is(err, booking.ErrConflict) {
		return nil
	}
	return err
}

func (s *Service) create(ctx context.Context, username, password string, role booking.Role) (booking.User, error) {
	if !usernamePattern.MatchString(username) {
		return booking.User{}, fmt.Errorf("username %q: %w", username, booking.ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return booking.User{}, fmt.Errorf("password shorter than %d: %w", minPasswordLen, booking.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return booking.User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.AddUser(ctx, booking.User{Username: username, PasswordHash: string(hash), Role: role})
	if err != nil {
		return booking.User{}, booking.Persistence("add user", err)
	}
	s.log.Info("user registered", zap.String("username", username), zap.String("role", string(role)))
	return u, nil
}

// Authenticate resolves a username/password pair to a user. Unknown users and
// wrong passwords fail the same way.
func (s *Service) Authenticate(ctx context.Context, username, password string) (booking.User, error) {
	u, err := s.users.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return booking.User{}, ErrBadCredentials
		}
		return booking.User{}, booking.Persistence("get user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return booking.User{}, ErrBadCredentials
	}
	return u, nil
}
