package booking

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// postgres SQLSTATE codes raised by the schema constraints.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgExclusionViolation  = "23P01"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGStore struct{ DB *pgxpool.Pool }

// translate maps constraint violations onto the domain sentinels so the
// exclusion constraint acts as an ordinary conflict for callers.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgExclusionViolation, pgUniqueViolation:
			return errors.Wrap(ErrConflict, pgErr.ConstraintName)
		case pgCheckViolation:
			return errors.Wrap(ErrInvalidInterval, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			if pgErr.ConstraintName == "reservations_item_id_fkey" {
				return errors.Wrap(ErrTargetNotFound, pgErr.ConstraintName)
			}
			return errors.Wrap(ErrOwnerNotFound, pgErr.ConstraintName)
		}
	}
	return err
}

func (s *PGStore) GetUser(ctx context.Context, username string) (User, error) {
	var u User
	var role string
	err := s.DB.QueryRow(ctx, `SELECT username, password_hash, role, created_at FROM users WHERE username=$1`, username).
		Scan(&u.Username, &u.PasswordHash, &role, &u.CreatedAt)
	if err != nil {
		return User{}, errors.Wrapf(translate(err), "get user %q", username)
	}
	u.Role = Role(role)
	return u, nil
}

func (s *PGStore) AddUser(ctx context.Context, u User) (User, error) {
	err := s.DB.QueryRow(ctx, `
		INSERT INTO users(username, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING created_at`, u.Username, u.PasswordHash, string(u.Role)).Scan(&u.CreatedAt)
	if err != nil {
		return User{}, errors.Wrapf(translate(err), "add user %q", u.Username)
	}
	return u, nil
}

func (s *PGStore) GetItem(ctx context.Context, id int64) (Item, error) {
	var it Item
	err := s.DB.QueryRow(ctx, `SELECT id, name, description, owner, created_at FROM items WHERE id=$1`, id).
		Scan(&it.ID, &it.Name, &it.Description, &it.Owner, &it.CreatedAt)
	if err != nil {
		return Item{}, errors.Wrapf(translate(err), "get item %d", id)
	}
	return it, nil
}

func (s *PGStore) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, name, description, owner, created_at FROM items ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list items")
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.Owner, &it.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan item")
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *PGStore) AddItem(ctx context.Context, it Item) (Item, error) {
	err := s.DB.QueryRow(ctx, `
		INSERT INTO items(name, description, owner)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`, it.Name, it.Description, it.Owner).Scan(&it.ID, &it.CreatedAt)
	if err != nil {
		return Item{}, errors.Wrap(translate(err), "add item")
	}
	return it, nil
}

func (s *PGStore) UpdateItem(ctx context.Context, it Item) (Item, error) {
	err := s.DB.QueryRow(ctx, `
		UPDATE items SET name=$2, description=$3
		WHERE id=$1
		RETURNING owner, created_at`, it.ID, it.Name, it.Description).Scan(&it.Owner, &it.CreatedAt)
	if err != nil {
		return Item{}, errors.Wrapf(translate(err), "update item %d", it.ID)
	}
	return it, nil
}

// DeleteItem relies on ON DELETE CASCADE for the item's reservations.
func (s *PGStore) DeleteItem(ctx context.Context, id int64) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM items WHERE id=$1`, id)
	if err != nil {
		return errors.Wrapf(err, "delete item %d", id)
	}
	if ct.RowsAffected() == 0 {
		return errors.Wrapf(ErrNotFound, "delete item %d", id)
	}
	return nil
}

const reservationCols = `id, item_id, owner, start_time, end_time, created_at, updated_at`

func scanReservation(row pgx.Row) (Reservation, error) {
	var r Reservation
	err := row.Scan(&r.ID, &r.ItemID, &r.Owner, &r.StartTime, &r.EndTime, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func collectReservations(rows pgx.Rows) ([]Reservation, error) {
	defer rows.Close()
	var out []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan reservation")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) GetReservation(ctx context.Context, id int64) (Reservation, error) {
	r, err := scanReservation(s.DB.QueryRow(ctx, `SELECT `+reservationCols+` FROM reservations WHERE id=$1`, id))
	if err != nil {
		return Reservation{}, errors.Wrapf(translate(err), "get reservation %d", id)
	}
	return r, nil
}

func (s *PGStore) ListReservations(ctx context.Context) ([]Reservation, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+reservationCols+` FROM reservations ORDER BY start_time, id`)
	if err != nil {
		return nil, errors.Wrap(err, "list reservations")
	}
	return collectReservations(rows)
}

func (s *PGStore) ListReservationsForItem(ctx context.Context, itemID int64) ([]Reservation, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+reservationCols+` FROM reservations WHERE item_id=$1 ORDER BY start_time, id`, itemID)
	if err != nil {
		return nil, errors.Wrapf(err, "list reservations for item %d", itemID)
	}
	return collectReservations(rows)
}

func (s *PGStore) ReservationsInRange(ctx context.Context, itemID int64, start, end time.Time) ([]Reservation, error) {
	return pgWriter{q: s.DB}.ReservationsInRange(ctx, itemID, start, end)
}

func (s *PGStore) AddReservation(ctx context.Context, r Reservation) (Reservation, error) {
	return pgWriter{q: s.DB}.AddReservation(ctx, r)
}

func (s *PGStore) UpdateReservation(ctx context.Context, r Reservation) (Reservation, error) {
	return pgWriter{q: s.DB}.UpdateReservation(ctx, r)
}

func (s *PGStore) DeleteReservation(ctx context.Context, id int64) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM reservations WHERE id=$1`, id)
	if err != nil {
		return errors.Wrapf(err, "delete reservation %d", id)
	}
	if ct.RowsAffected() == 0 {
		return errors.Wrapf(ErrNotFound, "delete reservation %d", id)
	}
	return nil
}

// WithTarget locks the item row (FOR UPDATE) for the lifetime of the
// transaction, so check-then-write sequences on one item run one at a time.
// The reservations_no_overlap exclusion constraint still backs this up.
func (s *PGStore) WithTarget(ctx context.Context, itemID int64, fn func(w ReservationWriter) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked int64
	if err := tx.QueryRow(ctx, `SELECT id FROM items WHERE id=$1 FOR UPDATE`, itemID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errors.Wrapf(ErrTargetNotFound, "lock item %d", itemID)
		}
		return errors.Wrapf(err, "lock item %d", itemID)
	}

	if err := fn(pgWriter{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(translate(err), "commit")
	}
	return nil
}

type pgWriter struct{ q querier }

func (w pgWriter) ReservationsInRange(ctx context.Context, itemID int64, start, end time.Time) ([]Reservation, error) {
	rows, err := w.q.Query(ctx, `
		SELECT `+reservationCols+`
		FROM reservations
		WHERE item_id=$1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time, id`, itemID, start, end)
	if err != nil {
		return nil, errors.Wrapf(err, "reservations in range for item %d", itemID)
	}
	return collectReservations(rows)
}

func (w pgWriter) AddReservation(ctx context.Context, r Reservation) (Reservation, error) {
	err := w.q.QueryRow(ctx, `
		INSERT INTO reservations(item_id, owner, start_time, end_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		r.ItemID, r.Owner, r.StartTime, r.EndTime,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Reservation{}, errors.Wrap(translate(err), "add reservation")
	}
	return r, nil
}

// UpdateReservation only moves the interval; item and owner are fixed at
// creation.
func (w pgWriter) UpdateReservation(ctx context.Context, r Reservation) (Reservation, error) {
	out, err := scanReservation(w.q.QueryRow(ctx, `
		UPDATE reservations SET start_time=$2, end_time=$3, updated_at=now()
		WHERE id=$1
		RETURNING `+reservationCols, r.ID, r.StartTime, r.EndTime))
	if err != nil {
		return Reservation{}, errors.Wrapf(translate(err), "update reservation %d", r.ID)
	}
	return out, nil
}
