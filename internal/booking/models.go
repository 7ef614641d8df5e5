package booking

import "time"

type Item struct {
	ID          int64
	Name        string
	Description string
	Owner       string // username
	CreatedAt   time.Time
}

type User struct {
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Reservation refers to its item and owner by key only.
type Reservation struct {
	ID        int64
	ItemID    int64
	Owner     string
	StartTime time.Time
	EndTime   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (i Item) OwnerUsername() string        { return i.Owner }
func (r Reservation) OwnerUsername() string { return r.Owner }
