package redisx

import (
	"fmt"
	"time"
)

const (
	// Read cache for a single reservation: reservation:{id} -> ReservationDTO json
	KeyReservation = "reservation:%d"

	// Read cache for a single item: item:{id} -> ItemDTO json
	KeyItem = "item:%d"

	// Dedup of consumed events: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLReadCache = 5 * time.Minute
	TTLDedup     = 48 * time.Hour

	// Outlives any in-flight read of the deleted row.
	TTLTombstone = time.Minute
)

func ReservationKey(id int64) string { return fmt.Sprintf(KeyReservation, id) }
func ItemKey(id int64) string        { return fmt.Sprintf(KeyItem, id) }
