package booking

import (
	"encoding/json"
	"strconv"
	"time"
)

const (
	EventReservationCreated = "ReservationCreated"
	EventReservationUpdated = "ReservationUpdated"
	EventReservationDeleted = "ReservationDeleted"
)

const TopicReservationEvents = "booking.reservation.events"

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the Event* constants
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "reservation-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // reservation id
	Payload       json.RawMessage `json:"payload"`
}

type ReservationEventPayload struct {
	Actor       string         `json:"actor"`
	Reservation ReservationDTO `json:"reservation"`
}

// PartitionKey keys reservation events by item so all events for one item
// stay ordered.
func PartitionKey(itemID int64) []byte { return []byte(strconv.FormatInt(itemID, 10)) }
