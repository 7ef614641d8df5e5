package booking

import "time"

// ValidateInterval rejects zero bounds and any interval where start is not
// strictly before end.
func ValidateInterval(start, end time.Time) error {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return ErrInvalidInterval
	}
	return nil
}

// Overlaps uses half-open [start, end) semantics: touching endpoints do not
// overlap.
func Overlaps(r Reservation, start, end time.Time) bool {
	return r.StartTime.Before(end) && r.EndTime.After(start)
}

// CheckAvailability reports whether [start, end) is free given the
// reservations already stored for the same item. exclude, when non-nil, is
// the id of the reservation being moved; it never conflicts with itself.
//
// candidates is expected to come from a range query that returns at least
// every reservation that could intersect the interval. Extra rows are
// harmless, they are filtered here again.
func CheckAvailability(candidates []Reservation, start, end time.Time, exclude *int64) bool {
	for _, c := range candidates {
		if exclude != nil && c.ID == *exclude {
			continue
		}
		if Overlaps(c, start, end) {
			return false
		}
	}
	return true
}
