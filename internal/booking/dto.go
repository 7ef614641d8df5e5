package booking

import "time"

// ReservationDTO is the wire shape of a reservation. Target is the item id,
// Owner the username.
type ReservationDTO struct {
	ID        int64     `json:"id"`
	Target    int64     `json:"target"`
	Owner     string    `json:"owner"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

type ItemDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
}

func (d ReservationDTO) OwnerUsername() string { return d.Owner }
func (d ItemDTO) OwnerUsername() string        { return d.Owner }

func ReservationToDTO(r Reservation) ReservationDTO {
	return ReservationDTO{
		ID:        r.ID,
		Target:    r.ItemID,
		Owner:     r.Owner,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
	}
}

func ReservationsToDTO(rs []Reservation) []ReservationDTO {
	out := make([]ReservationDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, ReservationToDTO(r))
	}
	return out
}

func ItemToDTO(i Item) ItemDTO {
	return ItemDTO{ID: i.ID, Name: i.Name, Description: i.Description, Owner: i.Owner}
}

func ItemsToDTO(is []Item) []ItemDTO {
	out := make([]ItemDTO, 0, len(is))
	for _, i := range is {
		out = append(out, ItemToDTO(i))
	}
	return out
}
