package models

import "time"

// Workshop is an event listed on the café site that visitors can register for.
// Seat counts are owned by the content backend; the derived helpers only
// reflect the snapshot returned by the last fetch.
type Workshop struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Time        string    `json:"time"`
	Duration    string    `json:"duration"`
	Instructor  string    `json:"instructor,omitempty"`
	Price       int       `json:"price"` // whole INR, 0 = free
	MaxSeats    int       `json:"max_seats"`
	BookedSeats int       `json:"booked_seats"`
	MediaURL    string    `json:"media_url,omitempty"`
	MediaType   string    `json:"media_type,omitempty"` // "image" or "video"
	Active      bool      `json:"active"`
}

// IsFull reports whether no seats remain.
func (w Workshop) IsFull() bool {
	return w.BookedSeats >= w.MaxSeats
}

// AvailableSeats returns the remaining seat count, never negative.
func (w Workshop) AvailableSeats() int {
	if n := w.MaxSeats - w.BookedSeats; n > 0 {
		return n
	}
	return 0
}

// IsFree reports whether the workshop has no charge.
func (w Workshop) IsFree() bool {
	return w.Price == 0
}
