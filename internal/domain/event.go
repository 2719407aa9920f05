package domain

import "time"

// Event is a timestamped entry attached to a single agenda.
type Event struct {
	ID        int64
	Title     string
	StartsAt  time.Time
	AgendaID  int64
	CreatedAt time.Time
}
