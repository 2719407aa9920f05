package domain

import "time"

// Agenda is a named collection of events owned by exactly one user.
type Agenda struct {
	ID        int64
	Title     string
	OwnerID   int64
	CreatedAt time.Time
}

// OwnedBy reports whether userID owns the agenda.
func (a *Agenda) OwnedBy(userID int64) bool {
	return a != nil && userID != 0 && a.OwnerID == userID
}
