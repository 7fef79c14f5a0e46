package domain

import "time"

// Event represents a ticketed event owned by an organizer.
type Event struct {
	ID          string
	OrganizerID string
	Name        string
	StartsAt    time.Time
}
