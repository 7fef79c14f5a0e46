package domain

import "time"

type TicketStatus string

const (
	TicketStatusValid       TicketStatus = "VALID"
	TicketStatusUsed        TicketStatus = "USED"
	TicketStatusTransferred TicketStatus = "TRANSFERRED"
)

// Ticket is one admitted unit. Tickets are never deleted.
type Ticket struct {
	ID             string
	TicketNumber   string
	OrderID        string
	TicketTypeID   string
	EventID        string
	SequenceNumber int
	Status         TicketStatus
	SignedPayload  string
	ArtifactURL    string
	HolderName     string
	HolderEmail    string
	CheckedInAt    *time.Time
	CreatedAt      time.Time
}
