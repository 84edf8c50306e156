package models

import "time"

type TicketStatus string

const (
	TicketStatusCreated   TicketStatus = "CREATED"
	TicketStatusCompleted TicketStatus = "COMPLETED"
)

type Ticket struct {
	ID          int64        `json:"id"`
	UserID      int64        `json:"-"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TicketStatus `json:"status"`
	NumImages   int          `json:"num_images"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type Image struct {
	ID         int64     `json:"id"`
	TicketID   int64     `json:"ticket_id"`
	RemoteURL  string    `json:"remote_url"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// TicketState is the snapshot the completion check works against:
// the current status and the number of persisted image rows
// compared to how many the ticket declared at creation.
type TicketState struct {
	TicketID   int64
	Status     TicketStatus
	ImageCount int
	NumImages  int
}

type TicketFilter struct {
	UserID  int64
	Status  TicketStatus // empty = all
	Created time.Time    // zero = all; matches the creation date (UTC)
	Page    int
	PerPage int
}
