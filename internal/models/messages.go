package models

// IngestImageMessage is the unit of work handed from the HTTP layer
// to the worker pool. The raw bytes ride inside the message body,
// base64-encoded by the JSON marshaller.
type IngestImageMessage struct {
	TicketID int64  `json:"ticket_id"`
	Image    []byte `json:"image"`
}
