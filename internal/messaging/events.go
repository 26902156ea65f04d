package messaging

import (
	"time"

	"github.com/google/uuid"

	"example.com/backoffice/services/complaints/internal/models"
)

// ComplaintRecordedEvent is published after every successful ingestion,
// whether it created a new complaint or incremented an existing one.
type ComplaintRecordedEvent struct {
	EventID            uuid.UUID `json:"event_id"`
	ComplaintID        int64     `json:"complaint_id"`
	ProductID          int64     `json:"product_id"`
	Complainant        string    `json:"complainant"`
	Count              int       `json:"count"`
	NewlyCreated       bool      `json:"newly_created"`
	ComplainantCountry *string   `json:"complainant_country,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
}

// NewComplaintRecordedEvent builds an event from a persisted complaint
func NewComplaintRecordedEvent(complaint *models.Complaint, created bool) ComplaintRecordedEvent {
	return ComplaintRecordedEvent{
		EventID:            uuid.New(),
		ComplaintID:        complaint.ID,
		ProductID:          complaint.ProductID,
		Complainant:        complaint.Complainant,
		Count:              complaint.Count,
		NewlyCreated:       created,
		ComplainantCountry: complaint.ComplainantCountry,
		OccurredAt:         time.Now().UTC(),
	}
}
