package messaging

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/backoffice/services/complaints/internal/models"
)

func TestNewComplaintRecordedEvent(t *testing.T) {
	country := "US"
	complaint := &models.Complaint{
		ID:                 12,
		ProductID:          1001,
		Complainant:        "alice",
		Content:            "broken",
		CreationDate:       time.Now(),
		ComplainantCountry: &country,
		Count:              3,
	}

	event := NewComplaintRecordedEvent(complaint, false)

	require.NotEqual(t, uuid.Nil, event.EventID)
	require.Equal(t, int64(12), event.ComplaintID)
	require.Equal(t, int64(1001), event.ProductID)
	require.Equal(t, "alice", event.Complainant)
	require.Equal(t, 3, event.Count)
	require.False(t, event.NewlyCreated)
	require.Equal(t, "US", *event.ComplainantCountry)
	require.WithinDuration(t, time.Now().UTC(), event.OccurredAt, time.Minute)
}

func TestEventIDsAreUnique(t *testing.T) {
	complaint := &models.Complaint{ID: 1, ProductID: 1, Complainant: "alice", Count: 1}

	first := NewComplaintRecordedEvent(complaint, true)
	second := NewComplaintRecordedEvent(complaint, true)

	require.NotEqual(t, first.EventID, second.EventID)
}
