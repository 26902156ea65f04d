package models

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Complaint is a single complaint record. Repeated submissions from the
// same complainant about the same product do not create new rows; they
// increment Count on the existing one. The composite unique index is the
// invariant the ingestion logic relies on under concurrent submissions.
type Complaint struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID          int64     `gorm:"column:product_id;not null;uniqueIndex:uq_product_complainant" json:"product_id"`
	Complainant        string    `gorm:"not null;uniqueIndex:uq_product_complainant" json:"complainant"`
	Content            string    `gorm:"not null" json:"content"`
	CreationDate       time.Time `gorm:"not null" json:"creation_date"`
	ComplainantCountry *string   `gorm:"size:2" json:"complainant_country,omitempty"`
	Count              int       `gorm:"not null" json:"count"`
}

// ComplaintSubmission is the transport-independent shape of an incoming
// complaint, shared by the HTTP handler and the queue consumer.
type ComplaintSubmission struct {
	ProductID   int64  `json:"product_id"`
	Content     string `json:"content"`
	Complainant string `json:"complainant"`
	SourceIP    string `json:"source_ip,omitempty"`
}

// SetupModels runs database migrations for all models
func SetupModels(db *gorm.DB) error {
	if err := db.AutoMigrate(&Complaint{}); err != nil {
		return errors.Wrap(err, "failed to run complaint migrations")
	}
	return nil
}
