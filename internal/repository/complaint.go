package repository

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/backoffice/services/complaints/internal/models"
)

// ComplaintRepository defines the persistence contract the ingestion
// logic depends on. The uniqueness of (product_id, complainant) is
// enforced by the database; Save surfaces a losing concurrent insert as
// ErrDuplicateKey.
type ComplaintRepository interface {
	FindByProductAndComplainant(ctx context.Context, productID int64, complainant string) (*models.Complaint, error)
	FindByID(ctx context.Context, id int64) (*models.Complaint, error)
	FindAll(ctx context.Context) ([]models.Complaint, error)
	Save(ctx context.Context, complaint *models.Complaint) error
	UpdateContentByID(ctx context.Context, id int64, content string) (int64, error)
	Stats(ctx context.Context) (rows int64, submissions int64, err error)
}

// complaintRepository implements ComplaintRepository over gorm
type complaintRepository struct {
	db *gorm.DB
}

// NewComplaintRepository creates a new complaint repository
func NewComplaintRepository(db *gorm.DB) ComplaintRepository {
	return &complaintRepository{db: db}
}

// FindByProductAndComplainant finds a complaint by its dedup key
func (r *complaintRepository) FindByProductAndComplainant(ctx context.Context, productID int64, complainant string) (*models.Complaint, error) {
	var complaint models.Complaint
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND complainant = ?", productID, complainant).
		First(&complaint).Error
	if err != nil {
		return nil, translate(err)
	}
	return &complaint, nil
}

// FindByID finds a complaint by ID
func (r *complaintRepository) FindByID(ctx context.Context, id int64) (*models.Complaint, error) {
	var complaint models.Complaint
	err := r.db.WithContext(ctx).First(&complaint, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &complaint, nil
}

// FindAll returns all complaints
func (r *complaintRepository) FindAll(ctx context.Context) ([]models.Complaint, error) {
	var complaints []models.Complaint
	err := r.db.WithContext(ctx).Order("id").Find(&complaints).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list complaints")
	}
	return complaints, nil
}

// Save inserts the complaint when its ID is zero, letting the database
// assign one, and performs a full update otherwise.
func (r *complaintRepository) Save(ctx context.Context, complaint *models.Complaint) error {
	var err error
	if complaint.ID == 0 {
		err = r.db.WithContext(ctx).Create(complaint).Error
	} else {
		err = r.db.WithContext(ctx).Save(complaint).Error
	}
	if err != nil {
		return translate(err)
	}
	return nil
}

// UpdateContentByID updates the content of a complaint in a single
// statement. Existence is defined purely by the affected-row count, so
// no prior read is needed.
func (r *complaintRepository) UpdateContentByID(ctx context.Context, id int64, content string) (int64, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.Complaint{}).
		Where("id = ?", id).
		Update("content", content)
	if tx.Error != nil {
		return 0, pkgerrors.Wrap(tx.Error, "failed to update complaint content")
	}
	return tx.RowsAffected, nil
}

// Stats returns the number of complaint rows and the total number of
// submissions they represent (sum of counts).
func (r *complaintRepository) Stats(ctx context.Context) (int64, int64, error) {
	var result struct {
		TotalRows        int64
		TotalSubmissions int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Complaint{}).
		Select(`COUNT(*) AS total_rows, COALESCE(SUM("count"), 0) AS total_submissions`).
		Scan(&result).Error
	if err != nil {
		return 0, 0, pkgerrors.Wrap(err, "failed to read complaint stats")
	}
	return result.TotalRows, result.TotalSubmissions, nil
}

// translate maps gorm errors to repository sentinels. Requires the
// connection to be opened with TranslateError so driver-specific unique
// violations arrive as gorm.ErrDuplicatedKey.
func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	default:
		return err
	}
}
