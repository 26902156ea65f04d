package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backoffice/services/complaints/internal/cache"
	"example.com/backoffice/services/complaints/internal/messaging"
	"example.com/backoffice/services/complaints/internal/metrics"
	"example.com/backoffice/services/complaints/internal/models"
	"example.com/backoffice/services/complaints/internal/repository"
	"example.com/backoffice/services/complaints/internal/search"
	"example.com/backoffice/services/complaints/internal/tracing"
)

// complaintCacheTTL bounds staleness of the read-by-id cache
const complaintCacheTTL = 5 * time.Minute

// CountryResolver resolves the country behind an IP address. A false
// second return means no usable answer; it is never an error.
type CountryResolver interface {
	ResolveCountry(ctx context.Context, ip string) (string, bool)
}

// ComplaintService handles complaint ingestion, reads and updates
type ComplaintService struct {
	repo      repository.ComplaintRepository
	resolver  CountryResolver
	cache     *cache.RedisCache
	elastic   *search.ElasticClient
	publisher messaging.Publisher
	metrics   *metrics.Metrics
	tracer    tracing.Tracer
}

// NewComplaintService creates a new complaint service. The cache,
// elastic client and publisher are optional; when absent the service
// simply skips those side channels.
func NewComplaintService(
	repo repository.ComplaintRepository,
	resolver CountryResolver,
	redisCache *cache.RedisCache,
	elastic *search.ElasticClient,
	publisher messaging.Publisher,
	m *metrics.Metrics,
	tracer tracing.Tracer,
) *ComplaintService {
	return &ComplaintService{
		repo:      repo,
		resolver:  resolver,
		cache:     redisCache,
		elastic:   elastic,
		publisher: publisher,
		metrics:   m,
		tracer:    tracer,
	}
}

// Ingest records a complaint submission. A submission for a
// (product, complainant) pair that already has a complaint increments
// that complaint's count and discards the submitted content; a first
// submission creates a new complaint enriched with the submitter's
// country when the geolocation lookup yields one. The returned flag
// reports whether a row was newly created.
//
// When two concurrent first submissions race, the losing insert hits
// the store's uniqueness constraint; Ingest then retries once as an
// increment instead of surfacing the violation.
func (s *ComplaintService) Ingest(ctx context.Context, sub *models.ComplaintSubmission, sourceIP string) (*models.Complaint, bool, error) {
	txn := s.tracer.StartTransaction("ingest-complaint")
	defer s.tracer.EndTransaction(txn)
	s.tracer.AddAttribute(txn, "product_id", sub.ProductID)
	s.tracer.AddAttribute(txn, "complainant", sub.Complainant)

	started := time.Now()
	defer func() {
		s.metrics.RecordTimer("ingest", time.Since(started).Milliseconds())
	}()

	log.Info().
		Int64("product_id", sub.ProductID).
		Str("complainant", sub.Complainant).
		Msg("Processing complaint submission")

	span := s.tracer.StartSpan("find-existing-complaint", txn)
	existing, err := s.repo.FindByProductAndComplainant(ctx, sub.ProductID, sub.Complainant)
	span.End()

	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.tracer.RecordError(txn, err)
		return nil, false, errors.Wrap(err, "failed to look up existing complaint")
	}

	if existing != nil {
		complaint, err := s.increment(ctx, existing, txn)
		if err != nil {
			return nil, false, err
		}
		s.afterIngest(ctx, complaint, false)
		return complaint, false, nil
	}

	complaint := &models.Complaint{
		ProductID:    sub.ProductID,
		Complainant:  sub.Complainant,
		Content:      sub.Content,
		CreationDate: time.Now(),
		Count:        1,
	}

	resolveSpan := s.tracer.StartSpan("resolve-country", txn)
	if country, ok := s.resolver.ResolveCountry(ctx, sourceIP); ok {
		complaint.ComplainantCountry = &country
		s.metrics.IncrementCounter(metrics.GeoLookupHits)
	} else {
		s.metrics.IncrementCounter(metrics.GeoLookupMisses)
	}
	resolveSpan.End()

	saveSpan := s.tracer.StartSpan("create-complaint", txn)
	err = s.repo.Save(ctx, complaint)
	saveSpan.End()

	if errors.Is(err, repository.ErrDuplicateKey) {
		// Lost the first-submission race; the row now exists.
		log.Info().
			Int64("product_id", sub.ProductID).
			Str("complainant", sub.Complainant).
			Msg("Concurrent submission won the insert, retrying as increment")

		existing, err = s.repo.FindByProductAndComplainant(ctx, sub.ProductID, sub.Complainant)
		if err != nil {
			s.tracer.RecordError(txn, err)
			return nil, false, errors.Wrap(err, "failed to fetch complaint after losing insert race")
		}

		complaint, err := s.increment(ctx, existing, txn)
		if err != nil {
			return nil, false, err
		}
		s.afterIngest(ctx, complaint, false)
		return complaint, false, nil
	}
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, false, errors.Wrap(err, "failed to create complaint")
	}

	log.Info().
		Int64("complaint_id", complaint.ID).
		Int64("product_id", complaint.ProductID).
		Msg("Created new complaint")

	s.metrics.IncrementCounter(metrics.ComplaintsCreated)
	s.afterIngest(ctx, complaint, true)
	return complaint, true, nil
}

// increment persists a copy of the complaint with count raised by one.
// Content, creation date and country stay untouched.
func (s *ComplaintService) increment(ctx context.Context, existing *models.Complaint, txn *newrelic.Transaction) (*models.Complaint, error) {
	complaint := *existing
	complaint.Count = existing.Count + 1

	log.Info().
		Int64("complaint_id", complaint.ID).
		Int("count", complaint.Count).
		Msg("Found existing complaint, incrementing count")

	if err := s.repo.Save(ctx, &complaint); err != nil {
		s.tracer.RecordError(txn, err)
		return nil, errors.Wrap(err, "failed to increment complaint count")
	}

	s.metrics.IncrementCounter(metrics.ComplaintsIncremented)
	s.evict(ctx, complaint.ID)
	return &complaint, nil
}

// afterIngest runs the best-effort side channels. None of them may fail
// the write path; failures are logged and dropped.
func (s *ComplaintService) afterIngest(ctx context.Context, complaint *models.Complaint, created bool) {
	if s.elastic != nil {
		if err := s.elastic.IndexComplaint(ctx, complaint); err != nil {
			log.Warn().Err(err).Int64("complaint_id", complaint.ID).Msg("Failed to index complaint")
		}
	}

	if s.publisher != nil {
		event := messaging.NewComplaintRecordedEvent(complaint, created)
		if err := s.publisher.Publish(ctx, event); err != nil {
			log.Warn().Err(err).Int64("complaint_id", complaint.ID).Msg("Failed to publish complaint event")
		}
	}
}

// UpdateContent changes the content of an existing complaint. The
// return value reports whether the complaint existed; updating a
// missing ID is not an error.
func (s *ComplaintService) UpdateContent(ctx context.Context, id int64, content string) (bool, error) {
	txn := s.tracer.StartTransaction("update-complaint")
	defer s.tracer.EndTransaction(txn)
	s.tracer.AddAttribute(txn, "complaint_id", id)

	rows, err := s.repo.UpdateContentByID(ctx, id, content)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return false, errors.Wrap(err, "failed to update complaint content")
	}

	if rows == 0 {
		log.Warn().Int64("complaint_id", id).Msg("Complaint not found for content update")
		return false, nil
	}

	log.Info().Int64("complaint_id", id).Msg("Updated complaint content")
	s.metrics.IncrementCounter(metrics.ComplaintsUpdated)
	s.evict(ctx, id)
	return true, nil
}

// GetComplaint retrieves a complaint by ID, serving from the read cache
// when possible. Returns repository.ErrNotFound when no such complaint
// exists.
func (s *ComplaintService) GetComplaint(ctx context.Context, id int64) (*models.Complaint, error) {
	if s.cache.Enabled() {
		var cached models.Complaint
		if err := s.cache.Get(ctx, cache.ComplaintCacheKey(id), &cached); err == nil {
			return &cached, nil
		}
	}

	complaint, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cache.ComplaintCacheKey(id), complaint, complaintCacheTTL); err != nil {
			log.Debug().Err(err).Int64("complaint_id", id).Msg("Failed to cache complaint")
		}
	}

	return complaint, nil
}

// ListComplaints returns all complaints
func (s *ComplaintService) ListComplaints(ctx context.Context) ([]models.Complaint, error) {
	return s.repo.FindAll(ctx)
}

// ProcessSubmissionMessage ingests a complaint submission delivered via
// the Service Bus queue.
func (s *ComplaintService) ProcessSubmissionMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error {
	var sub models.ComplaintSubmission
	if err := json.Unmarshal(message.Body, &sub); err != nil {
		return errors.Wrap(err, "failed to unmarshal complaint submission")
	}

	if sub.ProductID == 0 || sub.Complainant == "" || sub.Content == "" {
		return errors.New("submission message missing required fields")
	}

	complaint, created, err := s.Ingest(ctx, &sub, sub.SourceIP)
	if err != nil {
		return err
	}

	log.Info().
		Int64("complaint_id", complaint.ID).
		Bool("created", created).
		Str("message_id", message.MessageID).
		Msg("Queued submission processed")

	return nil
}

// SnapshotVolume refreshes the complaint volume gauges from the store
func (s *ComplaintService) SnapshotVolume(ctx context.Context) error {
	rows, submissions, err := s.repo.Stats(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to snapshot complaint volume")
	}

	s.metrics.SetGauge(metrics.ComplaintRows, rows)
	s.metrics.SetGauge(metrics.ComplaintSubmissions, submissions)

	log.Info().
		Int64("rows", rows).
		Int64("submissions", submissions).
		Msg("Complaint volume snapshot")

	return nil
}

// evict drops a complaint from the read cache after a write
func (s *ComplaintService) evict(ctx context.Context, id int64) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Delete(ctx, cache.ComplaintCacheKey(id)); err != nil {
		log.Debug().Err(err).Int64("complaint_id", id).Msg("Failed to evict complaint from cache")
	}
}
