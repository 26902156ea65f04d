package handlers

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backoffice/services/complaints/internal/models"
	"example.com/backoffice/services/complaints/internal/repository"
	"example.com/backoffice/services/complaints/internal/services"
	"example.com/backoffice/services/complaints/internal/tracing"
)

const headerXForwardedFor = "X-Forwarded-For"

// ComplaintHandler handles complaint-related HTTP requests
type ComplaintHandler struct {
	complaintService *services.ComplaintService
	tracer           tracing.Tracer
}

// NewComplaintHandler creates a new complaint handler
func NewComplaintHandler(complaintService *services.ComplaintService, tracer tracing.Tracer) *ComplaintHandler {
	return &ComplaintHandler{
		complaintService: complaintService,
		tracer:           tracer,
	}
}

// ComplaintCreationRequest represents an incoming complaint submission
type ComplaintCreationRequest struct {
	ProductID   int64  `json:"product_id" binding:"required"`
	Content     string `json:"content" binding:"required"`
	Complainant string `json:"complainant" binding:"required"`
}

// ComplaintUpdateRequest represents a content update for a complaint
type ComplaintUpdateRequest struct {
	Content string `json:"content" binding:"required"`
}

// HandleCreateComplaint ingests a complaint submission. A first
// submission for a (product, complainant) pair answers 201 with a
// Location header; a repeated one answers 200 with the incremented
// record.
func (h *ComplaintHandler) HandleCreateComplaint(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-create-complaint")
	defer h.tracer.EndTransaction(txn)

	var req ComplaintCreationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Invalid complaint submission")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.tracer.RecordError(txn, err)
		return
	}

	h.tracer.AddAttribute(txn, "product_id", req.ProductID)
	h.tracer.AddAttribute(txn, "complainant", req.Complainant)

	submission := req.toSubmission()
	complaint, created, err := h.complaintService.Ingest(c.Request.Context(), submission, clientIPAddress(c))
	if err != nil {
		log.Error().Err(err).Msg("Failed to ingest complaint")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process complaint"})
		h.tracer.RecordError(txn, err)
		return
	}

	if created {
		c.Header("Location", fmt.Sprintf("%s/%d", c.Request.URL.Path, complaint.ID))
		c.JSON(http.StatusCreated, complaint)
		return
	}

	c.JSON(http.StatusOK, complaint)
}

// HandleGetComplaint returns a single complaint by ID
func (h *ComplaintHandler) HandleGetComplaint(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-get-complaint")
	defer h.tracer.EndTransaction(txn)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid complaint id"})
		return
	}

	complaint, err := h.complaintService.GetComplaint(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "complaint not found"})
			return
		}
		log.Error().Err(err).Int64("complaint_id", id).Msg("Failed to get complaint")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get complaint"})
		h.tracer.RecordError(txn, err)
		return
	}

	c.JSON(http.StatusOK, complaint)
}

// HandleListComplaints returns all complaints
func (h *ComplaintHandler) HandleListComplaints(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-list-complaints")
	defer h.tracer.EndTransaction(txn)

	complaints, err := h.complaintService.ListComplaints(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list complaints")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list complaints"})
		h.tracer.RecordError(txn, err)
		return
	}

	c.JSON(http.StatusOK, complaints)
}

// HandleUpdateComplaint updates the content of an existing complaint
func (h *ComplaintHandler) HandleUpdateComplaint(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-update-complaint")
	defer h.tracer.EndTransaction(txn)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid complaint id"})
		return
	}

	var req ComplaintUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Invalid complaint update")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.complaintService.UpdateContent(c.Request.Context(), id, req.Content)
	if err != nil {
		log.Error().Err(err).Int64("complaint_id", id).Msg("Failed to update complaint")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update complaint"})
		h.tracer.RecordError(txn, err)
		return
	}

	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "complaint not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers the handler's routes
func (h *ComplaintHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/complaints", h.HandleCreateComplaint)
	router.GET("/complaints", h.HandleListComplaints)
	router.GET("/complaints/:id", h.HandleGetComplaint)
	router.PATCH("/complaints/:id", h.HandleUpdateComplaint)
}

func (r *ComplaintCreationRequest) toSubmission() *models.ComplaintSubmission {
	return &models.ComplaintSubmission{
		ProductID:   r.ProductID,
		Content:     r.Content,
		Complainant: r.Complainant,
	}
}

// clientIPAddress extracts the submitter's IP. The first entry of
// X-Forwarded-For wins when the header is present; otherwise the socket
// peer address is used.
func clientIPAddress(c *gin.Context) string {
	if xff := c.GetHeader(headerXForwardedFor); strings.TrimSpace(xff) != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}
