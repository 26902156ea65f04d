package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"example.com/backoffice/services/complaints/internal/metrics"
	"example.com/backoffice/services/complaints/internal/models"
	"example.com/backoffice/services/complaints/internal/repository"
	"example.com/backoffice/services/complaints/internal/services"
	"example.com/backoffice/services/complaints/internal/tracing"
)

// memoryRepository is an in-memory ComplaintRepository for handler tests
type memoryRepository struct {
	nextID     int64
	complaints map[int64]models.Complaint
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{nextID: 1, complaints: make(map[int64]models.Complaint)}
}

func (r *memoryRepository) FindByProductAndComplainant(_ context.Context, productID int64, complainant string) (*models.Complaint, error) {
	for _, c := range r.complaints {
		if c.ProductID == productID && c.Complainant == complainant {
			copied := c
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryRepository) FindByID(_ context.Context, id int64) (*models.Complaint, error) {
	c, ok := r.complaints[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := c
	return &copied, nil
}

func (r *memoryRepository) FindAll(_ context.Context) ([]models.Complaint, error) {
	all := make([]models.Complaint, 0, len(r.complaints))
	for _, c := range r.complaints {
		all = append(all, c)
	}
	return all, nil
}

func (r *memoryRepository) Save(_ context.Context, complaint *models.Complaint) error {
	if complaint.ID == 0 {
		complaint.ID = r.nextID
		r.nextID++
	}
	r.complaints[complaint.ID] = *complaint
	return nil
}

func (r *memoryRepository) UpdateContentByID(_ context.Context, id int64, content string) (int64, error) {
	c, ok := r.complaints[id]
	if !ok {
		return 0, nil
	}
	c.Content = content
	r.complaints[id] = c
	return 1, nil
}

func (r *memoryRepository) Stats(_ context.Context) (int64, int64, error) {
	var submissions int64
	for _, c := range r.complaints {
		submissions += int64(c.Count)
	}
	return int64(len(r.complaints)), submissions, nil
}

// recordingResolver resolves a fixed country and remembers the IP asked
type recordingResolver struct {
	country string
	ok      bool
	lastIP  string
}

func (r *recordingResolver) ResolveCountry(_ context.Context, ip string) (string, bool) {
	r.lastIP = ip
	return r.country, r.ok
}

func newTestRouter(repo repository.ComplaintRepository, resolver services.CountryResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)

	tracer := &tracing.NewRelicTracer{}
	service := services.NewComplaintService(repo, resolver, nil, nil, nil, metrics.NewMetrics(), tracer)

	router := gin.New()
	NewComplaintHandler(service, tracer).RegisterRoutes(router)
	return router
}

func postComplaint(t *testing.T, router *gin.Engine, body map[string]interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/complaints", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.9:51234"
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func validSubmission() map[string]interface{} {
	return map[string]interface{}{
		"product_id":  1001,
		"content":     "broken",
		"complainant": "alice",
	}
}

func TestCreateComplaintReturnsCreated(t *testing.T) {
	resolver := &recordingResolver{country: "US", ok: true}
	router := newTestRouter(newMemoryRepository(), resolver)

	w := postComplaint(t, router, validSubmission(), map[string]string{"X-Forwarded-For": "1.2.3.4"})

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "/complaints/1", w.Header().Get("Location"))
	require.Equal(t, "1.2.3.4", resolver.lastIP)

	var complaint models.Complaint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &complaint))
	require.Equal(t, 1, complaint.Count)
	require.NotNil(t, complaint.ComplainantCountry)
	require.Equal(t, "US", *complaint.ComplainantCountry)
}

func TestCreateComplaintDuplicateReturnsOK(t *testing.T) {
	router := newTestRouter(newMemoryRepository(), &recordingResolver{country: "US", ok: true})

	first := postComplaint(t, router, validSubmission(), nil)
	require.Equal(t, http.StatusCreated, first.Code)

	duplicate := validSubmission()
	duplicate["content"] = "different text"
	second := postComplaint(t, router, duplicate, nil)
	require.Equal(t, http.StatusOK, second.Code)
	require.Empty(t, second.Header().Get("Location"))

	var complaint models.Complaint
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &complaint))
	require.Equal(t, 2, complaint.Count)
	require.Equal(t, "broken", complaint.Content)
}

func TestCreateComplaintFallsBackToRemoteAddr(t *testing.T) {
	resolver := &recordingResolver{ok: false}
	router := newTestRouter(newMemoryRepository(), resolver)

	w := postComplaint(t, router, validSubmission(), nil)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "10.0.0.9", resolver.lastIP)
}

func TestCreateComplaintMissingFields(t *testing.T) {
	router := newTestRouter(newMemoryRepository(), &recordingResolver{})

	w := postComplaint(t, router, map[string]interface{}{"content": "broken"}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetComplaintNotFound(t *testing.T) {
	router := newTestRouter(newMemoryRepository(), &recordingResolver{})

	req := httptest.NewRequest(http.MethodGet, "/complaints/999", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetComplaintByID(t *testing.T) {
	router := newTestRouter(newMemoryRepository(), &recordingResolver{country: "US", ok: true})

	created := postComplaint(t, router, validSubmission(), nil)
	require.Equal(t, http.StatusCreated, created.Code)

	req := httptest.NewRequest(http.MethodGet, "/complaints/1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var complaint models.Complaint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &complaint))
	require.Equal(t, int64(1), complaint.ID)
	require.Equal(t, "alice", complaint.Complainant)
}

func TestListComplaints(t *testing.T) {
	router := newTestRouter(newMemoryRepository(), &recordingResolver{})

	other := validSubmission()
	other["complainant"] = "bob"
	require.Equal(t, http.StatusCreated, postComplaint(t, router, validSubmission(), nil).Code)
	require.Equal(t, http.StatusCreated, postComplaint(t, router, other, nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/complaints", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var complaints []models.Complaint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &complaints))
	require.Len(t, complaints, 2)
}

func TestUpdateComplaint(t *testing.T) {
	router := newTestRouter(newMemoryRepository(), &recordingResolver{})

	require.Equal(t, http.StatusCreated, postComplaint(t, router, validSubmission(), nil).Code)

	body := bytes.NewReader([]byte(`{"content":"fixed"}`))
	req := httptest.NewRequest(http.MethodPatch, "/complaints/1", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/complaints/1", nil)
	getW := httptest.NewRecorder()
	router.ServeHTTP(getW, getReq)

	var complaint models.Complaint
	require.NoError(t, json.Unmarshal(getW.Body.Bytes(), &complaint))
	require.Equal(t, "fixed", complaint.Content)
	require.Equal(t, 1, complaint.Count)
}

func TestUpdateComplaintNotFound(t *testing.T) {
	router := newTestRouter(newMemoryRepository(), &recordingResolver{})

	body := bytes.NewReader([]byte(`{"content":"new text"}`))
	req := httptest.NewRequest(http.MethodPatch, "/complaints/999", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateComplaintMissingContent(t *testing.T) {
	router := newTestRouter(newMemoryRepository(), &recordingResolver{})

	body := bytes.NewReader([]byte(`{}`))
	req := httptest.NewRequest(http.MethodPatch, "/complaints/1", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClientIPAddressPrefersForwardedFor(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/complaints", nil)
	c.Request.RemoteAddr = "10.0.0.9:51234"
	c.Request.Header.Set("X-Forwarded-For", " 1.2.3.4 , 5.6.7.8")

	require.Equal(t, "1.2.3.4", clientIPAddress(c))
}

func TestClientIPAddressFallsBackToPeer(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/complaints", nil)
	c.Request.RemoteAddr = "10.0.0.9:51234"

	require.Equal(t, "10.0.0.9", clientIPAddress(c))
}
