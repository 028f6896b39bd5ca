package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildrock/crm-api/internal/dto"
	"github.com/wildrock/crm-api/internal/middleware"
	"github.com/wildrock/crm-api/internal/models"
)

type responseEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error map[string]interface{} `json:"error"`
}

type fakeReportSrv struct {
	renderResp  *dto.ReportResponse
	renderErr   error
	lastRender  dto.ReportRequest
	annotations map[string]dto.UpdateAnnotationRequest
	deleted     []string
}

func (f *fakeReportSrv) ListProgramTypes(context.Context) ([]models.ProgramType, error) {
	return nil, nil
}

func (f *fakeReportSrv) GetProgramType(_ context.Context, id string) (*models.ProgramType, error) {
	return &models.ProgramType{ID: id}, nil
}

func (f *fakeReportSrv) Render(_ context.Context, req dto.ReportRequest) (*dto.ReportResponse, error) {
	f.lastRender = req
	return f.renderResp, f.renderErr
}

func (f *fakeReportSrv) CreateEntry(_ context.Context, req dto.CreateEntryRequest, _ *models.JWTClaims) (*models.ProgramEntry, error) {
	return &models.ProgramEntry{ID: "entry-1", ProgramTypeID: req.ProgramTypeID}, nil
}

func (f *fakeReportSrv) UpdateEntry(_ context.Context, id string, _ dto.UpdateEntryRequest, _ *models.JWTClaims) (*models.ProgramEntry, error) {
	return &models.ProgramEntry{ID: id}, nil
}

func (f *fakeReportSrv) DeleteEntry(_ context.Context, id string, _ *models.JWTClaims) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeReportSrv) UpdateAnnotation(_ context.Context, bookingID string, req dto.UpdateAnnotationRequest, _ *models.JWTClaims) error {
	if f.annotations == nil {
		f.annotations = map[string]dto.UpdateAnnotationRequest{}
	}
	f.annotations[bookingID] = req
	return nil
}

func TestReportRenderRequiresProgramType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&fakeReportSrv{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/reports", nil)

	handler.Render(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportRenderRejectsBadDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&fakeReportSrv{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/reports?program_type_id=type-1&from=June+1", nil)

	handler.Render(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportRenderPassesDateRange(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeReportSrv{renderResp: &dto.ReportResponse{ProgramName: "Field Trip", RowCount: 2}}
	handler := NewReportHandler(srv, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/reports?program_type_id=type-1&from=2026-01-01&to=2026-06-30", nil)

	handler.Render(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "type-1", srv.lastRender.ProgramTypeID)
	require.NotNil(t, srv.lastRender.DateFrom)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *srv.lastRender.DateFrom)
	require.NotNil(t, srv.lastRender.DateTo)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	var report dto.ReportResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &report))
	assert.Equal(t, "Field Trip", report.ProgramName)
	assert.Equal(t, 2, report.RowCount)
}

func TestCreateEntryRejectsMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&fakeReportSrv{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/report-entries", strings.NewReader("{not json"))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.CreateEntry(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAnnotationRoutesBookingID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeReportSrv{}
	handler := NewReportHandler(srv, nil)

	body := `{"data": {"children_count": 7}}`
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPut, "/bookings/booking-9/annotation", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "booking-9"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleStaff})

	handler.UpdateAnnotation(c)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, srv.annotations, "booking-9")
	assert.Equal(t, float64(7), srv.annotations["booking-9"].Data["children_count"])
}
