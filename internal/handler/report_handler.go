package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wildrock/crm-api/internal/dto"
	"github.com/wildrock/crm-api/internal/models"
	"github.com/wildrock/crm-api/internal/service"
	appErrors "github.com/wildrock/crm-api/pkg/errors"
	"github.com/wildrock/crm-api/pkg/response"
)

type reportService interface {
	ListProgramTypes(ctx context.Context) ([]models.ProgramType, error)
	GetProgramType(ctx context.Context, id string) (*models.ProgramType, error)
	Render(ctx context.Context, req dto.ReportRequest) (*dto.ReportResponse, error)
	CreateEntry(ctx context.Context, req dto.CreateEntryRequest, actor *models.JWTClaims) (*models.ProgramEntry, error)
	UpdateEntry(ctx context.Context, id string, req dto.UpdateEntryRequest, actor *models.JWTClaims) (*models.ProgramEntry, error)
	DeleteEntry(ctx context.Context, id string, actor *models.JWTClaims) error
	UpdateAnnotation(ctx context.Context, bookingID string, req dto.UpdateAnnotationRequest, actor *models.JWTClaims) error
}

// ReportHandler exposes program report and entry endpoints.
type ReportHandler struct {
	reports reportService
	metrics *service.MetricsService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports reportService, metrics *service.MetricsService) *ReportHandler {
	return &ReportHandler{reports: reports, metrics: metrics}
}

// ProgramTypes lists the configured program types and their field schemas.
func (h *ReportHandler) ProgramTypes(c *gin.Context) {
	types, err := h.reports.ListProgramTypes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

// ProgramType returns a single program type.
func (h *ReportHandler) ProgramType(c *gin.Context) {
	programType, err := h.reports.GetProgramType(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, programType, nil)
}

// Render builds the report for a program type and optional date range.
// Each request renders from current data; nothing is retained between
// calls.
func (h *ReportHandler) Render(c *gin.Context) {
	req := dto.ReportRequest{ProgramTypeID: c.Query("program_type_id")}
	if req.ProgramTypeID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "program_type_id is required"))
		return
	}

	from, ok := parseDateQuery(c, "from")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be in YYYY-MM-DD format"))
		return
	}
	req.DateFrom = from

	to, ok := parseDateQuery(c, "to")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be in YYYY-MM-DD format"))
		return
	}
	req.DateTo = to

	start := time.Now()
	report, err := h.reports.Render(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.ObserveReportRender(time.Since(start))

	response.JSON(c, http.StatusOK, report, nil)
}

// CreateEntry records a manual program entry.
func (h *ReportHandler) CreateEntry(c *gin.Context) {
	var req dto.CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.reports.CreateEntry(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// UpdateEntry replaces an entry's date, links, notes, and data.
func (h *ReportHandler) UpdateEntry(c *gin.Context) {
	var req dto.UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.reports.UpdateEntry(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// DeleteEntry removes a manual program entry.
func (h *ReportHandler) DeleteEntry(c *gin.Context) {
	if err := h.reports.DeleteEntry(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateAnnotation replaces the report overrides stored for a booking.
func (h *ReportHandler) UpdateAnnotation(c *gin.Context) {
	var req dto.UpdateAnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.reports.UpdateAnnotation(c.Request.Context(), c.Param("id"), req, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"booking_id": c.Param("id")}, nil)
}
