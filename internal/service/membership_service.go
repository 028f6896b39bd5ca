package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/wildrock/crm-api/internal/dto"
	"github.com/wildrock/crm-api/internal/models"
	appErrors "github.com/wildrock/crm-api/pkg/errors"
	"github.com/wildrock/crm-api/pkg/export"
)

const membershipResource = "membership"

// membershipExportColumns is the closed set of selectable export columns,
// in default order.
var membershipExportColumns = []string{"contact_name", "membership_type", "start_date", "end_date", "code", "status"}

type membershipStore interface {
	FindByID(ctx context.Context, id string) (*models.Membership, error)
	List(ctx context.Context, filter models.MembershipFilter) ([]models.Membership, int, error)
	ListAll(ctx context.Context) ([]models.Membership, error)
	Create(ctx context.Context, membership *models.Membership) error
	Update(ctx context.Context, membership *models.Membership) error
	Delete(ctx context.Context, id string) error
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfDatasetRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// MembershipService owns membership CRUD and the export path.
type MembershipService struct {
	repo      membershipStore
	csv       datasetRenderer
	pdf       pdfDatasetRenderer
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewMembershipService builds a MembershipService with sane defaults.
func NewMembershipService(repo membershipStore, csv datasetRenderer, pdf pdfDatasetRenderer, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *MembershipService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &MembershipService{
		repo:      repo,
		csv:       csv,
		pdf:       pdf,
		audit:     audit,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns memberships with pagination metadata.
func (s *MembershipService) List(ctx context.Context, filter models.MembershipFilter) ([]models.Membership, *models.Pagination, error) {
	memberships, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list memberships")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	return memberships, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns one membership by id.
func (s *MembershipService) Get(ctx context.Context, id string) (*models.Membership, error) {
	membership, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "membership not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership")
	}
	return membership, nil
}

// Create stores a new membership.
func (s *MembershipService) Create(ctx context.Context, req dto.CreateMembershipRequest, actor *models.JWTClaims) (*models.Membership, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid membership payload")
	}

	start, end, err := parseMembershipDates(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	membership := &models.Membership{
		ContactID:      req.ContactID,
		MembershipType: req.MembershipType,
		StartDate:      start,
		EndDate:        end,
		Code:           req.Code,
		Notes:          req.Notes,
	}
	if err := s.repo.Create(ctx, membership); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create membership")
	}

	s.emitAudit(ctx, actor, models.AuditActionMembershipCreate, membership.ID, nil, membership)
	return membership, nil
}

// Update replaces the mutable fields of a membership.
func (s *MembershipService) Update(ctx context.Context, id string, req dto.UpdateMembershipRequest, actor *models.JWTClaims) (*models.Membership, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid membership payload")
	}

	membership, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "membership not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership")
	}

	start, end, err := parseMembershipDates(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	previous := *membership
	membership.MembershipType = req.MembershipType
	membership.StartDate = start
	membership.EndDate = end
	membership.Code = req.Code
	membership.Notes = req.Notes

	if err := s.repo.Update(ctx, membership); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "membership not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update membership")
	}

	s.emitAudit(ctx, actor, models.AuditActionMembershipUpdate, membership.ID, &previous, membership)
	return membership, nil
}

// Delete removes a membership by id.
func (s *MembershipService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "membership not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete membership")
	}
	s.emitAudit(ctx, actor, models.AuditActionMembershipDelete, id, nil, nil)
	return nil
}

// Export renders all memberships to CSV or PDF with the requested
// columns. Unknown column names are rejected; an empty selection means
// every column.
func (s *MembershipService) Export(ctx context.Context, req dto.ExportMembershipsRequest, actor *models.JWTClaims) (*dto.ExportMembershipsResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}

	columns := req.Columns
	if len(columns) == 0 {
		columns = membershipExportColumns
	}
	for _, col := range columns {
		if !isExportColumn(col) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown export column %q", col))
		}
	}

	memberships, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load memberships")
	}

	now := s.now()
	dataset := export.Dataset{Headers: columns, Rows: make([]map[string]string, 0, len(memberships))}
	for _, m := range memberships {
		row := make(map[string]string, len(columns))
		for _, col := range columns {
			row[col] = membershipExportValue(m, col, now)
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	format := req.Format
	if format == "" {
		format = "csv"
	}
	stamp := now.Format("2006-01-02")

	var content []byte
	var contentType, fileName string
	switch format {
	case "pdf":
		content, err = s.pdf.Render(dataset, "Memberships")
		contentType = "application/pdf"
		fileName = "memberships-" + stamp + ".pdf"
	default:
		content, err = s.csv.Render(dataset)
		contentType = "text/csv"
		fileName = "memberships-" + stamp + ".csv"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &dto.ExportMembershipsResponse{
		FileName:    fileName,
		ContentType: contentType,
		Content:     content,
	}, nil
}

func isExportColumn(name string) bool {
	for _, col := range membershipExportColumns {
		if col == name {
			return true
		}
	}
	return false
}

func membershipExportValue(m models.Membership, column string, now time.Time) string {
	switch column {
	case "contact_name":
		if m.ContactName != nil {
			return *m.ContactName
		}
		return ""
	case "membership_type":
		return m.MembershipType
	case "start_date":
		return m.StartDate.Format("2006-01-02")
	case "end_date":
		return m.EndDate.Format("2006-01-02")
	case "code":
		if m.Code != nil {
			return *m.Code
		}
		return ""
	case "status":
		return string(m.Status(now))
	default:
		return ""
	}
}

func parseMembershipDates(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "start_date must be in YYYY-MM-DD format")
	}
	end, err := time.Parse("2006-01-02", endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end_date must be in YYYY-MM-DD format")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end_date must not precede start_date")
	}
	return start, end, nil
}

func (s *MembershipService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, oldValue, newValue interface{}) {
	if s.audit == nil {
		return
	}
	var oldValues, newValues []byte
	if oldValue != nil {
		oldValues, _ = json.Marshal(oldValue)
	}
	if newValue != nil {
		newValues, _ = json.Marshal(newValue)
	}
	var userID *string
	if actor != nil {
		userID = &actor.UserID
	}
	log := &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   membershipResource,
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "membership-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record membership audit", zap.Error(err))
	}
}
