package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/wildrock/crm-api/internal/dto"
	"github.com/wildrock/crm-api/internal/models"
	"github.com/wildrock/crm-api/internal/repository"
	"github.com/wildrock/crm-api/internal/schema"
	appErrors "github.com/wildrock/crm-api/pkg/errors"
)

const (
	reportSourceEntry   = "entry"
	reportSourceBooking = "booking"

	entryResource      = "program_entry"
	annotationResource = "booking_annotation"
)

// bookingSourceMap binds program type slugs to the booking category they
// shadow. Types without an entry here are entry-sourced.
var bookingSourceMap = map[string]string{
	"birthday-party": "birthday-party",
	"field-trip":     "wildrock-field-trip",
}

// bookingFieldDefaults supplies a value for a schema field from the
// booking row when the annotation does not carry the key.
var bookingFieldDefaults = map[string]func(models.Booking) interface{}{
	"children_count": func(b models.Booking) interface{} {
		return float64(b.KidsCount)
	},
}

type reportProgramStore interface {
	ListTypes(ctx context.Context) ([]models.ProgramType, error)
	FindTypeByID(ctx context.Context, id string) (*models.ProgramType, error)
	ListEntries(ctx context.Context, programTypeID string, from, to *time.Time) ([]models.ProgramEntry, error)
	FindEntryByID(ctx context.Context, id string) (*models.ProgramEntry, error)
	CreateEntry(ctx context.Context, entry *models.ProgramEntry) error
	UpdateEntry(ctx context.Context, entry *models.ProgramEntry) error
	DeleteEntry(ctx context.Context, id string) error
}

type reportBookingStore interface {
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	ListForReport(ctx context.Context, category string, from, to *time.Time) ([]repository.BookingReportRow, error)
	UpsertAnnotation(ctx context.Context, bookingID string, data schema.FieldValues) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ReportService renders program reports from entries or booking
// projections and owns the entry/annotation write paths.
type ReportService struct {
	programs  reportProgramStore
	bookings  reportBookingStore
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReportService builds a ReportService with sane defaults.
func NewReportService(programs reportProgramStore, bookings reportBookingStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		programs:  programs,
		bookings:  bookings,
		audit:     audit,
		validator: validate,
		logger:    logger,
	}
}

// BookingCategoryForSlug returns the booking category a program slug
// shadows, if any.
func BookingCategoryForSlug(slug string) (string, bool) {
	category, ok := bookingSourceMap[slug]
	return category, ok
}

// ListProgramTypes returns all configured program types.
func (s *ReportService) ListProgramTypes(ctx context.Context) ([]models.ProgramType, error) {
	types, err := s.programs.ListTypes(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list program types")
	}
	return types, nil
}

// Render produces the uniform report for a program type and date range.
// GetProgramType returns a single program type with its field schema.
func (s *ReportService) GetProgramType(ctx context.Context, id string) (*models.ProgramType, error) {
	programType, err := s.programs.FindTypeByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program type")
	}
	return programType, nil
}

func (s *ReportService) Render(ctx context.Context, req dto.ReportRequest) (*dto.ReportResponse, error) {
	if req.ProgramTypeID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "program_type_id is required")
	}

	programType, err := s.programs.FindTypeByID(ctx, req.ProgramTypeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program type")
	}

	category, bookingSourced := bookingSourceMap[programType.Slug]

	var rows []dto.ReportRow
	if bookingSourced {
		rows, err = s.bookingRows(ctx, programType, category, req.DateFrom, req.DateTo)
	} else {
		rows, err = s.entryRows(ctx, programType, req.DateFrom, req.DateTo)
	}
	if err != nil {
		return nil, err
	}

	fields := schema.DisplayFields(programType.FieldSchema, bookingSourced)

	values := make([]schema.FieldValues, len(rows))
	for i, row := range rows {
		values[i] = row.Values
	}
	totals := schema.Aggregate(programType.FieldSchema, values)
	totalsDisplay := make(map[string]string, len(totals))
	for key, total := range totals {
		totalsDisplay[key] = schema.FormatAggregate(programType.FieldSchema, key, total)
	}

	source := reportSourceEntry
	if bookingSourced {
		source = reportSourceBooking
	}

	return &dto.ReportResponse{
		ProgramTypeID: programType.ID,
		ProgramName:   programType.Name,
		Slug:          programType.Slug,
		Source:        source,
		Fields:        fields,
		Rows:          rows,
		RowCount:      len(rows),
		Totals:        totals,
		TotalsDisplay: totalsDisplay,
	}, nil
}

func (s *ReportService) entryRows(ctx context.Context, pt *models.ProgramType, from, to *time.Time) ([]dto.ReportRow, error) {
	entries, err := s.programs.ListEntries(ctx, pt.ID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list program entries")
	}

	fields := schema.DisplayFields(pt.FieldSchema, false)
	rows := make([]dto.ReportRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, dto.ReportRow{
			ID:          entry.ID,
			Source:      reportSourceEntry,
			Date:        entry.Date,
			ContactID:   entry.ContactID,
			ContactName: entry.ContactName,
			EntityID:    entry.EntityID,
			EntityName:  entry.EntityName,
			Notes:       entry.Notes,
			Values:      entry.Data,
			Cells:       renderCells(fields, entry.Data),
		})
	}
	return rows, nil
}

func (s *ReportService) bookingRows(ctx context.Context, pt *models.ProgramType, category string, from, to *time.Time) ([]dto.ReportRow, error) {
	bookings, err := s.bookings.ListForReport(ctx, category, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}

	fields := schema.DisplayFields(pt.FieldSchema, true)
	rows := make([]dto.ReportRow, 0, len(bookings))
	for _, b := range bookings {
		values := projectBooking(pt.FieldSchema, b)
		rows = append(rows, dto.ReportRow{
			ID:          b.ID,
			Source:      reportSourceBooking,
			Date:        b.Date,
			ContactID:   b.ContactID,
			ContactName: b.ContactName,
			Values:      values,
			Cells:       renderCells(fields, values),
		})
	}
	return rows, nil
}

// projectBooking builds the entry-shaped value set of a booking row:
// the annotation wins per field, then the registered default extractor,
// otherwise the field stays unset.
func projectBooking(s schema.FieldSchema, row repository.BookingReportRow) schema.FieldValues {
	values := make(schema.FieldValues, len(s.Fields))
	for _, field := range s.Fields {
		if v, ok := row.AnnotationData[field.Key]; ok {
			values[field.Key] = v
			continue
		}
		if extract, ok := bookingFieldDefaults[field.Key]; ok {
			values[field.Key] = extract(row.Booking)
		}
	}
	return values
}

func renderCells(fields []schema.FieldDefinition, values schema.FieldValues) map[string]string {
	cells := make(map[string]string, len(fields))
	for _, field := range fields {
		cells[field.Key] = schema.FormatCell(field.Type, values[field.Key])
	}
	return cells
}

// CreateEntry inserts a manual report row for an entry-sourced type.
func (s *ReportService) CreateEntry(ctx context.Context, req dto.CreateEntryRequest, actor *models.JWTClaims) (*models.ProgramEntry, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid entry payload")
	}

	programType, err := s.programs.FindTypeByID(ctx, req.ProgramTypeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program type")
	}
	if _, bookingSourced := bookingSourceMap[programType.Slug]; bookingSourced {
		return nil, appErrors.Clone(appErrors.ErrValidation, "booking-sourced program types do not accept manual entries")
	}

	date, err := parseEntryDate(req.Date)
	if err != nil {
		return nil, err
	}
	data, err := coerceEntryData(programType.FieldSchema, req.Data)
	if err != nil {
		return nil, err
	}

	entry := &models.ProgramEntry{
		ProgramTypeID: programType.ID,
		Date:          date,
		ContactID:     req.ContactID,
		EntityID:      req.EntityID,
		Data:          data,
		Notes:         req.Notes,
	}
	if err := s.programs.CreateEntry(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create entry")
	}

	s.emitAudit(ctx, actor, models.AuditActionEntryCreate, entryResource, entry.ID, nil, entry)
	return entry, nil
}

// UpdateEntry updates a manual report row by id.
func (s *ReportService) UpdateEntry(ctx context.Context, id string, req dto.UpdateEntryRequest, actor *models.JWTClaims) (*models.ProgramEntry, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid entry payload")
	}

	entry, err := s.programs.FindEntryByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load entry")
	}

	programType, err := s.programs.FindTypeByID(ctx, entry.ProgramTypeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program type")
	}

	date, err := parseEntryDate(req.Date)
	if err != nil {
		return nil, err
	}
	data, err := coerceEntryData(programType.FieldSchema, req.Data)
	if err != nil {
		return nil, err
	}

	previous := *entry
	entry.Date = date
	entry.ContactID = req.ContactID
	entry.EntityID = req.EntityID
	entry.Data = data
	entry.Notes = req.Notes

	if err := s.programs.UpdateEntry(ctx, entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update entry")
	}

	s.emitAudit(ctx, actor, models.AuditActionEntryUpdate, entryResource, entry.ID, &previous, entry)
	return entry, nil
}

// DeleteEntry removes a manual report row by id.
func (s *ReportService) DeleteEntry(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.programs.DeleteEntry(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete entry")
	}
	s.emitAudit(ctx, actor, models.AuditActionEntryDelete, entryResource, id, nil, nil)
	return nil
}

// UpdateAnnotation replaces the report annotation of a booking with the
// submitted mapping. The booking record itself is never written.
func (s *ReportService) UpdateAnnotation(ctx context.Context, bookingID string, req dto.UpdateAnnotationRequest, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid annotation payload")
	}

	if _, err := s.bookings.FindByID(ctx, bookingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}

	data := schema.FieldValues(req.Data)
	if err := s.bookings.UpsertAnnotation(ctx, bookingID, data); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save annotation")
	}

	s.emitAudit(ctx, actor, models.AuditActionAnnotationUpdate, annotationResource, bookingID, nil, data)
	return nil
}

func parseEntryDate(raw string) (time.Time, error) {
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date must be in YYYY-MM-DD format")
	}
	return date, nil
}

// coerceEntryData normalizes declared fields to their canonical typed
// representation. Keys absent from the schema pass through untouched.
func coerceEntryData(fieldSchema schema.FieldSchema, raw map[string]interface{}) (schema.FieldValues, error) {
	data := make(schema.FieldValues, len(raw))
	for key, value := range raw {
		field, declared := fieldSchema.FieldByKey(key)
		if !declared {
			data[key] = value
			continue
		}
		coerced, err := schema.CoerceInput(field.Type, value)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid value for field "+key)
		}
		if coerced == nil {
			continue
		}
		data[key] = coerced
	}
	return data, nil
}

func (s *ReportService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resource, resourceID string, oldValue, newValue interface{}) {
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
		Resource:   resource,
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "report-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record report audit", zap.Error(err))
	}
}
