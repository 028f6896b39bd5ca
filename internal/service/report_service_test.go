package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildrock/crm-api/internal/dto"
	"github.com/wildrock/crm-api/internal/models"
	"github.com/wildrock/crm-api/internal/repository"
	"github.com/wildrock/crm-api/internal/schema"
	appErrors "github.com/wildrock/crm-api/pkg/errors"
)

type programStoreStub struct {
	types       map[string]*models.ProgramType
	entries     []models.ProgramEntry
	entry       *models.ProgramEntry
	created     []*models.ProgramEntry
	updated     []*models.ProgramEntry
	deleted     []string
	listErr     error
	createCalls int
}

func (s *programStoreStub) ListTypes(ctx context.Context) ([]models.ProgramType, error) {
	out := make([]models.ProgramType, 0, len(s.types))
	for _, pt := range s.types {
		out = append(out, *pt)
	}
	return out, nil
}

func (s *programStoreStub) FindTypeByID(ctx context.Context, id string) (*models.ProgramType, error) {
	if pt, ok := s.types[id]; ok {
		return pt, nil
	}
	return nil, sql.ErrNoRows
}

func (s *programStoreStub) ListEntries(ctx context.Context, programTypeID string, from, to *time.Time) ([]models.ProgramEntry, error) {
	return s.entries, s.listErr
}

func (s *programStoreStub) FindEntryByID(ctx context.Context, id string) (*models.ProgramEntry, error) {
	if s.entry != nil && s.entry.ID == id {
		return s.entry, nil
	}
	return nil, sql.ErrNoRows
}

func (s *programStoreStub) CreateEntry(ctx context.Context, entry *models.ProgramEntry) error {
	s.createCalls++
	entry.ID = "entry-new"
	s.created = append(s.created, entry)
	return nil
}

func (s *programStoreStub) UpdateEntry(ctx context.Context, entry *models.ProgramEntry) error {
	s.updated = append(s.updated, entry)
	return nil
}

func (s *programStoreStub) DeleteEntry(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type bookingStoreStub struct {
	bookings   map[string]*models.Booking
	reportRows []repository.BookingReportRow
	upserts    map[string]schema.FieldValues
}

func (s *bookingStoreStub) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	if b, ok := s.bookings[id]; ok {
		return b, nil
	}
	return nil, sql.ErrNoRows
}

func (s *bookingStoreStub) ListForReport(ctx context.Context, category string, from, to *time.Time) ([]repository.BookingReportRow, error) {
	return s.reportRows, nil
}

func (s *bookingStoreStub) UpsertAnnotation(ctx context.Context, bookingID string, data schema.FieldValues) error {
	if s.upserts == nil {
		s.upserts = map[string]schema.FieldValues{}
	}
	s.upserts[bookingID] = data
	return nil
}

type auditStub struct {
	logs []*models.AuditLog
}

func (s *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func testClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: models.RoleStaff}
}

func fieldTripType() *models.ProgramType {
	return &models.ProgramType{
		ID:   "type-ft",
		Name: "Field Trip",
		Slug: "field-trip",
		FieldSchema: schema.FieldSchema{
			Fields: []schema.FieldDefinition{
				{Key: "children_count", Label: "Children", Type: schema.TypeNumber},
			},
			Aggregations: []string{"children_count"},
		},
	}
}

func bookingRow(id string, kids int, annotation schema.FieldValues) repository.BookingReportRow {
	if annotation == nil {
		annotation = schema.FieldValues{}
	}
	return repository.BookingReportRow{
		Booking: models.Booking{
			ID:        id,
			Category:  "wildrock-field-trip",
			Date:      time.Date(2026, 5, 12, 0, 0, 0, 0, time.UTC),
			KidsCount: kids,
		},
		AnnotationData: annotation,
	}
}

func TestRenderBookingSourcedDefaultsFromKidsCount(t *testing.T) {
	programs := &programStoreStub{types: map[string]*models.ProgramType{"type-ft": fieldTripType()}}
	bookings := &bookingStoreStub{reportRows: []repository.BookingReportRow{
		bookingRow("b-1", 5, nil),
		bookingRow("b-2", 3, nil),
		bookingRow("b-3", 0, nil),
	}}
	svc := NewReportService(programs, bookings, nil, nil, nil)

	report, err := svc.Render(context.Background(), dto.ReportRequest{ProgramTypeID: "type-ft"})
	require.NoError(t, err)

	assert.Equal(t, "booking", report.Source)
	require.Len(t, report.Rows, 3)
	assert.Equal(t, float64(5), report.Rows[0].Values["children_count"])
	assert.Equal(t, float64(3), report.Rows[1].Values["children_count"])
	assert.Equal(t, float64(0), report.Rows[2].Values["children_count"])
	assert.Equal(t, 8.0, report.Totals["children_count"])
	assert.Equal(t, 3, report.RowCount)
}

func TestRenderAnnotationOverridesBookingField(t *testing.T) {
	programs := &programStoreStub{types: map[string]*models.ProgramType{"type-ft": fieldTripType()}}
	bookings := &bookingStoreStub{reportRows: []repository.BookingReportRow{
		bookingRow("b-1", 5, schema.FieldValues{"children_count": float64(7)}),
	}}
	svc := NewReportService(programs, bookings, nil, nil, nil)

	report, err := svc.Render(context.Background(), dto.ReportRequest{ProgramTypeID: "type-ft"})
	require.NoError(t, err)

	require.Len(t, report.Rows, 1)
	assert.Equal(t, float64(7), report.Rows[0].Values["children_count"])
	assert.Equal(t, 7.0, report.Totals["children_count"])
}

func TestRenderEntrySourcedCurrencyTotal(t *testing.T) {
	donations := &models.ProgramType{
		ID:   "type-don",
		Name: "Donations",
		Slug: "donations",
		FieldSchema: schema.FieldSchema{
			Fields:       []schema.FieldDefinition{{Key: "amount", Label: "Amount", Type: schema.TypeCurrency}},
			Aggregations: []string{"amount"},
		},
	}
	programs := &programStoreStub{
		types: map[string]*models.ProgramType{"type-don": donations},
		entries: []models.ProgramEntry{
			{ID: "e-1", ProgramTypeID: "type-don", Data: schema.FieldValues{"amount": 100.5}},
			{ID: "e-2", ProgramTypeID: "type-don", Data: schema.FieldValues{"amount": 49.5}},
		},
	}
	svc := NewReportService(programs, &bookingStoreStub{}, nil, nil, nil)

	report, err := svc.Render(context.Background(), dto.ReportRequest{ProgramTypeID: "type-don"})
	require.NoError(t, err)

	assert.Equal(t, "entry", report.Source)
	assert.Equal(t, 150.0, report.Totals["amount"])
	assert.Equal(t, "$150.00", report.TotalsDisplay["amount"])
	assert.Equal(t, "$100.50", report.Rows[0].Cells["amount"])
}

func TestRenderBookingSourcedHidesBooleanFields(t *testing.T) {
	pt := fieldTripType()
	pt.FieldSchema.Fields = append(pt.FieldSchema.Fields,
		schema.FieldDefinition{Key: "deposit_paid", Label: "Deposit Paid", Type: schema.TypeBoolean})
	programs := &programStoreStub{types: map[string]*models.ProgramType{"type-ft": pt}}
	bookings := &bookingStoreStub{reportRows: []repository.BookingReportRow{bookingRow("b-1", 4, nil)}}
	svc := NewReportService(programs, bookings, nil, nil, nil)

	report, err := svc.Render(context.Background(), dto.ReportRequest{ProgramTypeID: "type-ft"})
	require.NoError(t, err)

	require.Len(t, report.Fields, 1)
	assert.Equal(t, "children_count", report.Fields[0].Key)
	_, hasBooleanCell := report.Rows[0].Cells["deposit_paid"]
	assert.False(t, hasBooleanCell)
}

func TestCreateEntryRequiresDate(t *testing.T) {
	programs := &programStoreStub{types: map[string]*models.ProgramType{"type-don": {
		ID:   "type-don",
		Slug: "donations",
	}}}
	svc := NewReportService(programs, &bookingStoreStub{}, nil, nil, nil)

	_, err := svc.CreateEntry(context.Background(), dto.CreateEntryRequest{
		ProgramTypeID: "11111111-1111-1111-1111-111111111111",
	}, testClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Zero(t, programs.createCalls)
}

func TestCreateEntryRejectsBookingSourcedType(t *testing.T) {
	programs := &programStoreStub{types: map[string]*models.ProgramType{
		"22222222-2222-2222-2222-222222222222": fieldTripType(),
	}}
	programs.types["22222222-2222-2222-2222-222222222222"].ID = "22222222-2222-2222-2222-222222222222"
	svc := NewReportService(programs, &bookingStoreStub{}, nil, nil, nil)

	_, err := svc.CreateEntry(context.Background(), dto.CreateEntryRequest{
		ProgramTypeID: "22222222-2222-2222-2222-222222222222",
		Date:          "2026-05-12",
	}, testClaims())
	require.Error(t, err)
	assert.Zero(t, programs.createCalls)
}

func TestCreateEntryCoercesValues(t *testing.T) {
	donations := &models.ProgramType{
		ID:   "33333333-3333-3333-3333-333333333333",
		Slug: "donations",
		FieldSchema: schema.FieldSchema{
			Fields: []schema.FieldDefinition{
				{Key: "amount", Type: schema.TypeCurrency},
				{Key: "anonymous", Type: schema.TypeBoolean},
			},
		},
	}
	programs := &programStoreStub{types: map[string]*models.ProgramType{donations.ID: donations}}
	audit := &auditStub{}
	svc := NewReportService(programs, &bookingStoreStub{}, audit, nil, nil)

	entry, err := svc.CreateEntry(context.Background(), dto.CreateEntryRequest{
		ProgramTypeID: donations.ID,
		Date:          "2026-05-12",
		Data: map[string]interface{}{
			"amount":    "49.5",
			"anonymous": true,
			"empty":     nil,
		},
	}, testClaims())
	require.NoError(t, err)
	assert.Equal(t, 49.5, entry.Data["amount"])
	assert.Equal(t, true, entry.Data["anonymous"])
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionEntryCreate, audit.logs[0].Action)
}

func TestUpdateAnnotationWritesOnlyAnnotation(t *testing.T) {
	bookings := &bookingStoreStub{bookings: map[string]*models.Booking{
		"b-1": {ID: "b-1", KidsCount: 5},
	}}
	audit := &auditStub{}
	svc := NewReportService(&programStoreStub{}, bookings, audit, nil, nil)

	err := svc.UpdateAnnotation(context.Background(), "b-1", dto.UpdateAnnotationRequest{
		Data: map[string]interface{}{"children_count": float64(7)},
	}, testClaims())
	require.NoError(t, err)

	require.Len(t, bookings.upserts, 1)
	assert.Equal(t, float64(7), bookings.upserts["b-1"]["children_count"])
	// the synced booking row itself is untouched
	assert.Equal(t, 5, bookings.bookings["b-1"].KidsCount)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionAnnotationUpdate, audit.logs[0].Action)
}

func TestUpdateAnnotationMissingBooking(t *testing.T) {
	svc := NewReportService(&programStoreStub{}, &bookingStoreStub{}, nil, nil, nil)

	err := svc.UpdateAnnotation(context.Background(), "b-404", dto.UpdateAnnotationRequest{
		Data: map[string]interface{}{"children_count": float64(2)},
	}, testClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDeleteEntryRemovesMatchingID(t *testing.T) {
	programs := &programStoreStub{}
	svc := NewReportService(programs, &bookingStoreStub{}, nil, nil, nil)

	require.NoError(t, svc.DeleteEntry(context.Background(), "entry-1", testClaims()))
	assert.Equal(t, []string{"entry-1"}, programs.deleted)
}
