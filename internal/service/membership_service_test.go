package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildrock/crm-api/internal/dto"
	"github.com/wildrock/crm-api/internal/models"
	appErrors "github.com/wildrock/crm-api/pkg/errors"
	"github.com/wildrock/crm-api/pkg/export"
)

type membershipStoreStub struct {
	memberships []models.Membership
	byID        map[string]*models.Membership
	created     []*models.Membership
	deleted     []string
}

func (s *membershipStoreStub) FindByID(ctx context.Context, id string) (*models.Membership, error) {
	if m, ok := s.byID[id]; ok {
		return m, nil
	}
	return nil, sql.ErrNoRows
}

func (s *membershipStoreStub) List(ctx context.Context, filter models.MembershipFilter) ([]models.Membership, int, error) {
	return s.memberships, len(s.memberships), nil
}

func (s *membershipStoreStub) ListAll(ctx context.Context) ([]models.Membership, error) {
	return s.memberships, nil
}

func (s *membershipStoreStub) Create(ctx context.Context, membership *models.Membership) error {
	membership.ID = "membership-new"
	s.created = append(s.created, membership)
	return nil
}

func (s *membershipStoreStub) Update(ctx context.Context, membership *models.Membership) error {
	return nil
}

func (s *membershipStoreStub) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func sampleMemberships() []models.Membership {
	name := "Dana Rivers"
	code := "WR-2026-017"
	return []models.Membership{
		{
			ID:             "membership-1",
			ContactID:      "contact-1",
			MembershipType: "family",
			StartDate:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:        time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
			Code:           &code,
			ContactName:    &name,
		},
		{
			ID:             "membership-2",
			ContactID:      "contact-2",
			MembershipType: "individual",
			StartDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:        time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestExportMembershipsCSVSelectedColumns(t *testing.T) {
	store := &membershipStoreStub{memberships: sampleMemberships()}
	svc := NewMembershipService(store, nil, nil, nil, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC) }

	resp, err := svc.Export(context.Background(), dto.ExportMembershipsRequest{
		Columns: []string{"contact_name", "status"},
		Format:  "csv",
	}, testClaims())
	require.NoError(t, err)

	assert.Equal(t, "text/csv", resp.ContentType)
	assert.Equal(t, "memberships-2026-06-15.csv", resp.FileName)

	lines := strings.Split(strings.TrimSpace(string(resp.Content)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "contact_name,status", strings.TrimSpace(lines[0]))
	assert.Equal(t, "Dana Rivers,active", strings.TrimSpace(lines[1]))
	assert.Equal(t, ",expired", strings.TrimSpace(lines[2]))
}

func TestExportMembershipsRejectsUnknownColumn(t *testing.T) {
	store := &membershipStoreStub{memberships: sampleMemberships()}
	svc := NewMembershipService(store, nil, nil, nil, nil, nil)

	_, err := svc.Export(context.Background(), dto.ExportMembershipsRequest{
		Columns: []string{"contact_name", "secret_notes"},
	}, testClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportMembershipsDefaultsToAllColumns(t *testing.T) {
	store := &membershipStoreStub{memberships: sampleMemberships()}
	svc := NewMembershipService(store, nil, nil, nil, nil, nil)

	resp, err := svc.Export(context.Background(), dto.ExportMembershipsRequest{}, testClaims())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(resp.Content)), "\n")
	assert.Equal(t, strings.Join(membershipExportColumns, ","), strings.TrimSpace(lines[0]))
}

func TestExportMembershipsPDFFormat(t *testing.T) {
	store := &membershipStoreStub{memberships: sampleMemberships()}
	svc := NewMembershipService(store, export.NewCSVExporter(), export.NewPDFExporter(), nil, nil, nil)

	resp, err := svc.Export(context.Background(), dto.ExportMembershipsRequest{Format: "pdf"}, testClaims())
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", resp.ContentType)
	assert.True(t, strings.HasPrefix(string(resp.Content), "%PDF"))
}

func TestCreateMembershipRejectsInvertedDates(t *testing.T) {
	store := &membershipStoreStub{}
	svc := NewMembershipService(store, nil, nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateMembershipRequest{
		ContactID:      "0b9fcb4e-03a4-4a9f-9976-35d4e0a0ac05",
		MembershipType: "family",
		StartDate:      "2026-06-01",
		EndDate:        "2026-01-01",
	}, testClaims())
	require.Error(t, err)
	assert.Empty(t, store.created)
}

func TestCreateMembershipEmitsAudit(t *testing.T) {
	store := &membershipStoreStub{}
	audit := &auditStub{}
	svc := NewMembershipService(store, nil, nil, audit, nil, nil)

	membership, err := svc.Create(context.Background(), dto.CreateMembershipRequest{
		ContactID:      "0b9fcb4e-03a4-4a9f-9976-35d4e0a0ac05",
		MembershipType: "family",
		StartDate:      "2026-01-01",
		EndDate:        "2026-12-31",
	}, testClaims())
	require.NoError(t, err)
	assert.Equal(t, "membership-new", membership.ID)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionMembershipCreate, audit.logs[0].Action)
}
