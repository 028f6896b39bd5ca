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
)

type bookingSyncStoreStub struct {
	byUID   map[string]*models.Booking
	created []*models.Booking
	updated []*models.Booking
}

func (s *bookingSyncStoreStub) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	return nil, sql.ErrNoRows
}

func (s *bookingSyncStoreStub) FindByCalUID(ctx context.Context, uid string) (*models.Booking, error) {
	if b, ok := s.byUID[uid]; ok {
		return b, nil
	}
	return nil, sql.ErrNoRows
}

func (s *bookingSyncStoreStub) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	return nil, 0, nil
}

func (s *bookingSyncStoreStub) Create(ctx context.Context, booking *models.Booking) error {
	booking.ID = "booking-new"
	s.created = append(s.created, booking)
	return nil
}

func (s *bookingSyncStoreStub) UpdateFromSync(ctx context.Context, booking *models.Booking) error {
	s.updated = append(s.updated, booking)
	return nil
}

type contactResolverStub struct {
	contact *models.Contact
	lookups []string
}

func (s *contactResolverStub) FindOrCreateByEmail(ctx context.Context, email, fullName string) (*models.Contact, error) {
	s.lookups = append(s.lookups, email)
	if s.contact != nil {
		return s.contact, nil
	}
	return &models.Contact{ID: "contact-new", FirstName: fullName}, nil
}

func calPayload(uid string) dto.CalWebhookPayload {
	return dto.CalWebhookPayload{
		TriggerEvent: calTriggerCreated,
		Payload: dto.CalBookingData{
			UID:       uid,
			Title:     "Field Trip between Wildrock and Jamie Rivera",
			EventSlug: "wildrock-field-trip",
			StartTime: "2026-05-12T09:00:00Z",
			EndTime:   "2026-05-12T11:00:00Z",
			Attendees: []dto.CalAttendee{{Name: "Jamie Rivera", Email: "jamie@example.com"}},
			Responses: map[string]interface{}{
				"kids_count": map[string]interface{}{"label": "How many kids?", "value": "12"},
			},
		},
	}
}

func TestSyncFromCalCreatesBooking(t *testing.T) {
	repo := &bookingSyncStoreStub{byUID: map[string]*models.Booking{}}
	contacts := &contactResolverStub{}
	svc := NewBookingService(repo, contacts, nil, nil, nil)

	booking, err := svc.SyncFromCal(context.Background(), calPayload("cal-1"))
	require.NoError(t, err)

	require.Len(t, repo.created, 1)
	assert.Equal(t, bookingTypeCalSync, booking.BookingType)
	assert.Equal(t, "wildrock-field-trip", booking.Category)
	assert.Equal(t, time.Date(2026, 5, 12, 0, 0, 0, 0, time.UTC), booking.Date)
	require.NotNil(t, booking.Timeslot)
	assert.Equal(t, "9:00 AM - 11:00 AM", *booking.Timeslot)
	assert.Equal(t, 12, booking.KidsCount)
	require.NotNil(t, booking.ContactID)
	assert.Equal(t, []string{"jamie@example.com"}, contacts.lookups)
}

func TestSyncFromCalUpdatesExistingByUID(t *testing.T) {
	existing := &models.Booking{ID: "booking-1", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	repo := &bookingSyncStoreStub{byUID: map[string]*models.Booking{"cal-1": existing}}
	svc := NewBookingService(repo, &contactResolverStub{}, nil, nil, nil)

	payload := calPayload("cal-1")
	payload.TriggerEvent = calTriggerRescheduled
	booking, err := svc.SyncFromCal(context.Background(), payload)
	require.NoError(t, err)

	assert.Empty(t, repo.created)
	require.Len(t, repo.updated, 1)
	assert.Equal(t, "booking-1", booking.ID)
	assert.Equal(t, existing.CreatedAt, booking.CreatedAt)
}

func TestSyncFromCalCancellationMarksStatus(t *testing.T) {
	repo := &bookingSyncStoreStub{byUID: map[string]*models.Booking{}}
	svc := NewBookingService(repo, &contactResolverStub{}, nil, nil, nil)

	payload := calPayload("cal-2")
	payload.TriggerEvent = calTriggerCancelled
	booking, err := svc.SyncFromCal(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", booking.Status)
}

func TestSyncFromCalMissingUID(t *testing.T) {
	svc := NewBookingService(&bookingSyncStoreStub{}, &contactResolverStub{}, nil, nil, nil)

	payload := calPayload("")
	_, err := svc.SyncFromCal(context.Background(), payload)
	require.Error(t, err)
}

func TestKidsCountFromResponses(t *testing.T) {
	assert.Equal(t, 5, kidsCountFromResponses(map[string]interface{}{"kids_count": float64(5)}))
	assert.Equal(t, 3, kidsCountFromResponses(map[string]interface{}{"kids": "3"}))
	assert.Equal(t, 0, kidsCountFromResponses(map[string]interface{}{"kids": "many"}))
	assert.Equal(t, 0, kidsCountFromResponses(nil))
}
