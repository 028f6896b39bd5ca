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
)

const (
	bookingResource = "booking"

	// bookingTypeCalSync marks bookings created by the scheduling webhook.
	bookingTypeCalSync = "cal_sync"

	calTriggerCreated     = "BOOKING_CREATED"
	calTriggerRescheduled = "BOOKING_RESCHEDULED"
	calTriggerCancelled   = "BOOKING_CANCELLED"
)

type bookingStore interface {
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	FindByCalUID(ctx context.Context, uid string) (*models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
	Create(ctx context.Context, booking *models.Booking) error
	UpdateFromSync(ctx context.Context, booking *models.Booking) error
}

type contactResolver interface {
	FindOrCreateByEmail(ctx context.Context, email, fullName string) (*models.Contact, error)
}

// BookingService lists synced bookings and applies scheduling webhooks.
type BookingService struct {
	repo      bookingStore
	contacts  contactResolver
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBookingService builds a BookingService with sane defaults.
func NewBookingService(repo bookingStore, contacts contactResolver, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{repo: repo, contacts: contacts, audit: audit, validator: validate, logger: logger}
}

// List returns bookings with pagination metadata.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error) {
	bookings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	return bookings, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns one booking by id.
func (s *BookingService) Get(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}

// SyncFromCal applies one webhook delivery: create on first sight of a
// UID, refresh the synced fields otherwise. Report annotations are
// never touched here.
func (s *BookingService) SyncFromCal(ctx context.Context, payload dto.CalWebhookPayload) (*models.Booking, error) {
	data := payload.Payload
	if data.UID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "webhook payload missing booking uid")
	}

	date, timeslot, err := parseCalTimes(data.StartTime, data.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking times")
	}

	var contactID *string
	if len(data.Attendees) > 0 && data.Attendees[0].Email != "" {
		attendee := data.Attendees[0]
		contact, err := s.contacts.FindOrCreateByEmail(ctx, attendee.Email, attendee.Name)
		if err != nil {
			s.logger.Warn("failed to resolve booking contact", zap.String("email", attendee.Email), zap.Error(err))
		} else {
			contactID = &contact.ID
		}
	}

	status := "confirmed"
	if payload.TriggerEvent == calTriggerCancelled {
		status = "cancelled"
	}

	incoming := &models.Booking{
		ContactID:     contactID,
		Title:         data.Title,
		BookingType:   bookingTypeCalSync,
		Category:      data.EventSlug,
		Date:          date,
		Timeslot:      &timeslot,
		KidsCount:     kidsCountFromResponses(data.Responses),
		Status:        status,
		FormResponses: data.Responses,
		CalUID:        &data.UID,
	}

	existing, err := s.repo.FindByCalUID(ctx, data.UID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up booking")
		}
		if err := s.repo.Create(ctx, incoming); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
		}
		s.emitAudit(ctx, payload.TriggerEvent, incoming)
		return incoming, nil
	}

	incoming.ID = existing.ID
	incoming.CreatedAt = existing.CreatedAt
	if incoming.ContactID == nil {
		incoming.ContactID = existing.ContactID
	}
	if err := s.repo.UpdateFromSync(ctx, incoming); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update booking")
	}
	s.emitAudit(ctx, payload.TriggerEvent, incoming)
	return incoming, nil
}

// parseCalTimes turns RFC3339 start/end times into a date plus a
// 12-hour display timeslot such as "9:00 AM - 11:00 AM".
func parseCalTimes(start, end string) (time.Time, string, error) {
	startAt, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("parse start time: %w", err)
	}
	date := time.Date(startAt.Year(), startAt.Month(), startAt.Day(), 0, 0, 0, 0, time.UTC)

	timeslot := formatClock(startAt)
	if end != "" {
		endAt, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return time.Time{}, "", fmt.Errorf("parse end time: %w", err)
		}
		timeslot = timeslot + " - " + formatClock(endAt)
	}
	return date, timeslot, nil
}

func formatClock(t time.Time) string {
	return t.Format("3:04 PM")
}

// kidsCountFromResponses pulls the child count out of the form
// responses, accepting either key name and either JSON number or
// string. Missing or malformed values default to zero.
func kidsCountFromResponses(responses map[string]interface{}) int {
	for _, key := range []string{"kids_count", "kids"} {
		raw, ok := responses[key]
		if !ok {
			continue
		}
		// Cal.com nests answers as {"label":..., "value":...}.
		if nested, ok := raw.(map[string]interface{}); ok {
			raw = nested["value"]
		}
		switch v := raw.(type) {
		case float64:
			return int(v)
		case string:
			var n int
			if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
				return n
			}
		}
	}
	return 0
}

func (s *BookingService) emitAudit(ctx context.Context, trigger string, booking *models.Booking) {
	if s.audit == nil {
		return
	}
	newValues, _ := json.Marshal(map[string]interface{}{
		"trigger": trigger,
		"booking": booking,
	})
	log := &models.AuditLog{
		Action:     models.AuditActionBookingSync,
		Resource:   bookingResource,
		ResourceID: &booking.ID,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "booking-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record booking audit", zap.Error(err))
	}
}
