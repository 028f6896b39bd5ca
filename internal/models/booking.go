package models

import (
	"time"

	"github.com/wildrock/crm-api/internal/schema"
)

// Booking represents an event booking synced from the scheduling service.
// Core fields are owned by the sync; this system only writes them when a
// webhook delivers a new or updated booking.
type Booking struct {
	ID            string             `db:"id" json:"id"`
	ContactID     *string            `db:"contact_id" json:"contact_id,omitempty"`
	Title         string             `db:"title" json:"title"`
	BookingType   string             `db:"booking_type" json:"booking_type"`
	Category      string             `db:"category" json:"category"`
	Date          time.Time          `db:"date" json:"date"`
	Timeslot      *string            `db:"timeslot" json:"timeslot,omitempty"`
	KidsCount     int                `db:"kids_count" json:"kids_count"`
	Status        string             `db:"status" json:"status"`
	FormResponses schema.FieldValues `db:"form_responses" json:"form_responses,omitempty"`
	CalUID        *string            `db:"cal_uid" json:"cal_uid,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`

	// ContactName is populated on list queries via join.
	ContactName *string `db:"contact_name" json:"contact_name,omitempty"`
}

// BookingReportAnnotation attaches report field values to a booking
// without touching the synced record itself. One row per booking.
type BookingReportAnnotation struct {
	BookingID string             `db:"booking_id" json:"booking_id"`
	Data      schema.FieldValues `db:"data" json:"data"`
	UpdatedAt time.Time          `db:"updated_at" json:"updated_at"`
}

// BookingFilter captures filtering criteria for listing bookings.
type BookingFilter struct {
	Category  string
	ContactID string
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}
