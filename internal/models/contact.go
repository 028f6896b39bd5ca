package models

import (
	"time"

	"github.com/lib/pq"
)

// Contact represents a person tracked by the organization: parents,
// teachers, donors, volunteers.
type Contact struct {
	ID           string         `db:"id" json:"id"`
	FirstName    string         `db:"first_name" json:"first_name"`
	LastName     string         `db:"last_name" json:"last_name"`
	Email        *string        `db:"email" json:"email,omitempty"`
	Phone        *string        `db:"phone" json:"phone,omitempty"`
	Organization *string        `db:"organization" json:"organization,omitempty"`
	ContactTypes pq.StringArray `db:"contact_types" json:"contact_types"`
	Tags         pq.StringArray `db:"tags" json:"tags"`
	Notes        *string        `db:"notes" json:"notes,omitempty"`
	ReferredBy   *string        `db:"referred_by" json:"referred_by,omitempty"`
	// Consent to marketing email, tracked per contact.
	MarketingConsent *bool `db:"marketing_consent" json:"marketing_consent,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name for display.
func (c Contact) FullName() string {
	if c.FirstName == "" {
		return c.LastName
	}
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// ContactFilter captures filtering criteria for listing contacts.
type ContactFilter struct {
	Search      string
	ContactType string
	Tag         string
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}
