package models

import "time"

// MembershipStatus is derived from the membership date range.
type MembershipStatus string

const (
	MembershipActive  MembershipStatus = "active"
	MembershipExpired MembershipStatus = "expired"
	MembershipPending MembershipStatus = "pending"
)

// Membership represents a paid membership attached to a contact.
type Membership struct {
	ID             string    `db:"id" json:"id"`
	ContactID      string    `db:"contact_id" json:"contact_id"`
	MembershipType string    `db:"membership_type" json:"membership_type"`
	StartDate      time.Time `db:"start_date" json:"start_date"`
	EndDate        time.Time `db:"end_date" json:"end_date"`
	Code           *string   `db:"code" json:"code,omitempty"`
	Notes          *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`

	// ContactName is populated on list queries via join.
	ContactName *string `db:"contact_name" json:"contact_name,omitempty"`
}

// Status derives the membership state from its date range.
func (m Membership) Status(now time.Time) MembershipStatus {
	day := now.Truncate(24 * time.Hour)
	if day.Before(m.StartDate) {
		return MembershipPending
	}
	if day.After(m.EndDate) {
		return MembershipExpired
	}
	return MembershipActive
}

// MembershipFilter captures filtering criteria for listing memberships.
type MembershipFilter struct {
	ContactID      string
	MembershipType string
	ActiveOn       *time.Time
	Page           int
	PageSize       int
}
