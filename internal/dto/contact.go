package dto

// CreateContactRequest is the payload for creating a contact.
type CreateContactRequest struct {
	FirstName        string   `json:"first_name" validate:"required"`
	LastName         string   `json:"last_name"`
	Email            *string  `json:"email" validate:"omitempty,email"`
	Phone            *string  `json:"phone"`
	Organization     *string  `json:"organization"`
	ContactTypes     []string `json:"contact_types"`
	Tags             []string `json:"tags"`
	Notes            *string  `json:"notes"`
	ReferredBy       *string  `json:"referred_by"`
	MarketingConsent *bool    `json:"marketing_consent"`
}

// UpdateContactRequest is the payload for updating a contact.
type UpdateContactRequest struct {
	FirstName        string   `json:"first_name" validate:"required"`
	LastName         string   `json:"last_name"`
	Email            *string  `json:"email" validate:"omitempty,email"`
	Phone            *string  `json:"phone"`
	Organization     *string  `json:"organization"`
	ContactTypes     []string `json:"contact_types"`
	Tags             []string `json:"tags"`
	Notes            *string  `json:"notes"`
	ReferredBy       *string  `json:"referred_by"`
	MarketingConsent *bool    `json:"marketing_consent"`
}

// ImportResult summarizes a CSV contact import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}
