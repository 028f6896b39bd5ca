package dto

// CreateMembershipRequest is the payload for creating a membership.
type CreateMembershipRequest struct {
	ContactID      string  `json:"contact_id" validate:"required,uuid"`
	MembershipType string  `json:"membership_type" validate:"required"`
	StartDate      string  `json:"start_date" validate:"required"`
	EndDate        string  `json:"end_date" validate:"required"`
	Code           *string `json:"code"`
	Notes          *string `json:"notes"`
}

// UpdateMembershipRequest is the payload for updating a membership.
type UpdateMembershipRequest struct {
	MembershipType string  `json:"membership_type" validate:"required"`
	StartDate      string  `json:"start_date" validate:"required"`
	EndDate        string  `json:"end_date" validate:"required"`
	Code           *string `json:"code"`
	Notes          *string `json:"notes"`
}

// ExportMembershipsRequest selects the columns and format of a
// membership export.
type ExportMembershipsRequest struct {
	Columns []string `json:"columns"`
	Format  string   `json:"format" validate:"omitempty,oneof=csv pdf"`
}

// ExportMembershipsResponse returns the rendered export.
type ExportMembershipsResponse struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"-"`
}
