package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin            = "LOGIN"
	AuditActionLogout           = "LOGOUT"
	AuditActionContactCreate    = "CONTACT_CREATE"
	AuditActionContactUpdate    = "CONTACT_UPDATE"
	AuditActionContactDelete    = "CONTACT_DELETE"
	AuditActionContactImport    = "CONTACT_IMPORT"
	AuditActionMembershipCreate = "MEMBERSHIP_CREATE"
	AuditActionMembershipUpdate = "MEMBERSHIP_UPDATE"
	AuditActionMembershipDelete = "MEMBERSHIP_DELETE"
	AuditActionEntryCreate      = "PROGRAM_ENTRY_CREATE"
	AuditActionEntryUpdate      = "PROGRAM_ENTRY_UPDATE"
	AuditActionEntryDelete      = "PROGRAM_ENTRY_DELETE"
	AuditActionAnnotationUpdate = "BOOKING_ANNOTATION_UPDATE"
	AuditActionDocumentUpload   = "DOCUMENT_UPLOAD"
	AuditActionDocumentDelete   = "DOCUMENT_DELETE"
	AuditActionWaiverSign       = "WAIVER_SIGN"
	AuditActionEntityCreate     = "ENTITY_CREATE"
	AuditActionEntityUpdate     = "ENTITY_UPDATE"
	AuditActionEntityDelete     = "ENTITY_DELETE"
	AuditActionBookingSync      = "BOOKING_SYNC"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
