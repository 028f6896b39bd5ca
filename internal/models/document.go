package models

import "time"

// DocumentCategory distinguishes uploaded files from generated waivers.
const (
	DocumentCategoryGeneral = "general"
	DocumentCategoryWaiver  = "waiver"
)

// Document represents a stored file attached to a contact.
type Document struct {
	ID         string    `db:"id" json:"id"`
	ContactID  *string   `db:"contact_id" json:"contact_id,omitempty"`
	FileName   string    `db:"file_name" json:"file_name"`
	FilePath   string    `db:"file_path" json:"-"`
	MimeType   string    `db:"mime_type" json:"mime_type"`
	SizeBytes  int64     `db:"size_bytes" json:"size_bytes"`
	Category   string    `db:"category" json:"category"`
	UploadedBy *string   `db:"uploaded_by" json:"uploaded_by,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
