package models

import (
	"time"

	"github.com/wildrock/crm-api/internal/schema"
)

// ProgramType is a named category of trackable activity with a dynamic
// field schema. Rows are managed outside the API and read here.
type ProgramType struct {
	ID          string             `db:"id" json:"id"`
	Name        string             `db:"name" json:"name"`
	Slug        string             `db:"slug" json:"slug"`
	Description *string            `db:"description" json:"description,omitempty"`
	FieldSchema schema.FieldSchema `db:"field_schema" json:"field_schema"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
}

// ProgramEntry is a manually entered report row for an entry-sourced
// program type.
type ProgramEntry struct {
	ID            string             `db:"id" json:"id"`
	ProgramTypeID string             `db:"program_type_id" json:"program_type_id"`
	Date          time.Time          `db:"date" json:"date"`
	ContactID     *string            `db:"contact_id" json:"contact_id,omitempty"`
	EntityID      *string            `db:"entity_id" json:"entity_id,omitempty"`
	Data          schema.FieldValues `db:"data" json:"data"`
	Notes         *string            `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`

	// Display names populated on report queries via join.
	ContactName *string `db:"contact_name" json:"contact_name,omitempty"`
	EntityName  *string `db:"entity_name" json:"entity_name,omitempty"`
}
