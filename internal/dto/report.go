package dto

import (
	"time"

	"github.com/wildrock/crm-api/internal/schema"
)

// ReportRequest captures query parameters for /reports.
type ReportRequest struct {
	ProgramTypeID string
	DateFrom      *time.Time
	DateTo        *time.Time
}

// ReportRow is one rendered row of a program report, uniform across
// entry-sourced and booking-sourced types.
type ReportRow struct {
	ID          string             `json:"id"`
	Source      string             `json:"source"`
	Date        time.Time          `json:"date"`
	ContactID   *string            `json:"contact_id,omitempty"`
	ContactName *string            `json:"contact_name,omitempty"`
	EntityID    *string            `json:"entity_id,omitempty"`
	EntityName  *string            `json:"entity_name,omitempty"`
	Notes       *string            `json:"notes,omitempty"`
	Values      schema.FieldValues `json:"values"`
	Cells       map[string]string  `json:"cells"`
}

// ReportResponse is the full rendered report for a program type and
// date range.
type ReportResponse struct {
	ProgramTypeID string                   `json:"program_type_id"`
	ProgramName   string                   `json:"program_name"`
	Slug          string                   `json:"slug"`
	Source        string                   `json:"source"`
	Fields        []schema.FieldDefinition `json:"fields"`
	Rows          []ReportRow              `json:"rows"`
	RowCount      int                      `json:"row_count"`
	Totals        map[string]float64       `json:"totals"`
	TotalsDisplay map[string]string        `json:"totals_display"`
}

// CreateEntryRequest is the payload for creating a program entry.
type CreateEntryRequest struct {
	ProgramTypeID string                 `json:"program_type_id" validate:"required,uuid"`
	Date          string                 `json:"date" validate:"required"`
	ContactID     *string                `json:"contact_id" validate:"omitempty,uuid"`
	EntityID      *string                `json:"entity_id" validate:"omitempty,uuid"`
	Notes         *string                `json:"notes"`
	Data          map[string]interface{} `json:"data"`
}

// UpdateEntryRequest is the payload for updating a program entry.
type UpdateEntryRequest struct {
	Date      string                 `json:"date" validate:"required"`
	ContactID *string                `json:"contact_id" validate:"omitempty,uuid"`
	EntityID  *string                `json:"entity_id" validate:"omitempty,uuid"`
	Notes     *string                `json:"notes"`
	Data      map[string]interface{} `json:"data"`
}

// UpdateAnnotationRequest replaces the report annotation of a booking
// with the submitted field-value mapping.
type UpdateAnnotationRequest struct {
	Data map[string]interface{} `json:"data" validate:"required"`
}
