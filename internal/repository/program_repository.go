package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wildrock/crm-api/internal/models"
)

// ProgramRepository provides database access for program types and
// manually entered program entries.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository creates a new instance of ProgramRepository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// ListTypes returns all program types ordered by name.
func (r *ProgramRepository) ListTypes(ctx context.Context) ([]models.ProgramType, error) {
	const query = `SELECT id, name, slug, description, field_schema, created_at FROM program_types ORDER BY name ASC`
	var types []models.ProgramType
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("list program types: %w", err)
	}
	return types, nil
}

// FindTypeByID returns a program type by identifier.
func (r *ProgramRepository) FindTypeByID(ctx context.Context, id string) (*models.ProgramType, error) {
	const query = `SELECT id, name, slug, description, field_schema, created_at FROM program_types WHERE id = $1 LIMIT 1`
	var pt models.ProgramType
	if err := r.db.GetContext(ctx, &pt, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find program type by id: %w", err)
	}
	return &pt, nil
}

// ListEntries returns entries for a program type within the date bounds,
// joined to contact and entity display names, ordered by date.
func (r *ProgramRepository) ListEntries(ctx context.Context, programTypeID string, from, to *time.Time) ([]models.ProgramEntry, error) {
	query := strings.Builder{}
	query.WriteString(`
SELECT
	e.id, e.program_type_id, e.date, e.contact_id, e.entity_id, e.data, e.notes, e.created_at, e.updated_at,
	c.first_name || ' ' || c.last_name AS contact_name,
	en.name AS entity_name
FROM program_entries e
LEFT JOIN contacts c ON c.id = e.contact_id
LEFT JOIN entities en ON en.id = e.entity_id
WHERE e.program_type_id = $1`)

	args := []interface{}{programTypeID}
	if from != nil {
		args = append(args, *from)
		fmt.Fprintf(&query, " AND e.date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		fmt.Fprintf(&query, " AND e.date <= $%d", len(args))
	}
	query.WriteString("\nORDER BY e.date ASC")

	var entries []models.ProgramEntry
	if err := r.db.SelectContext(ctx, &entries, query.String(), args...); err != nil {
		return nil, fmt.Errorf("list program entries: %w", err)
	}
	return entries, nil
}

// FindEntryByID returns a program entry by identifier.
func (r *ProgramRepository) FindEntryByID(ctx context.Context, id string) (*models.ProgramEntry, error) {
	const query = `SELECT id, program_type_id, date, contact_id, entity_id, data, notes, created_at, updated_at FROM program_entries WHERE id = $1 LIMIT 1`
	var entry models.ProgramEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find program entry by id: %w", err)
	}
	return &entry, nil
}

// CreateEntry inserts a new program entry.
func (r *ProgramRepository) CreateEntry(ctx context.Context, entry *models.ProgramEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	const query = `INSERT INTO program_entries (id, program_type_id, date, contact_id, entity_id, data, notes, created_at, updated_at)
VALUES (:id, :program_type_id, :date, :contact_id, :entity_id, :data, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create program entry: %w", err)
	}
	return nil
}

// UpdateEntry updates the mutable fields of a program entry.
func (r *ProgramRepository) UpdateEntry(ctx context.Context, entry *models.ProgramEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE program_entries SET date = :date, contact_id = :contact_id, entity_id = :entity_id, data = :data, notes = :notes, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		return fmt.Errorf("update program entry: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteEntry removes a program entry by identifier.
func (r *ProgramRepository) DeleteEntry(ctx context.Context, id string) error {
	const query = `DELETE FROM program_entries WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete program entry: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountEntriesSince returns the number of entries dated on or after the
// given day.
func (r *ProgramRepository) CountEntriesSince(ctx context.Context, day time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM program_entries WHERE date >= $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, day); err != nil {
		return 0, fmt.Errorf("count program entries: %w", err)
	}
	return total, nil
}
