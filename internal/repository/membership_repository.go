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

// MembershipRepository provides database access for memberships.
type MembershipRepository struct {
	db *sqlx.DB
}

// NewMembershipRepository creates a new instance of MembershipRepository.
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

const membershipColumns = `m.id, m.contact_id, m.membership_type, m.start_date, m.end_date, m.code, m.notes, m.created_at, m.updated_at`

// FindByID returns a membership by identifier.
func (r *MembershipRepository) FindByID(ctx context.Context, id string) (*models.Membership, error) {
	query := fmt.Sprintf(`SELECT %s, c.first_name || ' ' || c.last_name AS contact_name FROM memberships m JOIN contacts c ON c.id = m.contact_id WHERE m.id = $1 LIMIT 1`, membershipColumns)
	var membership models.Membership
	if err := r.db.GetContext(ctx, &membership, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find membership by id: %w", err)
	}
	return &membership, nil
}

// List returns memberships based on filters with total count, joined to
// the contact display name.
func (r *MembershipRepository) List(ctx context.Context, filter models.MembershipFilter) ([]models.Membership, int, error) {
	baseQuery := `FROM memberships m JOIN contacts c ON c.id = m.contact_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.ContactID != "" {
		conditions = append(conditions, fmt.Sprintf("m.contact_id = $%d", len(args)+1))
		args = append(args, filter.ContactID)
	}
	if filter.MembershipType != "" {
		conditions = append(conditions, fmt.Sprintf("m.membership_type = $%d", len(args)+1))
		args = append(args, filter.MembershipType)
	}
	if filter.ActiveOn != nil {
		conditions = append(conditions, fmt.Sprintf("m.start_date <= $%d AND m.end_date >= $%d", len(args)+1, len(args)+1))
		args = append(args, *filter.ActiveOn)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT %s, c.first_name || ' ' || c.last_name AS contact_name %s ORDER BY m.end_date DESC LIMIT %d OFFSET %d`, membershipColumns, baseQuery, pageSize, offset)

	var memberships []models.Membership
	if err := r.db.SelectContext(ctx, &memberships, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list memberships: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count memberships: %w", err)
	}

	return memberships, total, nil
}

// ListAll returns every membership joined to contact names, used by the
// export path.
func (r *MembershipRepository) ListAll(ctx context.Context) ([]models.Membership, error) {
	query := fmt.Sprintf(`SELECT %s, c.first_name || ' ' || c.last_name AS contact_name FROM memberships m JOIN contacts c ON c.id = m.contact_id ORDER BY c.last_name ASC, m.end_date DESC`, membershipColumns)
	var memberships []models.Membership
	if err := r.db.SelectContext(ctx, &memberships, query); err != nil {
		return nil, fmt.Errorf("list all memberships: %w", err)
	}
	return memberships, nil
}

// Create inserts a new membership.
func (r *MembershipRepository) Create(ctx context.Context, membership *models.Membership) error {
	if membership.ID == "" {
		membership.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if membership.CreatedAt.IsZero() {
		membership.CreatedAt = now
	}
	membership.UpdatedAt = now

	const query = `INSERT INTO memberships (id, contact_id, membership_type, start_date, end_date, code, notes, created_at, updated_at)
VALUES (:id, :contact_id, :membership_type, :start_date, :end_date, :code, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, membership); err != nil {
		return fmt.Errorf("create membership: %w", err)
	}
	return nil
}

// Update updates the mutable fields of a membership.
func (r *MembershipRepository) Update(ctx context.Context, membership *models.Membership) error {
	membership.UpdatedAt = time.Now().UTC()
	const query = `UPDATE memberships SET membership_type = :membership_type, start_date = :start_date, end_date = :end_date, code = :code, notes = :notes, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, membership)
	if err != nil {
		return fmt.Errorf("update membership: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a membership.
func (r *MembershipRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM memberships WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountActiveOn returns the number of memberships covering the given day.
func (r *MembershipRepository) CountActiveOn(ctx context.Context, day time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM memberships WHERE start_date <= $1 AND end_date >= $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, day); err != nil {
		return 0, fmt.Errorf("count active memberships: %w", err)
	}
	return total, nil
}
