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
	"github.com/wildrock/crm-api/internal/schema"
)

// BookingRepository provides database access for synced bookings and
// their report annotations.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new instance of BookingRepository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `b.id, b.contact_id, b.title, b.booking_type, b.category, b.date, b.timeslot, b.kids_count, b.status, b.form_responses, b.cal_uid, b.created_at, b.updated_at`

// FindByID returns a booking by identifier.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings b WHERE b.id = $1 LIMIT 1`, bookingColumns)
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find booking by id: %w", err)
	}
	return &booking, nil
}

// FindByCalUID returns a booking by its external scheduling UID.
func (r *BookingRepository) FindByCalUID(ctx context.Context, uid string) (*models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings b WHERE b.cal_uid = $1 LIMIT 1`, bookingColumns)
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, uid); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find booking by cal uid: %w", err)
	}
	return &booking, nil
}

// List returns bookings based on filters with total count, joined to
// the contact display name.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	baseQuery := `FROM bookings b LEFT JOIN contacts c ON c.id = b.contact_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("b.category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.ContactID != "" {
		conditions = append(conditions, fmt.Sprintf("b.contact_id = $%d", len(args)+1))
		args = append(args, filter.ContactID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("b.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("b.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
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

	listQuery := fmt.Sprintf(`SELECT %s, c.first_name || ' ' || c.last_name AS contact_name %s ORDER BY b.date DESC LIMIT %d OFFSET %d`, bookingColumns, baseQuery, pageSize, offset)

	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	return bookings, total, nil
}

// BookingReportRow joins a booking to its report annotation for the
// report projection.
type BookingReportRow struct {
	models.Booking
	AnnotationData schema.FieldValues `db:"annotation_data"`
}

// ListForReport returns bookings of a category within the date bounds,
// each joined to its annotation and contact name, ordered by date.
func (r *BookingRepository) ListForReport(ctx context.Context, category string, from, to *time.Time) ([]BookingReportRow, error) {
	query := strings.Builder{}
	fmt.Fprintf(&query, `
SELECT %s,
	c.first_name || ' ' || c.last_name AS contact_name,
	COALESCE(a.data, '{}'::jsonb) AS annotation_data
FROM bookings b
LEFT JOIN contacts c ON c.id = b.contact_id
LEFT JOIN booking_report_annotations a ON a.booking_id = b.id
WHERE b.category = $1`, bookingColumns)

	args := []interface{}{category}
	if from != nil {
		args = append(args, *from)
		fmt.Fprintf(&query, " AND b.date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		fmt.Fprintf(&query, " AND b.date <= $%d", len(args))
	}
	query.WriteString("\nORDER BY b.date ASC")

	var rows []BookingReportRow
	if err := r.db.SelectContext(ctx, &rows, query.String(), args...); err != nil {
		return nil, fmt.Errorf("list bookings for report: %w", err)
	}
	return rows, nil
}

// Create inserts a booking delivered by the scheduling webhook.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	const query = `INSERT INTO bookings (id, contact_id, title, booking_type, category, date, timeslot, kids_count, status, form_responses, cal_uid, created_at, updated_at)
VALUES (:id, :contact_id, :title, :booking_type, :category, :date, :timeslot, :kids_count, :status, :form_responses, :cal_uid, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// UpdateFromSync refreshes the synced fields of an existing booking.
func (r *BookingRepository) UpdateFromSync(ctx context.Context, booking *models.Booking) error {
	booking.UpdatedAt = time.Now().UTC()
	const query = `UPDATE bookings SET contact_id = :contact_id, title = :title, category = :category, date = :date, timeslot = :timeslot, kids_count = :kids_count, status = :status, form_responses = :form_responses, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		return fmt.Errorf("update booking from sync: %w", err)
	}
	return nil
}

// GetAnnotation returns the report annotation for a booking, if any.
func (r *BookingRepository) GetAnnotation(ctx context.Context, bookingID string) (*models.BookingReportAnnotation, error) {
	const query = `SELECT booking_id, data, updated_at FROM booking_report_annotations WHERE booking_id = $1 LIMIT 1`
	var annotation models.BookingReportAnnotation
	if err := r.db.GetContext(ctx, &annotation, query, bookingID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get booking annotation: %w", err)
	}
	return &annotation, nil
}

// UpsertAnnotation replaces the annotation data for a booking. Only the
// annotation row is written; the booking itself is never touched.
func (r *BookingRepository) UpsertAnnotation(ctx context.Context, bookingID string, data schema.FieldValues) error {
	const query = `INSERT INTO booking_report_annotations (booking_id, data, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (booking_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, bookingID, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert booking annotation: %w", err)
	}
	return nil
}

// CountUpcoming returns the number of bookings on or after the given day.
func (r *BookingRepository) CountUpcoming(ctx context.Context, day time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM bookings WHERE date >= $1 AND status <> 'cancelled'`
	var total int
	if err := r.db.GetContext(ctx, &total, query, day); err != nil {
		return 0, fmt.Errorf("count upcoming bookings: %w", err)
	}
	return total, nil
}
