package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/wildrock/crm-api/internal/models"
)

// ErrDuplicateMember marks an attempt to add a contact to an entity it
// already belongs to with the same role.
var ErrDuplicateMember = fmt.Errorf("contact already linked to entity with this role")

// EntityRepository provides database access for relationship entities,
// their members, and relationship types.
type EntityRepository struct {
	db *sqlx.DB
}

// NewEntityRepository creates a new instance of EntityRepository.
func NewEntityRepository(db *sqlx.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

// FindByID returns an entity by identifier.
func (r *EntityRepository) FindByID(ctx context.Context, id string) (*models.Entity, error) {
	const query = `
SELECT e.id, e.name, e.entity_type, e.notes, e.created_at, e.updated_at,
	(SELECT COUNT(*) FROM contact_entity_roles cer WHERE cer.entity_id = e.id) AS member_count
FROM entities e WHERE e.id = $1 LIMIT 1`
	var entity models.Entity
	if err := r.db.GetContext(ctx, &entity, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find entity by id: %w", err)
	}
	return &entity, nil
}

// List returns entities based on filters with total count.
func (r *EntityRepository) List(ctx context.Context, filter models.EntityFilter) ([]models.Entity, int, error) {
	baseQuery := `FROM entities e WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.EntityType != "" {
		conditions = append(conditions, fmt.Sprintf("e.entity_type = $%d", len(args)+1))
		args = append(args, filter.EntityType)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(e.name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`
SELECT e.id, e.name, e.entity_type, e.notes, e.created_at, e.updated_at,
	(SELECT COUNT(*) FROM contact_entity_roles cer WHERE cer.entity_id = e.id) AS member_count
%s ORDER BY e.name ASC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	var entities []models.Entity
	if err := r.db.SelectContext(ctx, &entities, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list entities: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count entities: %w", err)
	}

	return entities, total, nil
}

// Create inserts a new entity.
func (r *EntityRepository) Create(ctx context.Context, entity *models.Entity) error {
	if entity.ID == "" {
		entity.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = now
	}
	entity.UpdatedAt = now

	const query = `INSERT INTO entities (id, name, entity_type, notes, created_at, updated_at)
VALUES (:id, :name, :entity_type, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entity); err != nil {
		return fmt.Errorf("create entity: %w", err)
	}
	return nil
}

// Update updates the mutable fields of an entity.
func (r *EntityRepository) Update(ctx context.Context, entity *models.Entity) error {
	entity.UpdatedAt = time.Now().UTC()
	const query = `UPDATE entities SET name = :name, notes = :notes, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, entity)
	if err != nil {
		return fmt.Errorf("update entity: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an entity and its member links.
func (r *EntityRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin entity delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM contact_entity_roles WHERE entity_id = $1`, id); err != nil {
		return fmt.Errorf("delete entity members: %w", err)
	}
	var result sql.Result
	if result, err = tx.ExecContext(ctx, `DELETE FROM entities WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	if affected, raErr := result.RowsAffected(); raErr == nil && affected == 0 {
		err = sql.ErrNoRows
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit entity delete: %w", err)
	}
	return nil
}

// ListMembers returns the member links of an entity with display names.
func (r *EntityRepository) ListMembers(ctx context.Context, entityID string) ([]models.ContactEntityRole, error) {
	const query = `
SELECT cer.id, cer.contact_id, cer.entity_id, cer.relationship_type_id, cer.created_at,
	c.first_name || ' ' || c.last_name AS contact_name,
	rt.name AS relationship_name
FROM contact_entity_roles cer
JOIN contacts c ON c.id = cer.contact_id
JOIN relationship_types rt ON rt.id = cer.relationship_type_id
WHERE cer.entity_id = $1
ORDER BY c.last_name ASC`
	var members []models.ContactEntityRole
	if err := r.db.SelectContext(ctx, &members, query, entityID); err != nil {
		return nil, fmt.Errorf("list entity members: %w", err)
	}
	return members, nil
}

// AddMember links a contact to an entity with a role. A unique
// constraint on (contact_id, entity_id, relationship_type_id) guards
// duplicates.
func (r *EntityRepository) AddMember(ctx context.Context, role *models.ContactEntityRole) error {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	if role.CreatedAt.IsZero() {
		role.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO contact_entity_roles (id, contact_id, entity_id, relationship_type_id, created_at)
VALUES (:id, :contact_id, :entity_id, :relationship_type_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, role); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateMember
		}
		return fmt.Errorf("add entity member: %w", err)
	}
	return nil
}

// RemoveMember unlinks a contact from an entity.
func (r *EntityRepository) RemoveMember(ctx context.Context, roleID string) error {
	const query = `DELETE FROM contact_entity_roles WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, roleID)
	if err != nil {
		return fmt.Errorf("remove entity member: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListRelationshipTypes returns role definitions, optionally scoped to
// an entity type.
func (r *EntityRepository) ListRelationshipTypes(ctx context.Context, entityType models.EntityType) ([]models.RelationshipType, error) {
	query := `SELECT id, entity_type, name, is_default, created_at FROM relationship_types`
	var args []interface{}
	if entityType != "" {
		query += ` WHERE entity_type = $1`
		args = append(args, entityType)
	}
	query += ` ORDER BY entity_type ASC, name ASC`

	var types []models.RelationshipType
	if err := r.db.SelectContext(ctx, &types, query, args...); err != nil {
		return nil, fmt.Errorf("list relationship types: %w", err)
	}
	return types, nil
}

// FindRelationshipTypeByName returns a role by name within an entity
// type. The match is case-insensitive.
func (r *EntityRepository) FindRelationshipTypeByName(ctx context.Context, entityType models.EntityType, name string) (*models.RelationshipType, error) {
	const query = `SELECT id, entity_type, name, is_default, created_at FROM relationship_types WHERE entity_type = $1 AND LOWER(name) = LOWER($2) LIMIT 1`
	var rt models.RelationshipType
	if err := r.db.GetContext(ctx, &rt, query, entityType, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find relationship type by name: %w", err)
	}
	return &rt, nil
}

// FindDefaultRelationshipType returns the default role for an entity type.
func (r *EntityRepository) FindDefaultRelationshipType(ctx context.Context, entityType models.EntityType) (*models.RelationshipType, error) {
	const query = `SELECT id, entity_type, name, is_default, created_at FROM relationship_types WHERE entity_type = $1 AND is_default = TRUE LIMIT 1`
	var rt models.RelationshipType
	if err := r.db.GetContext(ctx, &rt, query, entityType); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find default relationship type: %w", err)
	}
	return &rt, nil
}

// CreateRelationshipType inserts a role definition. Names are unique
// per entity type.
func (r *EntityRepository) CreateRelationshipType(ctx context.Context, rt *models.RelationshipType) error {
	if rt.ID == "" {
		rt.ID = uuid.NewString()
	}
	if rt.CreatedAt.IsZero() {
		rt.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO relationship_types (id, entity_type, name, is_default, created_at)
VALUES (:id, :entity_type, :name, :is_default, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("relationship type %q already exists for %s: %w", rt.Name, rt.EntityType, err)
		}
		return fmt.Errorf("create relationship type: %w", err)
	}
	return nil
}
