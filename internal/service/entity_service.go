package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/wildrock/crm-api/internal/dto"
	"github.com/wildrock/crm-api/internal/models"
	"github.com/wildrock/crm-api/internal/repository"
	appErrors "github.com/wildrock/crm-api/pkg/errors"
)

const entityResource = "entity"

type entityStore interface {
	FindByID(ctx context.Context, id string) (*models.Entity, error)
	List(ctx context.Context, filter models.EntityFilter) ([]models.Entity, int, error)
	Create(ctx context.Context, entity *models.Entity) error
	Update(ctx context.Context, entity *models.Entity) error
	Delete(ctx context.Context, id string) error
	ListMembers(ctx context.Context, entityID string) ([]models.ContactEntityRole, error)
	AddMember(ctx context.Context, role *models.ContactEntityRole) error
	RemoveMember(ctx context.Context, roleID string) error
	ListRelationshipTypes(ctx context.Context, entityType models.EntityType) ([]models.RelationshipType, error)
	FindDefaultRelationshipType(ctx context.Context, entityType models.EntityType) (*models.RelationshipType, error)
	FindRelationshipTypeByName(ctx context.Context, entityType models.EntityType, name string) (*models.RelationshipType, error)
	CreateRelationshipType(ctx context.Context, rt *models.RelationshipType) error
}

// EntityService manages relationship entities, their members, and role
// definitions.
type EntityService struct {
	repo      entityStore
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEntityService builds an EntityService.
func NewEntityService(repo entityStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *EntityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntityService{
		repo:      repo,
		audit:     audit,
		validator: validate,
		logger:    logger,
	}
}

// List returns entities with pagination metadata.
func (s *EntityService) List(ctx context.Context, filter models.EntityFilter) ([]models.Entity, *models.Pagination, error) {
	if filter.EntityType != "" && !filter.EntityType.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown entity type")
	}
	entities, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list entities")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return entities, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns one entity by id.
func (s *EntityService) Get(ctx context.Context, id string) (*models.Entity, error) {
	entity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "entity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load entity")
	}
	return entity, nil
}

// Create stores a new entity.
func (s *EntityService) Create(ctx context.Context, req dto.CreateEntityRequest, actor *models.JWTClaims) (*models.Entity, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid entity payload")
	}
	if !req.EntityType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown entity type")
	}

	entity := &models.Entity{
		Name:       req.Name,
		EntityType: req.EntityType,
		Notes:      req.Notes,
	}
	if err := s.repo.Create(ctx, entity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create entity")
	}

	s.emitAudit(ctx, actor, models.AuditActionEntityCreate, entity.ID, nil, entity)
	return entity, nil
}

// Update changes the mutable fields of an entity. The entity type is
// fixed at creation.
func (s *EntityService) Update(ctx context.Context, id string, req dto.UpdateEntityRequest, actor *models.JWTClaims) (*models.Entity, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid entity payload")
	}

	entity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "entity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load entity")
	}

	previous := *entity
	entity.Name = req.Name
	entity.Notes = req.Notes

	if err := s.repo.Update(ctx, entity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "entity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update entity")
	}

	s.emitAudit(ctx, actor, models.AuditActionEntityUpdate, entity.ID, &previous, entity)
	return entity, nil
}

// Delete removes an entity and its member links.
func (s *EntityService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "entity not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete entity")
	}
	s.emitAudit(ctx, actor, models.AuditActionEntityDelete, id, nil, nil)
	return nil
}

// ListMembers returns an entity's member links with display names.
func (s *EntityService) ListMembers(ctx context.Context, entityID string) ([]models.ContactEntityRole, error) {
	if _, err := s.Get(ctx, entityID); err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(ctx, entityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list entity members")
	}
	return members, nil
}

// AddMember links a contact to an entity. The role comes from an
// explicit relationship_type_id, or from role_name (added to the
// catalog when new), or from the entity type's default role.
func (s *EntityService) AddMember(ctx context.Context, entityID string, req dto.AddEntityMemberRequest, actor *models.JWTClaims) (*models.ContactEntityRole, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid member payload")
	}

	entity, err := s.Get(ctx, entityID)
	if err != nil {
		return nil, err
	}

	relationshipTypeID := ""
	switch {
	case req.RelationshipTypeID != nil:
		relationshipTypeID = *req.RelationshipTypeID
	case req.RoleName != nil && *req.RoleName != "":
		existing, err := s.repo.FindRelationshipTypeByName(ctx, entity.EntityType, *req.RoleName)
		if err == nil {
			relationshipTypeID = existing.ID
			break
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve role by name")
		}
		rt := &models.RelationshipType{EntityType: entity.EntityType, Name: *req.RoleName}
		if err := s.repo.CreateRelationshipType(ctx, rt); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create role")
		}
		relationshipTypeID = rt.ID
	default:
		defaultType, err := s.repo.FindDefaultRelationshipType(ctx, entity.EntityType)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "no default role exists for this entity type; specify relationship_type_id")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve default role")
		}
		relationshipTypeID = defaultType.ID
	}

	role := &models.ContactEntityRole{
		ContactID:          req.ContactID,
		EntityID:           entityID,
		RelationshipTypeID: relationshipTypeID,
	}
	if err := s.repo.AddMember(ctx, role); err != nil {
		if errors.Is(err, repository.ErrDuplicateMember) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "contact already has this role in the entity")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add entity member")
	}

	s.emitAudit(ctx, actor, models.AuditActionEntityUpdate, entityID, nil, role)
	return role, nil
}

// RemoveMember unlinks a contact from an entity.
func (s *EntityService) RemoveMember(ctx context.Context, entityID, roleID string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.repo.RemoveMember(ctx, roleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "entity member not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove entity member")
	}
	s.emitAudit(ctx, actor, models.AuditActionEntityUpdate, entityID, nil, map[string]string{"removed_role_id": roleID})
	return nil
}

// ListRelationshipTypes returns role definitions, optionally scoped to
// an entity type.
func (s *EntityService) ListRelationshipTypes(ctx context.Context, entityType models.EntityType) ([]models.RelationshipType, error) {
	if entityType != "" && !entityType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown entity type")
	}
	types, err := s.repo.ListRelationshipTypes(ctx, entityType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list relationship types")
	}
	return types, nil
}

// CreateRelationshipType defines a new role name for an entity type.
func (s *EntityService) CreateRelationshipType(ctx context.Context, req dto.CreateRelationshipTypeRequest, actor *models.JWTClaims) (*models.RelationshipType, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid relationship type payload")
	}
	if !req.EntityType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown entity type")
	}

	rt := &models.RelationshipType{
		EntityType: req.EntityType,
		Name:       req.Name,
		IsDefault:  req.IsDefault,
	}
	if err := s.repo.CreateRelationshipType(ctx, rt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create relationship type")
	}
	return rt, nil
}

func (s *EntityService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, oldValue, newValue interface{}) {
	if s.audit == nil {
		return
	}
	var oldValues, newValues []byte
	if oldValue != nil {
		oldValues, _ = json.Marshal(oldValue)
	}
	if newValue != nil {
		newValues, _ = json.Marshal(newValue)
	}
	var userID *string
	if actor != nil {
		userID = &actor.UserID
	}
	log := &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   entityResource,
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "entity-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record entity audit", zap.Error(err))
	}
}
