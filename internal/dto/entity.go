package dto

import "github.com/wildrock/crm-api/internal/models"

// CreateEntityRequest is the payload for creating an entity.
type CreateEntityRequest struct {
	Name       string            `json:"name" validate:"required"`
	EntityType models.EntityType `json:"entity_type" validate:"required"`
	Notes      *string           `json:"notes"`
}

// UpdateEntityRequest is the payload for updating an entity.
type UpdateEntityRequest struct {
	Name  string  `json:"name" validate:"required"`
	Notes *string `json:"notes"`
}

// AddEntityMemberRequest links a contact to an entity. The role is
// resolved from relationship_type_id, then role_name (created in the
// catalog if new), then the entity type's default role.
type AddEntityMemberRequest struct {
	ContactID          string  `json:"contact_id" validate:"required,uuid"`
	RelationshipTypeID *string `json:"relationship_type_id" validate:"omitempty,uuid"`
	RoleName           *string `json:"role_name" validate:"omitempty,min=1,max=100"`
}

// CreateRelationshipTypeRequest defines a new role name for an entity type.
type CreateRelationshipTypeRequest struct {
	EntityType models.EntityType `json:"entity_type" validate:"required"`
	Name       string            `json:"name" validate:"required"`
	IsDefault  bool              `json:"is_default"`
}
