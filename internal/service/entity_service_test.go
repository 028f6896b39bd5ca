package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildrock/crm-api/internal/dto"
	"github.com/wildrock/crm-api/internal/models"
	"github.com/wildrock/crm-api/internal/repository"
	appErrors "github.com/wildrock/crm-api/pkg/errors"
)

type entityStoreStub struct {
	byID         map[string]*models.Entity
	defaultRoles map[models.EntityType]*models.RelationshipType
	namedRoles   map[string]*models.RelationshipType
	createdRoles []*models.RelationshipType
	addedRoles   []*models.ContactEntityRole
	addMemberErr error
}

func (s *entityStoreStub) FindByID(ctx context.Context, id string) (*models.Entity, error) {
	if e, ok := s.byID[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (s *entityStoreStub) List(ctx context.Context, filter models.EntityFilter) ([]models.Entity, int, error) {
	return nil, 0, nil
}

func (s *entityStoreStub) Create(ctx context.Context, entity *models.Entity) error {
	entity.ID = "entity-new"
	return nil
}

func (s *entityStoreStub) Update(ctx context.Context, entity *models.Entity) error {
	return nil
}

func (s *entityStoreStub) Delete(ctx context.Context, id string) error {
	return nil
}

func (s *entityStoreStub) ListMembers(ctx context.Context, entityID string) ([]models.ContactEntityRole, error) {
	return nil, nil
}

func (s *entityStoreStub) AddMember(ctx context.Context, role *models.ContactEntityRole) error {
	if s.addMemberErr != nil {
		return s.addMemberErr
	}
	role.ID = "role-new"
	s.addedRoles = append(s.addedRoles, role)
	return nil
}

func (s *entityStoreStub) RemoveMember(ctx context.Context, roleID string) error {
	return nil
}

func (s *entityStoreStub) ListRelationshipTypes(ctx context.Context, entityType models.EntityType) ([]models.RelationshipType, error) {
	return nil, nil
}

func (s *entityStoreStub) FindDefaultRelationshipType(ctx context.Context, entityType models.EntityType) (*models.RelationshipType, error) {
	if rt, ok := s.defaultRoles[entityType]; ok {
		return rt, nil
	}
	return nil, sql.ErrNoRows
}

func (s *entityStoreStub) FindRelationshipTypeByName(ctx context.Context, entityType models.EntityType, name string) (*models.RelationshipType, error) {
	if rt, ok := s.namedRoles[name]; ok && rt.EntityType == entityType {
		return rt, nil
	}
	return nil, sql.ErrNoRows
}

func (s *entityStoreStub) CreateRelationshipType(ctx context.Context, rt *models.RelationshipType) error {
	rt.ID = "rt-new"
	s.createdRoles = append(s.createdRoles, rt)
	return nil
}

func householdEntityStub() *entityStoreStub {
	return &entityStoreStub{
		byID: map[string]*models.Entity{
			"entity-1": {ID: "entity-1", Name: "Alder Household", EntityType: models.EntityHousehold},
		},
		defaultRoles: map[models.EntityType]*models.RelationshipType{
			models.EntityHousehold: {ID: "rt-member", EntityType: models.EntityHousehold, Name: "Member", IsDefault: true},
		},
	}
}

func TestAddMemberUsesDefaultRole(t *testing.T) {
	store := householdEntityStub()
	svc := NewEntityService(store, nil, nil, nil)

	role, err := svc.AddMember(context.Background(), "entity-1", dto.AddEntityMemberRequest{
		ContactID: "0b9fcb4e-03a4-4a9f-9976-35d4e0a0ac05",
	}, testClaims())
	require.NoError(t, err)
	assert.Equal(t, "rt-member", role.RelationshipTypeID)
}

func TestAddMemberExplicitRoleWins(t *testing.T) {
	store := householdEntityStub()
	svc := NewEntityService(store, nil, nil, nil)

	explicit := "8a2fd0e2-43f1-4a2a-a0b7-2c91d8a01b44"
	role, err := svc.AddMember(context.Background(), "entity-1", dto.AddEntityMemberRequest{
		ContactID:          "0b9fcb4e-03a4-4a9f-9976-35d4e0a0ac05",
		RelationshipTypeID: &explicit,
	}, testClaims())
	require.NoError(t, err)
	assert.Equal(t, explicit, role.RelationshipTypeID)
}

func TestAddMemberReusesExistingNamedRole(t *testing.T) {
	store := householdEntityStub()
	store.namedRoles = map[string]*models.RelationshipType{
		"Guardian": {ID: "rt-guardian", EntityType: models.EntityHousehold, Name: "Guardian"},
	}
	svc := NewEntityService(store, nil, nil, nil)

	name := "Guardian"
	role, err := svc.AddMember(context.Background(), "entity-1", dto.AddEntityMemberRequest{
		ContactID: "0b9fcb4e-03a4-4a9f-9976-35d4e0a0ac05",
		RoleName:  &name,
	}, testClaims())
	require.NoError(t, err)
	assert.Equal(t, "rt-guardian", role.RelationshipTypeID)
	assert.Empty(t, store.createdRoles)
}

func TestAddMemberCreatesUnknownNamedRole(t *testing.T) {
	store := householdEntityStub()
	svc := NewEntityService(store, nil, nil, nil)

	name := "Emergency Contact"
	role, err := svc.AddMember(context.Background(), "entity-1", dto.AddEntityMemberRequest{
		ContactID: "0b9fcb4e-03a4-4a9f-9976-35d4e0a0ac05",
		RoleName:  &name,
	}, testClaims())
	require.NoError(t, err)
	assert.Equal(t, "rt-new", role.RelationshipTypeID)
	require.Len(t, store.createdRoles, 1)
	assert.Equal(t, "Emergency Contact", store.createdRoles[0].Name)
	assert.Equal(t, models.EntityHousehold, store.createdRoles[0].EntityType)
}

func TestAddMemberDuplicateMapsToConflict(t *testing.T) {
	store := householdEntityStub()
	store.addMemberErr = repository.ErrDuplicateMember
	svc := NewEntityService(store, nil, nil, nil)

	_, err := svc.AddMember(context.Background(), "entity-1", dto.AddEntityMemberRequest{
		ContactID: "0b9fcb4e-03a4-4a9f-9976-35d4e0a0ac05",
	}, testClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAddMemberMissingDefaultRoleFails(t *testing.T) {
	store := householdEntityStub()
	delete(store.defaultRoles, models.EntityHousehold)
	svc := NewEntityService(store, nil, nil, nil)

	_, err := svc.AddMember(context.Background(), "entity-1", dto.AddEntityMemberRequest{
		ContactID: "0b9fcb4e-03a4-4a9f-9976-35d4e0a0ac05",
	}, testClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateEntityRejectsUnknownType(t *testing.T) {
	svc := NewEntityService(householdEntityStub(), nil, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateEntityRequest{
		Name:       "Somewhere",
		EntityType: models.EntityType("club"),
	}, testClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpdateEntityKeepsType(t *testing.T) {
	store := householdEntityStub()
	audit := &auditStub{}
	svc := NewEntityService(store, audit, nil, nil)

	entity, err := svc.Update(context.Background(), "entity-1", dto.UpdateEntityRequest{Name: "Alder Family"}, testClaims())
	require.NoError(t, err)
	assert.Equal(t, "Alder Family", entity.Name)
	assert.Equal(t, models.EntityHousehold, entity.EntityType)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionEntityUpdate, audit.logs[0].Action)
}
