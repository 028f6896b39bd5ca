package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wildrock/crm-api/internal/dto"
	"github.com/wildrock/crm-api/internal/models"
	"github.com/wildrock/crm-api/internal/service"
	appErrors "github.com/wildrock/crm-api/pkg/errors"
	"github.com/wildrock/crm-api/pkg/response"
)

// EntityHandler exposes relationship entity endpoints.
type EntityHandler struct {
	entities *service.EntityService
}

// NewEntityHandler constructs EntityHandler.
func NewEntityHandler(entities *service.EntityService) *EntityHandler {
	return &EntityHandler{entities: entities}
}

// List returns entities filtered by type and search.
func (h *EntityHandler) List(c *gin.Context) {
	var filter models.EntityFilter
	filter.EntityType = models.EntityType(c.Query("type"))
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	entities, pagination, err := h.entities.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entities, pagination)
}

// Get returns one entity.
func (h *EntityHandler) Get(c *gin.Context) {
	entity, err := h.entities.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entity, nil)
}

// Create adds a new entity.
func (h *EntityHandler) Create(c *gin.Context) {
	var req dto.CreateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entity, err := h.entities.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entity)
}

// Update changes an entity's name and notes.
func (h *EntityHandler) Update(c *gin.Context) {
	var req dto.UpdateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entity, err := h.entities.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entity, nil)
}

// Delete removes an entity and its member links.
func (h *EntityHandler) Delete(c *gin.Context) {
	if err := h.entities.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Members lists an entity's member links.
func (h *EntityHandler) Members(c *gin.Context) {
	members, err := h.entities.ListMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members, nil)
}

// AddMember links a contact to the entity.
func (h *EntityHandler) AddMember(c *gin.Context) {
	var req dto.AddEntityMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	role, err := h.entities.AddMember(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, role)
}

// RemoveMember unlinks a contact from the entity.
func (h *EntityHandler) RemoveMember(c *gin.Context) {
	if err := h.entities.RemoveMember(c.Request.Context(), c.Param("id"), c.Param("memberId"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RelationshipTypes lists role definitions, optionally for one entity type.
func (h *EntityHandler) RelationshipTypes(c *gin.Context) {
	types, err := h.entities.ListRelationshipTypes(c.Request.Context(), models.EntityType(c.Query("type")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

// CreateRelationshipType defines a new role name for an entity type.
func (h *EntityHandler) CreateRelationshipType(c *gin.Context) {
	var req dto.CreateRelationshipTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	rt, err := h.entities.CreateRelationshipType(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rt)
}
