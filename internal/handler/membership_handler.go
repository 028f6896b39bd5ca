package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wildrock/crm-api/internal/dto"
	"github.com/wildrock/crm-api/internal/models"
	"github.com/wildrock/crm-api/internal/service"
	appErrors "github.com/wildrock/crm-api/pkg/errors"
	"github.com/wildrock/crm-api/pkg/response"
)

// MembershipHandler exposes membership endpoints.
type MembershipHandler struct {
	memberships *service.MembershipService
}

// NewMembershipHandler constructs MembershipHandler.
func NewMembershipHandler(memberships *service.MembershipService) *MembershipHandler {
	return &MembershipHandler{memberships: memberships}
}

// List returns memberships filtered by contact, type, and active date.
func (h *MembershipHandler) List(c *gin.Context) {
	var filter models.MembershipFilter
	filter.ContactID = c.Query("contact_id")
	filter.MembershipType = c.Query("type")

	activeOn, ok := parseDateQuery(c, "active_on")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "active_on must be in YYYY-MM-DD format"))
		return
	}
	filter.ActiveOn = activeOn

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	memberships, pagination, err := h.memberships.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, memberships, pagination)
}

// Get returns one membership.
func (h *MembershipHandler) Get(c *gin.Context) {
	membership, err := h.memberships.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, membership, nil)
}

// Create adds a membership for a contact.
func (h *MembershipHandler) Create(c *gin.Context) {
	var req dto.CreateMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	membership, err := h.memberships.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, membership)
}

// Update replaces a membership's fields.
func (h *MembershipHandler) Update(c *gin.Context) {
	var req dto.UpdateMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	membership, err := h.memberships.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, membership, nil)
}

// Delete removes a membership.
func (h *MembershipHandler) Delete(c *gin.Context) {
	if err := h.memberships.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export streams the membership roster as CSV or PDF.
func (h *MembershipHandler) Export(c *gin.Context) {
	var req dto.ExportMembershipsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.memberships.Export(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
