package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wildrock/crm-api/internal/models"
	"github.com/wildrock/crm-api/internal/service"
	appErrors "github.com/wildrock/crm-api/pkg/errors"
	"github.com/wildrock/crm-api/pkg/response"
)

// BookingHandler exposes read endpoints for synced bookings.
type BookingHandler struct {
	bookings *service.BookingService
}

// NewBookingHandler constructs BookingHandler.
func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// List returns bookings filtered by category, contact, and date range.
func (h *BookingHandler) List(c *gin.Context) {
	var filter models.BookingFilter
	filter.Category = c.Query("category")
	filter.ContactID = c.Query("contact_id")

	from, ok := parseDateQuery(c, "from")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be in YYYY-MM-DD format"))
		return
	}
	filter.DateFrom = from

	to, ok := parseDateQuery(c, "to")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be in YYYY-MM-DD format"))
		return
	}
	filter.DateTo = to

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	bookings, pagination, err := h.bookings.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, pagination)
}

// Get returns one booking.
func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}
