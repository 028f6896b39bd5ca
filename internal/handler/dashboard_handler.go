package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wildrock/crm-api/internal/service"
	"github.com/wildrock/crm-api/pkg/response"
)

// DashboardHandler exposes the landing-page summary.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Summary returns cached aggregate counts for the dashboard.
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, err := h.dashboard.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
