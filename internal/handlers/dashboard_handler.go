package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/services"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/utils"
)

type DashboardHandler struct {
	BaseHandler
	service services.DashboardService
}

func NewDashboardHandler(service services.DashboardService, logger utils.Logger) *DashboardHandler {
	return &DashboardHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ===== DASHBOARD ENDPOINTS =====

// GetDashboardStats returns overall dashboard statistics
// @Summary Get dashboard statistics
// @Description Session totals, completion rate, average score, category accuracy and daily activity
// @Tags dashboard
// @Produce json
// @Param period query int false "Period in days for active users and trends (default: 30, max: 365)"
// @Success 200 {object} services.DashboardStatsResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /dashboard/stats [get]
func (h *DashboardHandler) GetDashboardStats(c *gin.Context) {
	h.LogRequest(c, "Getting dashboard stats")

	// Get period parameter (optional, defaults to 30 days)
	periodStr := c.DefaultQuery("period", "30")
	period, err := strconv.Atoi(periodStr)
	if err != nil || period < 1 {
		period = 30
	}

	stats, err := h.service.GetDashboardStats(c.Request.Context(), period)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// RefreshDashboardStats drops the cached snapshots so the next read recomputes them
// @Summary Refresh dashboard statistics
// @Tags dashboard
// @Success 204
// @Router /dashboard/stats/refresh [post]
func (h *DashboardHandler) RefreshDashboardStats(c *gin.Context) {
	h.LogRequest(c, "Refreshing dashboard stats")

	h.service.Invalidate()
	c.Status(http.StatusNoContent)
}
