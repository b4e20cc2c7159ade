package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/services"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/utils"
)

// MistakeHandler serves the caller's mistake pattern reports
type MistakeHandler struct {
	BaseHandler
	mistakeService services.MistakeService
	exportService  services.ExportService
}

func NewMistakeHandler(mistakeService services.MistakeService, exportService services.ExportService, logger utils.Logger) *MistakeHandler {
	return &MistakeHandler{
		BaseHandler:    NewBaseHandler(logger),
		mistakeService: mistakeService,
		exportService:  exportService,
	}
}

// GetPatterns returns mistake counts by type, category and difficulty
// @Summary Get mistake patterns
// @Tags mistakes
// @Produce json
// @Success 200 {object} analytics.PatternReport
// @Router /mistakes/patterns [get]
func (h *MistakeHandler) GetPatterns(c *gin.Context) {
	h.LogRequest(c, "Getting mistake patterns")

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	report, err := h.mistakeService.GetPatternReport(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetRemediation returns the remediation plan
// @Summary Get remediation plan
// @Tags mistakes
// @Produce json
// @Success 200 {object} analytics.RemediationPlan
// @Router /mistakes/remediation [get]
func (h *MistakeHandler) GetRemediation(c *gin.Context) {
	h.LogRequest(c, "Getting remediation plan")

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	plan, err := h.mistakeService.GetRemediationPlan(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}

// GetFrequency returns the most frequently missed questions
// @Summary Get mistake frequency
// @Tags mistakes
// @Produce json
// @Success 200 {array} analytics.MistakeFrequency
// @Router /mistakes/frequency [get]
func (h *MistakeHandler) GetFrequency(c *gin.Context) {
	h.LogRequest(c, "Getting mistake frequency")

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	freq, err := h.mistakeService.GetMistakeFrequency(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, freq)
}

// GetSystematicErrors returns the same wrong answer given repeatedly
// @Summary Get systematic errors
// @Tags mistakes
// @Produce json
// @Success 200 {array} analytics.SystematicError
// @Router /mistakes/systematic [get]
func (h *MistakeHandler) GetSystematicErrors(c *gin.Context) {
	h.LogRequest(c, "Getting systematic errors")

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	systematic, err := h.mistakeService.GetSystematicErrors(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, systematic)
}

// ExportReport downloads all mistake reports as one workbook
// @Summary Export mistake report
// @Tags mistakes
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Router /mistakes/export [get]
func (h *MistakeHandler) ExportReport(c *gin.Context) {
	h.LogRequest(c, "Exporting mistake report")

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	data, filename, err := h.exportService.ExportMistakeReport(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.sendWorkbook(c, data, filename)
}

// ClassifyAnswer classifies a single answer without storing it. Teachers and admins only.
// @Summary Classify answer
// @Tags mistakes
// @Accept json
// @Produce json
// @Param answer body services.ClassifyAnswerRequest true "Answer"
// @Success 200 {object} services.ClassifyAnswerResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /mistakes/classify [post]
func (h *MistakeHandler) ClassifyAnswer(c *gin.Context) {
	h.LogRequest(c, "Classifying answer")

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req services.ClassifyAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	resp, err := h.mistakeService.ClassifyAnswer(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
