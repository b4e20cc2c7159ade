package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/models"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/services"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/utils"
)

type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
	exportService  services.ExportService
}

func NewSessionHandler(
	sessionService services.SessionService,
	exportService services.ExportService,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		exportService:  exportService,
	}
}

// StartSession starts a new quiz session
// @Summary Start quiz session
// @Description Draws random questions matching the filters and opens a session
// @Tags sessions
// @Accept json
// @Produce json
// @Param session body services.StartSessionRequest true "Session filters"
// @Success 201 {object} services.SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /sessions [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	h.LogRequest(c, "Starting quiz session")

	var req services.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Start(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// ListSessions lists the caller's sessions
// @Summary List quiz sessions
// @Tags sessions
// @Produce json
// @Param page query int false "Page number (default 1)"
// @Param size query int false "Page size (default 20, max 100)"
// @Param status query string false "active or completed"
// @Param category query string false "Category filter"
// @Param date_from query string false "Started at or after"
// @Param date_to query string false "Started at or before"
// @Success 200 {object} services.SessionListResponse
// @Router /sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	h.LogRequest(c, "Listing quiz sessions")

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	filters, ok := h.parseSessionFilters(c)
	if !ok {
		return
	}

	list, err := h.sessionService.ListSessions(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// GetSession returns one session with its questions
// @Summary Get quiz session
// @Tags sessions
// @Produce json
// @Param id path uint true "Session ID"
// @Success 200 {object} services.SessionResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Getting quiz session", "session_id", id)

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.GetSession(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// SubmitAnswer records the answer to one question of an active session
// @Summary Submit answer
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path uint true "Session ID"
// @Param answer body services.SubmitAnswerRequest true "Answer"
// @Success 201 {object} services.AnswerResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/answers [post]
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Submitting answer", "session_id", id)

	var req services.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	answer, err := h.sessionService.SubmitAnswer(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, answer)
}

// RecordProctoringEvent stores a proctoring signal for a session
// @Summary Record proctoring event
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path uint true "Session ID"
// @Param event body services.ProctoringEventRequest true "Event"
// @Success 201 {object} services.ProctoringResponse
// @Router /sessions/{id}/proctoring [post]
func (h *SessionHandler) RecordProctoringEvent(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Recording proctoring event", "session_id", id)

	var req services.ProctoringEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	resp, err := h.sessionService.RecordProctoringEvent(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// CompleteSession finishes a session and generates its analytics
// @Summary Complete quiz session
// @Tags sessions
// @Produce json
// @Param id path uint true "Session ID"
// @Success 200 {object} models.SessionAnalytics
// @Failure 409 {object} ErrorResponse "Already completed"
// @Router /sessions/{id}/complete [post]
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Completing quiz session", "session_id", id)

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	analytics, err := h.sessionService.Complete(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, analytics)
}

// GetAnalytics returns the stored analytics of a completed session
// @Summary Get session analytics
// @Tags sessions
// @Produce json
// @Param id path uint true "Session ID"
// @Success 200 {object} models.SessionAnalytics
// @Failure 422 {object} ErrorResponse "Session still active"
// @Router /sessions/{id}/analytics [get]
func (h *SessionHandler) GetAnalytics(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Getting session analytics", "session_id", id)

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	analytics, err := h.sessionService.GetAnalytics(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, analytics)
}

// ExportAnalytics downloads the session analytics as a workbook
// @Summary Export session analytics
// @Tags sessions
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Session ID"
// @Router /sessions/{id}/analytics/export [get]
func (h *SessionHandler) ExportAnalytics(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Exporting session analytics", "session_id", id)

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	data, filename, err := h.exportService.ExportSessionAnalytics(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.sendWorkbook(c, data, filename)
}

func (h *SessionHandler) parseSessionFilters(c *gin.Context) (repositories.SessionFilters, bool) {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 20)
	if page < 1 {
		page = 1
	}

	filters := repositories.SessionFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if status := c.Query("status"); status != "" {
		sessionStatus := models.SessionStatus(strings.ToLower(status))
		filters.Status = &sessionStatus
	}

	if category := strings.TrimSpace(c.Query("category")); category != "" {
		filters.Category = &category
	}

	var ok bool
	if filters.DateFrom, ok = h.parseTimeQuery(c, "date_from"); !ok {
		return filters, false
	}
	if filters.DateTo, ok = h.parseTimeQuery(c, "date_to"); !ok {
		return filters, false
	}

	return filters, true
}
