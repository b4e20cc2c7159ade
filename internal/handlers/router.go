package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/metrics"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/models"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/services"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/utils"
)

type HandlerManager struct {
	sessionHandler   *SessionHandler
	mistakeHandler   *MistakeHandler
	questionHandler  *QuestionHandler
	dashboardHandler *DashboardHandler
	authMiddleware   *CasdoorAuthMiddleware
	serviceManager   services.ServiceManager
	metrics          *metrics.Metrics
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	authMiddleware *CasdoorAuthMiddleware,
	m *metrics.Metrics,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler:   NewSessionHandler(serviceManager.Session(), serviceManager.Export(), logger),
		mistakeHandler:   NewMistakeHandler(serviceManager.Mistake(), serviceManager.Export(), logger),
		questionHandler:  NewQuestionHandler(serviceManager.Question(), logger),
		dashboardHandler: NewDashboardHandler(serviceManager.Dashboard(), logger),
		authMiddleware:   authMiddleware,
		serviceManager:   serviceManager,
		metrics:          m,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	staffOnly := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.StartSession)
			sessions.GET("", hm.sessionHandler.ListSessions)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.POST("/:id/answers", hm.sessionHandler.SubmitAnswer)
			sessions.POST("/:id/proctoring", hm.sessionHandler.RecordProctoringEvent)
			sessions.POST("/:id/complete", hm.sessionHandler.CompleteSession)
			sessions.GET("/:id/analytics", hm.sessionHandler.GetAnalytics)
			sessions.GET("/:id/analytics/export", hm.sessionHandler.ExportAnalytics)
		}

		mistakes := v1.Group("/mistakes")
		{
			mistakes.GET("/patterns", hm.mistakeHandler.GetPatterns)
			mistakes.GET("/remediation", hm.mistakeHandler.GetRemediation)
			mistakes.GET("/frequency", hm.mistakeHandler.GetFrequency)
			mistakes.GET("/systematic", hm.mistakeHandler.GetSystematicErrors)
			mistakes.GET("/export", hm.mistakeHandler.ExportReport)
			// Reveals the correct answer
			mistakes.POST("/classify", staffOnly, hm.mistakeHandler.ClassifyAnswer)
		}

		// Question catalog - Teachers and Admins only
		questions := v1.Group("/questions")
		questions.Use(staffOnly)
		{
			questions.POST("", hm.questionHandler.CreateQuestion)
			questions.GET("/:id", hm.questionHandler.GetQuestion)
		}

		// Dashboard routes - Teachers and Admins only
		dashboard := v1.Group("/dashboard")
		dashboard.Use(staffOnly)
		{
			dashboard.GET("/stats", hm.dashboardHandler.GetDashboardStats)
			dashboard.POST("/stats/refresh", hm.dashboardHandler.RefreshDashboardStats)
		}
	}

	router.GET("/health", hm.health)
	if hm.metrics != nil {
		router.GET("/metrics", hm.metrics.PrometheusHandler())
	}
}

func (hm *HandlerManager) health(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	body := gin.H{
		"service":   "quiz-analytics-service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
		status, code = "unhealthy", http.StatusServiceUnavailable
		body["error"] = err.Error()
	}
	body["status"] = status
	c.JSON(code, body)
}
