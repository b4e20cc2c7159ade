package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/cache"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/events"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/metrics"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	StatsCacheTTL  time.Duration
	DefaultTimeout time.Duration
	// Clock drives the dashboard stats cache; nil means wall clock
	Clock cache.Clock
}

func DefaultServiceManagerConfig() ServiceManagerConfig {
	return ServiceManagerConfig{
		StatsCacheTTL:  time.Minute,
		DefaultTimeout: 30 * time.Second,
	}
}

// ServiceDependencies are the shared collaborators handed to every service
type ServiceDependencies struct {
	DB        *gorm.DB
	Repo      repositories.Repository
	Logger    *slog.Logger
	Validator *validator.Validator
	Publisher events.EventPublisher
	Cache     *cache.CacheManager
	Metrics   *metrics.Metrics
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	deps   ServiceDependencies
	config ServiceManagerConfig

	sessionService   SessionService
	mistakeService   MistakeService
	questionService  QuestionService
	exportService    ExportService
	dashboardService DashboardService

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

func NewServiceManager(deps ServiceDependencies, config ServiceManagerConfig) ServiceManager {
	if deps.Cache == nil {
		deps.Cache = cache.NewCacheManager(nil)
	}
	return &serviceManager{
		deps:   deps,
		config: config,
	}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	if sm.deps.Repo == nil {
		return fmt.Errorf("repository is required")
	}
	if sm.deps.Validator == nil {
		return fmt.Errorf("validator is required")
	}

	sm.deps.Logger.Info("Initializing service manager")

	d := sm.deps
	sm.sessionService = NewSessionService(d.Repo, d.DB, d.Logger, d.Validator, d.Publisher, d.Cache, d.Metrics)
	sm.deps.Logger.Info("Session service initialized")

	sm.mistakeService = NewMistakeService(d.Repo, d.DB, d.Logger, d.Validator, d.Cache, d.Metrics)
	sm.deps.Logger.Info("Mistake service initialized")

	sm.questionService = NewQuestionService(d.Repo, d.DB, d.Logger, d.Validator)
	sm.deps.Logger.Info("Question service initialized")

	sm.exportService = NewExportService(sm.sessionService, sm.mistakeService, d.Logger)
	sm.deps.Logger.Info("Export service initialized")

	sm.dashboardService = NewDashboardService(d.Repo, d.DB, d.Logger, sm.config.StatsCacheTTL, sm.config.Clock)
	sm.deps.Logger.Info("Dashboard service initialized")

	sm.initialized = true
	sm.deps.Logger.Info("Service manager initialized successfully")

	return nil
}

// RegisterEventHandlers subscribes the services that react to session events
func (sm *serviceManager) RegisterEventHandlers(consumer *events.Consumer) {
	consumer.Handle(events.EventSessionCompleted, sm.Mistake().HandleSessionCompleted)
	consumer.Handle(events.EventSessionCompleted, sm.Dashboard().HandleSessionCompleted)
}

// Service getters
func (sm *serviceManager) Session() SessionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.sessionService == nil {
		panic("session service not initialized")
	}
	return sm.sessionService
}

func (sm *serviceManager) Mistake() MistakeService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.mistakeService == nil {
		panic("mistake service not initialized")
	}
	return sm.mistakeService
}

func (sm *serviceManager) Question() QuestionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.questionService == nil {
		panic("question service not initialized")
	}
	return sm.questionService
}

func (sm *serviceManager) Export() ExportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.exportService == nil {
		panic("export service not initialized")
	}
	return sm.exportService
}

func (sm *serviceManager) Dashboard() DashboardService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.dashboardService == nil {
		panic("dashboard service not initialized")
	}
	return sm.dashboardService
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.deps.Logger.Info("Shutting down service manager")

	if err := sm.deps.Repo.Close(); err != nil {
		sm.deps.Logger.Error("Failed to close repository", "error", err)
	}

	sm.shutdown = true
	sm.deps.Logger.Info("Service manager shut down completed")

	return nil
}

// WithTimeout creates a context with the default timeout
func (sm *serviceManager) WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, sm.config.DefaultTimeout)
}
